package observe

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/roach88/tessera/internal/metrics"
)

// ErrHubClosed is returned by Subscribe after Close.
var ErrHubClosed = errors.New("observe: hub closed")

// Hub fans published events out to subscriptions.
type Hub struct {
	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextID  uint64
	closed  bool
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// WithMetrics sets the hub's metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:   make(map[uint64]*Subscription),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a subscription for events matching f. The
// subscription only sees events published after Subscribe returns.
func (h *Hub) Subscribe(f Filter) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	h.nextID++
	s := newSubscription(h, h.nextID, f)
	h.subs[s.id] = s
	h.metrics.SetSubscriptions(len(h.subs))

	h.logger.Debug().
		Uint64("subscription", s.id).
		Str("model", f.Model).
		Str("id", f.ID).
		Msg("subscribed")

	go s.pump()
	return s, nil
}

// Publish enqueues events, in order, on every matching subscription. It
// never blocks on consumers.
func (h *Hub) Publish(events ...ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	for _, ev := range events {
		h.metrics.RecordEvent(ev.ModelName(), ev.Op.String())
		for _, s := range h.subs {
			if s.filter.Matches(ev) {
				s.enqueue(ev)
			}
		}
	}
}

// Len returns the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription. Events already queued are still
// delivered before a subscription's channel closes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, s := range h.subs {
		s.queue.Close()
		delete(h.subs, id)
	}
	h.metrics.SetSubscriptions(0)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[id]; !ok {
		return
	}
	delete(h.subs, id)
	h.metrics.SetSubscriptions(len(h.subs))
	h.logger.Debug().Uint64("subscription", id).Msg("unsubscribed")
}
