package observe

import (
	"sync"
	"sync/atomic"
)

// Subscription is one consumer's view of the change stream.
//
// Events are read from Events until it closes. Unsubscribe may be called
// at any time, from any goroutine, including the one ranging over Events.
type Subscription struct {
	id     uint64
	hub    *Hub
	filter Filter
	queue  *eventQueue
	events chan ChangeEvent
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once

	// undelivered counts queued events plus the one the pump holds.
	undelivered atomic.Int64
}

func newSubscription(h *Hub, id uint64, f Filter) *Subscription {
	return &Subscription{
		id:     id,
		hub:    h,
		filter: f,
		queue:  newEventQueue(),
		events: make(chan ChangeEvent),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Events returns the delivery channel. It is closed after Unsubscribe,
// or after the hub closes and the queued events have been delivered.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.events
}

// Done is closed once delivery has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Filter returns the subscription's filter.
func (s *Subscription) Filter() Filter {
	return s.filter
}

// Pending returns the number of events published to this subscription
// and not yet received from Events.
func (s *Subscription) Pending() int {
	return int(s.undelivered.Load())
}

func (s *Subscription) enqueue(ev ChangeEvent) {
	s.undelivered.Add(1)
	s.queue.Enqueue(ev)
}

// Unsubscribe stops delivery. Queued events are discarded; an event the
// pump was already handing over may still arrive once. Calling it more
// than once is a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s.id)
		close(s.stop)
		s.queue.Close()
	})
}

// pump moves events from the queue to the delivery channel until the
// subscription stops or the closed queue drains.
func (s *Subscription) pump() {
	defer close(s.done)
	defer close(s.events)

	for {
		for {
			ev, ok := s.queue.TryDequeue()
			if !ok {
				break
			}
			select {
			case <-s.stop:
				return
			default:
			}
			select {
			case s.events <- ev:
				s.undelivered.Add(-1)
			case <-s.stop:
				return
			}
		}

		select {
		case <-s.stop:
			return
		case _, open := <-s.queue.Wait():
			if !open && s.queue.Len() == 0 {
				return
			}
		}
	}
}
