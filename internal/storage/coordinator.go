package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/tessera/internal/metrics"
	"github.com/roach88/tessera/internal/model"
	"github.com/roach88/tessera/internal/observe"
	"github.com/roach88/tessera/internal/store"
)

// Coordinator owns the lazily constructed storage handle.
type Coordinator struct {
	registry *model.Registry
	factory  store.Factory
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	clock    *Clock

	mu       sync.Mutex
	inflight chan struct{} // closed when construction finishes
	closed   bool

	// Written once by initialize before inflight closes.
	handle *Handle
	err    error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithMetrics sets the coordinator's metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithClock sets the clock that stamps change events.
func WithClock(clock *Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// New creates a coordinator. Nothing is constructed until the first
// Handle call.
func New(registry *model.Registry, factory store.Factory, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry: registry,
		factory:  factory,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = NewClock()
	}
	return c
}

// Handle returns the storage handle, constructing it on first use.
//
// Concurrent first callers share one construction. A caller whose ctx
// ends while waiting returns ctx.Err(); the construction itself carries
// on for the others.
//
// Before the registry's schema is initialized Handle fails with an
// InitError wrapping ErrSchemaNotInitialized. That failure is not
// cached: a call after InitSchema constructs the engine.
func (c *Coordinator) Handle(ctx context.Context) (*Handle, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.inflight == nil && (c.registry == nil || !c.registry.Initialized()) {
		c.mu.Unlock()
		return nil, &InitError{Err: ErrSchemaNotInitialized}
	}
	if c.inflight == nil {
		c.inflight = make(chan struct{})
		go c.initialize(context.WithoutCancel(ctx), c.inflight)
	}
	done := c.inflight
	c.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.handle, nil
}

// Initialized reports whether a construction has finished successfully.
func (c *Coordinator) Initialized() bool {
	c.mu.Lock()
	done := c.inflight
	c.mu.Unlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return c.err == nil
	default:
		return false
	}
}

func (c *Coordinator) initialize(ctx context.Context, done chan struct{}) {
	defer close(done)

	start := time.Now()
	engine, err := c.construct(ctx)
	c.metrics.RecordStorageInit(err, time.Since(start))
	if err != nil {
		c.err = &InitError{Err: err}
		c.logger.Error().Err(err).Msg("storage initialization failed")
		return
	}

	c.handle = newHandle(c, engine)
	c.logger.Info().
		Strs("models", engine.Models()).
		Dur("took", time.Since(start)).
		Msg("storage initialized")
}

func (c *Coordinator) construct(ctx context.Context) (engine store.Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			engine, err = nil, fmt.Errorf("factory panicked: %v", r)
		}
	}()

	engine, err = c.factory(ctx, c.registry.Schema())
	if err == nil && engine == nil {
		err = fmt.Errorf("factory returned no engine")
	}
	return engine, err
}

// Close shuts the handle down: subscriptions end, then the engine is
// closed. An in-flight construction is waited for. Close is idempotent.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	done := c.inflight
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	<-done
	if c.handle == nil {
		return nil
	}
	return c.handle.close()
}

func (c *Coordinator) hubOptions() []observe.Option {
	return []observe.Option{
		observe.WithLogger(c.logger),
		observe.WithMetrics(c.metrics),
	}
}
