package storage

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/metrics"
	"github.com/roach88/tessera/internal/model"
	"github.com/roach88/tessera/internal/observe"
	"github.com/roach88/tessera/internal/predicate"
	"github.com/roach88/tessera/internal/store"
)

// Handle is the initialized storage: one engine, one hub and the
// exclusive section guarding writes.
type Handle struct {
	engine   store.Engine
	registry *model.Registry
	hub      *observe.Hub
	clock    *Clock
	sem      chan struct{}
	closed   atomic.Bool // set under sem
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

func newHandle(c *Coordinator, engine store.Engine) *Handle {
	return &Handle{
		engine:   engine,
		registry: c.registry,
		hub:      observe.NewHub(c.hubOptions()...),
		clock:    c.clock,
		sem:      make(chan struct{}, 1),
		logger:   c.logger,
		metrics:  c.metrics,
	}
}

// Models returns the models the engine stores.
func (h *Handle) Models() []string {
	return h.engine.Models()
}

// RunExclusive runs fn in a write transaction while holding the
// exclusive section.
//
// If fn returns an error or panics the transaction is rolled back, the
// section released and the error or panic passed on. Otherwise the
// transaction commits and the changes fn made are published as events,
// in order, before the section is released.
//
// After the coordinator closes, RunExclusive returns ErrClosed.
func (h *Handle) RunExclusive(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	start := time.Now()
	select {
	case h.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-h.sem }()
	h.metrics.RecordExclusiveWait(time.Since(start))
	if h.closed.Load() {
		return ErrClosed
	}

	txn, err := h.engine.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}

	tx := &Tx{handle: h, txn: txn}
	committed := false
	defer func() {
		tx.done = true
		if !committed {
			if rbErr := txn.Rollback(); rbErr != nil {
				h.logger.Warn().Err(rbErr).Msg("rollback failed")
			}
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	tx.done = true
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	committed = true

	events := h.stamp(tx.changes)
	h.hub.Publish(events...)
	return nil
}

func (h *Handle) stamp(changes []observe.ChangeEvent) []observe.ChangeEvent {
	for i := range changes {
		ev := &changes[i]
		ev.Seq = h.clock.Next()
		ev.ID = ir.MustEventID(ev.ModelName(), ev.Element.ID(), ev.Op.String(), ev.Seq)

		h.logger.Debug().
			Str("model", ev.ModelName()).
			Str("id", ev.Element.ID()).
			Str("op", ev.Op.String()).
			Int64("seq", ev.Seq).
			Msg("committed")
	}
	return changes
}

// Get reads one committed record.
func (h *Handle) Get(ctx context.Context, ctor *model.Constructor, id string) (*model.Record, bool, error) {
	if err := h.checkModel(ctor); err != nil {
		return nil, false, err
	}
	row, ok, err := h.engine.Get(ctx, ctor.Name(), id)
	if err != nil || !ok {
		return nil, false, err
	}
	rec, err := hydrate(ctor, row)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// Query reads committed records of ctor's model matching p.
func (h *Handle) Query(ctx context.Context, ctor *model.Constructor, p predicate.Predicate, page ir.Page) ([]*model.Record, error) {
	if err := h.checkModel(ctor); err != nil {
		return nil, err
	}
	if p == nil {
		p = predicate.MatchAll
	}
	if err := predicate.Validate(ctor.Name(), ctor.Fields(), p); err != nil {
		return nil, err
	}
	rows, err := h.engine.Query(ctx, ctor.Name(), p, page)
	if err != nil {
		return nil, err
	}
	return hydrateAll(ctor, rows)
}

// Subscribe registers a change subscription.
func (h *Handle) Subscribe(f observe.Filter) (*observe.Subscription, error) {
	return h.hub.Subscribe(f)
}

// Subscribers returns the number of open subscriptions.
func (h *Handle) Subscribers() int {
	return h.hub.Len()
}

// Clock returns the clock stamping this handle's events.
func (h *Handle) Clock() *Clock {
	return h.clock
}

func (h *Handle) close() error {
	h.hub.Close()

	// Wait out a running exclusive body; later bodies see closed.
	h.sem <- struct{}{}
	defer func() { <-h.sem }()
	h.closed.Store(true)

	if err := h.engine.Close(); err != nil {
		return fmt.Errorf("storage: close engine: %w", err)
	}
	return nil
}

func (h *Handle) checkModel(ctor *model.Constructor) error {
	if ctor == nil || !ctor.IsModel() || ctor.Registry() != h.registry {
		return fmt.Errorf("storage: %w", model.ErrNotAModel)
	}
	return nil
}

func hydrate(ctor *model.Constructor, row store.Row) (*model.Record, error) {
	rec, err := ctor.Hydrate(row.Fields)
	if err != nil {
		return nil, fmt.Errorf("storage: load %s(%s): %w", row.Model, row.ID, err)
	}
	return rec, nil
}

func hydrateAll(ctor *model.Constructor, rows []store.Row) ([]*model.Record, error) {
	out := make([]*model.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := hydrate(ctor, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
