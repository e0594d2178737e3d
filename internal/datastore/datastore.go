package datastore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/roach88/tessera/internal/logger"
	"github.com/roach88/tessera/internal/metrics"
	"github.com/roach88/tessera/internal/model"
	"github.com/roach88/tessera/internal/observe"
	"github.com/roach88/tessera/internal/predicate"
	"github.com/roach88/tessera/internal/storage"
	"github.com/roach88/tessera/internal/store"
)

// DataStore orchestrates saves, queries and observations over one
// registry's models.
type DataStore struct {
	registry *model.Registry
	coord    *storage.Coordinator
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	clock    *storage.Clock
}

// New creates a DataStore. factory is not called until first use.
func New(registry *model.Registry, factory store.Factory, opts ...Option) *DataStore {
	d := &DataStore{
		registry: registry,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	storageOpts := []storage.Option{
		storage.WithLogger(logger.Component(d.logger, "storage")),
		storage.WithMetrics(d.metrics),
	}
	if d.clock != nil {
		storageOpts = append(storageOpts, storage.WithClock(d.clock))
	}
	d.coord = storage.New(registry, factory, storageOpts...)
	d.logger = logger.Component(d.logger, "datastore")
	return d
}

// Registry returns the registry whose records the store accepts.
func (d *DataStore) Registry() *model.Registry {
	return d.registry
}

// Save persists rec and returns it. The change is published as an
// Insert or Update event.
//
// rec must come from one of the store's model constructors; anything
// else fails with model.ErrNotAModel before storage is touched.
func (d *DataStore) Save(ctx context.Context, rec *model.Record, opts ...SaveOption) (*model.Record, error) {
	if !d.registry.Owns(rec) {
		d.metrics.RecordError("not_a_model")
		return nil, fmt.Errorf("save %s: %w", describe(rec), model.ErrNotAModel)
	}

	var cfg saveConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ctor := rec.Constructor()
	cond, err := compileCriteria(ctor, cfg.condition)
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", rec, err)
	}

	h, err := d.coord.Handle(ctx)
	if err != nil {
		return nil, err
	}

	var op observe.OpType
	err = h.RunExclusive(ctx, func(ctx context.Context, tx *storage.Tx) error {
		if cfg.condition != nil {
			current, ok, err := tx.Get(ctx, ctor, rec.ID())
			if err != nil {
				return err
			}
			if ok && !predicate.Evaluate(cond, current.Fields()) {
				return ErrConditionFailed
			}
		}
		saved, err := tx.Save(ctx, rec)
		op = saved
		return err
	})
	if err != nil {
		d.metrics.RecordError("save")
		return nil, fmt.Errorf("save %s: %w", rec, err)
	}

	d.metrics.RecordSave(ctor.Name(), op.String())
	d.logger.Debug().
		Str("model", ctor.Name()).
		Str("id", rec.ID()).
		Str("op", op.String()).
		Msg("saved")
	return rec, nil
}

// Delete removes rec's stored version and publishes a Delete event. It
// reports false when nothing was stored under rec's identity.
func (d *DataStore) Delete(ctx context.Context, rec *model.Record) (bool, error) {
	if !d.registry.Owns(rec) {
		return false, fmt.Errorf("delete %s: %w", describe(rec), model.ErrNotAModel)
	}

	h, err := d.coord.Handle(ctx)
	if err != nil {
		return false, err
	}

	var deleted bool
	err = h.RunExclusive(ctx, func(ctx context.Context, tx *storage.Tx) error {
		ok, err := tx.Delete(ctx, rec.Constructor(), rec.ID())
		deleted = ok
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", rec, err)
	}
	if deleted {
		d.metrics.RecordDelete(1)
	}
	return deleted, nil
}

// DeleteWhere removes every record of ctor's model matching fn, in one
// exclusive body, and returns how many were removed. A nil fn removes
// them all.
func (d *DataStore) DeleteWhere(ctx context.Context, ctor *model.Constructor, fn predicate.CriteriaFunc) (int, error) {
	if err := d.checkModel(ctor); err != nil {
		return 0, err
	}
	p, err := compileCriteria(ctor, fn)
	if err != nil {
		return 0, err
	}

	h, err := d.coord.Handle(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	err = h.RunExclusive(ctx, func(ctx context.Context, tx *storage.Tx) error {
		matches, err := tx.Query(ctx, ctor, p, pageAll)
		if err != nil {
			return err
		}
		for _, rec := range matches {
			if _, err := tx.Delete(ctx, ctor, rec.ID()); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", ctor.Name(), err)
	}
	d.metrics.RecordDelete(n)
	return n, nil
}

// Observe subscribes to change events.
//
// target selects the events: nil for every model, a *model.Constructor
// for one model, a *model.Record for one record's future changes. A
// non-nil fn further filters on the changed record's fields and needs a
// model target.
func (d *DataStore) Observe(ctx context.Context, target any, fn predicate.CriteriaFunc) (*observe.Subscription, error) {
	var (
		f    observe.Filter
		ctor *model.Constructor
	)
	switch t := target.(type) {
	case nil:
	case *model.Constructor:
		if err := d.checkModel(t); err != nil {
			return nil, err
		}
		ctor = t
		f.Model = t.Name()
	case *model.Record:
		if !d.registry.Owns(t) {
			return nil, fmt.Errorf("observe %s: %w", describe(t), model.ErrNotAModel)
		}
		ctor = t.Constructor()
		f.Model, f.ID = ctor.Name(), t.ID()
	default:
		return nil, fmt.Errorf("observe %T: %w", target, model.ErrNotAModel)
	}

	if fn != nil {
		if ctor == nil {
			return nil, &predicate.InvalidPredicateError{Model: "*", Reason: "criteria need a model to observe"}
		}
		p, err := compileCriteria(ctor, fn)
		if err != nil {
			return nil, err
		}
		f.Predicate = p
	}

	h, err := d.coord.Handle(ctx)
	if err != nil {
		return nil, err
	}
	return h.Subscribe(f)
}

// Close ends every subscription and closes the storage engine.
func (d *DataStore) Close() error {
	return d.coord.Close()
}

func (d *DataStore) checkModel(ctor *model.Constructor) error {
	if ctor == nil || !ctor.IsModel() || ctor.Registry() != d.registry {
		name := "<nil>"
		if ctor != nil {
			name = ctor.Name()
		}
		return fmt.Errorf("%s: %w", name, model.ErrNotAModel)
	}
	return nil
}

func compileCriteria(ctor *model.Constructor, fn predicate.CriteriaFunc) (predicate.Predicate, error) {
	return predicate.Compile(ctor.Name(), ctor.Fields(), fn)
}

func describe(rec *model.Record) string {
	if rec == nil {
		return "<nil>"
	}
	return rec.String()
}
