package storage

import (
	"context"
	"fmt"

	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/model"
	"github.com/roach88/tessera/internal/observe"
	"github.com/roach88/tessera/internal/predicate"
	"github.com/roach88/tessera/internal/store"
)

// Tx is the view of storage inside an exclusive body. Reads see the
// body's own writes. A Tx must not be used after the body returns.
type Tx struct {
	handle  *Handle
	txn     store.Txn
	changes []observe.ChangeEvent
	done    bool
}

// Save writes rec, reporting Insert for a new identity and Update for an
// existing one.
func (t *Tx) Save(ctx context.Context, rec *model.Record) (observe.OpType, error) {
	if t.done {
		return 0, ErrTxDone
	}
	if !t.handle.registry.Owns(rec) {
		return 0, fmt.Errorf("storage: save %v: %w", rec, model.ErrNotAModel)
	}

	existed, err := t.txn.Put(ctx, store.Row{
		Model:  rec.Model(),
		ID:     rec.ID(),
		Fields: rec.Fields(),
	})
	if err != nil {
		return 0, fmt.Errorf("storage: save %v: %w", rec, err)
	}

	op := observe.Insert
	if existed {
		op = observe.Update
	}
	t.record(rec, op)
	return op, nil
}

// Delete removes the record with the given id. It reports false, and
// emits no event, when there was none.
func (t *Tx) Delete(ctx context.Context, ctor *model.Constructor, id string) (bool, error) {
	if t.done {
		return false, ErrTxDone
	}
	prev, ok, err := t.Get(ctx, ctor, id)
	if err != nil || !ok {
		return false, err
	}

	if _, err := t.txn.Delete(ctx, ctor.Name(), id); err != nil {
		return false, fmt.Errorf("storage: delete %v: %w", prev, err)
	}
	t.record(prev, observe.Delete)
	return true, nil
}

// Get reads one record, including this body's uncommitted writes.
func (t *Tx) Get(ctx context.Context, ctor *model.Constructor, id string) (*model.Record, bool, error) {
	if t.done {
		return nil, false, ErrTxDone
	}
	if err := t.handle.checkModel(ctor); err != nil {
		return nil, false, err
	}
	row, ok, err := t.txn.Get(ctx, ctor.Name(), id)
	if err != nil || !ok {
		return nil, false, err
	}
	rec, err := hydrate(ctor, row)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// Query reads records matching p, including this body's uncommitted
// writes.
func (t *Tx) Query(ctx context.Context, ctor *model.Constructor, p predicate.Predicate, page ir.Page) ([]*model.Record, error) {
	if t.done {
		return nil, ErrTxDone
	}
	if err := t.handle.checkModel(ctor); err != nil {
		return nil, err
	}
	if p == nil {
		p = predicate.MatchAll
	}
	if err := predicate.Validate(ctor.Name(), ctor.Fields(), p); err != nil {
		return nil, err
	}
	rows, err := t.txn.Query(ctx, ctor.Name(), p, page)
	if err != nil {
		return nil, err
	}
	return hydrateAll(ctor, rows)
}

// Changes returns the number of changes staged so far.
func (t *Tx) Changes() int {
	return len(t.changes)
}

func (t *Tx) record(rec *model.Record, op observe.OpType) {
	t.changes = append(t.changes, observe.ChangeEvent{
		Element: rec,
		Model:   rec.Constructor(),
		Op:      op,
	})
}
