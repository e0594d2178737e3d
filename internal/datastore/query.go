package datastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/model"
	"github.com/roach88/tessera/internal/predicate"
)

var pageAll = ir.Page{}

// Result holds a query's answer. Identity lookups and criteria that
// narrow to one identity give a single record; every other query gives
// a list, even an empty one.
type Result struct {
	Single  bool
	Record  *model.Record
	Records []*model.Record
}

// Len returns the number of records in the result.
func (r *Result) Len() int {
	if r.Single {
		return 1
	}
	return len(r.Records)
}

// Query reads records of ctor's model. arg selects them:
//
//	nil, predicate.MatchAll           every record (list)
//	string                            the record with that id (single)
//	predicate.CriteriaFunc,
//	func(*predicate.Criteria) predicate.Predicate
//	                                  compiled filter (single when it only
//	                                  matches "id eq X", list otherwise)
//	predicate.Predicate               prebuilt filter, same rule
//
// A single-record query with no match returns ErrNotFound.
func (d *DataStore) Query(ctx context.Context, ctor *model.Constructor, arg any, opts ...QueryOption) (*Result, error) {
	if err := d.checkModel(ctor); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	cfg := applyQueryOptions(opts)

	if id, ok := arg.(string); ok {
		rec, err := d.get(ctx, ctor, id, "id")
		if err != nil {
			return nil, err
		}
		return &Result{Single: true, Record: rec}, nil
	}

	p, err := d.resolve(ctor, arg)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", ctor.Name(), err)
	}

	if id, ok := predicate.SingleID(p); ok {
		rec, err := d.single(ctx, ctor, id, p)
		if err != nil {
			return nil, err
		}
		return &Result{Single: true, Record: rec}, nil
	}

	kind := "where"
	if predicate.IsMatchAll(p) {
		kind = "all"
	}
	recs, err := d.list(ctx, ctor, p, cfg.page, kind)
	if err != nil {
		return nil, err
	}
	return &Result{Records: recs}, nil
}

// QueryAll returns every record of ctor's model.
func (d *DataStore) QueryAll(ctx context.Context, ctor *model.Constructor, opts ...QueryOption) ([]*model.Record, error) {
	res, err := d.Query(ctx, ctor, nil, opts...)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// QueryByID returns the record with the given id or ErrNotFound.
func (d *DataStore) QueryByID(ctx context.Context, ctor *model.Constructor, id string) (*model.Record, error) {
	res, err := d.Query(ctx, ctor, id)
	if err != nil {
		return nil, err
	}
	return res.Record, nil
}

// QueryWhere returns the records matching fn as a list, whatever its
// shape.
func (d *DataStore) QueryWhere(ctx context.Context, ctor *model.Constructor, fn predicate.CriteriaFunc, opts ...QueryOption) ([]*model.Record, error) {
	res, err := d.Query(ctx, ctor, fn, opts...)
	switch {
	case errors.Is(err, ErrNotFound):
		return []*model.Record{}, nil
	case err != nil:
		return nil, err
	case res.Single:
		return []*model.Record{res.Record}, nil
	default:
		return res.Records, nil
	}
}

func (d *DataStore) resolve(ctor *model.Constructor, arg any) (predicate.Predicate, error) {
	switch a := arg.(type) {
	case nil:
		return predicate.MatchAll, nil
	case predicate.CriteriaFunc:
		return compileCriteria(ctor, a)
	case func(*predicate.Criteria) predicate.Predicate:
		return compileCriteria(ctor, a)
	case predicate.Predicate:
		if err := predicate.Validate(ctor.Name(), ctor.Fields(), a); err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("%T: %w", arg, ErrUnsupportedQuery)
	}
}

func (d *DataStore) get(ctx context.Context, ctor *model.Constructor, id, kind string) (*model.Record, error) {
	h, err := d.coord.Handle(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rec, ok, err := h.Get(ctx, ctor, id)
	d.metrics.RecordQuery(ctor.Name(), kind, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("query %s(%s): %w", ctor.Name(), id, err)
	}
	if !ok {
		return nil, fmt.Errorf("query %s(%s): %w", ctor.Name(), id, ErrNotFound)
	}
	return rec, nil
}

// single answers a predicate that narrows to one id. The full predicate
// still applies, so "id eq X and rating gt 3" misses when X's rating is
// lower.
func (d *DataStore) single(ctx context.Context, ctor *model.Constructor, id string, p predicate.Predicate) (*model.Record, error) {
	rec, err := d.get(ctx, ctor, id, "where")
	if err != nil {
		return nil, err
	}
	if !predicate.Evaluate(p, rec.Fields()) {
		return nil, fmt.Errorf("query %s(%s): %w", ctor.Name(), id, ErrNotFound)
	}
	return rec, nil
}

func (d *DataStore) list(ctx context.Context, ctor *model.Constructor, p predicate.Predicate, page ir.Page, kind string) ([]*model.Record, error) {
	h, err := d.coord.Handle(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	recs, err := h.Query(ctx, ctor, p, page)
	d.metrics.RecordQuery(ctor.Name(), kind, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", ctor.Name(), err)
	}
	return recs, nil
}
