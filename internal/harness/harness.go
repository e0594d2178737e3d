package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/tessera/internal/compiler"
	"github.com/roach88/tessera/internal/datastore"
	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/model"
	"github.com/roach88/tessera/internal/observe"
	"github.com/roach88/tessera/internal/predicate"
	"github.com/roach88/tessera/internal/storage"
	"github.com/roach88/tessera/internal/store"
	"github.com/roach88/tessera/internal/testutil"
)

// drainTimeout bounds how long Run waits for an observer's queued
// events after the store closes.
const drainTimeout = 5 * time.Second

// Harness is the state of one scenario run.
type Harness struct {
	ds        *datastore.DataStore
	ctors     map[string]*model.Constructor
	refs      map[string]*model.Record
	names     map[string]string // record id -> first binding name
	observers map[string]*observe.Subscription
	logger    zerolog.Logger
	result    *Result
}

// Option configures a run.
type Option func(*config)

type config struct {
	logger zerolog.Logger
	dir    string
}

// WithLogger sets the logger handed to the DataStore.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithDir sets the directory SQLite scenarios keep their database in.
// By default a temporary directory is created and removed.
func WithDir(dir string) Option {
	return func(c *config) { c.dir = dir }
}

// Run executes a scenario against a fresh DataStore and returns the
// result.
//
// Step failures and assertion failures are reported in the Result; the
// returned error is for runs that could not start (bad schema, storage
// failure).
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	desc, err := compiler.LoadSchema(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	reg := model.NewRegistry(model.WithIdentitySource(testutil.NewSequentialSource("rec")))
	ctors, err := reg.InitSchema(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	factory, cleanup, err := engineFactory(scenario.Engine, cfg.dir)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	ds := datastore.New(reg, factory,
		datastore.WithLogger(cfg.logger),
		datastore.WithClock(storage.NewClock()),
	)
	closed := false
	defer func() {
		if !closed {
			ds.Close()
		}
	}()

	h := &Harness{
		ds:        ds,
		ctors:     ctors,
		refs:      make(map[string]*model.Record),
		names:     make(map[string]string),
		observers: make(map[string]*observe.Subscription),
		logger:    cfg.logger,
		result:    NewResult(),
	}

	observers := scenario.Observe
	if len(observers) == 0 {
		observers = []Observer{{Name: "all"}}
	}
	for _, o := range observers {
		if err := h.observe(ctx, o); err != nil {
			return nil, fmt.Errorf("observer %s: %w", o.Name, err)
		}
	}

	for i, step := range scenario.Flow {
		h.executeStep(ctx, i+1, step)
	}

	// State assertions need the store open.
	var traceAssertions []Assertion
	for _, a := range scenario.Assertions {
		if a.Type == AssertFinalState {
			if err := h.assertFinalState(ctx, a); err != nil {
				h.result.AddError(err.Error())
			}
			continue
		}
		traceAssertions = append(traceAssertions, a)
	}

	// Closing the store ends every observer once its queue is delivered.
	closed = true
	if err := ds.Close(); err != nil {
		return nil, fmt.Errorf("failed to close store: %w", err)
	}
	if err := h.drainObservers(); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(h.result, traceAssertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func engineFactory(engine, dir string) (store.Factory, func(), error) {
	if engine != "sqlite" {
		return store.MemoryFactory(), func() {}, nil
	}
	if dir != "" {
		return store.SQLiteFactory(filepath.Join(dir, "scenario.db")), func() {}, nil
	}
	tmp, err := os.MkdirTemp("", "tessera-scenario-")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	return store.SQLiteFactory(filepath.Join(tmp, "scenario.db")), func() { os.RemoveAll(tmp) }, nil
}

func (h *Harness) executeStep(ctx context.Context, n int, step FlowStep) {
	var (
		rec   *model.Record
		recs  []*model.Record
		count int
		err   error
		ref   = step.Ref
	)

	switch step.Op {
	case OpNew:
		rec, err = h.construct(step)
	case OpSave:
		rec, err = h.save(ctx, step)
	case OpCopy:
		rec, err = h.copy(step)
	case OpGet:
		rec, err = h.get(ctx, step)
	case OpQuery:
		recs, err = h.query(ctx, step)
		count = len(recs)
	case OpDelete:
		count, err = h.delete(ctx, step)
	case OpDeleteWhere:
		count, err = h.deleteWhere(ctx, step)
	case OpObserve:
		err = h.observe(ctx, Observer{Name: step.As, Model: step.Model, Ref: step.Ref, Where: step.Where})
		ref = step.As
	case OpUnsubscribe:
		err = h.unsubscribe(step.As)
		ref = step.As
	}

	if rec != nil {
		if step.As != "" {
			h.bind(step.As, rec)
		}
		ref = h.nameOf(rec)
		count = 1
	}

	outcome := ErrorKind(err)
	modelName := step.Model
	if modelName == "" {
		src := rec
		if src == nil {
			src = h.refs[step.Ref]
		}
		if src != nil {
			modelName = src.Model()
		}
	}
	h.result.AddStepTrace(n, step.Op, modelName, ref, outcome, count)

	h.logger.Debug().
		Int("step", n).
		Str("op", step.Op).
		Str("outcome", outcome).
		Msg("flow step completed")

	h.checkExpect(n, step, outcome, err, rec, recs, count)
}

func (h *Harness) checkExpect(n int, step FlowStep, outcome string, err error, rec *model.Record, recs []*model.Record, count int) {
	fail := func(format string, args ...any) {
		h.result.AddError(fmt.Sprintf("flow[%d] %s: ", n, step.Op) + fmt.Sprintf(format, args...))
	}

	exp := step.Expect
	if exp == nil || exp.Error == "" {
		if err != nil {
			fail("unexpected error: %v", err)
			return
		}
	} else if outcome != exp.Error {
		fail("expected error %s, got %s", exp.Error, outcome)
		return
	}
	if exp == nil {
		return
	}

	if exp.Count != nil && count != *exp.Count {
		fail("expected count %d, got %d", *exp.Count, count)
	}
	if exp.Refs != nil {
		got := make([]string, len(recs))
		for i, r := range recs {
			got[i] = h.nameOf(r)
		}
		if fmt.Sprint(got) != fmt.Sprint(exp.Refs) {
			fail("expected refs %v, got %v", exp.Refs, got)
		}
	}
	if len(exp.Fields) > 0 {
		if rec == nil {
			fail("expected a record with fields %v, got none", exp.Fields)
		} else if msg := matchFields(rec, exp.Fields); msg != "" {
			fail("%s", msg)
		}
	}
}

func (h *Harness) constructor(name string) (*model.Constructor, error) {
	ctor, ok := h.ctors[name]
	if !ok {
		return nil, fmt.Errorf("unknown type %q", name)
	}
	return ctor, nil
}

func (h *Harness) record(ref string) (*model.Record, error) {
	rec, ok := h.refs[ref]
	if !ok {
		return nil, fmt.Errorf("unbound ref %q", ref)
	}
	return rec, nil
}

func (h *Harness) bind(name string, rec *model.Record) {
	h.refs[name] = rec
	if rec.IsModel() {
		if _, ok := h.names[rec.ID()]; !ok {
			h.names[rec.ID()] = name
		}
	}
}

// nameOf returns the first binding name of rec's identity, or the raw id.
func (h *Harness) nameOf(rec *model.Record) string {
	if name, ok := h.names[rec.ID()]; ok {
		return name
	}
	if rec.ID() == "" {
		for name, r := range h.refs {
			if r == rec {
				return name
			}
		}
	}
	return rec.ID()
}

func (h *Harness) construct(step FlowStep) (*model.Record, error) {
	ctor, err := h.constructor(step.Model)
	if err != nil {
		return nil, err
	}
	return ctor.NewFromNative(step.Fields)
}

func (h *Harness) save(ctx context.Context, step FlowStep) (*model.Record, error) {
	var (
		rec *model.Record
		err error
	)
	if step.Ref != "" {
		rec, err = h.record(step.Ref)
	} else {
		rec, err = h.construct(step)
	}
	if err != nil {
		return nil, err
	}

	var opts []datastore.SaveOption
	if len(step.Condition) > 0 {
		cond, err := predicate.FromClauses(step.Condition)
		if err != nil {
			return nil, err
		}
		opts = append(opts, datastore.WithCondition(func(*predicate.Criteria) predicate.Predicate {
			return cond
		}))
	}
	return h.ds.Save(ctx, rec, opts...)
}

func (h *Harness) copy(step FlowStep) (*model.Record, error) {
	src, err := h.record(step.Ref)
	if err != nil {
		return nil, err
	}
	ctor := src.Constructor()
	if step.Model != "" {
		if ctor, err = h.constructor(step.Model); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(step.Fields))
	for k := range step.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return ctor.CopyOf(src, func(d *model.Draft) error {
		for _, k := range keys {
			if err := d.Set(k, step.Fields[k]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (h *Harness) get(ctx context.Context, step FlowStep) (*model.Record, error) {
	ctor, err := h.constructor(step.Model)
	if err != nil {
		return nil, err
	}
	id := step.Ref
	if rec, ok := h.refs[step.Ref]; ok {
		id = rec.ID()
	}
	return h.ds.QueryByID(ctx, ctor, id)
}

func (h *Harness) query(ctx context.Context, step FlowStep) ([]*model.Record, error) {
	ctor, err := h.constructor(step.Model)
	if err != nil {
		return nil, err
	}
	p, err := predicate.FromClauses(step.Where)
	if err != nil {
		return nil, err
	}

	var opts []datastore.QueryOption
	if step.Page != nil {
		opts = append(opts, datastore.WithPage(step.Page.Page, step.Page.Limit))
	}
	res, err := h.ds.Query(ctx, ctor, p, opts...)
	if err != nil {
		return nil, err
	}
	if res.Single {
		return []*model.Record{res.Record}, nil
	}
	return res.Records, nil
}

func (h *Harness) delete(ctx context.Context, step FlowStep) (int, error) {
	rec, err := h.record(step.Ref)
	if err != nil {
		return 0, err
	}
	deleted, err := h.ds.Delete(ctx, rec)
	if err != nil || !deleted {
		return 0, err
	}
	return 1, nil
}

func (h *Harness) deleteWhere(ctx context.Context, step FlowStep) (int, error) {
	ctor, err := h.constructor(step.Model)
	if err != nil {
		return 0, err
	}
	p, err := predicate.FromClauses(step.Where)
	if err != nil {
		return 0, err
	}
	return h.ds.DeleteWhere(ctx, ctor, func(*predicate.Criteria) predicate.Predicate { return p })
}

func (h *Harness) observe(ctx context.Context, o Observer) error {
	if _, dup := h.observers[o.Name]; dup {
		return fmt.Errorf("observer %q already open", o.Name)
	}

	var target any
	switch {
	case o.Ref != "":
		rec, err := h.record(o.Ref)
		if err != nil {
			return err
		}
		target = rec
	case o.Model != "":
		ctor, err := h.constructor(o.Model)
		if err != nil {
			return err
		}
		target = ctor
	}

	var fn predicate.CriteriaFunc
	if len(o.Where) > 0 {
		p, err := predicate.FromClauses(o.Where)
		if err != nil {
			return err
		}
		fn = func(*predicate.Criteria) predicate.Predicate { return p }
	}

	sub, err := h.ds.Observe(ctx, target, fn)
	if err != nil {
		return err
	}
	h.observers[o.Name] = sub
	return nil
}

func (h *Harness) unsubscribe(name string) error {
	sub, ok := h.observers[name]
	if !ok {
		return fmt.Errorf("unknown observer %q", name)
	}
	// Events published before the step are part of the trace.
	if !h.collect(name, sub, false) {
		return fmt.Errorf("observer %s: events not drained within %s", name, drainTimeout)
	}
	sub.Unsubscribe()
	delete(h.observers, name)
	return nil
}

func (h *Harness) drainObservers() error {
	names := make([]string, 0, len(h.observers))
	for name := range h.observers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !h.collect(name, h.observers[name], true) {
			return fmt.Errorf("observer %s: events not drained within %s", name, drainTimeout)
		}
	}
	return nil
}

// collect moves an observer's events into the trace. With untilClosed it
// reads until the channel closes; otherwise it stops once nothing
// published to the observer is left undelivered.
func (h *Harness) collect(name string, sub *observe.Subscription, untilClosed bool) bool {
	deadline := time.After(drainTimeout)
	for untilClosed || sub.Pending() > 0 {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return true
			}
			h.traceEvent(name, ev)
		case <-deadline:
			return false
		}
	}
	return true
}

func (h *Harness) traceEvent(observer string, ev observe.ChangeEvent) {
	h.result.AddEventTrace(observer, ev.Op.String(), ev.ModelName(), h.nameOf(ev.Element), ev.Seq)
}

// ErrorKind classifies an error for expect clauses and traces. A nil
// error is "ok".
func ErrorKind(err error) string {
	var (
		fieldErr  *model.FieldError
		schemaErr *model.SchemaError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, datastore.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrNotAModel):
		return "not_a_model"
	case errors.Is(err, datastore.ErrConditionFailed):
		return "condition_failed"
	case errors.Is(err, model.ErrReadOnlyViolation):
		return "read_only"
	case predicate.IsInvalidPredicate(err):
		return "invalid_predicate"
	case errors.As(err, &fieldErr):
		return "field_error"
	case errors.As(err, &schemaErr):
		return "schema_error"
	case storage.IsInitError(err):
		return "storage_init"
	default:
		return "error"
	}
}

func matchFields(rec *model.Record, want map[string]any) string {
	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		expected, err := ir.FromNative(want[k])
		if err != nil {
			return fmt.Sprintf("field %q: %v", k, err)
		}
		actual, ok := rec.Get(k)
		if !ok {
			actual = ir.IRNull{}
		}
		if !ir.Equal(actual, expected) {
			return fmt.Sprintf("field %q = %s, expected %s", k, render(actual), render(expected))
		}
	}
	return ""
}

func render(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}
