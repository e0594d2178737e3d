package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/predicate"
)

// Memory is an in-memory engine. Committed tables are immutable once
// published: a commit builds new tables and swaps them in under an
// RWMutex, so readers always see whole transactions. Write transactions
// are serialized by a separate mutex held from Begin to Commit/Rollback.
//
// With WithSnapshotFile the committed state is loaded from and written
// back to a CBOR snapshot after every commit.
type Memory struct {
	schema *ir.SchemaDescriptor

	mu     sync.RWMutex
	tables map[string]map[string]memRow
	seq    int64
	closed bool

	writeMu sync.Mutex

	snapshotPath string
}

var _ Engine = (*Memory)(nil)

type memRow struct {
	seq    int64
	fields ir.IRObject
}

// MemoryOption configures a Memory engine.
type MemoryOption func(*Memory)

// WithSnapshotFile persists committed state to path as CBOR.
func WithSnapshotFile(path string) MemoryOption {
	return func(m *Memory) {
		m.snapshotPath = path
	}
}

// NewMemory creates an in-memory engine for desc. If a snapshot file is
// configured and exists, its records are loaded.
func NewMemory(desc *ir.SchemaDescriptor, opts ...MemoryOption) (*Memory, error) {
	m := &Memory{
		schema: desc.Clone(),
		tables: make(map[string]map[string]memRow),
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, name := range m.schema.ModelNames() {
		m.tables[name] = make(map[string]memRow)
	}
	if m.snapshotPath != "" {
		if err := m.loadSnapshot(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MemoryFactory returns a Factory creating Memory engines.
func MemoryFactory(opts ...MemoryOption) Factory {
	return func(ctx context.Context, desc *ir.SchemaDescriptor) (Engine, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewMemory(desc, opts...)
	}
}

// Models returns the schema's model names in sorted order.
func (m *Memory) Models() []string {
	return m.schema.ModelNames()
}

// Close marks the engine closed. Later operations fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Get returns the committed row for (model, id).
func (m *Memory) Get(ctx context.Context, model, id string) (Row, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Row{}, false, ErrClosed
	}
	table, ok := m.tables[model]
	if !ok {
		return Row{}, false, fmt.Errorf("get %s: %w", model, ErrUnknownModel)
	}
	r, ok := table[id]
	if !ok {
		return Row{}, false, nil
	}
	return Row{Model: model, ID: id, Fields: ir.CloneObject(r.fields)}, true, nil
}

// Query returns committed rows of model matching p, ordered by insertion
// sequence then id.
func (m *Memory) Query(ctx context.Context, model string, p predicate.Predicate, page ir.Page) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	table, ok := m.tables[model]
	if !ok {
		return nil, fmt.Errorf("query %s: %w", model, ErrUnknownModel)
	}
	return scan(model, table, nil, p, page), nil
}

// scan filters and orders a table, overlaying staged writes when given.
func scan(model string, table map[string]memRow, staged map[string]*memRow, p predicate.Predicate, page ir.Page) []Row {
	type hit struct {
		id string
		r  memRow
	}
	var hits []hit
	for id, r := range table {
		if s, ok := staged[id]; ok {
			if s == nil {
				continue
			}
			r = *s
		}
		if predicate.Evaluate(p, r.fields) {
			hits = append(hits, hit{id, r})
		}
	}
	for id, s := range staged {
		if _, ok := table[id]; ok || s == nil {
			continue
		}
		if predicate.Evaluate(p, s.fields) {
			hits = append(hits, hit{id, *s})
		}
	}

	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(a.r.seq, b.r.seq); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	out := []Row{}
	for _, h := range ir.Apply(page, hits) {
		out = append(out, Row{Model: model, ID: h.id, Fields: ir.CloneObject(h.r.fields)})
	}
	return out
}

// Begin starts a write transaction. It blocks while another write
// transaction is open.
func (m *Memory) Begin(ctx context.Context) (Txn, error) {
	m.writeMu.Lock()

	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		m.writeMu.Unlock()
		return nil, ErrClosed
	}

	return &memTxn{m: m, staged: make(map[string]map[string]*memRow)}, nil
}

// memTxn stages writes per model; a nil entry is a staged delete.
type memTxn struct {
	m      *Memory
	staged map[string]map[string]*memRow
	seq    int64
	done   bool
}

func (t *memTxn) table(model string) (map[string]memRow, error) {
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	table, ok := t.m.tables[model]
	if !ok {
		return nil, ErrUnknownModel
	}
	return table, nil
}

func (t *memTxn) lookup(model, id string) (memRow, bool, error) {
	if s, ok := t.staged[model][id]; ok {
		if s == nil {
			return memRow{}, false, nil
		}
		return *s, true, nil
	}
	table, err := t.table(model)
	if err != nil {
		return memRow{}, false, err
	}
	t.m.mu.RLock()
	r, ok := table[id]
	t.m.mu.RUnlock()
	return r, ok, nil
}

func (t *memTxn) Get(ctx context.Context, model, id string) (Row, bool, error) {
	r, ok, err := t.lookup(model, id)
	if err != nil {
		return Row{}, false, fmt.Errorf("get %s: %w", model, err)
	}
	if !ok {
		return Row{}, false, nil
	}
	return Row{Model: model, ID: id, Fields: ir.CloneObject(r.fields)}, true, nil
}

func (t *memTxn) Query(ctx context.Context, model string, p predicate.Predicate, page ir.Page) ([]Row, error) {
	table, err := t.table(model)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", model, err)
	}
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()
	return scan(model, table, t.staged[model], p, page), nil
}

func (t *memTxn) Put(ctx context.Context, row Row) (bool, error) {
	if t.done {
		return false, fmt.Errorf("put %s/%s: transaction finished", row.Model, row.ID)
	}
	prev, existed, err := t.lookup(row.Model, row.ID)
	if err != nil {
		return false, fmt.Errorf("put %s: %w", row.Model, err)
	}
	if _, err := ir.MarshalCanonical(row.Fields); err != nil {
		return false, fmt.Errorf("put %s/%s: %w", row.Model, row.ID, err)
	}

	r := memRow{seq: prev.seq, fields: ir.CloneObject(row.Fields)}
	if !existed {
		t.seq++
		t.m.mu.RLock()
		r.seq = t.m.seq + t.seq
		t.m.mu.RUnlock()
	}
	if t.staged[row.Model] == nil {
		t.staged[row.Model] = make(map[string]*memRow)
	}
	t.staged[row.Model][row.ID] = &r
	return existed, nil
}

func (t *memTxn) Delete(ctx context.Context, model, id string) (bool, error) {
	if t.done {
		return false, fmt.Errorf("delete %s/%s: transaction finished", model, id)
	}
	_, existed, err := t.lookup(model, id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", model, err)
	}
	if !existed {
		return false, nil
	}
	if t.staged[model] == nil {
		t.staged[model] = make(map[string]*memRow)
	}
	t.staged[model][id] = nil
	return true, nil
}

// Commit publishes the staged writes. With a snapshot file the merged
// state is written first and only becomes visible once the file is in
// place; a failed write leaves committed state untouched.
func (t *memTxn) Commit() error {
	if t.done {
		return fmt.Errorf("commit: transaction finished")
	}
	t.done = true
	defer t.m.writeMu.Unlock()

	t.m.mu.RLock()
	closed := t.m.closed
	tables := t.merged()
	seq := t.m.seq + t.seq
	t.m.mu.RUnlock()
	if closed {
		return fmt.Errorf("commit: %w", ErrClosed)
	}

	if t.m.snapshotPath != "" {
		if err := t.m.writeSnapshot(tables, seq); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}

	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.m.closed {
		return fmt.Errorf("commit: %w", ErrClosed)
	}
	t.m.tables = tables
	t.m.seq = seq
	return nil
}

// merged returns the committed tables with the staged writes applied.
// Tables the transaction touched are copied; the rest are shared, since
// committed tables are never modified in place. Callers hold m.mu.
func (t *memTxn) merged() map[string]map[string]memRow {
	out := make(map[string]map[string]memRow, len(t.m.tables))
	for model, table := range t.m.tables {
		rows, ok := t.staged[model]
		if !ok {
			out[model] = table
			continue
		}
		next := make(map[string]memRow, len(table)+len(rows))
		for id, r := range table {
			next[id] = r
		}
		for id, r := range rows {
			if r == nil {
				delete(next, id)
				continue
			}
			next[id] = *r
		}
		out[model] = next
	}
	return out
}

func (t *memTxn) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.staged = nil
	t.m.writeMu.Unlock()
	return nil
}
