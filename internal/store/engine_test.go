package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/predicate"
)

// engines returns a constructor for each engine implementation.
func engines() map[string]func(t *testing.T) Engine {
	return map[string]func(t *testing.T) Engine{
		"sqlite": func(t *testing.T) Engine { return createTestStore(t) },
		"memory": func(t *testing.T) Engine { return createTestMemory(t) },
	}
}

// putAll writes rows in a single committed transaction.
func putAll(t *testing.T, e Engine, rows ...Row) {
	t.Helper()
	ctx := context.Background()
	tx, err := e.Begin(ctx)
	require.NoError(t, err)
	for _, r := range rows {
		_, err := tx.Put(ctx, r)
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())
}

func TestEngine_PutGet(t *testing.T) {
	for name, newEngine := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			e := newEngine(t)

			tx, err := e.Begin(ctx)
			require.NoError(t, err)
			existed, err := tx.Put(ctx, postRow("p1", "first", 4, "go", "db"))
			require.NoError(t, err)
			assert.False(t, existed)
			require.NoError(t, tx.Commit())

			row, ok, err := e.Get(ctx, "Post", "p1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "p1", row.ID)
			assert.Equal(t, "Post", row.Model)
			assert.True(t, ir.Equal(postRow("p1", "first", 4, "go", "db").Fields, row.Fields))

			_, ok, err = e.Get(ctx, "Post", "missing")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestEngine_PutReportsExisting(t *testing.T) {
	for name, newEngine := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			e := newEngine(t)
			putAll(t, e, postRow("p1", "first", 1))

			tx, err := e.Begin(ctx)
			require.NoError(t, err)
			existed, err := tx.Put(ctx, postRow("p1", "renamed", 1))
			require.NoError(t, err)
			assert.True(t, existed)
			require.NoError(t, tx.Commit())

			row, _, err := e.Get(ctx, "Post", "p1")
			require.NoError(t, err)
			assert.Equal(t, ir.IRString("renamed"), row.Fields["title"])
		})
	}
}

func TestEngine_UnknownModel(t *testing.T) {
	for name, newEngine := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			e := newEngine(t)

			_, err := e.Query(ctx, "Comment", predicate.MatchAll, ir.Page{})
			assert.ErrorIs(t, err, ErrUnknownModel)

			tx, err := e.Begin(ctx)
			require.NoError(t, err)
			defer tx.Rollback()
			_, err = tx.Put(ctx, Row{Model: "Comment", ID: "c1", Fields: ir.IRObject{"id": ir.IRString("c1")}})
			assert.ErrorIs(t, err, ErrUnknownModel)
		})
	}
}

func TestEngine_QueryOrderKeepsInsertionSeqOnUpdate(t *testing.T) {
	for name, newEngine := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			e := newEngine(t)
			putAll(t, e, postRow("c", "third", 1))
			putAll(t, e, postRow("a", "first", 2))
			putAll(t, e, postRow("b", "second", 3))
			putAll(t, e, postRow("c", "third again", 9))

			rows, err := e.Query(ctx, "Post", predicate.MatchAll, ir.Page{})
			require.NoError(t, err)
			assert.Equal(t, []string{"c", "a", "b"}, rowIDs(rows))
			assert.Equal(t, ir.IRString("third again"), rows[0].Fields["title"])
		})
	}
}

func TestEngine_QueryPredicateAndPage(t *testing.T) {
	for name, newEngine := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			e := newEngine(t)
			putAll(t, e,
				postRow("p1", "alpha", 1, "go"),
				postRow("p2", "beta", 5, "rust"),
				postRow("p3", "alphabet", 7, "go", "sql"),
				postRow("p4", "gamma", 9),
			)

			p := predicate.And(
				predicate.Comparison{Field: "rating", Op: predicate.OpGe, Operand: ir.IRInt(5)},
				predicate.Or(
					predicate.Comparison{Field: "tags", Op: predicate.OpContains, Operand: ir.IRString("go")},
					predicate.Comparison{Field: "title", Op: predicate.OpBeginsWith, Operand: ir.IRString("ga")},
				),
			)
			rows, err := e.Query(ctx, "Post", p, ir.Page{})
			require.NoError(t, err)
			assert.Equal(t, []string{"p3", "p4"}, rowIDs(rows))

			rows, err = e.Query(ctx, "Post", predicate.MatchAll, ir.Page{Page: 1, Limit: 2})
			require.NoError(t, err)
			assert.Equal(t, []string{"p3", "p4"}, rowIDs(rows))

			rows, err = e.Query(ctx, "Post", predicate.MatchAll, ir.Page{Page: 5, Limit: 2})
			require.NoError(t, err)
			assert.NotNil(t, rows)
			assert.Empty(t, rows)
		})
	}
}

func TestEngine_Delete(t *testing.T) {
	for name, newEngine := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			e := newEngine(t)
			putAll(t, e, postRow("p1", "first", 1))

			tx, err := e.Begin(ctx)
			require.NoError(t, err)
			existed, err := tx.Delete(ctx, "Post", "p1")
			require.NoError(t, err)
			assert.True(t, existed)
			existed, err = tx.Delete(ctx, "Post", "p1")
			require.NoError(t, err)
			assert.False(t, existed)
			require.NoError(t, tx.Commit())

			_, ok, err := e.Get(ctx, "Post", "p1")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestEngine_RollbackDiscardsWrites(t *testing.T) {
	for name, newEngine := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			e := newEngine(t)
			putAll(t, e, postRow("p1", "first", 1))

			tx, err := e.Begin(ctx)
			require.NoError(t, err)
			_, err = tx.Put(ctx, postRow("p2", "second", 2))
			require.NoError(t, err)
			_, err = tx.Delete(ctx, "Post", "p1")
			require.NoError(t, err)
			require.NoError(t, tx.Rollback())
			require.NoError(t, tx.Rollback())

			rows, err := e.Query(ctx, "Post", predicate.MatchAll, ir.Page{})
			require.NoError(t, err)
			assert.Equal(t, []string{"p1"}, rowIDs(rows))
		})
	}
}

func TestEngine_TxnReadsOwnWrites(t *testing.T) {
	for name, newEngine := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			e := newEngine(t)
			putAll(t, e, postRow("p1", "first", 1))

			tx, err := e.Begin(ctx)
			require.NoError(t, err)
			defer tx.Rollback()

			_, err = tx.Put(ctx, postRow("p2", "second", 2))
			require.NoError(t, err)
			_, err = tx.Delete(ctx, "Post", "p1")
			require.NoError(t, err)

			_, ok, err := tx.Get(ctx, "Post", "p2")
			require.NoError(t, err)
			assert.True(t, ok)

			rows, err := tx.Query(ctx, "Post", predicate.MatchAll, ir.Page{})
			require.NoError(t, err)
			assert.Equal(t, []string{"p2"}, rowIDs(rows))
		})
	}
}

func TestEngine_SnapshotReadsDuringWrite(t *testing.T) {
	for name, newEngine := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			e := newEngine(t)
			putAll(t, e, postRow("p1", "first", 1))

			tx, err := e.Begin(ctx)
			require.NoError(t, err)
			_, err = tx.Put(ctx, postRow("p2", "second", 2))
			require.NoError(t, err)

			rows, err := e.Query(ctx, "Post", predicate.MatchAll, ir.Page{})
			require.NoError(t, err)
			assert.Equal(t, []string{"p1"}, rowIDs(rows))

			require.NoError(t, tx.Commit())

			rows, err = e.Query(ctx, "Post", predicate.MatchAll, ir.Page{})
			require.NoError(t, err)
			assert.Equal(t, []string{"p1", "p2"}, rowIDs(rows))
		})
	}
}

func TestMemory_BeginBlocksSecondWriter(t *testing.T) {
	ctx := context.Background()
	m := createTestMemory(t)

	tx1, err := m.Begin(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	started := make(chan struct{})
	acquired := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(started)
		tx2, err := m.Begin(ctx)
		if err != nil {
			return
		}
		close(acquired)
		tx2.Rollback()
	}()

	<-started
	select {
	case <-acquired:
		t.Fatal("second Begin() returned while first transaction open")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, tx1.Commit())
	wg.Wait()

	select {
	case <-acquired:
	default:
		t.Fatal("second Begin() never returned")
	}
}

func TestMemory_ClosedEngine(t *testing.T) {
	ctx := context.Background()
	m := createTestMemory(t)
	require.NoError(t, m.Close())

	_, err := m.Begin(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	_, _, err = m.Get(ctx, "Post", "p1")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.Query(ctx, "Post", predicate.MatchAll, ir.Page{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEngine_OperatorsAgree(t *testing.T) {
	const big = 1<<53 + 1
	cmp := func(field string, op predicate.Operator, v ir.IRValue) predicate.Predicate {
		return predicate.Comparison{Field: field, Op: op, Operand: v}
	}

	tests := []struct {
		name string
		p    predicate.Predicate
		want []string
	}{
		{"eq", cmp("title", predicate.OpEq, ir.IRString("first")), []string{"p1"}},
		{"ne", cmp("rating", predicate.OpNe, ir.IRInt(2)), []string{"p1", "p3", "p4", "p5"}},
		{"gt", cmp("rating", predicate.OpGt, ir.IRInt(2)), []string{"p3", "p4", "p5"}},
		{"lt", cmp("rating", predicate.OpLt, ir.IRInt(3)), []string{"p1", "p2"}},
		{"ge", cmp("rating", predicate.OpGe, ir.IRInt(3)), []string{"p3", "p4", "p5"}},
		{"le", cmp("rating", predicate.OpLe, ir.IRInt(1)), []string{"p1"}},
		{"between", cmp("rating", predicate.OpBetween, ir.IRArray{ir.IRInt(2), ir.IRInt(3)}), []string{"p2", "p3"}},
		{"contains array", cmp("tags", predicate.OpContains, ir.IRString("go")), []string{"p1", "p3"}},
		{"notContains array", cmp("tags", predicate.OpNotContains, ir.IRString("go")), []string{"p2", "p4", "p5"}},
		{"contains string", cmp("title", predicate.OpContains, ir.IRString("ir")), []string{"p1", "p3"}},
		{"beginsWith", cmp("title", predicate.OpBeginsWith, ir.IRString("th")), []string{"p3"}},
		{"large int eq", cmp("rating", predicate.OpEq, ir.IRInt(big)), []string{"p4"}},
		{"large int neighbour", cmp("rating", predicate.OpEq, ir.IRInt(big - 1)), []string{}},
		{"large int gt", cmp("rating", predicate.OpGt, ir.IRInt(big - 1)), []string{"p4"}},
		{"decomposed eq", cmp("title", predicate.OpEq, ir.IRString("cafe\u0301")), []string{"p5"}},
		{"composed eq", cmp("title", predicate.OpEq, ir.IRString("caf\u00e9")), []string{}},
		{"or", predicate.Or(cmp("rating", predicate.OpEq, ir.IRInt(1)), cmp("title", predicate.OpEq, ir.IRString("second"))), []string{"p1", "p2"}},
		{"not", predicate.Not(cmp("tags", predicate.OpContains, ir.IRString("go"))), []string{"p2", "p4", "p5"}},
		{"empty or", predicate.Or(), []string{}},
	}

	for name, newEngine := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			e := newEngine(t)
			putAll(t, e,
				postRow("p1", "first", 1, "go", "db"),
				postRow("p2", "second", 2),
				postRow("p3", "third", 3, "go"),
				postRow("p4", "huge", big),
				postRow("p5", "cafe\u0301", 4),
			)

			for _, tt := range tests {
				rows, err := e.Query(ctx, "Post", tt.p, ir.Page{})
				require.NoError(t, err, tt.name)
				assert.Equal(t, tt.want, rowIDs(rows), tt.name)
			}

			row, ok, err := e.Get(ctx, "Post", "p5")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, ir.IRString("cafe\u0301"), row.Fields["title"])
			assert.Equal(t, ir.IRInt(big), row.Fields["rating"])
		})
	}
}
