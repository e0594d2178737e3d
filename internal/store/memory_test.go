package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/predicate"
)

func TestMemory_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "records.cbor")

	m1, err := NewMemory(testSchema(), WithSnapshotFile(path))
	require.NoError(t, err)
	row := postRow("p1", "first", 1, "go")
	row.Fields["score"] = ir.IRFloat(2.5)
	putAll(t, m1, row, postRow("p2", "second", 2))
	putAll(t, m1, postRow("p1", "first again", 1))
	require.NoError(t, m1.Close())

	_, err = os.Stat(path)
	require.NoError(t, err, "snapshot file should exist after commit")

	m2, err := NewMemory(testSchema(), WithSnapshotFile(path))
	require.NoError(t, err)
	defer m2.Close()

	rows, err := m2.Query(ctx, "Post", predicate.MatchAll, ir.Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, rowIDs(rows))
	assert.Equal(t, ir.IRString("first again"), rows[0].Fields["title"])

	// The sequence counter survives so new rows sort last.
	putAll(t, m2, postRow("p0", "zeroth", 0))
	rows, err = m2.Query(ctx, "Post", predicate.MatchAll, ir.Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p0"}, rowIDs(rows))
}

func TestMemory_SnapshotFloatPreserved(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "records.cbor")

	m1, err := NewMemory(testSchema(), WithSnapshotFile(path))
	require.NoError(t, err)
	row := postRow("p1", "first", 1)
	row.Fields["score"] = ir.IRFloat(2.5)
	putAll(t, m1, row)
	require.NoError(t, m1.Close())

	m2, err := NewMemory(testSchema(), WithSnapshotFile(path))
	require.NoError(t, err)
	defer m2.Close()

	got, ok, err := m2.Get(ctx, "Post", "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.IRFloat(2.5), got.Fields["score"])
}

func TestMemory_MissingSnapshotStartsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "absent.cbor")

	m, err := NewMemory(testSchema(), WithSnapshotFile(path))
	require.NoError(t, err)
	defer m.Close()

	rows, err := m.Query(ctx, "Post", predicate.MatchAll, ir.Page{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemory_CorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cbor")
	require.NoError(t, os.WriteFile(path, []byte("not cbor"), 0o644))

	_, err := NewMemory(testSchema(), WithSnapshotFile(path))
	assert.Error(t, err)
}

func TestMemory_ReturnedRowsAreCopies(t *testing.T) {
	ctx := context.Background()
	m := createTestMemory(t)
	putAll(t, m, postRow("p1", "first", 1))

	row, _, err := m.Get(ctx, "Post", "p1")
	require.NoError(t, err)
	row.Fields["title"] = ir.IRString("mutated")

	again, _, err := m.Get(ctx, "Post", "p1")
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("first"), again.Fields["title"])
}

func TestMemoryFactory(t *testing.T) {
	e, err := MemoryFactory()(context.Background(), testSchema())
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, []string{"Post"}, e.Models())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = MemoryFactory()(ctx, testSchema())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemory_FailedSnapshotDiscardsCommit(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.Mkdir(dir, 0o755))

	m, err := NewMemory(testSchema(), WithSnapshotFile(filepath.Join(dir, "records.cbor")))
	require.NoError(t, err)
	defer m.Close()
	putAll(t, m, postRow("p1", "first", 1))

	require.NoError(t, os.RemoveAll(dir))

	txn, err := m.Begin(ctx)
	require.NoError(t, err)
	_, err = txn.Put(ctx, postRow("p2", "second", 2))
	require.NoError(t, err)
	_, err = txn.Put(ctx, postRow("p1", "renamed", 1))
	require.NoError(t, err)
	_, err = txn.Delete(ctx, "Post", "p1")
	require.NoError(t, err)
	require.Error(t, txn.Commit())

	_, ok, err := m.Get(ctx, "Post", "p2")
	require.NoError(t, err)
	assert.False(t, ok, "failed commit must not be visible")

	rows, err := m.Query(ctx, "Post", predicate.MatchAll, ir.Page{})
	require.NoError(t, err)
	require.Equal(t, []string{"p1"}, rowIDs(rows))
	assert.Equal(t, ir.IRString("first"), rows[0].Fields["title"])

	// The write lock was released and later commits succeed.
	require.NoError(t, os.Mkdir(dir, 0o755))
	putAll(t, m, postRow("p3", "third", 3))
	rows, err = m.Query(ctx, "Post", predicate.MatchAll, ir.Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p3"}, rowIDs(rows))
}
