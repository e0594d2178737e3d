package datastore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tessera/internal/datastore"
	"github.com/roach88/tessera/internal/model"
	"github.com/roach88/tessera/internal/observe"
	"github.com/roach88/tessera/internal/predicate"
	"github.com/roach88/tessera/internal/testutil"
)

func TestDelete(t *testing.T) {
	for name, factory := range engines(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, factory)
			ctx := context.Background()

			rec := f.post(t, "doomed", 1)
			sub, err := f.ds.Observe(ctx, rec, nil)
			require.NoError(t, err)

			deleted, err := f.ds.Delete(ctx, rec)
			require.NoError(t, err)
			assert.True(t, deleted)

			deleted, err = f.ds.Delete(ctx, rec)
			require.NoError(t, err)
			assert.False(t, deleted)

			events := testutil.CollectEvents(t, sub, 1)
			assert.Equal(t, observe.Delete, events[0].Op)
			assert.True(t, events[0].Element.Equal(rec))
			testutil.ExpectNoEvent(t, sub, quiet)

			_, err = f.ds.QueryByID(ctx, f.ctors["Post"], rec.ID())
			assert.ErrorIs(t, err, datastore.ErrNotFound)
		})
	}
}

func TestDeleteWhere(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	keep := f.post(t, "keep", 5)
	f.post(t, "drop", 1)
	f.post(t, "drop", 2)

	sub, err := f.ds.Observe(ctx, f.ctors["Post"], nil)
	require.NoError(t, err)

	n, err := f.ds.DeleteWhere(ctx, f.ctors["Post"], func(c *predicate.Criteria) predicate.Predicate {
		return c.Field("rating").Lt(3)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events := testutil.CollectEvents(t, sub, 2)
	for _, ev := range events {
		assert.Equal(t, observe.Delete, ev.Op)
	}

	left, err := f.ds.QueryAll(ctx, f.ctors["Post"])
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID()}, ids(left))

	n, err = f.ds.DeleteWhere(ctx, f.ctors["Post"], nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDelete_RejectsNonModels(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.ds.Delete(ctx, testutil.MustNew(t, f.ctors["Address"], map[string]any{"street": "x"}))
	assert.ErrorIs(t, err, model.ErrNotAModel)

	_, err = f.ds.DeleteWhere(ctx, f.ctors["Address"], nil)
	assert.ErrorIs(t, err, model.ErrNotAModel)
	assert.Zero(t, f.counting.Calls())
}
