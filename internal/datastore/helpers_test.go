package datastore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tessera/internal/datastore"
	"github.com/roach88/tessera/internal/model"
	"github.com/roach88/tessera/internal/store"
	"github.com/roach88/tessera/internal/testutil"
)

const quiet = 50 * time.Millisecond

type fixture struct {
	ds       *datastore.DataStore
	ctors    map[string]*model.Constructor
	counting *testutil.CountingFactory
}

func newFixture(t *testing.T, inner store.Factory, opts ...datastore.Option) *fixture {
	t.Helper()
	reg, ctors := testutil.Registry(t)
	counting := testutil.NewCountingFactory(inner)
	ds := datastore.New(reg, counting.Factory(), opts...)
	t.Cleanup(func() { ds.Close() })
	return &fixture{ds: ds, ctors: ctors, counting: counting}
}

// engines returns a fresh factory for each storage engine.
func engines(t *testing.T) map[string]store.Factory {
	return map[string]store.Factory{
		"memory": store.MemoryFactory(),
		"sqlite": store.SQLiteFactory(filepath.Join(t.TempDir(), "tessera.db")),
	}
}

func (f *fixture) save(t *testing.T, rec *model.Record) *model.Record {
	t.Helper()
	out, err := f.ds.Save(context.Background(), rec)
	require.NoError(t, err)
	return out
}

func (f *fixture) post(t *testing.T, title string, rating int, tags ...string) *model.Record {
	t.Helper()
	init := map[string]any{"title": title, "rating": rating}
	if len(tags) > 0 {
		list := make([]any, len(tags))
		for i, tag := range tags {
			list[i] = tag
		}
		init["tags"] = list
	}
	return f.save(t, testutil.MustNew(t, f.ctors["Post"], init))
}

func ids(recs []*model.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID()
	}
	return out
}
