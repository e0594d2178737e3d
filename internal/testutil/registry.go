package testutil

import (
	"testing"

	"github.com/roach88/tessera/internal/model"
)

// Registry returns a registry initialized with Schema and sequential
// identities ("rec-1", "rec-2", ...), plus its constructors.
func Registry(t testing.TB) (*model.Registry, map[string]*model.Constructor) {
	t.Helper()

	reg := model.NewRegistry(model.WithIdentitySource(NewSequentialSource("rec")))
	ctors, err := reg.InitSchema(Schema())
	if err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	return reg, ctors
}

// MustNew builds a record or fails the test.
func MustNew(t testing.TB, ctor *model.Constructor, init map[string]any) *model.Record {
	t.Helper()

	rec, err := ctor.NewFromNative(init)
	if err != nil {
		t.Fatalf("new %s: %v", ctor.Name(), err)
	}
	return rec
}
