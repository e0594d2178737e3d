package testutil

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/store"
)

// CountingFactory wraps a store.Factory and counts how often it runs.
// Delay holds every construction open so concurrent first callers pile
// up behind it; Err makes construction fail.
type CountingFactory struct {
	Inner store.Factory
	Delay time.Duration
	Err   error

	calls atomic.Int64
}

// NewCountingFactory wraps inner. A nil inner means an in-memory engine.
func NewCountingFactory(inner store.Factory) *CountingFactory {
	if inner == nil {
		inner = store.MemoryFactory()
	}
	return &CountingFactory{Inner: inner}
}

// Factory returns the counting store.Factory.
func (f *CountingFactory) Factory() store.Factory {
	return func(ctx context.Context, desc *ir.SchemaDescriptor) (store.Engine, error) {
		f.calls.Add(1)
		if f.Delay > 0 {
			select {
			case <-time.After(f.Delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if f.Err != nil {
			return nil, f.Err
		}
		return f.Inner(ctx, desc)
	}
}

// Calls returns the number of constructions so far.
func (f *CountingFactory) Calls() int64 {
	return f.calls.Load()
}
