package model

import (
	"maps"
	"sync"
	"sync/atomic"

	"github.com/roach88/tessera/internal/compiler"
	"github.com/roach88/tessera/internal/ir"
)

// Registry owns the "schema initialized" state. An application creates
// one Registry and passes it to the facade; InitSchema succeeds at most
// once per Registry.
type Registry struct {
	initialized atomic.Bool
	ids         IdentitySource

	mu     sync.RWMutex
	schema *ir.SchemaDescriptor
	ctors  map[string]*Constructor
}

// Option configures a Registry.
type Option func(*Registry)

// WithIdentitySource replaces the UUID source used for new records.
func WithIdentitySource(src IdentitySource) Option {
	return func(r *Registry) {
		r.ids = src
	}
}

// NewRegistry creates an uninitialized registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{ids: UUIDSource{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// InitSchema validates desc and builds a constructor for every model and
// non-model type. The descriptor is deep-copied; later changes to desc
// have no effect.
//
// A second call fails with ErrAlreadyInitialized and leaves the first
// call's constructors untouched. An invalid descriptor fails with a
// *SchemaError and does not consume the registry.
func (r *Registry) InitSchema(desc *ir.SchemaDescriptor) (map[string]*Constructor, error) {
	if r.initialized.Load() {
		return nil, ErrAlreadyInitialized
	}
	if errs := compiler.ValidateSchema(desc); len(errs) > 0 {
		return nil, &SchemaError{Errors: errs}
	}
	if !r.initialized.CompareAndSwap(false, true) {
		return nil, ErrAlreadyInitialized
	}

	schema := desc.Clone()
	ctors := make(map[string]*Constructor, len(schema.Models)+len(schema.NonModels))
	for name, m := range schema.Models {
		ctors[name] = &Constructor{
			registry: r,
			schema:   schema,
			name:     name,
			plural:   m.PluralName,
			model:    true,
			syncable: m.Syncable,
			fields:   m.Fields,
		}
	}
	for name, t := range schema.NonModels {
		ctors[name] = &Constructor{
			registry: r,
			schema:   schema,
			name:     name,
			fields:   t.Fields,
		}
	}

	r.mu.Lock()
	r.schema = schema
	r.ctors = ctors
	r.mu.Unlock()

	return maps.Clone(ctors), nil
}

// Initialized reports whether InitSchema has succeeded.
func (r *Registry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ctors != nil
}

// Schema returns a copy of the initialized descriptor, or nil before
// InitSchema.
func (r *Registry) Schema() *ir.SchemaDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schema.Clone()
}

// Constructor returns the constructor for a declared type.
func (r *Registry) Constructor(name string) (*Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.ctors[name]
	return c, ok
}

// Constructors returns every constructor keyed by type name.
func (r *Registry) Constructors() map[string]*Constructor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.ctors)
}

// Owns reports whether rec was built by one of this registry's model
// constructors.
func (r *Registry) Owns(rec *Record) bool {
	return rec != nil && rec.ctor != nil && rec.ctor.registry == r && rec.ctor.model
}
