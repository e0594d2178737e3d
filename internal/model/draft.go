package model

import (
	"sync"

	"github.com/roach88/tessera/internal/ir"
)

// Draft is the mutable copy handed to a CopyOf mutator. It is sealed when
// the mutator returns; later assignments fail with a *ReadOnlyError.
// Values are checked against the schema only when the new record is
// built.
type Draft struct {
	ctor *Constructor

	mu     sync.Mutex
	fields ir.IRObject
	sealed bool
}

// Get returns the draft's current value for name.
func (d *Draft) Get(name string) (ir.IRValue, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.fields[name]
	if !ok {
		return nil, false
	}
	return ir.Clone(v), true
}

// Set assigns a field. v may be an ir.IRValue or a plain Go value
// accepted by ir.FromNative; nil clears the field.
func (d *Draft) Set(name string, v any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sealed {
		return &ReadOnlyError{Model: d.ctor.name, Field: name}
	}
	if _, ok := d.ctor.fields[name]; !ok {
		return &FieldError{Model: d.ctor.name, Field: name, Reason: "unknown field"}
	}
	val, err := ir.FromNative(v)
	if err != nil {
		return &FieldError{Model: d.ctor.name, Field: name, Reason: err.Error()}
	}
	if ir.IsNull(val) {
		delete(d.fields, name)
		return nil
	}
	d.fields[name] = ir.Clone(val)
	return nil
}

// Unset clears a field.
func (d *Draft) Unset(name string) error {
	return d.Set(name, nil)
}

func (d *Draft) seal() {
	d.mu.Lock()
	d.sealed = true
	d.mu.Unlock()
}
