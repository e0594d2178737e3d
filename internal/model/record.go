package model

import (
	"github.com/roach88/tessera/internal/ir"
)

// Record is an immutable instance of a declared type. Unset optional
// fields are absent rather than null.
type Record struct {
	ctor   *Constructor
	fields ir.IRObject
}

// ID returns the record's identity, or "" for non-model records.
func (r *Record) ID() string {
	id, _ := r.fields[ir.IDField].(ir.IRString)
	return string(id)
}

// Get returns a copy of a field's value.
func (r *Record) Get(name string) (ir.IRValue, bool) {
	v, ok := r.fields[name]
	if !ok {
		return nil, false
	}
	return ir.Clone(v), true
}

// Fields returns a copy of every set field, id included.
func (r *Record) Fields() ir.IRObject {
	return ir.CloneObject(r.fields)
}

// Constructor returns the constructor that built the record.
func (r *Record) Constructor() *Constructor { return r.ctor }

// Model returns the record's type name.
func (r *Record) Model() string {
	if r.ctor == nil {
		return ""
	}
	return r.ctor.name
}

// IsModel reports whether the record is a model instance.
func (r *Record) IsModel() bool { return r.ctor != nil && r.ctor.model }

// Equal reports whether both records have the same type and equal field
// values.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.ctor == other.ctor && ir.Equal(r.fields, other.fields)
}

// MarshalJSON encodes the record's fields as a JSON object with sorted
// keys.
func (r *Record) MarshalJSON() ([]byte, error) {
	return r.fields.MarshalJSON()
}

// String returns "Model(id)" for models and the type name otherwise.
func (r *Record) String() string {
	if r.IsModel() {
		return r.ctor.name + "(" + r.ID() + ")"
	}
	return r.Model()
}
