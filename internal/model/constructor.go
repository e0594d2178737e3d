package model

import (
	"fmt"
	"maps"

	"github.com/roach88/tessera/internal/ir"
)

// Constructor builds records of one declared type.
type Constructor struct {
	registry *Registry
	schema   *ir.SchemaDescriptor
	name     string
	plural   string
	model    bool
	syncable bool
	fields   map[string]ir.FieldMeta
}

// Name returns the type name.
func (c *Constructor) Name() string { return c.name }

// PluralName returns the model's plural name ("" for non-models).
func (c *Constructor) PluralName() string { return c.plural }

// IsModel reports whether the type is a model.
func (c *Constructor) IsModel() bool { return c.model }

// Syncable reports whether records of the type get random identities.
func (c *Constructor) Syncable() bool { return c.syncable }

// Registry returns the registry that built the constructor.
func (c *Constructor) Registry() *Registry { return c.registry }

// Fields returns a copy of the declared fields.
func (c *Constructor) Fields() map[string]ir.FieldMeta {
	return maps.Clone(c.fields)
}

// New builds a record from init. Model records get a fresh identity;
// supplying an id is an error.
func (c *Constructor) New(init ir.IRObject) (*Record, error) {
	if c.model {
		if v, ok := init[ir.IDField]; ok && !ir.IsNull(v) {
			return nil, &FieldError{Model: c.name, Field: ir.IDField, Reason: "identity is assigned on construction"}
		}
	}

	fields, err := c.normalize(init, c.model)
	if err != nil {
		return nil, err
	}

	if c.model {
		fields[ir.IDField] = ir.IRString(c.mintID())
	}
	return &Record{ctor: c, fields: fields}, nil
}

// NewFromNative is New over plain Go values (see ir.FromNative).
func (c *Constructor) NewFromNative(init map[string]any) (*Record, error) {
	obj, err := nativeObject(c.name, init)
	if err != nil {
		return nil, err
	}
	return c.New(obj)
}

// CopyOf builds a new record from source's fields after mutate edits a
// draft of them. The result always keeps source's id, whatever the
// mutator assigned; source is not modified.
func (c *Constructor) CopyOf(source *Record, mutate func(*Draft) error) (*Record, error) {
	if !c.model {
		return nil, fmt.Errorf("copy of %s: %w", c.name, ErrNotAModel)
	}
	if source == nil {
		return nil, &FieldError{Model: c.name, Reason: "copy source is nil"}
	}
	if source.ctor != c {
		return nil, &FieldError{Model: c.name, Reason: fmt.Sprintf("copy source is a %s record", source.ctor.Name())}
	}

	d := &Draft{ctor: c, fields: ir.CloneObject(source.fields)}
	var err error
	if mutate != nil {
		err = mutate(d)
	}
	d.seal()
	if err != nil {
		return nil, err
	}

	d.fields[ir.IDField] = source.fields[ir.IDField]
	fields, err := c.normalize(d.fields, false)
	if err != nil {
		return nil, err
	}
	return &Record{ctor: c, fields: fields}, nil
}

// Hydrate rebuilds a record from stored fields, keeping the stored id.
func (c *Constructor) Hydrate(fields ir.IRObject) (*Record, error) {
	if !c.model {
		return nil, fmt.Errorf("hydrate %s: %w", c.name, ErrNotAModel)
	}
	id, ok := fields[ir.IDField].(ir.IRString)
	if !ok || id == "" {
		return nil, &FieldError{Model: c.name, Field: ir.IDField, Reason: "stored record has no identity"}
	}
	normalized, err := c.normalize(fields, false)
	if err != nil {
		return nil, err
	}
	return &Record{ctor: c, fields: normalized}, nil
}

func (c *Constructor) mintID() string {
	if c.syncable {
		return c.registry.ids.Random()
	}
	return c.registry.ids.TimeOrdered()
}

func nativeObject(model string, in map[string]any) (ir.IRObject, error) {
	v, err := ir.FromNative(in)
	if err != nil {
		return nil, &FieldError{Model: model, Reason: err.Error()}
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return ir.IRObject{}, nil
	}
	return obj, nil
}
