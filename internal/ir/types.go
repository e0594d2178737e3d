package ir

import "slices"

// SchemaDescriptor is the declarative schema the runtime is initialized
// from. It is deep-copied at initialization and never mutated afterwards.
type SchemaDescriptor struct {
	Version   string               `json:"version" yaml:"version"`
	Models    map[string]ModelMeta `json:"models" yaml:"models"`
	NonModels map[string]TypeMeta  `json:"non_models,omitempty" yaml:"non_models,omitempty"`
	Enums     map[string]EnumMeta  `json:"enums,omitempty" yaml:"enums,omitempty"`
}

// ModelMeta describes a persistable model type.
type ModelMeta struct {
	Name       string               `json:"name" yaml:"name"`
	PluralName string               `json:"plural_name,omitempty" yaml:"plural_name,omitempty"`
	Syncable   bool                 `json:"syncable" yaml:"syncable"`
	Fields     map[string]FieldMeta `json:"fields" yaml:"fields"`
	Attributes []Attribute          `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// TypeMeta describes a non-model value type. Instances have no identity
// and are never persisted on their own.
type TypeMeta struct {
	Name   string               `json:"name" yaml:"name"`
	Fields map[string]FieldMeta `json:"fields" yaml:"fields"`
}

// EnumMeta describes an enumeration.
type EnumMeta struct {
	Name   string   `json:"name" yaml:"name"`
	Values []string `json:"values" yaml:"values"`
}

// Has reports whether v is one of the enum's values.
func (e EnumMeta) Has(v string) bool {
	return slices.Contains(e.Values, v)
}

// FieldMeta describes one field of a model or non-model type.
type FieldMeta struct {
	Name       string      `json:"name" yaml:"name"`
	Type       FieldType   `json:"type" yaml:"type"`
	IsArray    bool        `json:"is_array,omitempty" yaml:"is_array,omitempty"`
	IsRequired bool        `json:"is_required,omitempty" yaml:"is_required,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// FieldType is a tagged union: exactly one of Scalar, Enum or NonModel is
// set.
type FieldType struct {
	Scalar   Scalar `json:"scalar,omitempty" yaml:"scalar,omitempty"`
	Enum     string `json:"enum,omitempty" yaml:"enum,omitempty"`
	NonModel string `json:"non_model,omitempty" yaml:"non_model,omitempty"`
}

// String returns the type name as written in schema files.
func (t FieldType) String() string {
	switch {
	case t.Scalar != "":
		return string(t.Scalar)
	case t.Enum != "":
		return t.Enum
	default:
		return t.NonModel
	}
}

// Attribute is an opaque annotation carried with a model or field (for
// example a key or index declaration). The runtime does not interpret it.
type Attribute struct {
	Type       string            `json:"type" yaml:"type"`
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Scalar names a primitive field type.
type Scalar string

// Scalar types.
const (
	ScalarID        Scalar = "ID"
	ScalarString    Scalar = "String"
	ScalarInt       Scalar = "Int"
	ScalarFloat     Scalar = "Float"
	ScalarBoolean   Scalar = "Boolean"
	ScalarDate      Scalar = "AWSDate"
	ScalarTime      Scalar = "AWSTime"
	ScalarDateTime  Scalar = "AWSDateTime"
	ScalarTimestamp Scalar = "AWSTimestamp"
	ScalarEmail     Scalar = "AWSEmail"
	ScalarJSON      Scalar = "AWSJSON"
	ScalarURL       Scalar = "AWSURL"
	ScalarPhone     Scalar = "AWSPhone"
	ScalarIPAddress Scalar = "AWSIPAddress"
)

// Scalars lists every scalar type.
var Scalars = []Scalar{
	ScalarID, ScalarString, ScalarInt, ScalarFloat, ScalarBoolean,
	ScalarDate, ScalarTime, ScalarDateTime, ScalarTimestamp,
	ScalarEmail, ScalarJSON, ScalarURL, ScalarPhone, ScalarIPAddress,
}

// ParseScalar resolves a scalar name. Both the AWS-prefixed names and the
// short forms ("Date", "Email", ...) are accepted.
func ParseScalar(name string) (Scalar, bool) {
	for _, s := range Scalars {
		if string(s) == name || string(s) == "AWS"+name {
			return s, true
		}
	}
	return "", false
}

// IsStringLike reports whether values of s are carried as IRString. JSON
// fields hold arbitrary values and are not string-like.
func (s Scalar) IsStringLike() bool {
	switch s {
	case ScalarInt, ScalarFloat, ScalarBoolean, ScalarTimestamp, ScalarJSON:
		return false
	}
	return true
}

// IsNumeric reports whether values of s are numbers.
func (s Scalar) IsNumeric() bool {
	return s == ScalarInt || s == ScalarFloat || s == ScalarTimestamp
}

// IDField is the name of the identity field every model declares.
const IDField = "id"

// Page selects a window of an ordered result. Page is zero-based and
// Limit == 0 means unlimited.
type Page struct {
	Page  uint `json:"page" yaml:"page"`
	Limit uint `json:"limit" yaml:"limit"`
}

// Offset returns the number of rows skipped before the window.
func (p Page) Offset() uint {
	return p.Page * p.Limit
}

// Apply slices items to the page window.
func Apply[T any](p Page, items []T) []T {
	if p.Limit == 0 {
		return items
	}
	start := p.Offset()
	if start >= uint(len(items)) {
		return nil
	}
	end := min(start+p.Limit, uint(len(items)))
	return items[start:end]
}

// Clone returns a deep copy of the descriptor.
func (d *SchemaDescriptor) Clone() *SchemaDescriptor {
	if d == nil {
		return nil
	}
	out := &SchemaDescriptor{
		Version:   d.Version,
		Models:    make(map[string]ModelMeta, len(d.Models)),
		NonModels: make(map[string]TypeMeta, len(d.NonModels)),
		Enums:     make(map[string]EnumMeta, len(d.Enums)),
	}
	for name, m := range d.Models {
		m.Fields = cloneFields(m.Fields)
		m.Attributes = cloneAttributes(m.Attributes)
		out.Models[name] = m
	}
	for name, t := range d.NonModels {
		t.Fields = cloneFields(t.Fields)
		out.NonModels[name] = t
	}
	for name, e := range d.Enums {
		e.Values = slices.Clone(e.Values)
		out.Enums[name] = e
	}
	return out
}

// ModelNames returns model names in sorted order.
func (d *SchemaDescriptor) ModelNames() []string {
	names := make([]string, 0, len(d.Models))
	for name := range d.Models {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SortedFieldNames returns field names in sorted order.
func SortedFieldNames(fields map[string]FieldMeta) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func cloneFields(in map[string]FieldMeta) map[string]FieldMeta {
	out := make(map[string]FieldMeta, len(in))
	for k, f := range in {
		f.Attributes = cloneAttributes(f.Attributes)
		out[k] = f
	}
	return out
}

func cloneAttributes(in []Attribute) []Attribute {
	if in == nil {
		return nil
	}
	out := make([]Attribute, len(in))
	for i, a := range in {
		out[i] = Attribute{Type: a.Type}
		if a.Properties != nil {
			out[i].Properties = make(map[string]string, len(a.Properties))
			for k, v := range a.Properties {
				out[i].Properties[k] = v
			}
		}
	}
	return out
}
