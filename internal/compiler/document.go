package compiler

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tessera/internal/ir"
)

// Document is the authored form of a schema. CUE, YAML and JSON sources
// all decode into a Document, which Build resolves into a descriptor.
//
// Field types use the GraphQL notation: "String", "String!" (required),
// "[String]" (array), "[String!]!".
type Document struct {
	Version string              `yaml:"version" json:"version"`
	Enums   map[string][]string `yaml:"enums" json:"enums"`
	Types   map[string]TypeDoc  `yaml:"types" json:"types"`
	Models  map[string]ModelDoc `yaml:"models" json:"models"`
}

// ModelDoc declares a model. Syncable defaults to true.
type ModelDoc struct {
	Plural     string              `yaml:"plural" json:"plural"`
	Syncable   *bool               `yaml:"syncable" json:"syncable"`
	Fields     map[string]FieldDoc `yaml:"fields" json:"fields"`
	Attributes []ir.Attribute      `yaml:"attributes" json:"attributes"`
}

// TypeDoc declares a non-model type.
type TypeDoc struct {
	Fields map[string]FieldDoc `yaml:"fields" json:"fields"`
}

// FieldDoc declares a field. In source files it is either a bare type
// string or a mapping with "type" and "attributes".
type FieldDoc struct {
	Type       string         `yaml:"type" json:"type"`
	Attributes []ir.Attribute `yaml:"attributes" json:"attributes"`
}

// UnmarshalYAML accepts the bare-string shorthand.
func (f *FieldDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&f.Type)
	}
	type plain FieldDoc
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*f = FieldDoc(p)
	return nil
}

// TypeRef is a parsed field type reference.
type TypeRef struct {
	Name     string
	IsArray  bool
	Required bool
}

// ParseTypeRef parses a GraphQL-style type reference. Element
// nullability inside arrays is accepted and ignored.
func ParseTypeRef(s string) (TypeRef, error) {
	var ref TypeRef
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "!") {
		ref.Required = true
		s = strings.TrimSuffix(s, "!")
	}
	if strings.HasPrefix(s, "[") {
		if !strings.HasSuffix(s, "]") {
			return TypeRef{}, fmt.Errorf("unterminated array type %q", s)
		}
		ref.IsArray = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		s = strings.TrimSuffix(strings.TrimSpace(s), "!")
	}
	if !identifierPattern.MatchString(s) {
		return TypeRef{}, fmt.Errorf("invalid type name %q", s)
	}
	ref.Name = s
	return ref, nil
}

// Build resolves a document into a schema descriptor. Type names resolve
// to scalars first, then enums, then non-model types. The result is not
// validated; call ValidateSchema.
func Build(doc *Document) (*ir.SchemaDescriptor, error) {
	desc := &ir.SchemaDescriptor{
		Version:   doc.Version,
		Models:    make(map[string]ir.ModelMeta, len(doc.Models)),
		NonModels: make(map[string]ir.TypeMeta, len(doc.Types)),
		Enums:     make(map[string]ir.EnumMeta, len(doc.Enums)),
	}
	if desc.Version == "" {
		desc.Version = ir.SchemaFormatVersion
	}

	for name, values := range doc.Enums {
		desc.Enums[name] = ir.EnumMeta{Name: name, Values: values}
	}

	for _, name := range sortedKeys(doc.Types) {
		fields, err := buildFields(doc, "types."+name, doc.Types[name].Fields)
		if err != nil {
			return nil, err
		}
		desc.NonModels[name] = ir.TypeMeta{Name: name, Fields: fields}
	}

	for _, name := range sortedKeys(doc.Models) {
		m := doc.Models[name]
		fields, err := buildFields(doc, "models."+name, m.Fields)
		if err != nil {
			return nil, err
		}
		syncable := true
		if m.Syncable != nil {
			syncable = *m.Syncable
		}
		plural := m.Plural
		if plural == "" {
			plural = name + "s"
		}
		desc.Models[name] = ir.ModelMeta{
			Name:       name,
			PluralName: plural,
			Syncable:   syncable,
			Fields:     fields,
			Attributes: m.Attributes,
		}
	}

	return desc, nil
}

func buildFields(doc *Document, path string, in map[string]FieldDoc) (map[string]ir.FieldMeta, error) {
	out := make(map[string]ir.FieldMeta, len(in))
	for _, name := range sortedKeys(in) {
		fd := in[name]
		ref, err := ParseTypeRef(fd.Type)
		if err != nil {
			return nil, &CompileError{Field: path + ".fields." + name, Message: err.Error()}
		}
		ft, err := resolveType(doc, ref.Name)
		if err != nil {
			return nil, &CompileError{Field: path + ".fields." + name, Message: err.Error()}
		}
		out[name] = ir.FieldMeta{
			Name:       name,
			Type:       ft,
			IsArray:    ref.IsArray,
			IsRequired: ref.Required,
			Attributes: fd.Attributes,
		}
	}
	return out, nil
}

func resolveType(doc *Document, name string) (ir.FieldType, error) {
	if s, ok := ir.ParseScalar(name); ok {
		return ir.FieldType{Scalar: s}, nil
	}
	if _, ok := doc.Enums[name]; ok {
		return ir.FieldType{Enum: name}, nil
	}
	if _, ok := doc.Types[name]; ok {
		return ir.FieldType{NonModel: name}, nil
	}
	if _, ok := doc.Models[name]; ok {
		return ir.FieldType{}, fmt.Errorf("model %q cannot be used as a field type", name)
	}
	return ir.FieldType{}, fmt.Errorf("undefined type %q", name)
}
