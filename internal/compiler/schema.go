package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tessera/internal/ir"
)

// CompileSchema compiles a CUE value into a schema descriptor.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value is the schema root, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`models: Post: fields: { id: "ID!", title: "String!" }`)
//	desc, err := CompileSchema(v)
func CompileSchema(v cue.Value) (*ir.SchemaDescriptor, error) {
	doc, err := DecodeCUE(v)
	if err != nil {
		return nil, err
	}
	return Build(doc)
}

// DecodeCUE reads a Document from a CUE value.
func DecodeCUE(v cue.Value) (*Document, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	doc := &Document{}

	if vv := v.LookupPath(cue.ParsePath("version")); vv.Exists() {
		s, err := vv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		doc.Version = s
	}

	enums, err := parseEnums(v)
	if err != nil {
		return nil, err
	}
	doc.Enums = enums

	typesVal := v.LookupPath(cue.ParsePath("types"))
	if typesVal.Exists() {
		doc.Types = make(map[string]TypeDoc)
		iter, err := typesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			fields, err := parseFields(iter.Value(), "types."+iter.Label())
			if err != nil {
				return nil, err
			}
			doc.Types[iter.Label()] = TypeDoc{Fields: fields}
		}
	}

	modelsVal := v.LookupPath(cue.ParsePath("models"))
	if modelsVal.Exists() {
		doc.Models = make(map[string]ModelDoc)
		iter, err := modelsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			name := iter.Label()
			m, err := parseModel(iter.Value(), "models."+name)
			if err != nil {
				return nil, err
			}
			doc.Models[name] = m
		}
	}

	return doc, nil
}

// parseEnums extracts enums: { Name: ["A", "B"] }.
func parseEnums(v cue.Value) (map[string][]string, error) {
	enumsVal := v.LookupPath(cue.ParsePath("enums"))
	if !enumsVal.Exists() {
		return nil, nil
	}

	iter, err := enumsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	enums := make(map[string][]string)
	for iter.Next() {
		name := iter.Label()
		list, err := iter.Value().List()
		if err != nil {
			return nil, &CompileError{
				Field:   "enums." + name,
				Message: "enum must be a list of strings",
				Pos:     iter.Value().Pos(),
			}
		}
		values := []string{}
		for list.Next() {
			s, err := list.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			values = append(values, s)
		}
		enums[name] = values
	}
	return enums, nil
}

// parseModel extracts one model declaration.
func parseModel(v cue.Value, path string) (ModelDoc, error) {
	var m ModelDoc

	if pv := v.LookupPath(cue.ParsePath("plural")); pv.Exists() {
		s, err := pv.String()
		if err != nil {
			return m, formatCUEError(err)
		}
		m.Plural = s
	}

	if sv := v.LookupPath(cue.ParsePath("syncable")); sv.Exists() {
		b, err := sv.Bool()
		if err != nil {
			return m, formatCUEError(err)
		}
		m.Syncable = &b
	}

	if av := v.LookupPath(cue.ParsePath("attributes")); av.Exists() {
		if err := av.Decode(&m.Attributes); err != nil {
			return m, formatCUEError(err)
		}
	}

	fields, err := parseFields(v, path)
	if err != nil {
		return m, err
	}
	if fields == nil {
		return m, &CompileError{
			Field:   path + ".fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}
	m.Fields = fields
	return m, nil
}

// parseFields extracts fields: { name: "Type" | { type: "Type", attributes: [...] } }.
func parseFields(v cue.Value, path string) (map[string]FieldDoc, error) {
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, nil
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	fields := make(map[string]FieldDoc)
	for iter.Next() {
		name := iter.Label()
		fv := iter.Value()

		if s, err := fv.String(); err == nil {
			fields[name] = FieldDoc{Type: s}
			continue
		}

		typeVal := fv.LookupPath(cue.ParsePath("type"))
		if !typeVal.Exists() {
			return nil, &CompileError{
				Field:   path + ".fields." + name,
				Message: "field must be a type string or a struct with a type",
				Pos:     fv.Pos(),
			}
		}
		s, err := typeVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		fd := FieldDoc{Type: s}
		if av := fv.LookupPath(cue.ParsePath("attributes")); av.Exists() {
			if err := av.Decode(&fd.Attributes); err != nil {
				return nil, formatCUEError(err)
			}
		}
		fields[name] = fd
	}
	return fields, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
