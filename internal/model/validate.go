package model

import (
	"fmt"

	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/predicate"
)

// normalize checks in against the constructor's fields and returns a
// fresh object: nulls dropped, Float fields holding IRInt converted to
// IRFloat, nested non-model values normalized the same way. When
// identityPending is set the id field is not required.
func (c *Constructor) normalize(in ir.IRObject, identityPending bool) (ir.IRObject, error) {
	return normalizeObject(c.schema, c.name, c.fields, in, identityPending)
}

func normalizeObject(schema *ir.SchemaDescriptor, typeName string, fields map[string]ir.FieldMeta, in ir.IRObject, identityPending bool) (ir.IRObject, error) {
	out := make(ir.IRObject, len(in))

	for _, name := range in.SortedKeys() {
		v := in[name]
		f, ok := fields[name]
		if !ok {
			return nil, &FieldError{Model: typeName, Field: name, Reason: "unknown field"}
		}
		if ir.IsNull(v) {
			continue
		}
		nv, err := normalizeValue(schema, f, v)
		if err != nil {
			return nil, &FieldError{Model: typeName, Field: name, Reason: err.Error()}
		}
		out[name] = nv
	}

	for _, name := range ir.SortedFieldNames(fields) {
		f := fields[name]
		if !f.IsRequired {
			continue
		}
		if name == ir.IDField && identityPending {
			continue
		}
		if _, ok := out[name]; !ok {
			return nil, &FieldError{Model: typeName, Field: name, Reason: "required field is missing"}
		}
	}

	return out, nil
}

func normalizeValue(schema *ir.SchemaDescriptor, f ir.FieldMeta, v ir.IRValue) (ir.IRValue, error) {
	if !f.IsArray {
		return normalizeElement(schema, f.Type, v)
	}
	arr, ok := v.(ir.IRArray)
	if !ok {
		return nil, fmt.Errorf("expected array of %s, got %s", f.Type, ir.KindOf(v))
	}
	out := make(ir.IRArray, len(arr))
	for i, elem := range arr {
		if ir.IsNull(elem) {
			return nil, fmt.Errorf("element %d is null", i)
		}
		ne, err := normalizeElement(schema, f.Type, elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = ne
	}
	return out, nil
}

func normalizeElement(schema *ir.SchemaDescriptor, t ir.FieldType, v ir.IRValue) (ir.IRValue, error) {
	switch {
	case t.Scalar != "":
		if !predicate.ScalarFits(t.Scalar, v) {
			return nil, fmt.Errorf("%s does not fit %s", ir.KindOf(v), t.Scalar)
		}
		if i, ok := v.(ir.IRInt); ok && t.Scalar == ir.ScalarFloat {
			return ir.IRFloat(i), nil
		}
		return ir.Clone(v), nil

	case t.Enum != "":
		s, ok := v.(ir.IRString)
		if !ok {
			return nil, fmt.Errorf("%s does not fit enum %s", ir.KindOf(v), t.Enum)
		}
		if !schema.Enums[t.Enum].Has(string(s)) {
			return nil, fmt.Errorf("%q is not a value of enum %s", string(s), t.Enum)
		}
		return s, nil

	default:
		obj, ok := v.(ir.IRObject)
		if !ok {
			return nil, fmt.Errorf("%s does not fit %s", ir.KindOf(v), t.NonModel)
		}
		nested, err := normalizeObject(schema, t.NonModel, schema.NonModels[t.NonModel].Fields, obj, false)
		if err != nil {
			return nil, err
		}
		return nested, nil
	}
}
