package predicate

import (
	"fmt"

	"github.com/roach88/tessera/internal/ir"
)

// Validate checks that every comparison in p references a declared field
// with an operator and operand that fit the field's type. It stops at the
// first problem.
//
// Operator compatibility:
//   - eq, ne: any field
//   - gt, lt, ge, le, between: numeric or string-like scalars
//   - contains, notContains: string-like scalars and arrays
//   - beginsWith: string-like scalars
//
// Booleans, enums and non-model values therefore only support eq and ne.
// Null operands are only valid with eq and ne.
//
// Validate is a pure function with no side effects.
func Validate(model string, fields map[string]ir.FieldMeta, p Predicate) error {
	v := &validator{model: model, fields: fields}
	v.validate(p)
	return v.err
}

type validator struct {
	model  string
	fields map[string]ir.FieldMeta
	err    error
}

func (v *validator) fail(field string, op Operator, format string, args ...any) {
	if v.err != nil {
		return
	}
	v.err = &InvalidPredicateError{
		Model:  v.model,
		Field:  field,
		Op:     op,
		Reason: fmt.Sprintf(format, args...),
	}
}

func (v *validator) validate(p Predicate) {
	if v.err != nil {
		return
	}
	switch n := p.(type) {
	case nil:
		v.fail("", "", "nil predicate node")
	case matchAll:
		// valid anywhere
	case Comparison:
		v.validateComparison(n)
	case *Comparison:
		v.validateComparison(*n)
	case Group:
		v.validateGroup(n)
	case *Group:
		v.validateGroup(*n)
	default:
		v.fail("", "", "unknown predicate type %T", p)
	}
}

func (v *validator) validateGroup(g Group) {
	switch g.Kind {
	case KindAnd, KindOr, KindNot:
	default:
		v.fail("", "", "unknown group kind %q", g.Kind)
		return
	}
	for _, child := range g.Predicates {
		v.validate(child)
	}
}

func (v *validator) validateComparison(c Comparison) {
	meta, ok := v.fields[c.Field]
	if !ok {
		v.fail(c.Field, c.Op, "unknown field")
		return
	}
	if _, ok := ParseOperator(string(c.Op)); !ok {
		v.fail(c.Field, c.Op, "unknown operator")
		return
	}
	if !supports(meta, c.Op) {
		v.fail(c.Field, c.Op, "operator not supported for %s field", describe(meta))
		return
	}

	operand := c.Operand
	if ir.IsNull(operand) {
		if c.Op != OpEq && c.Op != OpNe {
			v.fail(c.Field, c.Op, "null operand is only valid with eq and ne")
		}
		return
	}

	switch {
	case c.Op == OpBetween:
		bounds, ok := operand.(ir.IRArray)
		if !ok || len(bounds) != 2 {
			v.fail(c.Field, c.Op, "between needs a two-element [low, high] operand")
			return
		}
		for _, b := range bounds {
			if !scalarFits(meta.Type, b) {
				v.fail(c.Field, c.Op, "bound %s does not fit %s", ir.KindOf(b), meta.Type)
				return
			}
		}
	case meta.IsArray && (c.Op == OpContains || c.Op == OpNotContains):
		if !scalarFits(meta.Type, operand) {
			v.fail(c.Field, c.Op, "element %s does not fit %s", ir.KindOf(operand), meta.Type)
		}
	case meta.IsArray:
		arr, ok := operand.(ir.IRArray)
		if !ok {
			v.fail(c.Field, c.Op, "array field needs an array operand, got %s", ir.KindOf(operand))
			return
		}
		for _, elem := range arr {
			if !scalarFits(meta.Type, elem) {
				v.fail(c.Field, c.Op, "element %s does not fit %s", ir.KindOf(elem), meta.Type)
				return
			}
		}
	default:
		if !scalarFits(meta.Type, operand) {
			v.fail(c.Field, c.Op, "operand %s does not fit %s", ir.KindOf(operand), meta.Type)
		}
	}
}

// supports reports whether op can be applied to the field at all.
func supports(meta ir.FieldMeta, op Operator) bool {
	if op == OpEq || op == OpNe {
		return true
	}
	if meta.IsArray {
		return op == OpContains || op == OpNotContains
	}
	s := meta.Type.Scalar
	if s == "" || s == ir.ScalarBoolean {
		return false
	}
	switch {
	case op.isOrdering():
		return s.IsNumeric() || s.IsStringLike()
	case op == OpContains, op == OpNotContains, op == OpBeginsWith:
		return s.IsStringLike()
	}
	return false
}

// scalarFits reports whether a single (non-array) value fits the type.
func scalarFits(t ir.FieldType, v ir.IRValue) bool {
	switch {
	case t.Enum != "":
		_, ok := v.(ir.IRString)
		return ok
	case t.NonModel != "":
		_, ok := v.(ir.IRObject)
		return ok
	}
	return ScalarFits(t.Scalar, v)
}

// ScalarFits reports whether v is a valid value of scalar s. Float fields
// accept integers; Timestamp fields hold epoch seconds as integers; JSON
// fields accept any value.
func ScalarFits(s ir.Scalar, v ir.IRValue) bool {
	switch s {
	case ir.ScalarInt, ir.ScalarTimestamp:
		_, ok := v.(ir.IRInt)
		return ok
	case ir.ScalarFloat:
		switch v.(type) {
		case ir.IRInt, ir.IRFloat:
			return true
		}
		return false
	case ir.ScalarBoolean:
		_, ok := v.(ir.IRBool)
		return ok
	case ir.ScalarJSON:
		return !ir.IsNull(v)
	default:
		_, ok := v.(ir.IRString)
		return ok
	}
}

func describe(meta ir.FieldMeta) string {
	kind := "scalar " + meta.Type.String()
	switch {
	case meta.Type.Enum != "":
		kind = "enum " + meta.Type.Enum
	case meta.Type.NonModel != "":
		kind = "non-model " + meta.Type.NonModel
	}
	if meta.IsArray {
		return "array of " + kind
	}
	return kind
}
