package predicate

import (
	"errors"
	"fmt"

	"github.com/roach88/tessera/internal/ir"
)

// CriteriaFunc builds a predicate from a Criteria. It is the form
// callers hand to queries and observations.
type CriteriaFunc func(c *Criteria) Predicate

// Criteria is the fluent builder passed to a CriteriaFunc. Operand
// conversion problems are collected and reported by Compile.
type Criteria struct {
	errs []error
}

// FieldRef selects a field for comparison.
type FieldRef struct {
	c    *Criteria
	name string
}

// Field starts a comparison on the named field.
func (c *Criteria) Field(name string) FieldRef {
	return FieldRef{c: c, name: name}
}

// And combines nodes with AND.
func (c *Criteria) And(ps ...Predicate) Predicate { return And(ps...) }

// Or combines nodes with OR.
func (c *Criteria) Or(ps ...Predicate) Predicate { return Or(ps...) }

// Not negates the conjunction of ps.
func (c *Criteria) Not(ps ...Predicate) Predicate { return Not(ps...) }

// Op compares the field with an operator given by name. Unknown names are
// reported when the predicate is validated.
func (f FieldRef) Op(op string, operand any) Predicate {
	return f.cmp(Operator(op), operand)
}

// Eq matches field == v.
func (f FieldRef) Eq(v any) Predicate { return f.cmp(OpEq, v) }

// Ne matches field != v.
func (f FieldRef) Ne(v any) Predicate { return f.cmp(OpNe, v) }

// Gt matches field > v.
func (f FieldRef) Gt(v any) Predicate { return f.cmp(OpGt, v) }

// Lt matches field < v.
func (f FieldRef) Lt(v any) Predicate { return f.cmp(OpLt, v) }

// Ge matches field >= v.
func (f FieldRef) Ge(v any) Predicate { return f.cmp(OpGe, v) }

// Le matches field <= v.
func (f FieldRef) Le(v any) Predicate { return f.cmp(OpLe, v) }

// Contains matches a substring of a string field or an element of an
// array field.
func (f FieldRef) Contains(v any) Predicate { return f.cmp(OpContains, v) }

// NotContains negates Contains.
func (f FieldRef) NotContains(v any) Predicate { return f.cmp(OpNotContains, v) }

// BeginsWith matches a string prefix.
func (f FieldRef) BeginsWith(v any) Predicate { return f.cmp(OpBeginsWith, v) }

// Between matches lo <= field <= hi.
func (f FieldRef) Between(lo, hi any) Predicate {
	return f.cmp(OpBetween, []any{lo, hi})
}

func (f FieldRef) cmp(op Operator, operand any) Predicate {
	v, err := ir.FromNative(operand)
	if err != nil {
		f.c.errs = append(f.c.errs, fmt.Errorf("field %q %s: %w", f.name, op, err))
		v = ir.IRNull{}
	}
	return Comparison{Field: f.name, Op: op, Operand: v}
}

// Compile runs fn against a fresh Criteria and validates the result
// against fields. A nil fn compiles to MatchAll.
func Compile(model string, fields map[string]ir.FieldMeta, fn CriteriaFunc) (Predicate, error) {
	if fn == nil {
		return MatchAll, nil
	}

	c := &Criteria{}
	p := fn(c)
	if len(c.errs) > 0 {
		return nil, &InvalidPredicateError{
			Model:  model,
			Reason: errors.Join(c.errs...).Error(),
		}
	}
	if p == nil {
		return nil, &InvalidPredicateError{Model: model, Reason: "criteria returned no predicate"}
	}
	if IsMatchAll(p) {
		return MatchAll, nil
	}
	if err := Validate(model, fields, p); err != nil {
		return nil, err
	}
	return p, nil
}
