package predicate

import (
	"fmt"

	"github.com/roach88/tessera/internal/ir"
)

// Predicate is a compiled filter over a model's fields.
//
// This is a sealed interface: only Comparison, Group and MatchAll
// implement it.
type Predicate interface {
	predicateNode()
}

// Operator names a comparison.
type Operator string

// Operators.
const (
	OpEq          Operator = "eq"
	OpNe          Operator = "ne"
	OpGt          Operator = "gt"
	OpLt          Operator = "lt"
	OpGe          Operator = "ge"
	OpLe          Operator = "le"
	OpContains    Operator = "contains"
	OpNotContains Operator = "notContains"
	OpBeginsWith  Operator = "beginsWith"
	OpBetween     Operator = "between"
)

// Operators lists every operator.
var Operators = []Operator{
	OpEq, OpNe, OpGt, OpLt, OpGe, OpLe,
	OpContains, OpNotContains, OpBeginsWith, OpBetween,
}

// ParseOperator resolves an operator name.
func ParseOperator(name string) (Operator, bool) {
	for _, op := range Operators {
		if string(op) == name {
			return op, true
		}
	}
	return "", false
}

func (op Operator) isOrdering() bool {
	switch op {
	case OpGt, OpLt, OpGe, OpLe, OpBetween:
		return true
	}
	return false
}

// Comparison is a leaf: <field> <op> <operand>.
//
// For OpBetween the operand is a two-element IRArray holding the inclusive
// lower and upper bounds.
type Comparison struct {
	Field   string
	Op      Operator
	Operand ir.IRValue
}

func (Comparison) predicateNode() {}

// String renders the comparison in clause form.
func (c Comparison) String() string {
	b, err := ir.MarshalIRValue(c.Operand)
	if err != nil {
		return fmt.Sprintf("%s %s <%v>", c.Field, c.Op, err)
	}
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, b)
}

// GroupKind is the combinator of a Group.
type GroupKind string

// Group kinds.
const (
	KindAnd GroupKind = "and"
	KindOr  GroupKind = "or"
	KindNot GroupKind = "not"
)

// Group combines child predicates.
//
//	And: all children match (empty matches everything)
//	Or:  any child matches (empty matches nothing)
//	Not: the conjunction of the children does not match
type Group struct {
	Kind       GroupKind
	Predicates []Predicate
}

func (Group) predicateNode() {}

type matchAll struct{}

func (matchAll) predicateNode() {}

func (matchAll) String() string { return "*" }

// MatchAll matches every record of the target model.
var MatchAll Predicate = matchAll{}

// IsMatchAll reports whether p is nil or the MatchAll sentinel.
func IsMatchAll(p Predicate) bool {
	if p == nil {
		return true
	}
	_, ok := p.(matchAll)
	return ok
}

// And builds a conjunction.
func And(ps ...Predicate) Group { return Group{Kind: KindAnd, Predicates: ps} }

// Or builds a disjunction.
func Or(ps ...Predicate) Group { return Group{Kind: KindOr, Predicates: ps} }

// Not negates the conjunction of ps.
func Not(ps ...Predicate) Group { return Group{Kind: KindNot, Predicates: ps} }

// SingleID reports whether p structurally narrows to at most one record:
// an "id eq X" comparison, either alone or as a direct child of a top-level
// And. It returns the id when it does.
func SingleID(p Predicate) (string, bool) {
	switch n := p.(type) {
	case Comparison:
		return idEquality(n)
	case *Comparison:
		return idEquality(*n)
	case Group:
		return singleIDInAnd(n)
	case *Group:
		return singleIDInAnd(*n)
	}
	return "", false
}

func singleIDInAnd(g Group) (string, bool) {
	if g.Kind != KindAnd {
		return "", false
	}
	for _, child := range g.Predicates {
		var cmp Comparison
		switch n := child.(type) {
		case Comparison:
			cmp = n
		case *Comparison:
			cmp = *n
		default:
			continue
		}
		if id, ok := idEquality(cmp); ok {
			return id, true
		}
	}
	return "", false
}

func idEquality(c Comparison) (string, bool) {
	if c.Field != ir.IDField || c.Op != OpEq {
		return "", false
	}
	s, ok := c.Operand.(ir.IRString)
	return string(s), ok
}
