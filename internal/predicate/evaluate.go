package predicate

import (
	"strings"

	"github.com/roach88/tessera/internal/ir"
)

// Evaluate reports whether a record with the given field values matches p.
// It is the in-memory counterpart of the SQL compiler and is used to
// filter observations and by the memory engine.
//
// p is assumed to have passed Validate; comparisons that cannot be
// evaluated (mismatched types) do not match.
func Evaluate(p Predicate, fields ir.IRObject) bool {
	switch n := p.(type) {
	case nil, matchAll:
		return true
	case Comparison:
		return evalComparison(n, fields)
	case *Comparison:
		return evalComparison(*n, fields)
	case Group:
		return evalGroup(n, fields)
	case *Group:
		return evalGroup(*n, fields)
	}
	return false
}

func evalGroup(g Group, fields ir.IRObject) bool {
	switch g.Kind {
	case KindAnd:
		return allMatch(g.Predicates, fields)
	case KindNot:
		return !allMatch(g.Predicates, fields)
	case KindOr:
		for _, child := range g.Predicates {
			if Evaluate(child, fields) {
				return true
			}
		}
	}
	return false
}

func allMatch(ps []Predicate, fields ir.IRObject) bool {
	for _, child := range ps {
		if !Evaluate(child, fields) {
			return false
		}
	}
	return true
}

func evalComparison(c Comparison, fields ir.IRObject) bool {
	value := fields[c.Field]

	switch c.Op {
	case OpEq:
		return ir.Equal(value, c.Operand)
	case OpNe:
		return !ir.Equal(value, c.Operand)
	case OpContains:
		return contains(value, c.Operand)
	case OpNotContains:
		return !contains(value, c.Operand)
	case OpBeginsWith:
		s, ok := value.(ir.IRString)
		prefix, ok2 := c.Operand.(ir.IRString)
		return ok && ok2 && strings.HasPrefix(string(s), string(prefix))
	case OpBetween:
		bounds, ok := c.Operand.(ir.IRArray)
		if !ok || len(bounds) != 2 || ir.IsNull(value) {
			return false
		}
		lo, ok1 := ir.Compare(value, bounds[0])
		hi, ok2 := ir.Compare(value, bounds[1])
		return ok1 && ok2 && lo >= 0 && hi <= 0
	case OpGt, OpLt, OpGe, OpLe:
		if ir.IsNull(value) {
			return false
		}
		cmp, ok := ir.Compare(value, c.Operand)
		if !ok {
			return false
		}
		switch c.Op {
		case OpGt:
			return cmp > 0
		case OpLt:
			return cmp < 0
		case OpGe:
			return cmp >= 0
		default:
			return cmp <= 0
		}
	}
	return false
}

func contains(value, operand ir.IRValue) bool {
	switch v := value.(type) {
	case ir.IRString:
		s, ok := operand.(ir.IRString)
		return ok && strings.Contains(string(v), string(s))
	case ir.IRArray:
		for _, elem := range v {
			if ir.Equal(elem, operand) {
				return true
			}
		}
	}
	return false
}
