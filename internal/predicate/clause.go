package predicate

import (
	"fmt"
	"strings"

	"github.com/roach88/tessera/internal/ir"
)

// ParseClause parses the textual form of a comparison, "field op value",
// used by the CLI and by scenario files. The value is JSON; a value that
// is not valid JSON is taken as a string.
//
//	title eq "hello"
//	rating ge 4
//	tags contains urgent
//	rating between [1, 3]
//
// Operator names are not checked here; Validate reports unknown operators.
func ParseClause(s string) (Comparison, error) {
	s = strings.TrimSpace(s)
	field, rest, ok := strings.Cut(s, " ")
	if !ok || field == "" {
		return Comparison{}, fmt.Errorf("clause %q: expected \"field op value\"", s)
	}
	rest = strings.TrimSpace(rest)
	op, raw, ok := strings.Cut(rest, " ")
	if !ok || op == "" {
		return Comparison{}, fmt.Errorf("clause %q: missing value", s)
	}
	raw = strings.TrimSpace(raw)

	operand, err := ir.UnmarshalIRValue([]byte(raw))
	if err != nil {
		operand = ir.IRString(raw)
	}
	return Comparison{Field: field, Op: Operator(op), Operand: operand}, nil
}

// FromClauses builds the conjunction of clauses. No clauses yields
// MatchAll.
func FromClauses(clauses []string) (Predicate, error) {
	if len(clauses) == 0 {
		return MatchAll, nil
	}
	ps := make([]Predicate, 0, len(clauses))
	for _, c := range clauses {
		cmp, err := ParseClause(c)
		if err != nil {
			return nil, err
		}
		ps = append(ps, cmp)
	}
	if len(ps) == 1 {
		return ps[0], nil
	}
	return And(ps...), nil
}
