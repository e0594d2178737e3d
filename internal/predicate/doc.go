// Package predicate provides the filter expressions used by queries and
// observations.
//
// A predicate is a tree of Comparison leaves combined by Group nodes
// (And, Or, Not), or the MatchAll sentinel. Trees are built with the
// Criteria builder and compiled against a model's field table:
//
//	p, err := predicate.Compile("Post", fields, func(c *predicate.Criteria) predicate.Predicate {
//	    return c.And(
//	        c.Field("title").BeginsWith("Hello"),
//	        c.Field("rating").Ge(4),
//	    )
//	})
//
// Compilation is pure: it touches no storage, so predicates can be built
// and tested on their own. Unknown fields and operators that do not fit a
// field's type fail with *InvalidPredicateError.
//
// SEALED INTERFACE:
//
// Predicate is sealed with a marker method. Backends (the SQL compiler,
// the in-memory evaluator) switch exhaustively over Comparison, Group and
// the MatchAll sentinel.
//
// SEMANTICS:
//
//   - An empty And matches everything; an empty Or matches nothing.
//   - Not negates the conjunction of its children.
//   - A missing field compares as null: "eq null" and "ne v" match,
//     ordering operators and contains do not, notContains does.
package predicate
