package predicate

import (
	"errors"
	"fmt"
)

// InvalidPredicateError reports a predicate that does not fit the model it
// targets: an unknown field, an unknown operator, an operator the field's
// type does not support or an operand of the wrong type.
type InvalidPredicateError struct {
	Model  string
	Field  string
	Op     Operator
	Reason string
}

// Error implements the error interface.
func (e *InvalidPredicateError) Error() string {
	switch {
	case e.Field != "" && e.Op != "":
		return fmt.Sprintf("invalid predicate on %s.%s (%s): %s", e.Model, e.Field, e.Op, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("invalid predicate on %s.%s: %s", e.Model, e.Field, e.Reason)
	default:
		return fmt.Sprintf("invalid predicate on %s: %s", e.Model, e.Reason)
	}
}

// IsInvalidPredicate reports whether err is or wraps an
// *InvalidPredicateError.
func IsInvalidPredicate(err error) bool {
	var ip *InvalidPredicateError
	return errors.As(err, &ip)
}
