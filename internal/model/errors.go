package model

import (
	"errors"
	"fmt"

	"github.com/roach88/tessera/internal/compiler"
)

// ErrAlreadyInitialized is returned by a second InitSchema call.
var ErrAlreadyInitialized = errors.New("model: schema already initialized")

// ErrNotAModel is returned when a model operation is given a non-model
// constructor or record, or a value from another registry.
var ErrNotAModel = errors.New("model: not a model")

// ErrReadOnlyViolation matches every ReadOnlyError.
var ErrReadOnlyViolation = errors.New("model: read-only violation")

// ReadOnlyError reports an assignment to a sealed draft.
type ReadOnlyError struct {
	Model string
	Field string
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("cannot assign %s.%s: record is read-only", e.Model, e.Field)
}

// Is makes errors.Is(err, ErrReadOnlyViolation) match.
func (e *ReadOnlyError) Is(target error) bool {
	return target == ErrReadOnlyViolation
}

// FieldError reports a field value that does not fit the schema.
type FieldError struct {
	Model  string
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Model, e.Reason)
	}
	return fmt.Sprintf("%s.%s: %s", e.Model, e.Field, e.Reason)
}

// IsFieldError returns true if err is or wraps a *FieldError.
func IsFieldError(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe)
}

// SchemaError reports a descriptor rejected by InitSchema.
type SchemaError struct {
	Errors []compiler.ValidationError
}

func (e *SchemaError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("invalid schema: %v", e.Errors[0])
	}
	return fmt.Sprintf("invalid schema: %d errors, first: %v", len(e.Errors), e.Errors[0])
}
