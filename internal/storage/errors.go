package storage

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Handle after Close.
var ErrClosed = errors.New("storage: coordinator closed")

// ErrTxDone is returned by Tx methods after the exclusive body returned.
var ErrTxDone = errors.New("storage: transaction finished")

// ErrSchemaNotInitialized is the cause of an InitError when the registry
// has no schema yet.
var ErrSchemaNotInitialized = errors.New("storage: schema not initialized")

// InitError reports a failed engine construction. The same error is
// returned to every caller of Handle, except ErrSchemaNotInitialized,
// which is returned until the schema is initialized.
type InitError struct {
	Err error
}

// Error implements the error interface.
func (e *InitError) Error() string {
	return fmt.Sprintf("storage: initialize engine: %v", e.Err)
}

// Unwrap returns the construction failure.
func (e *InitError) Unwrap() error { return e.Err }

// IsInitError reports whether err is or wraps an *InitError.
func IsInitError(err error) bool {
	var ie *InitError
	return errors.As(err, &ie)
}
