package store

import (
	"context"
	"errors"

	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/predicate"
)

// ErrClosed is returned by operations on a closed engine.
var ErrClosed = errors.New("store: engine closed")

// ErrUnknownModel is returned for a model the engine's schema does not
// declare.
var ErrUnknownModel = errors.New("store: unknown model")

// Row is one stored record: its model, identity and field values
// (including the id field).
type Row struct {
	Model  string
	ID     string
	Fields ir.IRObject
}

// Engine is the storage adapter boundary. Implementations must give
// Get and Query snapshot semantics: they only observe committed
// transactions.
type Engine interface {
	// Begin starts a write transaction. Callers serialize transactions;
	// engines may block a second Begin until the first one finishes.
	Begin(ctx context.Context) (Txn, error)

	// Get returns the committed row for (model, id).
	Get(ctx context.Context, model, id string) (Row, bool, error)

	// Query returns committed rows of model matching p, ordered by
	// insertion sequence then id and windowed by page.
	Query(ctx context.Context, model string, p predicate.Predicate, page ir.Page) ([]Row, error)

	// Models returns the names of the models this engine stores.
	Models() []string

	// Close releases the engine's resources.
	Close() error
}

// Txn is a write transaction. Reads inside a transaction see its own
// staged writes.
type Txn interface {
	Get(ctx context.Context, model, id string) (Row, bool, error)
	Query(ctx context.Context, model string, p predicate.Predicate, page ir.Page) ([]Row, error)

	// Put inserts or replaces a row and reports whether it existed.
	Put(ctx context.Context, row Row) (existed bool, err error)

	// Delete removes a row and reports whether it existed.
	Delete(ctx context.Context, model, id string) (existed bool, err error)

	Commit() error
	Rollback() error
}

// Factory constructs an engine for a schema. The storage coordinator
// calls it at most once.
type Factory func(ctx context.Context, desc *ir.SchemaDescriptor) (Engine, error)
