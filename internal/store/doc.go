// Package store provides the storage adapter boundary and two engines
// behind it: a SQLite engine for durable local storage and an in-memory
// engine with optional CBOR snapshots.
//
// The boundary is Engine (reads, transactions, the model namespace) and
// Txn (staged writes committed atomically). Engines store rows of
// canonical field values keyed by (model, id); they know nothing about
// record constructors or change events, which belong to the storage
// coordinator above them.
//
// # Critical Patterns
//
// Deterministic query results:
//   - Every query orders by insertion sequence, then id (COLLATE BINARY)
//   - Updating a record keeps its original insertion sequence
//
// Snapshot reads:
//   - Engine.Get and Engine.Query see committed data only, so readers
//     never observe a partially applied transaction
//
// # SQLite Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// Field values are stored as RFC 8785 canonical JSON (internal/ir).
package store
