// Package storage coordinates access to the single storage engine.
//
// A Coordinator constructs its engine lazily: the first caller of Handle
// triggers exactly one factory call and every concurrent caller waits
// for the same result. A failed construction is cached and returned to
// every later caller; it is not retried.
//
// All writes go through Handle.RunExclusive. Bodies run one at a time in
// an engine transaction; change events are stamped and published after
// commit, before the next body starts, so subscribers see events in
// commit order. Reads do not take the exclusive section because both
// engines serve committed snapshots.
package storage
