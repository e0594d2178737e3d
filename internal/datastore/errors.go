package datastore

import "errors"

// ErrNotFound is returned by every single-record query that matches
// nothing.
var ErrNotFound = errors.New("datastore: not found")

// ErrConditionFailed is returned by Save when the stored record does not
// satisfy the save condition.
var ErrConditionFailed = errors.New("datastore: condition failed")

// ErrUnsupportedQuery is returned for a query argument of an unknown
// kind.
var ErrUnsupportedQuery = errors.New("datastore: unsupported query argument")
