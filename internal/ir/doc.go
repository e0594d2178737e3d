// Package ir provides the data-only types shared by every tessera package:
// field values, canonical JSON, digests and the schema descriptor.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key constraints:
//   - Field values are sealed IRValues; floats must be finite
//   - Canonical JSON (RFC 8785) is the storage and digest encoding
//   - Logical sequence numbers only, never wall-clock time, in events
//   - All JSON tags use snake_case
package ir
