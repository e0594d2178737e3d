// Package model is the model factory. A Registry consumes a schema
// descriptor exactly once and produces one Constructor per declared
// type.
//
// Records are immutable values: they expose getters only, and every
// accessor returns a copy. The only mutable surface is the Draft handed
// to a CopyOf mutator, which is sealed as soon as the mutator returns.
//
// Identity rules:
//   - syncable models get random (v4) UUIDs
//   - non-syncable models get v1 UUIDs with their time segments
//     reordered so ids sort chronologically
//   - CopyOf always keeps the source record's id
package model
