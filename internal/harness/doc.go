// Package harness runs YAML scenarios against a DataStore and checks the
// observed change stream.
//
// # Scenario Format
//
//	name: copy_on_write
//	description: "CopyOf keeps the source identity"
//	schema: schema.yaml          # relative to the scenario file
//	engine: memory               # or sqlite
//	observe:
//	  - name: models
//	    model: Model
//	flow:
//	  - op: save
//	    model: Model
//	    as: m1
//	    fields: { field1: something }
//	  - op: copy
//	    ref: m1
//	    as: m2
//	    fields: { field1: edited, id: hijacked }
//	  - op: save
//	    ref: m2
//	  - op: get
//	    model: Model
//	    ref: m1
//	    expect:
//	      fields: { field1: edited }
//	assertions:
//	  - type: trace_order
//	    observer: models
//	    events: ["INSERT m1", "UPDATE m1"]
//	  - type: final_state
//	    model: Model
//	    count: 1
//
// # Flow Operations
//
//   - new: construct a record without saving it
//   - save: construct and save (model + fields) or save a bound record (ref)
//   - copy: CopyOf a bound record, setting fields on the draft
//   - get: look a record up by a bound ref or a literal id
//   - query: list records matching where clauses, optionally paged
//   - delete, delete_where: remove records
//   - observe, unsubscribe: open and close observers mid-flow
//
// A step's expect clause may name an error kind (not_found, not_a_model,
// condition_failed, invalid_predicate, field_error) or check the result.
//
// # Assertion Types
//
//   - trace_contains: an observer saw an event with the given op and ref
//   - trace_order: an observer saw exactly the listed events, in order
//   - trace_count: an observer saw exactly N events (optionally of one op)
//   - final_state: records matching where clauses, by count and fields
//
// # Deterministic Testing
//
// Identities come from a sequential source ("rec-1", "rec-2", ...) and
// events carry logical sequence numbers, so a scenario's trace is
// byte-identical across runs and can be compared to a golden file.
package harness
