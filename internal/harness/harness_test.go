package harness

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tessera/internal/datastore"
	"github.com/roach88/tessera/internal/model"
	"github.com/roach88/tessera/internal/predicate"
	"github.com/roach88/tessera/internal/storage"
)

func scenarioPath(name string) string {
	return filepath.Join("testdata", "scenarios", name+".yaml")
}

func TestRun_GoldenScenarios(t *testing.T) {
	for _, name := range []string{"copy_on_write", "observe_filters", "queries"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(scenarioPath(name))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(scenarioPath("observe_filters"))
	require.NoError(t, err)

	first, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Run(context.Background(), scenario)
		require.NoError(t, err)
		assert.Equal(t, first.Trace, again.Trace, "run %d", i+2)
	}
}

func TestRun_SQLiteInDir(t *testing.T) {
	scenario, err := LoadScenario(scenarioPath("queries"))
	require.NoError(t, err)

	dir := t.TempDir()
	result, err := Run(context.Background(), scenario, WithDir(dir))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.FileExists(t, filepath.Join(dir, "scenario.db"))
}

func TestRun_ReportsFailures(t *testing.T) {
	schema, err := filepath.Abs(filepath.Join("testdata", "scenarios", "schema.yaml"))
	require.NoError(t, err)

	src := fmt.Sprintf(`
name: failing
description: "every check here is wrong"
schema: %q
flow:
  - op: save
    model: Model
    as: m1
    fields: { field1: one }
  - op: get
    model: Model
    ref: m1
    expect:
      error: not_found
  - op: query
    model: Model
    expect:
      count: 3
  - op: get
    model: Model
    ref: nobody
assertions:
  - type: trace_count
    observer: all
    count: 2
  - type: trace_contains
    observer: all
    op: DELETE
  - type: trace_order
    observer: all
    events: ["UPDATE m1"]
  - type: final_state
    model: Model
    expect: { field1: two }
`, schema)

	scenario, err := ParseScenario([]byte(src))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 7)
	assert.Contains(t, result.Errors[0], "expected error not_found, got ok")
	assert.Contains(t, result.Errors[1], "expected count 3, got 1")
	assert.Contains(t, result.Errors[2], "unexpected error")
	assert.Contains(t, result.Errors[3], "final_state")
	assert.Contains(t, result.Errors[4], "trace_count")
	assert.Contains(t, result.Errors[5], "trace_contains")
	assert.Contains(t, result.Errors[6], "trace_order")

	// Failed steps still appear in the trace.
	require.Len(t, result.Trace, 5)
	assert.Equal(t, "not_found", result.Trace[3].Outcome)
	assert.Equal(t, []Event{{
		Type: TraceEvent, Op: "INSERT", Model: "Model", Ref: "m1", Observer: "all", Seq: 1,
	}}, result.Events("all"))
}

func TestRun_Unsubscribe(t *testing.T) {
	schema, err := filepath.Abs(filepath.Join("testdata", "scenarios", "schema.yaml"))
	require.NoError(t, err)

	src := fmt.Sprintf(`
name: unsubscribe
description: "an observer closed mid-flow keeps what it saw"
schema: %q
flow:
  - op: observe
    model: Model
    as: early
  - op: save
    model: Model
    as: m1
    fields: { field1: one }
  - op: unsubscribe
    as: early
  - op: delete
    ref: m1
assertions:
  - type: trace_order
    observer: early
    events: ["INSERT m1"]
  - type: trace_order
    observer: all
    events: ["INSERT m1", "DELETE m1"]
`, schema)

	scenario, err := ParseScenario([]byte(src))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_BadSchema(t *testing.T) {
	scenario := &Scenario{
		Name:   "missing",
		Schema: filepath.Join(t.TempDir(), "nope.yaml"),
		Flow:   []FlowStep{{Op: OpNew, Model: "Model"}},
	}
	_, err := Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load schema")
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("get: %w", datastore.ErrNotFound), "not_found"},
		{fmt.Errorf("save: %w", model.ErrNotAModel), "not_a_model"},
		{fmt.Errorf("save: %w", datastore.ErrConditionFailed), "condition_failed"},
		{&model.ReadOnlyError{Model: "Model", Field: "field1"}, "read_only"},
		{&predicate.InvalidPredicateError{Model: "Post", Field: "x", Reason: "unknown field"}, "invalid_predicate"},
		{&model.FieldError{Model: "Post", Field: "title", Reason: "required"}, "field_error"},
		{&model.SchemaError{}, "schema_error"},
		{&storage.InitError{Err: errors.New("disk full")}, "storage_init"},
		{errors.New("boom"), "error"},
	}
	for i, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), "case %d", i)
	}
}

func TestAssertionError_Message(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceOrder,
		Expected: "event 1 to be \"INSERT m1\"",
		Actual:   "event 1 is \"UPDATE m1\"",
		Trace:    []Event{{Type: TraceEvent, Op: "UPDATE", Model: "Model", Ref: "m1", Seq: 3}},
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_order")
	assert.Contains(t, msg, "Expected: event 1 to be \"INSERT m1\"")
	assert.Contains(t, msg, "[1] seq=3 Model UPDATE m1")
}
