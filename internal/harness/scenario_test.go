package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "one save"
schema: schema.yaml
flow:
  - op: save
    model: Model
    fields: { field1: x }
assertions:
  - type: trace_count
    observer: all
    count: 1
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Empty(t, s.Engine)
	require.Len(t, s.Flow, 1)
	assert.Equal(t, OpSave, s.Flow[0].Op)
	assert.Equal(t, map[string]any{"field1": "x"}, s.Flow[0].Fields)
	require.Len(t, s.Assertions, 1)
	require.NotNil(t, s.Assertions[0].Count)
	assert.Equal(t, 1, *s.Assertions[0].Count)
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "extra: true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing name",
			src:  "description: d\nschema: s\nflow: [{op: new, model: M}]\nassertions: [{type: trace_count, observer: all, count: 0}]",
			want: "name is required",
		},
		{
			name: "unknown engine",
			src:  "name: n\ndescription: d\nschema: s\nengine: postgres\nflow: [{op: new, model: M}]\nassertions: [{type: trace_count, observer: all, count: 0}]",
			want: `unknown engine "postgres"`,
		},
		{
			name: "empty flow",
			src:  "name: n\ndescription: d\nschema: s\nflow: []\nassertions: [{type: trace_count, observer: all, count: 0}]",
			want: "flow list is required",
		},
		{
			name: "unknown op",
			src:  "name: n\ndescription: d\nschema: s\nflow: [{op: upsert}]\nassertions: [{type: trace_count, observer: all, count: 0}]",
			want: `flow[0]: unknown op "upsert"`,
		},
		{
			name: "copy without ref",
			src:  "name: n\ndescription: d\nschema: s\nflow: [{op: copy}]\nassertions: [{type: trace_count, observer: all, count: 0}]",
			want: "flow[0]: ref is required for copy",
		},
		{
			name: "observer ref at top level",
			src:  "name: n\ndescription: d\nschema: s\nobserve: [{name: o, ref: r}]\nflow: [{op: new, model: M}]\nassertions: [{type: trace_count, observer: all, count: 0}]",
			want: "observe[0]: ref is only valid",
		},
		{
			name: "trace_count without count",
			src:  "name: n\ndescription: d\nschema: s\nflow: [{op: new, model: M}]\nassertions: [{type: trace_count, observer: all}]",
			want: "count must be non-negative",
		},
		{
			name: "final_state without checks",
			src:  "name: n\ndescription: d\nschema: s\nflow: [{op: new, model: M}]\nassertions: [{type: final_state, model: M}]",
			want: "count or expect is required",
		},
		{
			name: "unknown assertion",
			src:  "name: n\ndescription: d\nschema: s\nflow: [{op: new, model: M}]\nassertions: [{type: eventually}]",
			want: `unknown assertion type "eventually"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_ResolvesSchemaPath(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "copy_on_write.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "schema.yaml"), s.Schema)
}

func TestLoadScenario_MissingSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema file not found")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
