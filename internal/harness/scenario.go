package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tessera/internal/ir"
)

// Scenario is one scripted run against a fresh DataStore.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the path of the schema file (CUE, YAML or JSON).
	// LoadScenario resolves it relative to the scenario file.
	Schema string `yaml:"schema"`

	// Engine selects the storage engine: "memory" (default) or "sqlite".
	Engine string `yaml:"engine,omitempty"`

	// Observe lists observers opened before the flow starts. If empty, a
	// single observer named "all" watches every model.
	Observe []Observer `yaml:"observe,omitempty"`

	// Flow is the sequence of operations to run.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Observer declares a subscription.
type Observer struct {
	Name  string   `yaml:"name"`
	Model string   `yaml:"model,omitempty"`
	Ref   string   `yaml:"ref,omitempty"`
	Where []string `yaml:"where,omitempty"`
}

// FlowStep is one operation of the flow.
type FlowStep struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Model names the constructor (new, save, get, query, delete_where,
	// observe).
	Model string `yaml:"model,omitempty"`

	// Ref names a record bound by an earlier step's As. For get an
	// unbound ref is taken as a literal id.
	Ref string `yaml:"ref,omitempty"`

	// As binds the step's record (new, save, copy) or observer (observe).
	As string `yaml:"as,omitempty"`

	// Fields are the initial values (new, save) or draft assignments
	// (copy).
	Fields map[string]any `yaml:"fields,omitempty"`

	// Where clauses, "field op value", joined with AND.
	Where []string `yaml:"where,omitempty"`

	// Condition clauses for a conditional save.
	Condition []string `yaml:"condition,omitempty"`

	// Page windows a query.
	Page *ir.Page `yaml:"page,omitempty"`

	// Expect checks the step's outcome. Without it the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Flow operations.
const (
	OpNew         = "new"
	OpSave        = "save"
	OpCopy        = "copy"
	OpGet         = "get"
	OpQuery       = "query"
	OpDelete      = "delete"
	OpDeleteWhere = "delete_where"
	OpObserve     = "observe"
	OpUnsubscribe = "unsubscribe"
)

// ExpectClause specifies a step's expected outcome.
type ExpectClause struct {
	// Error is the expected error kind; see ErrorKind.
	Error string `yaml:"error,omitempty"`

	// Count is the expected number of records returned or deleted.
	Count *int `yaml:"count,omitempty"`

	// Refs lists the expected query results by binding name, in order.
	Refs []string `yaml:"refs,omitempty"`

	// Fields is a subset match against the step's single record.
	Fields map[string]any `yaml:"fields,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Observer selects whose events trace assertions look at.
	Observer string `yaml:"observer,omitempty"`

	// Op and Ref filter events (trace_contains, trace_count).
	Op  string `yaml:"op,omitempty"`
	Ref string `yaml:"ref,omitempty"`

	// Events is the exact "OP ref" sequence (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Model and Where select records (final_state).
	Model string   `yaml:"model,omitempty"`
	Where []string `yaml:"where,omitempty"`

	// Expect is a subset match every selected record must satisfy
	// (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of events or records.
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. The schema path is
// resolved relative to the scenario file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}
	if _, err := os.Stat(scenario.Schema); err != nil {
		return nil, fmt.Errorf("invalid scenario: schema file not found: %s", scenario.Schema)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}

	switch s.Engine {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("unknown engine %q", s.Engine)
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, o := range s.Observe {
		if o.Name == "" {
			return fmt.Errorf("observe[%d]: name is required", i)
		}
		if o.Ref != "" {
			return fmt.Errorf("observe[%d]: ref is only valid on a flow observe step", i)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step *FlowStep) error {
	need := func(ok bool, what string) error {
		if !ok {
			return fmt.Errorf("flow[%d]: %s is required for %s", index, what, step.Op)
		}
		return nil
	}

	switch step.Op {
	case OpNew:
		return need(step.Model != "", "model")
	case OpSave:
		return need(step.Model != "" || step.Ref != "", "model or ref")
	case OpCopy, OpDelete:
		return need(step.Ref != "", "ref")
	case OpGet:
		if err := need(step.Model != "", "model"); err != nil {
			return err
		}
		return need(step.Ref != "", "ref")
	case OpQuery, OpDeleteWhere:
		return need(step.Model != "", "model")
	case OpObserve, OpUnsubscribe:
		return need(step.As != "", "as")
	case "":
		return fmt.Errorf("flow[%d]: op is required", index)
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", index, step.Op)
	}
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Observer == "" || a.Op == "" {
			return fmt.Errorf("assertions[%d]: observer and op are required for trace_contains", index)
		}
	case AssertTraceOrder:
		if a.Observer == "" {
			return fmt.Errorf("assertions[%d]: observer is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Observer == "" {
			return fmt.Errorf("assertions[%d]: observer is required for trace_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Model == "" {
			return fmt.Errorf("assertions[%d]: model is required for final_state", index)
		}
		if a.Count == nil && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: count or expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
