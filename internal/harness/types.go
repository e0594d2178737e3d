package harness

// Trace event types.
const (
	TraceStep  = "step"
	TraceEvent = "event"
)

// Event is one entry of a scenario trace: either the outcome of a flow
// step or a change event an observer received.
type Event struct {
	Type     string `json:"type"`
	Step     int    `json:"step,omitempty"`
	Op       string `json:"op"`
	Model    string `json:"model,omitempty"`
	Ref      string `json:"ref,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
	Count    int    `json:"count,omitempty"`
	Observer string `json:"observer,omitempty"`
	Seq      int64  `json:"seq,omitempty"`
}

// Label returns "OP ref", the form trace_order assertions list.
func (e Event) Label() string {
	return e.Op + " " + e.Ref
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step and assertion held.
	Pass bool `json:"pass"`

	// Trace holds step outcomes in flow order, then each observer's
	// events, observers sorted by name.
	Trace []Event `json:"trace"`

	// Errors holds failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []Event{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStepTrace records a flow step's outcome.
func (r *Result) AddStepTrace(step int, op, model, ref, outcome string, count int) {
	r.Trace = append(r.Trace, Event{
		Type:    TraceStep,
		Step:    step,
		Op:      op,
		Model:   model,
		Ref:     ref,
		Outcome: outcome,
		Count:   count,
	})
}

// AddEventTrace records a change event seen by an observer.
func (r *Result) AddEventTrace(observer, op, model, ref string, seq int64) {
	r.Trace = append(r.Trace, Event{
		Type:     TraceEvent,
		Op:       op,
		Model:    model,
		Ref:      ref,
		Observer: observer,
		Seq:      seq,
	})
}

// Events returns the change events seen by observer, in order.
func (r *Result) Events(observer string) []Event {
	var out []Event
	for _, e := range r.Trace {
		if e.Type == TraceEvent && e.Observer == observer {
			out = append(out, e)
		}
	}
	return out
}
