package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/tessera/internal/predicate"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string  // Assertion type for categorization
	Expected string  // Human-readable expected outcome
	Actual   string  // Human-readable actual outcome
	Trace    []Event // Observer events for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nEvents:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] seq=%d %s %s\n", i+1, event.Seq, event.Model, event.Label())
		}
	}

	return buf.String()
}

// EvaluateAssertions checks the trace assertions against a finished
// result and returns one message per failure. final_state assertions are
// skipped; Run evaluates those while the store is still open.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result, a)
		case AssertTraceCount:
			err = assertTraceCount(result, a)
		default:
			continue
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertion[%d]: %v", i, err))
		}
	}
	return failures
}

// assertTraceContains checks that the observer saw an event with the
// given op and, when set, ref.
func assertTraceContains(result *Result, a Assertion) error {
	events := result.Events(a.Observer)
	for _, event := range events {
		if matchEvent(event, a) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s saw %s", a.Observer, strings.TrimSpace(a.Op+" "+a.Ref)),
		Actual:   "not found in trace",
		Trace:    events,
	}
}

// assertTraceOrder checks that the observer saw exactly the listed events
// in order. Delivery is FIFO per observer, so nothing may intervene.
func assertTraceOrder(result *Result, a Assertion) error {
	events := result.Events(a.Observer)
	labels := make([]string, len(events))
	for i, e := range events {
		labels[i] = e.Label()
	}

	if len(labels) != len(a.Events) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("%d events: %v", len(a.Events), a.Events),
			Actual:   fmt.Sprintf("%d events: %v", len(labels), labels),
			Trace:    events,
		}
	}
	for i := range labels {
		if labels[i] != a.Events[i] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("event %d to be %q", i+1, a.Events[i]),
				Actual:   fmt.Sprintf("event %d is %q", i+1, labels[i]),
				Trace:    events,
			}
		}
	}
	return nil
}

// assertTraceCount checks the number of matching events exactly.
func assertTraceCount(result *Result, a Assertion) error {
	events := result.Events(a.Observer)
	count := 0
	for _, event := range events {
		if matchEvent(event, a) {
			count++
		}
	}

	if count != *a.Count {
		what := "events"
		if a.Op != "" {
			what = a.Op + " events"
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s for %s", *a.Count, what, a.Observer),
			Actual:   fmt.Sprintf("%d %s", count, what),
			Trace:    events,
		}
	}
	return nil
}

func matchEvent(event Event, a Assertion) bool {
	if a.Op != "" && event.Op != a.Op {
		return false
	}
	if a.Ref != "" && event.Ref != a.Ref {
		return false
	}
	return true
}

// assertFinalState queries the store and checks the matching records by
// count and, with subset semantics, by field values.
func (h *Harness) assertFinalState(ctx context.Context, a Assertion) error {
	ctor, err := h.constructor(a.Model)
	if err != nil {
		return err
	}
	p, err := predicate.FromClauses(a.Where)
	if err != nil {
		return err
	}

	recs, err := h.ds.QueryWhere(ctx, ctor, func(*predicate.Criteria) predicate.Predicate { return p })
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query %s where %s", a.Model, formatWhere(a.Where)),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	if a.Count != nil && len(recs) != *a.Count {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%d %s records where %s", *a.Count, a.Model, formatWhere(a.Where)),
			Actual:   fmt.Sprintf("%d records", len(recs)),
		}
	}
	if len(a.Expect) == 0 {
		return nil
	}
	if len(recs) == 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("a %s record where %s", a.Model, formatWhere(a.Where)),
			Actual:   "no record found",
		}
	}
	for _, rec := range recs {
		if msg := matchFields(rec, a.Expect); msg != "" {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s %s to match %v", a.Model, h.nameOf(rec), a.Expect),
				Actual:   msg,
			}
		}
	}
	return nil
}

func formatWhere(where []string) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	return strings.Join(where, " AND ")
}
