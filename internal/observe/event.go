package observe

import (
	"fmt"

	"github.com/roach88/tessera/internal/model"
	"github.com/roach88/tessera/internal/predicate"
)

// OpType is the kind of change an event records.
type OpType int

const (
	// Insert records a save of a previously unknown identity.
	Insert OpType = iota + 1
	// Update records a save over an existing identity.
	Update
	// Delete records a removal.
	Delete
)

// String returns the upper-case operation name.
func (o OpType) String() string {
	switch o {
	case Insert:
		return "INSERT"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	default:
		return fmt.Sprintf("OpType(%d)", int(o))
	}
}

// ParseOpType resolves an operation name as returned by String.
func ParseOpType(s string) (OpType, bool) {
	for _, op := range []OpType{Insert, Update, Delete} {
		if op.String() == s {
			return op, true
		}
	}
	return 0, false
}

// ChangeEvent describes one committed change to one record.
//
// Seq is the commit-order logical clock value. ID is a content digest
// over model, record id, operation and Seq. For Delete events Element
// holds the record as it was stored before removal.
type ChangeEvent struct {
	ID      string
	Seq     int64
	Element *model.Record
	Model   *model.Constructor
	Op      OpType
}

// ModelName returns the name of the event's model.
func (e ChangeEvent) ModelName() string {
	if e.Model == nil {
		return e.Element.Model()
	}
	return e.Model.Name()
}

// Filter selects the events a subscription receives. The zero Filter
// matches everything. ID is only meaningful together with Model.
type Filter struct {
	Model     string
	ID        string
	Predicate predicate.Predicate
}

// Matches reports whether ev passes the filter.
func (f Filter) Matches(ev ChangeEvent) bool {
	if f.Model != "" && ev.ModelName() != f.Model {
		return false
	}
	if f.ID != "" && (ev.Element == nil || ev.Element.ID() != f.ID) {
		return false
	}
	if f.Predicate != nil && !predicate.IsMatchAll(f.Predicate) {
		if ev.Element == nil {
			return false
		}
		return predicate.Evaluate(f.Predicate, ev.Element.Fields())
	}
	return true
}
