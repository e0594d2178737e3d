package model

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// IdentitySource mints record identities.
type IdentitySource interface {
	// Random returns an identity for syncable models.
	Random() string

	// TimeOrdered returns an identity for non-syncable models that sorts
	// by creation time.
	TimeOrdered() string
}

// UUIDSource mints v4 UUIDs for syncable models and reordered v1 UUIDs
// for the rest.
//
// Thread-safety: UUIDSource is stateless and safe for concurrent use.
type UUIDSource struct{}

// Random returns a random v4 UUID.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDSource) Random() string {
	return uuid.Must(uuid.NewRandom()).String()
}

// TimeOrdered returns a v1 UUID rewritten by ReorderTimeUUID.
func (UUIDSource) TimeOrdered() string {
	return ReorderTimeUUID(uuid.Must(uuid.NewUUID()))
}

// ReorderTimeUUID rewrites a v1 UUID as
// time_hi-time_mid-time_low-clock_seq-node, so that ids compare in
// timestamp order.
//
// Format: "11f0a8e2-5c3d-6a1b7f20-9a4e-0242ac120002"
func ReorderTimeUUID(u uuid.UUID) string {
	p := strings.Split(u.String(), "-")
	return strings.Join([]string{p[2], p[1], p[0], p[3], p[4]}, "-")
}

// RestoreTimeOrderedID undoes ReorderTimeUUID and parses the result.
func RestoreTimeOrderedID(id string) (uuid.UUID, error) {
	p := strings.Split(id, "-")
	if len(p) != 5 || len(p[0]) != 4 || len(p[1]) != 4 || len(p[2]) != 8 || len(p[3]) != 4 || len(p[4]) != 12 {
		return uuid.UUID{}, fmt.Errorf("not a time-ordered id: %q", id)
	}
	return uuid.Parse(strings.Join([]string{p[2], p[1], p[0], p[3], p[4]}, "-"))
}

// FixedSource returns predetermined identities for testing.
//
// Thread-safety: FixedSource is safe for concurrent use via internal mutex.
type FixedSource struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedSource creates a source that returns ids in order, whichever
// strategy is asked for.
//
// Example:
//
//	src := NewFixedSource("post-1", "post-2")
//	src.Random()      // "post-1"
//	src.TimeOrdered() // "post-2"
//	src.Random()      // panic: all ids exhausted
func NewFixedSource(ids ...string) *FixedSource {
	return &FixedSource{ids: ids}
}

// Random returns the next predetermined id.
func (s *FixedSource) Random() string { return s.next() }

// TimeOrdered returns the next predetermined id.
func (s *FixedSource) TimeOrdered() string { return s.next() }

// next panics when the ids run out, so a test that creates more records
// than it planned for fails loudly.
func (s *FixedSource) next() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idx >= len(s.ids) {
		panic("FixedSource: all ids exhausted")
	}
	id := s.ids[s.idx]
	s.idx++
	return id
}
