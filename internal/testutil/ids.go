package testutil

import (
	"fmt"
	"sync"
)

// SequentialSource mints "<prefix>-1", "<prefix>-2", ... for both
// identity strategies. It never runs out, so scenario runs can create
// any number of records and still produce byte-identical traces.
//
// Thread-safety: SequentialSource is safe for concurrent use via internal mutex.
type SequentialSource struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialSource creates a source. If prefix is empty, "rec" is used.
func NewSequentialSource(prefix string) *SequentialSource {
	if prefix == "" {
		prefix = "rec"
	}
	return &SequentialSource{prefix: prefix}
}

// Random returns the next id.
func (s *SequentialSource) Random() string { return s.next() }

// TimeOrdered returns the next id.
func (s *SequentialSource) TimeOrdered() string { return s.next() }

func (s *SequentialSource) next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}

// Reset restarts numbering at 1.
func (s *SequentialSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}
