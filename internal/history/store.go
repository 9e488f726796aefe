// Package history provides the bounded per-stream record of resolved sessions.
package history

import "github.com/tjfontaine/dice-oracle/internal/domain"

// DefaultCapacity is the number of sessions retained per stream.
const DefaultCapacity = 200

// Store is a fixed-capacity ring of outcomes. The newest outcome is the head;
// pushing into a full store evicts the oldest.
//
// Store is not safe for concurrent use. The stream engine owns it and
// serializes all access.
type Store struct {
	buf  []domain.Outcome
	head int // index of the newest entry
	size int
}

// New creates a store holding at most capacity outcomes.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		buf:  make([]domain.Outcome, capacity),
		head: -1,
	}
}

// Push inserts o as the most recent entry.
func (s *Store) Push(o domain.Outcome) {
	s.head = (s.head + 1) % len(s.buf)
	s.buf[s.head] = o
	if s.size < len(s.buf) {
		s.size++
	}
}

// Snapshot returns a copy of the retained outcomes, most recent first.
func (s *Store) Snapshot() []domain.Outcome {
	out := make([]domain.Outcome, s.size)
	for i := 0; i < s.size; i++ {
		idx := (s.head - i + len(s.buf)) % len(s.buf)
		out[i] = s.buf[idx]
	}
	return out
}

// Len returns the number of retained outcomes.
func (s *Store) Len() int {
	return s.size
}

// Cap returns the maximum number of retained outcomes.
func (s *Store) Cap() int {
	return len(s.buf)
}
