package journal

import (
	"context"
	"sync"
)

// DefaultMemoryLimit bounds the entries kept per stream by MemoryJournal.
const DefaultMemoryLimit = 1000

// MemoryJournal keeps the most recent entries of each stream in memory.
type MemoryJournal struct {
	mu      sync.RWMutex
	limit   int
	entries map[string][]Entry // oldest first
}

// NewMemory creates an in-memory journal holding at most limit entries per stream.
func NewMemory(limit int) *MemoryJournal {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &MemoryJournal{
		limit:   limit,
		entries: make(map[string][]Entry),
	}
}

func (m *MemoryJournal) Record(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.entries[e.Stream]
	if n := len(list); n > 0 && list[n-1].Session == e.Session {
		list[n-1] = e
		return nil
	}
	list = append(list, e)
	if len(list) > m.limit {
		list = append([]Entry(nil), list[len(list)-m.limit:]...)
	}
	m.entries[e.Stream] = list
	return nil
}

func (m *MemoryJournal) Recent(ctx context.Context, stream string, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.entries[stream]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	out := make([]Entry, 0, limit)
	for i := len(list) - 1; i >= len(list)-limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

func (m *MemoryJournal) Stats(ctx context.Context, stream string) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.entries[stream]
	results := make(map[int64]Entry, len(list))
	for _, e := range list {
		results[e.Session] = e
	}

	var evaluated, hits int
	for _, e := range list {
		target, ok := results[e.NextSession]
		if !ok {
			continue
		}
		evaluated++
		if target.Result == e.Prediction {
			hits++
		}
	}
	return newStats(evaluated, hits), nil
}

func (m *MemoryJournal) Close() error {
	return nil
}
