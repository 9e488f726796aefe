package engine

import (
	"fmt"

	"github.com/tjfontaine/dice-oracle/internal/domain"
)

// Registry holds the configured streams in configuration order.
type Registry struct {
	order   []*Stream
	streams map[string]*Stream
}

// NewRegistry indexes streams by name. Names must be unique and non-empty.
func NewRegistry(streams ...*Stream) (*Registry, error) {
	r := &Registry{
		streams: make(map[string]*Stream, len(streams)),
	}
	for _, s := range streams {
		if s.Name() == "" {
			return nil, fmt.Errorf("stream name cannot be empty")
		}
		if _, exists := r.streams[s.Name()]; exists {
			return nil, fmt.Errorf("stream %s registered twice", s.Name())
		}
		r.streams[s.Name()] = s
		r.order = append(r.order, s)
	}
	return r, nil
}

// Get looks up a stream by name.
func (r *Registry) Get(name string) (*Stream, error) {
	s, ok := r.streams[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrUnknownStream)
	}
	return s, nil
}

// All returns the streams in registration order.
func (r *Registry) All() []*Stream {
	out := make([]*Stream, len(r.order))
	copy(out, r.order)
	return out
}
