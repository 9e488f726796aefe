// Package journal records every published prediction for later inspection.
// It is an append-only log: nothing in it is read back into engine state.
package journal

import (
	"context"
	"time"

	"github.com/tjfontaine/dice-oracle/internal/domain"
	"github.com/tjfontaine/dice-oracle/internal/engine"
)

// Entry is one published snapshot.
type Entry struct {
	Stream      string       `json:"stream"`
	Session     int64        `json:"session"`
	Dice        domain.Dice  `json:"dice"`
	Total       int          `json:"total"`
	Result      domain.Label `json:"result"`
	NextSession int64        `json:"next_session"`
	Prediction  domain.Label `json:"prediction"`
	Confidence  int          `json:"confidence"`
	Rationale   string       `json:"rationale"`
	RecordedAt  time.Time    `json:"recorded_at"`
}

// Stats scores predictions whose target session has also been recorded.
type Stats struct {
	Evaluated int     `json:"evaluated"`
	Hits      int     `json:"hits"`
	Accuracy  float64 `json:"accuracy"`
}

func newStats(evaluated, hits int) Stats {
	s := Stats{Evaluated: evaluated, Hits: hits}
	if evaluated > 0 {
		s.Accuracy = float64(hits) / float64(evaluated)
	}
	return s
}

// Journal stores entries per stream.
type Journal interface {
	Record(ctx context.Context, e Entry) error
	// Recent returns up to limit entries for stream, newest first.
	Recent(ctx context.Context, stream string, limit int) ([]Entry, error)
	Stats(ctx context.Context, stream string) (Stats, error)
	Close() error
}

// EntryFrom builds the journal entry for a resolution.
func EntryFrom(stream string, res engine.Resolution, at time.Time) Entry {
	return Entry{
		Stream:      stream,
		Session:     res.Outcome.Session,
		Dice:        res.Outcome.Dice,
		Total:       res.Outcome.Total,
		Result:      res.Outcome.Label,
		NextSession: res.Snapshot.NextSession,
		Prediction:  res.Snapshot.Prediction,
		Confidence:  res.Snapshot.Confidence,
		Rationale:   res.Snapshot.Rationale,
		RecordedAt:  at.UTC(),
	}
}
