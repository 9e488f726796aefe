// Package engine drives one stream's prediction pipeline: it records each
// resolved session, trains the classifier on the label its previous
// prediction was waiting for, predicts the next session and publishes the
// result for readers.
package engine

import (
	"sync"
	"sync/atomic"

	"github.com/tjfontaine/dice-oracle/internal/classifier"
	"github.com/tjfontaine/dice-oracle/internal/domain"
	"github.com/tjfontaine/dice-oracle/internal/ensemble"
	"github.com/tjfontaine/dice-oracle/internal/features"
	"github.com/tjfontaine/dice-oracle/internal/history"
)

// Classifier is the online model a stream trains and queries.
type Classifier interface {
	ensemble.Predictor
	Train(x features.Vector, y float64)
}

// Config describes one stream.
type Config struct {
	Name        string
	Tag         string
	HistorySize int
	Model       classifier.Config
}

// StreamOption customizes a Stream.
type StreamOption func(*Stream)

// WithClassifier replaces the default logistic model.
func WithClassifier(c Classifier) StreamOption {
	return func(s *Stream) {
		s.model = c
	}
}

// WithConfidenceSource replaces the default random confidence source.
func WithConfidenceSource(src ConfidenceSource) StreamOption {
	return func(s *Stream) {
		s.confidence = src
	}
}

// pendingSample is the feature vector behind the last published prediction,
// held until the predicted session resolves.
type pendingSample struct {
	x       features.Vector
	session int64
}

// published is replaced wholesale on every resolution; its contents are
// never mutated after Store.
type published struct {
	snapshot domain.Snapshot
	history  []domain.Outcome
}

// Resolution reports what a single Resolve call did.
type Resolution struct {
	Outcome  domain.Outcome
	Snapshot domain.Snapshot
	Decision ensemble.Decision
	// Trained is set when a pending sample was consumed.
	Trained bool
	// TrainedFor is the session the consumed sample had predicted. It can
	// differ from Outcome.Session when sessions were skipped upstream.
	TrainedFor int64
}

// Stream owns all state for one game feed.
type Stream struct {
	name string
	tag  string

	mu         sync.Mutex
	history    *history.Store
	model      Classifier
	confidence ConfidenceSource
	pending    *pendingSample
	lastConf   int

	current atomic.Pointer[published]
}

// NewStream creates a stream with empty history and zero model weights.
func NewStream(cfg Config, opts ...StreamOption) *Stream {
	s := &Stream{
		name:    cfg.Name,
		tag:     cfg.Tag,
		history: history.New(cfg.HistorySize),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.model == nil {
		s.model = classifier.New(cfg.Model)
	}
	if s.confidence == nil {
		s.confidence = NewRandomConfidence()
	}
	s.current.Store(&published{snapshot: domain.EmptySnapshot(cfg.Tag)})
	return s
}

// Name returns the stream name.
func (s *Stream) Name() string {
	return s.name
}

// Resolve folds one resolved session into the stream and publishes the
// prediction for the session after it. The whole sequence runs under the
// stream lock; concurrent calls are serialized.
func (s *Stream) Resolve(session int64, dice domain.Dice) (Resolution, error) {
	outcome, err := domain.NewOutcome(session, dice)
	if err != nil {
		return Resolution{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.Push(outcome)
	res := Resolution{Outcome: outcome}

	// Train on the sample from the previous publish before predicting, so
	// the label just observed is the one that sample was waiting for.
	if s.pending != nil {
		s.model.Train(s.pending.x, outcome.Label.Binary())
		res.Trained = true
		res.TrainedFor = s.pending.session
		s.pending = nil
	}

	snap := s.history.Snapshot()
	decision := ensemble.Combine(snap, s.model)
	res.Decision = decision

	prev := s.current.Load().snapshot
	if session != prev.PreviousSession {
		s.lastConf = s.confidence.Draw()
	}

	// Single slot, replaced on every publish.
	s.pending = &pendingSample{x: decision.Features, session: session + 1}

	res.Snapshot = domain.Snapshot{
		PreviousSession: session,
		Dice:            dice.String(),
		Total:           outcome.Total,
		Result:          outcome.Label,
		NextSession:     session + 1,
		Prediction:      decision.Label,
		Confidence:      s.lastConf,
		Rationale:       decision.Explanation,
		Tag:             s.tag,
	}
	s.current.Store(&published{snapshot: res.Snapshot, history: snap})

	return res, nil
}

// Snapshot returns the latest published snapshot without blocking the writer.
func (s *Stream) Snapshot() domain.Snapshot {
	return s.current.Load().snapshot
}

// History returns the history as of the latest publish, most recent first.
func (s *Stream) History() []domain.Outcome {
	h := s.current.Load().history
	out := make([]domain.Outcome, len(h))
	copy(out, h)
	return out
}

// LastSession returns the most recently resolved session id, or 0.
func (s *Stream) LastSession() int64 {
	return s.current.Load().snapshot.PreviousSession
}
