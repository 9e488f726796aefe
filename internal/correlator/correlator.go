// Package correlator turns raw feed batches into resolved sessions for a
// stream engine. It deduplicates redelivered results and, for feeds that
// announce the session id separately from the dice, pairs the two.
package correlator

import (
	"fmt"
	"log/slog"

	"github.com/tjfontaine/dice-oracle/internal/domain"
	"github.com/tjfontaine/dice-oracle/internal/engine"
	"github.com/tjfontaine/dice-oracle/internal/upstream"
)

// Resolver accepts a resolved session. *engine.Stream implements it.
type Resolver interface {
	Resolve(session int64, dice domain.Dice) (engine.Resolution, error)
}

// Config selects the correlation mode and the event codes it listens to.
type Config struct {
	Kind domain.StreamKind
	// IDCmd is the event code announcing the session id (split delivery only).
	IDCmd int
	// ResultCmd is the event code carrying the dice.
	ResultCmd int
}

// DropReason explains why an event was ignored.
type DropReason string

const (
	DropMissingSession DropReason = "missing_session"
	DropMissingDice    DropReason = "missing_dice"
	DropDuplicate      DropReason = "duplicate_session"
	DropRejected       DropReason = "rejected"
)

// Report summarizes one processed batch.
type Report struct {
	Accepted []engine.Resolution
	Dropped  map[DropReason]int
}

// DroppedTotal sums drops across reasons.
func (r Report) DroppedTotal() int {
	n := 0
	for _, c := range r.Dropped {
		n += c
	}
	return n
}

// Correlator is the per-stream state machine.
//
// Correlator is not safe for concurrent use; each stream's poller owns one.
type Correlator struct {
	cfg      Config
	resolver Resolver
	logger   *slog.Logger

	lastSession   int64
	cachedSession int64
}

// New creates a correlator feeding resolver.
func New(cfg Config, resolver Resolver, logger *slog.Logger) (*Correlator, error) {
	if !cfg.Kind.Valid() {
		return nil, fmt.Errorf("unknown stream kind %q", cfg.Kind)
	}
	if cfg.Kind == domain.StreamSplitDelivery && cfg.IDCmd == 0 {
		return nil, fmt.Errorf("split delivery requires an id event code")
	}
	if resolver == nil {
		return nil, fmt.Errorf("resolver required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{cfg: cfg, resolver: resolver, logger: logger}, nil
}

// Process handles one batch. Bad events are dropped individually and never
// stop the rest of the batch.
func (c *Correlator) Process(events []upstream.Event) Report {
	report := Report{Dropped: make(map[DropReason]int)}

	if c.cfg.Kind == domain.StreamSplitDelivery {
		for _, e := range events {
			if e.Cmd == c.cfg.IDCmd && e.Session() > 0 {
				c.cachedSession = e.Session()
			}
		}
	}

	for _, e := range events {
		if e.Cmd != c.cfg.ResultCmd {
			continue
		}

		session := e.Session()
		if c.cfg.Kind == domain.StreamSplitDelivery {
			session = c.cachedSession
		}

		if reason, ok := c.accept(session, e, &report); !ok {
			report.Dropped[reason]++
			c.logger.Debug("event dropped",
				slog.Int("cmd", e.Cmd),
				slog.Int64("session", session),
				slog.String("reason", string(reason)))
		}
	}

	return report
}

func (c *Correlator) accept(session int64, e upstream.Event, report *Report) (DropReason, bool) {
	if session <= 0 {
		return DropMissingSession, false
	}
	if session == c.lastSession {
		return DropDuplicate, false
	}
	dice, ok := e.Dice()
	if !ok {
		return DropMissingDice, false
	}

	res, err := c.resolver.Resolve(session, domain.Dice(dice))
	if err != nil {
		c.logger.Warn("session rejected",
			slog.Int64("session", session),
			slog.String("error", err.Error()))
		return DropRejected, false
	}

	c.lastSession = session
	c.cachedSession = 0
	report.Accepted = append(report.Accepted, res)

	c.logger.Info("session resolved",
		slog.Int64("session", session),
		slog.String("dice", res.Snapshot.Dice),
		slog.Int("total", res.Outcome.Total),
		slog.String("result", string(res.Outcome.Label)),
		slog.String("prediction", string(res.Snapshot.Prediction)),
		slog.Int("confidence", res.Snapshot.Confidence))

	if res.Trained && res.TrainedFor != session {
		c.logger.Debug("trained on sample predicted for another session",
			slog.Int64("predicted_for", res.TrainedFor),
			slog.Int64("session", session))
	}

	return "", true
}
