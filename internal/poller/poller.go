// Package poller drives one stream: it fetches the upstream feed on a fixed
// cadence, hands each batch to the stream's correlator and journals every
// published snapshot.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/dice-oracle/internal/correlator"
	"github.com/tjfontaine/dice-oracle/internal/journal"
	"github.com/tjfontaine/dice-oracle/internal/upstream"
)

const (
	DefaultInterval   = 5 * time.Second
	DefaultRetryDelay = 5 * time.Second

	tracerName = "github.com/tjfontaine/dice-oracle/internal/poller"
)

// Fetcher retrieves one batch of events for a game id.
type Fetcher interface {
	Fetch(ctx context.Context, gid string) ([]upstream.Event, error)
}

// Processor correlates a batch into resolved sessions.
type Processor interface {
	Process(events []upstream.Event) correlator.Report
}

// Config names the stream and sets its cadence.
type Config struct {
	Stream     string
	GID        string
	Interval   time.Duration
	RetryDelay time.Duration
}

// Option configures a Poller.
type Option func(*Poller)

// WithJournal records every accepted session to j.
func WithJournal(j journal.Journal) Option {
	return func(p *Poller) {
		p.journal = j
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(p *Poller) {
		p.tracer = t
	}
}

// WithClock sets the time source used for journal timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		p.now = now
	}
}

// Poller runs the fetch, correlate, sleep loop for one stream.
type Poller struct {
	cfg       Config
	fetcher   Fetcher
	processor Processor
	journal   journal.Journal
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// New creates a poller. Zero durations fall back to the defaults.
func New(cfg Config, fetcher Fetcher, processor Processor, opts ...Option) (*Poller, error) {
	if cfg.Stream == "" || cfg.GID == "" {
		return nil, fmt.Errorf("poller requires a stream name and gid")
	}
	if fetcher == nil || processor == nil {
		return nil, fmt.Errorf("poller %s: fetcher and processor required", cfg.Stream)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	p := &Poller{
		cfg:       cfg,
		fetcher:   fetcher,
		processor: processor,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer(tracerName)
	}
	p.logger = p.logger.With(slog.String("stream", cfg.Stream))
	return p, nil
}

// Stream returns the stream name.
func (p *Poller) Stream() string {
	return p.cfg.Stream
}

// Poll runs a single cycle. Journal failures are logged and do not fail
// the cycle.
func (p *Poller) Poll(ctx context.Context) (correlator.Report, error) {
	ctx, span := p.tracer.Start(ctx, "poller.cycle", trace.WithAttributes(
		attribute.String("oracle.stream", p.cfg.Stream),
		attribute.String("oracle.gid", p.cfg.GID),
	))
	defer span.End()

	events, err := p.fetcher.Fetch(ctx, p.cfg.GID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return correlator.Report{}, err
	}

	report := p.processor.Process(events)
	span.SetAttributes(
		attribute.Int("oracle.events", len(events)),
		attribute.Int("oracle.accepted", len(report.Accepted)),
		attribute.Int("oracle.dropped", report.DroppedTotal()),
	)

	if p.journal != nil {
		for _, res := range report.Accepted {
			entry := journal.EntryFrom(p.cfg.Stream, res, p.now())
			if err := p.journal.Record(ctx, entry); err != nil {
				span.RecordError(err)
				p.logger.Warn("journal write failed",
					slog.Int64("session", entry.Session),
					slog.String("error", err.Error()))
			}
		}
	}

	return report, nil
}

// Run polls until ctx is cancelled. A failed cycle waits RetryDelay before
// the next attempt; a successful one waits Interval.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started",
		slog.String("gid", p.cfg.GID),
		slog.Duration("interval", p.cfg.Interval))

	for {
		delay := p.cfg.Interval
		if _, err := p.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Warn("poll failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", p.cfg.RetryDelay))
			delay = p.cfg.RetryDelay
		}
		if !wait(ctx, delay) {
			break
		}
	}

	p.logger.Info("poller stopped")
	return ctx.Err()
}

// Supervise runs the loop and restarts it after RetryDelay if it panics.
// It returns when ctx is cancelled.
func (p *Poller) Supervise(ctx context.Context) {
	for {
		err, panicked := p.runGuarded(ctx)
		if !panicked || ctx.Err() != nil {
			if err != nil && ctx.Err() == nil {
				p.logger.Error("poller exited", slog.String("error", err.Error()))
			}
			return
		}
		if !wait(ctx, p.cfg.RetryDelay) {
			return
		}
		p.logger.Info("restarting poller")
	}
}

func (p *Poller) runGuarded(ctx context.Context) (err error, panicked bool) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("poller panicked", slog.Any("panic", rec))
			err = fmt.Errorf("poller panic: %v", rec)
			panicked = true
		}
	}()
	return p.Run(ctx), false
}

// wait sleeps for d and reports false if ctx ended first.
func wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
