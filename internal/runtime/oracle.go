// Package runtime wires configuration, stream engines, pollers, the journal
// and the HTTP server into one lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/tjfontaine/dice-oracle/internal/classifier"
	"github.com/tjfontaine/dice-oracle/internal/config"
	"github.com/tjfontaine/dice-oracle/internal/correlator"
	"github.com/tjfontaine/dice-oracle/internal/engine"
	"github.com/tjfontaine/dice-oracle/internal/journal"
	"github.com/tjfontaine/dice-oracle/internal/poller"
	"github.com/tjfontaine/dice-oracle/internal/server"
	"github.com/tjfontaine/dice-oracle/internal/upstream"
)

// Oracle owns every stream and its poller plus the read API.
type Oracle struct {
	// Dependencies (injected via options)
	cfg           *config.Config
	logger        *slog.Logger
	httpClient    *http.Client
	journal       journal.Journal
	journalSet    bool
	newConfidence func() engine.ConfidenceSource

	// Built by New
	registry    *engine.Registry
	pollers     []*poller.Poller
	server      *server.Server
	ownsJournal bool

	// Lifecycle management
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// New builds an Oracle. Streams start empty; nothing runs until Start.
func New(opts ...Option) (*Oracle, error) {
	o := &Oracle{
		logger:     slog.Default(),
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if o.cfg == nil {
		return nil, errors.New("config required (use WithFileConfig or WithConfig)")
	}
	if o.newConfidence == nil {
		o.newConfidence = func() engine.ConfidenceSource { return engine.NewRandomConfidence() }
	}

	if !o.journalSet {
		j, err := openJournal(o.cfg.Journal)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		o.journal = j
		o.ownsJournal = j != nil
	}

	if err := o.buildStreams(); err != nil {
		o.closeJournal()
		return nil, err
	}

	srv, err := server.New(server.Options{
		Port:     o.cfg.Server.Port,
		Registry: o.registry,
		Journal:  o.journal,
		Logger:   o.logger,
	})
	if err != nil {
		o.closeJournal()
		return nil, fmt.Errorf("create server: %w", err)
	}
	o.server = srv

	return o, nil
}

func (o *Oracle) buildStreams() error {
	client := upstream.NewClient(o.cfg.Upstream.BaseURL, o.cfg.Upstream.PlatformID,
		upstream.WithHTTPClient(o.httpClient),
		upstream.WithUserAgent(o.cfg.Upstream.UserAgent),
		upstream.WithTimeout(o.cfg.Upstream.Timeout))

	model := classifier.Config{
		LearningRate: o.cfg.Model.LearningRate,
		L2:           o.cfg.Model.L2,
	}

	streams := make([]*engine.Stream, 0, len(o.cfg.Streams))
	for _, sc := range o.cfg.Streams {
		st := engine.NewStream(engine.Config{
			Name:        sc.Name,
			Tag:         o.cfg.Engine.Tag,
			HistorySize: o.cfg.Engine.HistorySize,
			Model:       model,
		}, engine.WithConfidenceSource(o.newConfidence()))
		streams = append(streams, st)

		logger := o.logger.With(slog.String("stream", sc.Name))
		corr, err := correlator.New(correlator.Config{
			Kind:      sc.Kind,
			IDCmd:     sc.IDCmd,
			ResultCmd: sc.ResultCmd,
		}, st, logger)
		if err != nil {
			return fmt.Errorf("stream %s: %w", sc.Name, err)
		}

		popts := []poller.Option{poller.WithLogger(o.logger)}
		if o.journal != nil {
			popts = append(popts, poller.WithJournal(o.journal))
		}
		p, err := poller.New(poller.Config{
			Stream:     sc.Name,
			GID:        sc.GID,
			Interval:   o.cfg.Poll.Interval,
			RetryDelay: o.cfg.Poll.RetryDelay,
		}, client, corr, popts...)
		if err != nil {
			return err
		}
		o.pollers = append(o.pollers, p)
	}

	reg, err := engine.NewRegistry(streams...)
	if err != nil {
		return fmt.Errorf("register streams: %w", err)
	}
	o.registry = reg
	return nil
}

func openJournal(cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "none":
		return nil, nil
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create journal dir: %w", err)
			}
		}
		return journal.NewSQLite(cfg.Path)
	default:
		return journal.NewMemory(cfg.MemoryLimit), nil
	}
}

// Start binds the HTTP listener and launches one supervised poller per stream.
func (o *Oracle) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cancel != nil {
		return errors.New("oracle already started")
	}

	if err := o.server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	for _, p := range o.pollers {
		o.wg.Add(1)
		go func(p *poller.Poller) {
			defer o.wg.Done()
			p.Supervise(runCtx)
		}(p)
	}

	o.logger.Info("oracle started",
		slog.String("addr", o.server.Addr().String()),
		slog.Int("streams", len(o.pollers)),
		slog.Bool("journal", o.journal != nil))
	return nil
}

// Shutdown stops the pollers and the HTTP server, then closes the journal
// if the Oracle opened it.
func (o *Oracle) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.logger.Info("shutting down oracle")

	if o.cancel != nil {
		o.cancel()
	}

	var errs []error
	if err := o.server.Shutdown(ctx); err != nil {
		o.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for pollers: %w", ctx.Err()))
	}

	if err := o.closeJournal(); err != nil {
		o.logger.Error("failed to close journal", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	o.logger.Info("oracle shutdown complete")
	return errors.Join(errs...)
}

func (o *Oracle) closeJournal() error {
	if !o.ownsJournal || o.journal == nil {
		return nil
	}
	o.ownsJournal = false
	return o.journal.Close()
}

// Registry exposes the stream engines.
func (o *Oracle) Registry() *engine.Registry {
	return o.registry
}

// Handler returns the read API without starting a listener.
func (o *Oracle) Handler() http.Handler {
	return o.server
}

// Addr is the bound HTTP address, or "" before Start.
func (o *Oracle) Addr() string {
	if a := o.server.Addr(); a != nil {
		return a.String()
	}
	return ""
}
