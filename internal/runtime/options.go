package runtime

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/dice-oracle/internal/config"
	"github.com/tjfontaine/dice-oracle/internal/engine"
	"github.com/tjfontaine/dice-oracle/internal/journal"
)

// Option is a functional option for configuring an Oracle.
type Option func(*Oracle) error

// WithFileConfig loads configuration from path plus ORACLE_ env overrides.
func WithFileConfig(path string) Option {
	return func(o *Oracle) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		o.cfg = cfg
		return nil
	}
}

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(o *Oracle) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		o.cfg = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Oracle) error {
		o.logger = logger
		return nil
	}
}

// WithHTTPClient sets the client used for upstream requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Oracle) error {
		o.httpClient = c
		return nil
	}
}

// WithJournal overrides the journal selected by configuration. The caller
// keeps ownership and must close it.
func WithJournal(j journal.Journal) Option {
	return func(o *Oracle) error {
		o.journal = j
		o.journalSet = true
		return nil
	}
}

// WithConfidenceSource sets a factory called once per stream.
func WithConfidenceSource(newSource func() engine.ConfidenceSource) Option {
	return func(o *Oracle) error {
		o.newConfidence = newSource
		return nil
	}
}
