// Package server exposes the read-only HTTP API over the stream engines.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/dice-oracle/internal/engine"
	"github.com/tjfontaine/dice-oracle/internal/journal"
)

// Options configures a Server.
type Options struct {
	Port     int
	Registry *engine.Registry
	// Journal is optional; without it the journal endpoint returns 404.
	Journal journal.Journal
	Logger  *slog.Logger
	Timeout time.Duration
}

type Server struct {
	router    *chi.Mux
	handler   http.Handler
	port      int
	registry  *engine.Registry
	journal   journal.Journal
	logger    *slog.Logger
	startTime time.Time

	httpServer *http.Server
	addr       net.Addr
}

// New builds the router. It does not listen until Start.
func New(opts Options) (*Server, error) {
	if opts.Registry == nil {
		return nil, errors.New("server requires a stream registry")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRequestTimeout
	}

	s := &Server{
		router:    chi.NewRouter(),
		port:      opts.Port,
		registry:  opts.Registry,
		journal:   opts.Journal,
		logger:    opts.Logger,
		startTime: time.Now(),
	}

	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(TimeoutMiddleware(opts.Timeout))
	s.router.Use(middleware.Recoverer)
	s.routes()

	s.handler = otelhttp.NewHandler(s.router, "dice-oracle",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))

	return s, nil
}

func (s *Server) routes() {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/api/history", s.handleHistory)
	s.router.Get("/api/stats", s.handleStats)
	s.router.Get("/api/journal/{stream}", s.handleJournal)
	s.router.Get("/api/{stream}", s.handleSnapshot)
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Start listens on the configured port and serves in the background.
// It returns once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.port, err)
	}

	s.addr = ln.Addr()
	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("starting server", slog.String("addr", ln.Addr().String()))
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
