package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/dice-oracle/internal/domain"
	"github.com/tjfontaine/dice-oracle/internal/journal"
)

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 1000
)

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JournalResponse is returned by /api/journal/{stream}.
type JournalResponse struct {
	Stream  string          `json:"stream"`
	Stats   journal.Stats   `json:"stats"`
	Entries []journal.Entry `json:"entries"`
}

// StatsResponse is returned by /api/stats.
type StatsResponse struct {
	Uptime       string           `json:"uptime"`
	GoVersion    string           `json:"go_version"`
	NumGoroutine int              `json:"num_goroutine"`
	Streams      map[string]int64 `json:"last_sessions"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	b.WriteString("dice-oracle is running\n\n")
	for _, st := range s.registry.All() {
		fmt.Fprintf(&b, "GET /api/%s\n", st.Name())
	}
	b.WriteString("GET /api/history\n")
	if s.journal != nil {
		b.WriteString("GET /api/journal/{stream}?limit=n\n")
	}
	b.WriteString("GET /api/stats\nGET /healthz\n")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(b.String()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "stream")
	AddLogField(r.Context(), "stream", name)

	st, err := s.registry.Get(name)
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, st.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	out := make(map[string][]domain.Outcome)
	for _, st := range s.registry.All() {
		out[st.Name()] = st.History()
	}
	writeJSON(w, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := StatsResponse{
		Uptime:       time.Since(s.startTime).Round(time.Second).String(),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		Streams:      make(map[string]int64),
	}
	for _, st := range s.registry.All() {
		stats.Streams[st.Name()] = st.LastSession()
	}
	writeJSON(w, stats)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "stream")
	AddLogField(r.Context(), "stream", name)

	if s.journal == nil {
		writeError(w, http.StatusNotFound, domain.ErrJournalDisabled.Error())
		return
	}
	if _, err := s.registry.Get(name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	entries, err := s.journal.Recent(ctx, name, limit)
	if err != nil {
		AddError(ctx, err)
		writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	stats, err := s.journal.Stats(ctx, name)
	if err != nil {
		AddError(ctx, err)
		writeError(w, http.StatusInternalServerError, "failed to read journal stats")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}

	writeJSON(w, JournalResponse{Stream: name, Stats: stats, Entries: entries})
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultJournalLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > maxJournalLimit {
		n = maxJournalLimit
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}
