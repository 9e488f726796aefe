package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/dice-oracle/internal/domain"
	"github.com/tjfontaine/dice-oracle/internal/engine"
	"github.com/tjfontaine/dice-oracle/internal/journal"
)

type fixture struct {
	server  *Server
	split   *engine.Stream
	self    *engine.Stream
	journal *journal.MemoryJournal
}

func newFixture(t *testing.T, withJournal bool) *fixture {
	t.Helper()

	split := engine.NewStream(engine.Config{Name: "taixiu", Tag: "oracle"},
		engine.WithConfidenceSource(engine.FixedConfidence(73)))
	self := engine.NewStream(engine.Config{Name: "taixiumd5", Tag: "oracle"},
		engine.WithConfidenceSource(engine.FixedConfidence(81)))
	reg, err := engine.NewRegistry(split, self)
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{split: split, self: self}
	opts := Options{
		Registry: reg,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if withJournal {
		f.journal = journal.NewMemory(0)
		opts.Journal = f.journal
	}

	f.server, err = New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

func TestHandleSnapshot_Empty(t *testing.T) {
	f := newFixture(t, false)

	rec := f.get(t, "/api/taixiu")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var raw map[string]any
	decode(t, rec, &raw)
	for _, key := range []string{"previous_session", "dice", "total", "result", "next_session", "prediction", "confidence", "rationale", "id"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("snapshot missing key %q", key)
		}
	}
	if raw["dice"] != "0-0-0" || raw["id"] != "oracle" {
		t.Errorf("empty snapshot = %v", raw)
	}
}

func TestHandleSnapshot_AfterResolve(t *testing.T) {
	f := newFixture(t, false)
	if _, err := f.self.Resolve(500, domain.Dice{6, 5, 4}); err != nil {
		t.Fatal(err)
	}

	var snap domain.Snapshot
	decode(t, f.get(t, "/api/taixiumd5"), &snap)

	if snap.PreviousSession != 500 || snap.NextSession != 501 {
		t.Errorf("sessions = %d/%d, want 500/501", snap.PreviousSession, snap.NextSession)
	}
	if snap.Dice != "6-5-4" || snap.Total != 15 || snap.Result != domain.LabelHigh {
		t.Errorf("outcome fields = %+v", snap)
	}
	if snap.Confidence != 81 || snap.Rationale == "" {
		t.Errorf("prediction fields = %+v", snap)
	}
	if snap.Prediction != domain.LabelHigh && snap.Prediction != domain.LabelLow {
		t.Errorf("prediction = %q", snap.Prediction)
	}

	// The other stream is untouched.
	var other domain.Snapshot
	decode(t, f.get(t, "/api/taixiu"), &other)
	if other.PreviousSession != 0 {
		t.Errorf("taixiu previous_session = %d, want 0", other.PreviousSession)
	}
}

func TestHandleSnapshot_UnknownStream(t *testing.T) {
	f := newFixture(t, false)

	rec := f.get(t, "/api/roulette")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body ErrorResponse
	decode(t, rec, &body)
	if !strings.Contains(body.Error, "roulette") {
		t.Errorf("error = %q", body.Error)
	}
}

func TestHandleHistory(t *testing.T) {
	f := newFixture(t, false)
	for i, d := range []domain.Dice{{1, 1, 2}, {6, 6, 6}, {3, 4, 5}} {
		if _, err := f.split.Resolve(int64(100+i), d); err != nil {
			t.Fatal(err)
		}
	}

	var got map[string][]domain.Outcome
	decode(t, f.get(t, "/api/history"), &got)

	if len(got["taixiumd5"]) != 0 {
		t.Errorf("taixiumd5 history = %v, want empty", got["taixiumd5"])
	}
	h := got["taixiu"]
	if len(h) != 3 {
		t.Fatalf("taixiu history len = %d, want 3", len(h))
	}
	if h[0].Session != 102 || h[0].Dice != (domain.Dice{3, 4, 5}) || h[0].Total != 12 || h[0].Label != domain.LabelHigh {
		t.Errorf("most recent = %+v", h[0])
	}
	if h[2].Session != 100 || h[2].Label != domain.LabelLow {
		t.Errorf("oldest = %+v", h[2])
	}
}

func TestHandleHistory_EmptyIsArray(t *testing.T) {
	f := newFixture(t, false)
	rec := f.get(t, "/api/history")
	if !strings.Contains(rec.Body.String(), `"taixiu":[]`) {
		t.Errorf("body = %s, want empty arrays", rec.Body.String())
	}
}

func TestHandleJournal(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	for i, d := range []domain.Dice{{1, 2, 3}, {5, 5, 5}, {2, 2, 2}} {
		res, err := f.split.Resolve(int64(10+i), d)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.journal.Record(ctx, journal.EntryFrom("taixiu", res, now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}

	rec := f.get(t, "/api/journal/taixiu?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp JournalResponse
	decode(t, rec, &resp)
	if resp.Stream != "taixiu" || len(resp.Entries) != 2 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Entries[0].Session != 12 {
		t.Errorf("newest entry = %d, want 12", resp.Entries[0].Session)
	}
	if resp.Stats.Evaluated != 2 {
		t.Errorf("evaluated = %d, want 2", resp.Stats.Evaluated)
	}
}

func TestHandleJournal_Errors(t *testing.T) {
	tests := []struct {
		name        string
		withJournal bool
		path        string
		want        int
	}{
		{"disabled", false, "/api/journal/taixiu", http.StatusNotFound},
		{"unknown stream", true, "/api/journal/roulette", http.StatusNotFound},
		{"bad limit", true, "/api/journal/taixiu?limit=abc", http.StatusBadRequest},
		{"zero limit", true, "/api/journal/taixiu?limit=0", http.StatusBadRequest},
		{"empty journal", true, "/api/journal/taixiumd5", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.withJournal)
			rec := f.get(t, tt.path)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", defaultJournalLimit, false},
		{"7", 7, false},
		{"5000", maxJournalLimit, false},
		{"-1", 0, true},
		{"x", 0, true},
	}
	for _, tt := range tests {
		got, err := parseLimit(tt.raw)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseLimit(%q) = %d, %v", tt.raw, got, err)
		}
	}
}

func TestHandleIndexAndHealth(t *testing.T) {
	f := newFixture(t, true)

	rec := f.get(t, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("index status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"/api/taixiu", "/api/taixiumd5", "/api/history", "/api/journal/"} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q:\n%s", want, body)
		}
	}

	rec = f.get(t, "/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestHandleStats(t *testing.T) {
	f := newFixture(t, false)
	if _, err := f.self.Resolve(77, domain.Dice{1, 2, 3}); err != nil {
		t.Fatal(err)
	}

	var stats StatsResponse
	decode(t, f.get(t, "/api/stats"), &stats)
	if stats.Streams["taixiumd5"] != 77 || stats.Streams["taixiu"] != 0 {
		t.Errorf("last_sessions = %v", stats.Streams)
	}
	if stats.GoVersion == "" {
		t.Error("go_version empty")
	}
}

func TestServer_NotFoundAndMethods(t *testing.T) {
	f := newFixture(t, false)

	if rec := f.get(t, "/nope/deeper"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/taixiu", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
}

func TestNew_RequiresRegistry(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error without registry")
	}
}
