package runtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tjfontaine/dice-oracle/internal/config"
	"github.com/tjfontaine/dice-oracle/internal/domain"
	"github.com/tjfontaine/dice-oracle/internal/engine"
	"github.com/tjfontaine/dice-oracle/internal/journal"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFeed serves a split batch for vgmn_100 and a self-contained batch for
// vgmn_101, advancing the session on every request.
func fakeFeed(t *testing.T) *httptest.Server {
	t.Helper()
	var split, self atomic.Int64
	split.Store(5000)
	self.Store(9000)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("gid") {
		case "vgmn_100":
			sid := split.Add(1)
			w.Write([]byte(`{"status":"OK","data":[{"cmd":1008,"sid":` + itoa(sid) + `},{"cmd":1003,"d1":3,"d2":4,"d3":5}]}`))
		case "vgmn_101":
			sid := self.Add(1)
			w.Write([]byte(`{"status":"OK","data":[{"cmd":2006,"sid":` + itoa(sid) + `,"d1":1,"d2":2,"d3":2}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func itoa(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func testConfig(t *testing.T, feedURL string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Server.Port = 0
	cfg.Upstream.BaseURL = feedURL
	cfg.Poll.Interval = 5 * time.Millisecond
	cfg.Poll.RetryDelay = 5 * time.Millisecond
	cfg.Engine.Tag = "test-tag"
	return cfg
}

func TestOracle_New_RequiresConfig(t *testing.T) {
	_, err := New()
	if err == nil {
		t.Fatal("Expected error without config")
	}
	if !strings.Contains(err.Error(), "config required") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestOracle_New_InvalidConfig(t *testing.T) {
	cfg := testConfig(t, "http://unused")
	cfg.Journal.Type = "redis"
	if _, err := New(WithConfig(cfg)); err == nil {
		t.Error("Expected error for invalid journal type")
	}
}

func TestOracle_New_FileConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: 0
journal:
  type: sqlite
  path: ` + filepath.Join(dir, "data", "journal.db") + `
streams:
  - name: solo
    gid: vgmn_101
    kind: self
    result_cmd: 2006
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	o, err := New(WithFileConfig(path), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer o.Shutdown(context.Background())

	if _, err := o.Registry().Get("solo"); err != nil {
		t.Errorf("stream solo not registered: %v", err)
	}
	if _, err := o.Registry().Get("taixiu"); err == nil {
		t.Error("default streams should be replaced by configured ones")
	}
	if _, ok := o.journal.(*journal.SQLiteJournal); !ok {
		t.Errorf("journal = %T, want *journal.SQLiteJournal", o.journal)
	}
	if _, err := os.Stat(filepath.Join(dir, "data")); err != nil {
		t.Errorf("journal dir not created: %v", err)
	}
}

func TestOracle_StartPollsAndServes(t *testing.T) {
	feed := fakeFeed(t)
	mem := journal.NewMemory(0)

	o, err := New(
		WithConfig(testConfig(t, feed.URL)),
		WithLogger(quietLogger()),
		WithJournal(mem),
		WithConfidenceSource(func() engine.ConfidenceSource { return engine.FixedConfidence(66) }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := o.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		split, _ := o.Registry().Get("taixiu")
		self, _ := o.Registry().Get("taixiumd5")
		if split.LastSession() > 5002 && self.LastSession() > 9002 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("streams did not advance: taixiu=%d taixiumd5=%d", split.LastSession(), self.LastSession())
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Get("http://" + o.Addr() + "/api/taixiumd5")
	if err != nil {
		t.Fatalf("GET snapshot: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var snap domain.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.Dice != "1-2-2" || snap.Result != domain.LabelLow || snap.Confidence != 66 || snap.Tag != "test-tag" {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.NextSession != snap.PreviousSession+1 {
		t.Errorf("next_session = %d, previous = %d", snap.NextSession, snap.PreviousSession)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := o.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	entries, _ := mem.Recent(context.Background(), "taixiu", 0)
	if len(entries) < 2 {
		t.Errorf("journal has %d taixiu entries, want at least 2", len(entries))
	}
	// A caller-supplied journal stays open after shutdown.
	if err := mem.Record(context.Background(), journal.Entry{Stream: "x", Session: 1}); err != nil {
		t.Errorf("journal closed by Shutdown: %v", err)
	}
}

func TestOracle_JournalDisabled(t *testing.T) {
	cfg := testConfig(t, "http://unused")
	cfg.Journal.Type = "none"

	o, err := New(WithConfig(cfg), WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	o.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/journal/taixiu", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("journal status = %d, want 404", rec.Code)
	}
}
