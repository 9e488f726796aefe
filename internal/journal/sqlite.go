package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/dice-oracle/internal/domain"
)

// SQLiteJournal stores entries in a SQLite database.
type SQLiteJournal struct {
	db *sql.DB
}

var _ Journal = (*SQLiteJournal)(nil)

// NewSQLite opens (or creates) the journal database at dbPath.
func NewSQLite(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Both pollers write; a single connection serializes them.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	j := &SQLiteJournal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS predictions (
			stream TEXT NOT NULL,
			session_id INTEGER NOT NULL,
			dice TEXT NOT NULL,
			total INTEGER NOT NULL,
			result TEXT NOT NULL,
			next_session INTEGER NOT NULL,
			prediction TEXT NOT NULL,
			confidence INTEGER NOT NULL,
			rationale TEXT NOT NULL,
			recorded_at INTEGER NOT NULL,
			PRIMARY KEY (stream, session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_recorded ON predictions(stream, recorded_at)`,
	}

	for _, stmt := range statements {
		if _, err := j.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (j *SQLiteJournal) Record(ctx context.Context, e Entry) error {
	query := `INSERT OR REPLACE INTO predictions
		(stream, session_id, dice, total, result, next_session, prediction, confidence, rationale, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := j.db.ExecContext(ctx, query,
		e.Stream, e.Session, e.Dice.String(), e.Total, string(e.Result),
		e.NextSession, string(e.Prediction), e.Confidence, e.Rationale,
		e.RecordedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record session %d: %w", e.Session, err)
	}
	return nil
}

func (j *SQLiteJournal) Recent(ctx context.Context, stream string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT stream, session_id, dice, total, result, next_session, prediction, confidence, rationale, recorded_at
		FROM predictions WHERE stream = ?
		ORDER BY recorded_at DESC, session_id DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, stream, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			dice       string
			result     string
			prediction string
			recordedAt int64
		)
		if err := rows.Scan(&e.Stream, &e.Session, &dice, &e.Total, &result,
			&e.NextSession, &prediction, &e.Confidence, &e.Rationale, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		if e.Dice, err = domain.ParseDice(dice); err != nil {
			return nil, err
		}
		e.Result = domain.Label(result)
		e.Prediction = domain.Label(prediction)
		e.RecordedAt = time.UnixMilli(recordedAt).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal rows: %w", err)
	}

	return out, nil
}

func (j *SQLiteJournal) Stats(ctx context.Context, stream string) (Stats, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(CASE WHEN p.prediction = o.result THEN 1 ELSE 0 END), 0)
		FROM predictions p
		JOIN predictions o ON o.stream = p.stream AND o.session_id = p.next_session
		WHERE p.stream = ?`

	var evaluated, hits int
	if err := j.db.QueryRowContext(ctx, query, stream).Scan(&evaluated, &hits); err != nil {
		return Stats{}, fmt.Errorf("failed to compute stats: %w", err)
	}
	return newStats(evaluated, hits), nil
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
