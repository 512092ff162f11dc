// Package journal keeps a local history of routing sessions in SQLite:
// one row per session plus per-intent final results. The journal is an
// observer — planning and execution never read it back, so the core
// pipeline stays stateless between sessions.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/gman622/qroute/internal/agent"
	"github.com/gman622/qroute/internal/profile"
)

// ErrNotFound is returned when a requested session does not exist.
var ErrNotFound = errors.New("session not found in journal")

// schema contains the DDL executed on first open. IF NOT EXISTS makes it
// safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id            TEXT PRIMARY KEY,
    project       TEXT NOT NULL DEFAULT '',
    started_at    TIMESTAMP NOT NULL,
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    intents       INTEGER NOT NULL DEFAULT 0,
    waves         INTEGER NOT NULL DEFAULT 0,
    passed        INTEGER NOT NULL DEFAULT 0,
    failed        INTEGER NOT NULL DEFAULT 0,
    human_review  INTEGER NOT NULL DEFAULT 0,
    verdict       TEXT NOT NULL DEFAULT '',
    score         REAL NOT NULL DEFAULT 0,
    cost          REAL NOT NULL DEFAULT 0,
    cancelled     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS results (
    session_id  TEXT NOT NULL REFERENCES sessions(id),
    intent_id   TEXT NOT NULL,
    profile     TEXT NOT NULL DEFAULT '',
    model       TEXT NOT NULL DEFAULT '',
    agent       TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT '',
    quality     REAL NOT NULL DEFAULT 0,
    tests_passed INTEGER NOT NULL DEFAULT 0,
    attempt     INTEGER NOT NULL DEFAULT 0,
    error       TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (session_id, intent_id)
);
`

// Session is one journalled run.
type Session struct {
	ID          string
	Project     string
	StartedAt   time.Time
	Duration    time.Duration
	Intents     int
	Waves       int
	Passed      int
	Failed      int
	HumanReview int
	Verdict     string
	Score       float64
	Cost        float64
	Cancelled   bool
}

// Journal is a SQLite-backed session store.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path, enables WAL mode
// and a busy timeout, and creates the schema.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}

	// Single connection: SQLite has one writer, and one connection means
	// the PRAGMAs below apply to every statement.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores a finished session and its final per-intent results in
// one transaction. Recording the same session id again replaces it.
func (j *Journal) Record(ctx context.Context, s Session, results []agent.Result) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal: begin: %w", err)
	}
	defer tx.Rollback()

	const upsert = `
		INSERT INTO sessions
			(id, project, started_at, duration_ms, intents, waves, passed, failed, human_review, verdict, score, cost, cancelled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project = excluded.project, started_at = excluded.started_at,
			duration_ms = excluded.duration_ms, intents = excluded.intents,
			waves = excluded.waves, passed = excluded.passed,
			failed = excluded.failed, human_review = excluded.human_review,
			verdict = excluded.verdict, score = excluded.score,
			cost = excluded.cost, cancelled = excluded.cancelled`
	if _, err := tx.ExecContext(ctx, upsert,
		s.ID, s.Project, s.StartedAt.UTC(), s.Duration.Milliseconds(),
		s.Intents, s.Waves, s.Passed, s.Failed, s.HumanReview,
		s.Verdict, s.Score, s.Cost, boolInt(s.Cancelled)); err != nil {
		return fmt.Errorf("journal: record session %s: %w", s.ID, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM results WHERE session_id = ?", s.ID); err != nil {
		return fmt.Errorf("journal: clear results for %s: %w", s.ID, err)
	}
	const insert = `
		INSERT INTO results
			(session_id, intent_id, profile, model, agent, status, quality, tests_passed, attempt, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, r := range results {
		if _, err := tx.ExecContext(ctx, insert,
			s.ID, r.IntentID, string(r.Profile), r.Model, r.Agent,
			string(r.Status), r.Quality, boolInt(r.TestsPassed), r.Attempt, r.ErrorMessage); err != nil {
			return fmt.Errorf("journal: record result %s/%s: %w", s.ID, r.IntentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal: commit: %w", err)
	}
	return nil
}

// Recent returns the most recent sessions, newest first, at most limit.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
		SELECT id, project, started_at, duration_ms, intents, waves, passed, failed, human_review, verdict, score, cost, cancelled
		FROM sessions ORDER BY started_at DESC, id LIMIT ?`
	rows, err := j.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var durationMS int64
		var cancelled int
		if err := rows.Scan(&s.ID, &s.Project, &s.StartedAt, &durationMS,
			&s.Intents, &s.Waves, &s.Passed, &s.Failed, &s.HumanReview,
			&s.Verdict, &s.Score, &s.Cost, &cancelled); err != nil {
			return nil, fmt.Errorf("journal: scan session: %w", err)
		}
		s.Duration = time.Duration(durationMS) * time.Millisecond
		s.Cancelled = cancelled != 0
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Results returns the stored per-intent results for a session, in intent
// id order.
func (j *Journal) Results(ctx context.Context, sessionID string) ([]agent.Result, error) {
	var exists int
	err := j.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM sessions WHERE id = ?", sessionID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("journal: check session %s: %w", sessionID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("journal: %w: %s", ErrNotFound, sessionID)
	}

	const q = `
		SELECT intent_id, profile, model, agent, status, quality, tests_passed, attempt, error
		FROM results WHERE session_id = ? ORDER BY intent_id`
	rows, err := j.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("journal: list results for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var results []agent.Result
	for rows.Next() {
		var r agent.Result
		var prof, status string
		var testsPassed int
		if err := rows.Scan(&r.IntentID, &prof, &r.Model, &r.Agent, &status,
			&r.Quality, &testsPassed, &r.Attempt, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("journal: scan result: %w", err)
		}
		r.Profile = profile.Profile(prof)
		r.Status = agent.Status(status)
		r.TestsPassed = testsPassed != 0
		results = append(results, r)
	}
	return results, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
