// Package sqlite persists the append-only run event log. Events are the
// durable record of a simulation; everything else is derivable by replay.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"info_arena/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	config TEXT NOT NULL DEFAULT '{}',
	started_at INTEGER NOT NULL,
	finished_at INTEGER NULL,
	rankings TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS events (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	round INTEGER NOT NULL,
	kind TEXT NOT NULL,
	agent TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL,
	PRIMARY KEY(run_id, seq),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_events_run_round ON events(run_id, round);
CREATE INDEX IF NOT EXISTS idx_events_run_kind ON events(run_id, kind);
`

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *Store) CreateRun(ctx context.Context, run domain.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	config := string(run.Config)
	if config == "" {
		config = "{}"
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs(id, config, started_at, finished_at, rankings)
		VALUES(?, ?, ?, NULL, '[]')`,
		run.ID, config, run.StartedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, runID string, rankings []domain.ScoreEntry) error {
	encoded, err := json.Marshal(rankings)
	if err != nil {
		return fmt.Errorf("marshal rankings: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE runs SET finished_at = ?, rankings = ? WHERE id = ?`,
		time.Now().UTC().Unix(), string(encoded), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (domain.Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, config, started_at, finished_at, rankings FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row.Scan)
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, config, started_at, finished_at, rankings
		FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return result, nil
}

// Append writes one event. The (run, seq) primary key rejects duplicate or
// reordered writes from a buggy producer instead of silently corrupting the
// log.
func (s *Store) Append(ctx context.Context, event domain.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	payload := string(event.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO events(run_id, seq, round, kind, agent, payload, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		event.RunID, event.Seq, event.Round, string(event.Kind), event.Agent,
		payload, event.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListEvents returns a run's events in sequence order, starting after
// afterSeq. Pass afterSeq 0 and limit 0 for the full log.
func (s *Store) ListEvents(ctx context.Context, runID string, afterSeq int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 10000
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT run_id, seq, round, kind, agent, payload, created_at
		FROM events
		WHERE run_id = ? AND seq > ?
		ORDER BY seq ASC
		LIMIT ?`,
		runID, afterSeq, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Event, 0, limit)
	for rows.Next() {
		var e domain.Event
		var kind string
		var payload string
		var created int64
		if err := rows.Scan(&e.RunID, &e.Seq, &e.Round, &kind, &e.Agent, &payload, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = domain.EventKind(kind)
		e.Payload = json.RawMessage(payload)
		e.CreatedAt = unixToTime(created)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return result, nil
}

func (s *Store) CountEvents(ctx context.Context, runID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE run_id = ?`, runID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func scanRun(scan func(dest ...any) error) (domain.Run, error) {
	var run domain.Run
	var config, rankings string
	var started int64
	var finished sql.NullInt64
	if err := scan(&run.ID, &config, &started, &finished, &rankings); err != nil {
		return domain.Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Config = json.RawMessage(config)
	run.StartedAt = unixToTime(started)
	run.FinishedAt = int64ToTimePtr(finished)
	if err := json.Unmarshal([]byte(rankings), &run.Rankings); err != nil {
		return domain.Run{}, fmt.Errorf("decode run rankings: %w", err)
	}
	return run, nil
}

func int64ToTimePtr(v sql.NullInt64) *time.Time {
	if !v.Valid || v.Int64 <= 0 {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func unixToTime(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}
