// Package store archives finished runs in sqlite so past answers can be
// listed and reloaded. The orchestration core does not depend on it.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/danhoughton/fanout"
)

// Store wraps a sqlite database holding runs and their per-agent results
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the archive at path. Use ":memory:" for
// an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			session_id   TEXT PRIMARY KEY,
			query        TEXT NOT NULL,
			final_answer TEXT NOT NULL,
			started_at   TEXT NOT NULL,
			duration_ms  INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS agent_results (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id  TEXT NOT NULL,
			agent_index INTEGER NOT NULL,
			subtask     TEXT NOT NULL,
			text        TEXT NOT NULL,
			error       TEXT NOT NULL,
			iterations  INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			FOREIGN KEY (session_id) REFERENCES runs(session_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("create agent_results table: %w", err)
	}
	return nil
}

// SaveRun persists a run and all its agent results in one transaction
func (s *Store) SaveRun(run *fanout.TaskRun) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (session_id, query, final_answer, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?);
	`, run.SessionID, run.Query, run.FinalAnswer,
		run.StartedAt.UTC().Format(time.RFC3339Nano), run.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, result := range run.Results {
		subtask := ""
		if result.AgentIndex < len(run.Subtasks) {
			subtask = run.Subtasks[result.AgentIndex]
		}
		_, err = tx.Exec(`
			INSERT INTO agent_results (session_id, agent_index, subtask, text, error, iterations, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?);
		`, run.SessionID, result.AgentIndex, subtask, result.Text, result.Err,
			result.Iterations, result.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("insert agent result %d: %w", result.AgentIndex, err)
		}
	}

	return tx.Commit()
}

// RunSummary is one row of the archive listing
type RunSummary struct {
	SessionID string
	Query     string
	StartedAt time.Time
	Duration  time.Duration
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT session_id, query, started_at, duration_ms
		FROM runs ORDER BY started_at DESC LIMIT ?;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var summary RunSummary
		var startedAt string
		var durationMs int64
		if err := rows.Scan(&summary.SessionID, &summary.Query, &startedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		summary.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		summary.Duration = time.Duration(durationMs) * time.Millisecond
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// LoadRun reloads one archived run with its agent results ordered by index
func (s *Store) LoadRun(sessionID string) (*fanout.TaskRun, error) {
	run := &fanout.TaskRun{SessionID: sessionID}

	var startedAt string
	var durationMs int64
	err := s.db.QueryRow(`
		SELECT query, final_answer, started_at, duration_ms
		FROM runs WHERE session_id = ?;
	`, sessionID).Scan(&run.Query, &run.FinalAnswer, &startedAt, &durationMs)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", sessionID, err)
	}
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	run.Duration = time.Duration(durationMs) * time.Millisecond

	rows, err := s.db.Query(`
		SELECT agent_index, subtask, text, error, iterations, duration_ms
		FROM agent_results WHERE session_id = ? ORDER BY agent_index;
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load agent results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var result fanout.AgentResult
		var subtask string
		var resultMs int64
		if err := rows.Scan(&result.AgentIndex, &subtask, &result.Text, &result.Err,
			&result.Iterations, &resultMs); err != nil {
			return nil, fmt.Errorf("scan agent result: %w", err)
		}
		result.Duration = time.Duration(resultMs) * time.Millisecond
		run.Results = append(run.Results, result)
		run.Subtasks = append(run.Subtasks, subtask)
	}
	return run, rows.Err()
}

// Close releases the underlying database handle
func (s *Store) Close() error {
	return s.db.Close()
}
