// Package trace stores garbage collection telemetry in SQLite. Each
// evaluated program becomes one run row plus one row per collection
// cycle, so reclamation behavior can be inspected after the fact.
package trace

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound indicates the requested run doesn't exist
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded program evaluation.
type Run struct {
	ID          string
	Program     string
	Result      string
	Steps       uint64
	Collections uint64
	Swept       int
	MaxLive     int
	StartedAt   time.Time
}

// Cycle is one garbage collection pass within a run. Seq starts at zero
// and increments per collection.
type Cycle struct {
	RunID    string
	Seq      uint64
	Marked   int
	Swept    int
	Live     int
	Duration time.Duration
}

// Store handles SQLite storage for runs and their collection cycles.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens the trace database at path, creating the schema if needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			program TEXT NOT NULL,
			result TEXT NOT NULL,
			steps INTEGER NOT NULL,
			collections INTEGER NOT NULL,
			swept INTEGER NOT NULL,
			max_live INTEGER NOT NULL,
			started_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS gc_cycles (
			run_id TEXT NOT NULL REFERENCES runs(id),
			seq INTEGER NOT NULL,
			marked INTEGER NOT NULL,
			swept INTEGER NOT NULL,
			live INTEGER NOT NULL,
			duration_ns INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating table: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RecordRun writes a run and its cycles in one transaction.
func (s *Store) RecordRun(run *Run, cycles []Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO runs (id, program, result, steps, collections, swept, max_live, started_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		run.ID, run.Program, run.Result, run.Steps, run.Collections, run.Swept, run.MaxLive, run.StartedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	for _, c := range cycles {
		_, err := tx.Exec(
			"INSERT INTO gc_cycles (run_id, seq, marked, swept, live, duration_ns) VALUES (?, ?, ?, ?, ?, ?)",
			run.ID, c.Seq, c.Marked, c.Swept, c.Live, c.Duration.Nanoseconds(),
		)
		if err != nil {
			return fmt.Errorf("saving cycle %d: %w", c.Seq, err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	var r Run
	var startedAt int64
	err := s.db.QueryRow(
		"SELECT id, program, result, steps, collections, swept, max_live, started_at FROM runs WHERE id = ?",
		id,
	).Scan(&r.ID, &r.Program, &r.Result, &r.Steps, &r.Collections, &r.Swept, &r.MaxLive, &startedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	r.StartedAt = time.Unix(0, startedAt)
	return &r, nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		"SELECT id, program, result, steps, collections, swept, max_live, started_at FROM runs ORDER BY started_at DESC, id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt int64
		if err := rows.Scan(&r.ID, &r.Program, &r.Result, &r.Steps, &r.Collections, &r.Swept, &r.MaxLive, &startedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = time.Unix(0, startedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CyclesFor returns all collection cycles recorded for a run, in order.
func (s *Store) CyclesFor(runID string) ([]Cycle, error) {
	rows, err := s.db.Query(
		"SELECT run_id, seq, marked, swept, live, duration_ns FROM gc_cycles WHERE run_id = ? ORDER BY seq",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying cycles: %w", err)
	}
	defer rows.Close()

	var cycles []Cycle
	for rows.Next() {
		var c Cycle
		var durationNs int64
		if err := rows.Scan(&c.RunID, &c.Seq, &c.Marked, &c.Swept, &c.Live, &durationNs); err != nil {
			return nil, fmt.Errorf("scanning cycle: %w", err)
		}
		c.Duration = time.Duration(durationNs)
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}
