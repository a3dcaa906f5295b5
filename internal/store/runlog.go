package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const createRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  TEXT    NOT NULL,
	finished_at TEXT    NOT NULL,
	years       TEXT    NOT NULL,
	debug       INTEGER NOT NULL,
	playlists   INTEGER NOT NULL,
	extracted   INTEGER NOT NULL,
	retained    INTEGER NOT NULL,
	output_path TEXT    NOT NULL,
	error       TEXT    NOT NULL DEFAULT ''
)`

// Run is one pipeline execution as recorded in the ledger.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Years      []int
	Debug      bool
	Playlists  int
	Extracted  int
	Retained   int
	OutputPath string
	Error      string
}

// Succeeded reports whether the run finished without error.
func (r *Run) Succeeded() bool {
	return r.Error == ""
}

// RunLog is an append-only SQLite ledger of pipeline runs.
type RunLog struct {
	db *sql.DB
}

// OpenRunLog opens (creating if needed) the ledger at path. The path can be
// ":memory:" for an in-memory database.
func OpenRunLog(ctx context.Context, path string) (*RunLog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}

	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping run log: %w", err)
	}

	if _, err := db.ExecContext(ctx, createRunsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create runs table: %w", err)
	}

	return &RunLog{db: db}, nil
}

// Record appends run and returns its id.
func (l *RunLog) Record(ctx context.Context, run *Run) (int64, error) {
	debug := 0
	if run.Debug {
		debug = 1
	}

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (started_at, finished_at, years, debug, playlists, extracted, retained, output_path, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		joinYears(run.Years),
		debug,
		run.Playlists,
		run.Extracted,
		run.Retained,
		run.OutputPath,
		run.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	run.ID = id

	return id, nil
}

// Recent returns up to limit runs, newest first.
func (l *RunLog) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, years, debug, playlists, extracted, retained, output_path, error
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run               Run
			started, finished string
			years             string
			debug             int
		)
		if err := rows.Scan(&run.ID, &started, &finished, &years, &debug,
			&run.Playlists, &run.Extracted, &run.Retained, &run.OutputPath, &run.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("run %d has invalid start time: %w", run.ID, err)
		}
		if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("run %d has invalid finish time: %w", run.ID, err)
		}
		if run.Years, err = splitYears(years); err != nil {
			return nil, fmt.Errorf("run %d has invalid years: %w", run.ID, err)
		}
		run.Debug = debug != 0

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func (l *RunLog) Close() error {
	return l.db.Close()
}

func joinYears(years []int) string {
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = strconv.Itoa(y)
	}
	return strings.Join(parts, ",")
}

func splitYears(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	years := make([]int, 0, len(parts))
	for _, p := range parts {
		y, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, nil
}
