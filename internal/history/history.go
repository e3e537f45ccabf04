// Package history keeps a local SQLite log of past runs so each report can
// show the trend against the previous run of the same tool.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the run-history database.
type Store struct {
	conn *sql.DB
}

// Run is one recorded toolkit run.
type Run struct {
	ID        string
	Tool      string
	Hostname  string
	StartedAt time.Time
	Duration  string
	Score     float64
	OK        int
	Warning   int
	Critical  int
	ReportDir string
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		tool TEXT NOT NULL,
		hostname TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		duration TEXT NOT NULL,
		score REAL NOT NULL,
		ok_count INTEGER NOT NULL,
		warning_count INTEGER NOT NULL,
		critical_count INTEGER NOT NULL,
		report_dir TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_tool ON runs(tool);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Record inserts a completed run.
func (s *Store) Record(r Run) error {
	_, err := s.conn.Exec(`
		INSERT INTO runs (id, tool, hostname, started_at, duration, score,
			ok_count, warning_count, critical_count, report_dir)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Tool, r.Hostname, r.StartedAt.UTC(), r.Duration, r.Score,
		r.OK, r.Warning, r.Critical, r.ReportDir,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Last returns the most recent run of tool on hostname, or nil if none exists.
func (s *Store) Last(tool, hostname string) (*Run, error) {
	row := s.conn.QueryRow(`
		SELECT id, tool, hostname, started_at, duration, score,
			ok_count, warning_count, critical_count, report_dir
		FROM runs
		WHERE tool = ? AND hostname = ?
		ORDER BY started_at DESC
		LIMIT 1`,
		tool, hostname,
	)

	var r Run
	err := row.Scan(&r.ID, &r.Tool, &r.Hostname, &r.StartedAt, &r.Duration,
		&r.Score, &r.OK, &r.Warning, &r.Critical, &r.ReportDir)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last run: %w", err)
	}
	return &r, nil
}

// Recent returns up to limit most recent runs across all hosts. An empty
// tool matches every tool.
func (s *Store) Recent(tool string, limit int) ([]Run, error) {
	rows, err := s.conn.Query(`
		SELECT id, tool, hostname, started_at, duration, score,
			ok_count, warning_count, critical_count, report_dir
		FROM runs
		WHERE (? = '' OR tool = ?)
		ORDER BY started_at DESC
		LIMIT ?`,
		tool, tool, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Tool, &r.Hostname, &r.StartedAt, &r.Duration,
			&r.Score, &r.OK, &r.Warning, &r.Critical, &r.ReportDir); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.conn.Close()
}
