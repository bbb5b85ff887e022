package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gwlsn/shrinkherd/internal/jobs"
)

// DBName is the history database filename, kept under the output
// directory so the journal travels with the encoded files.
const DBName = ".shrinkherd-history.db"

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	output TEXT,
	status TEXT NOT NULL,
	message TEXT DEFAULT '',
	original_size INTEGER NOT NULL DEFAULT 0,
	output_size INTEGER NOT NULL DEFAULT 0,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_finished ON history(finished_at);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL,
	applied_at TEXT DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore implements Store on a local sqlite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Open creates or opens the history database under dir.
func Open(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	path := filepath.Join(dir, DBName)

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count); err == nil && count == 0 {
		_, _ = db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, schemaVersion)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// RecordBatch persists a batch of outcomes in a single transaction.
func (s *SQLiteStore) RecordBatch(outcomes []jobs.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO history (source, output, status, message, original_size, output_size, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, out := range outcomes {
		_, err := stmt.Exec(
			out.Source,
			out.Output,
			string(out.Status),
			out.Message,
			out.OrigSize,
			out.OutputSize,
			out.StartedAt.UTC().Format(time.RFC3339),
			out.FinishedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Recent returns the most recent entries, newest first.
func (s *SQLiteStore) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, source, output, status, message, original_size, output_size, started_at, finished_at
		FROM history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started, finished string
		if err := rows.Scan(&e.ID, &e.Source, &e.Output, &e.Status, &e.Message,
			&e.OrigSize, &e.OutputSize, &started, &finished); err != nil {
			return nil, err
		}
		e.StartedAt, _ = time.Parse(time.RFC3339, started)
		e.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Path returns the location of the backing database.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
