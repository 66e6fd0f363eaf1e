// Package store persists discovered jobs, tailored applications, outreach
// drafts and run summaries in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound marks updates that matched no row. Reads report a missing row
// as a nil result instead.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at path, creating it if needed, and applies
// pending migrations.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite wants a single writer. One connection also keeps the answers
	// of changes() on the connection that ran the insert.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  external_id TEXT UNIQUE,
  title TEXT NOT NULL,
  company TEXT NOT NULL,
  location TEXT,
  salary_min INTEGER,
  salary_max INTEGER,
  description TEXT,
  url TEXT NOT NULL,
  source TEXT,
  posted_date TEXT,
  score REAL,
  score_breakdown TEXT,
  status TEXT NOT NULL DEFAULT 'new',
  raw_data TEXT,
  discovered_at TEXT NOT NULL DEFAULT (datetime('now')),
  updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_score ON jobs(score DESC);`,
	`CREATE TABLE IF NOT EXISTS applications (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  job_id INTEGER NOT NULL REFERENCES jobs(id),
  tailored_resume TEXT,
  cover_letter TEXT,
  ats_score REAL,
  ats_keywords_matched TEXT,
  ats_keywords_missing TEXT,
  tailoring_notes TEXT,
  status TEXT NOT NULL DEFAULT 'draft',
  created_at TEXT NOT NULL DEFAULT (datetime('now')),
  submitted_at TEXT
);`,
	`CREATE INDEX IF NOT EXISTS idx_applications_job_id ON applications(job_id);`,
	`CREATE TABLE IF NOT EXISTS outreach (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  job_id INTEGER REFERENCES jobs(id),
  application_id INTEGER REFERENCES applications(id),
  recipient_name TEXT,
  recipient_title TEXT,
  recipient_linkedin_url TEXT,
  recipient_type TEXT,
  message_type TEXT,
  message_text TEXT,
  status TEXT NOT NULL DEFAULT 'draft',
  scheduled_for TEXT,
  sent_at TEXT,
  created_at TEXT NOT NULL DEFAULT (datetime('now'))
);`,
	`CREATE INDEX IF NOT EXISTS idx_outreach_job_id ON outreach(job_id);`,
	`CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  started_at TEXT NOT NULL DEFAULT (datetime('now')),
  finished_at TEXT,
  listings_found INTEGER NOT NULL DEFAULT 0,
  unique_candidates INTEGER NOT NULL DEFAULT 0,
  prefiltered INTEGER NOT NULL DEFAULT 0,
  scored INTEGER NOT NULL DEFAULT 0,
  surfaced INTEGER NOT NULL DEFAULT 0,
  saved INTEGER NOT NULL DEFAULT 0
);`,
}

func (s *Store) migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var version int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version >= 1 {
		return tx.Commit()
	}

	for _, stmt := range schemaV1 {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema v1: %w", err)
		}
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return fmt.Errorf("bump schema version: %w", err)
	}

	return tx.Commit()
}

// rowScanner lets one scan helper serve both QueryRow and Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
