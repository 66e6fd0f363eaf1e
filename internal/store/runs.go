package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jmorante/job-hunter/internal/discovery"
)

// Run records one discovery cycle: when it ran and what each stage yielded.
type Run struct {
	ID               string `json:"id"`
	StartedAt        string `json:"started_at"`
	FinishedAt       string `json:"finished_at,omitempty"`
	ListingsFound    int    `json:"listings_found"`
	UniqueCandidates int    `json:"unique_candidates"`
	Prefiltered      int    `json:"prefiltered"`
	Scored           int    `json:"scored"`
	Surfaced         int    `json:"surfaced"`
	Saved            int    `json:"saved"`
}

// CreateRun records the start of a discovery run and returns its id.
func (s *Store) CreateRun(ctx context.Context) (string, error) {
	id := uuid.NewString()

	if _, err := s.db.ExecContext(ctx, `INSERT INTO runs (id) VALUES (?);`, id); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	return id, nil
}

// FinishRun stamps a run's end time and stores its stage counters.
func (s *Store) FinishRun(ctx context.Context, id string, counters discovery.Counters, saved int) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE runs
   SET finished_at = datetime('now'),
       listings_found = ?, unique_candidates = ?, prefiltered = ?,
       scored = ?, surfaced = ?, saved = ?
 WHERE id = ?`,
		counters.Found, counters.Unique, counters.Prefiltered,
		counters.Scored, counters.Surfaced, saved, id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}

	return nil
}

// GetRun returns one run record, or nil when it does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, started_at, finished_at, listings_found, unique_candidates,
       prefiltered, scored, surfaced, saved
  FROM runs
 WHERE id = ?`, id)

	var (
		run        Run
		finishedAt sql.NullString
	)

	err := row.Scan(&run.ID, &run.StartedAt, &finishedAt, &run.ListingsFound,
		&run.UniqueCandidates, &run.Prefiltered, &run.Scored, &run.Surfaced, &run.Saved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	run.FinishedAt = finishedAt.String

	return &run, nil
}
