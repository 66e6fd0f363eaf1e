package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmorante/job-hunter/internal/discovery"
)

// Statuses a stored job can move through. A job starts as new; every later
// transition is user-driven.
const (
	StatusNew       = "new"
	StatusReviewed  = "reviewed"
	StatusFavorited = "favorited"
	StatusApplied   = "applied"
	StatusRejected  = "rejected"
	StatusArchived  = "archived"
)

var jobStatuses = map[string]struct{}{
	StatusNew:       {},
	StatusReviewed:  {},
	StatusFavorited: {},
	StatusApplied:   {},
	StatusRejected:  {},
	StatusArchived:  {},
}

// ValidJobStatus reports whether status names a known job status.
func ValidJobStatus(status string) bool {
	_, ok := jobStatuses[status]
	return ok
}

// Job is a persisted, scored job listing.
type Job struct {
	ID             int64              `json:"id"`
	ExternalID     string             `json:"external_id"`
	Title          string             `json:"title"`
	Company        string             `json:"company"`
	Location       string             `json:"location,omitempty"`
	SalaryMin      int                `json:"salary_min,omitempty"`
	SalaryMax      int                `json:"salary_max,omitempty"`
	Description    string             `json:"description,omitempty"`
	URL            string             `json:"url"`
	Source         string             `json:"source,omitempty"`
	PostedDate     string             `json:"posted_date,omitempty"`
	Score          float64            `json:"score"`
	ScoreBreakdown map[string]float64 `json:"score_breakdown,omitempty"`
	Status         string             `json:"status"`
	DiscoveredAt   string             `json:"discovered_at"`
	UpdatedAt      string             `json:"updated_at"`
}

// InsertJob stores one scored candidate. The insert is idempotent on
// external_id: a job stored by an earlier run stays untouched and InsertJob
// reports false.
func (s *Store) InsertJob(ctx context.Context, c discovery.ScoredCandidate) (bool, error) {
	breakdown, err := json.Marshal(c.Score.Breakdown)
	if err != nil {
		return false, fmt.Errorf("marshal score breakdown: %w", err)
	}

	raw, err := json.Marshal(c.Raw)
	if err != nil {
		return false, fmt.Errorf("marshal raw listing: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO jobs
  (external_id, title, company, location, salary_min, salary_max,
   description, url, source, posted_date, score, score_breakdown, raw_data)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		c.ExternalID, c.Title, c.Company, nullableString(c.Location),
		nullableInt(c.SalaryMin), nullableInt(c.SalaryMax),
		nullableString(c.Description), c.URL, c.Source, nullableString(c.PostedDate),
		c.Score.OverallScore, string(breakdown), string(raw),
	)
	if err != nil {
		return false, fmt.Errorf("insert job: %w", err)
	}

	// changes() answers on the connection that ran the insert; the pool is
	// pinned to a single connection.
	var changes int
	if err := s.db.QueryRowContext(ctx, `SELECT changes();`).Scan(&changes); err != nil {
		return false, fmt.Errorf("read insert outcome: %w", err)
	}

	return changes > 0, nil
}

const selectJob = `
SELECT id, external_id, title, company, location, salary_min, salary_max,
       description, url, source, posted_date, score, score_breakdown, status,
       discovered_at, updated_at
  FROM jobs`

// ListJobsOptions narrows a job listing. Zero values mean no constraint;
// Limit falls back to a sane default.
type ListJobsOptions struct {
	Status   string
	MinScore *float64
	Limit    int
}

const defaultListLimit = 50

// ListJobs returns stored jobs, best score first, newest first on ties.
func (s *Store) ListJobs(ctx context.Context, opts ListJobsOptions) ([]Job, error) {
	query := selectJob + ` WHERE 1=1`
	args := []any{}

	if opts.Status != "" {
		query += ` AND status = ?`
		args = append(args, opts.Status)
	}
	if opts.MinScore != nil {
		query += ` AND score >= ?`
		args = append(args, *opts.MinScore)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` ORDER BY score DESC, discovered_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	return jobs, rows.Err()
}

// GetJob returns the job with the given id, or nil when it does not exist.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, selectJob+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// GetJobByExternalID returns the job with the given dedup key, or nil when it
// does not exist.
func (s *Store) GetJobByExternalID(ctx context.Context, externalID string) (*Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, selectJob+` WHERE external_id = ?`, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// UpdateJobStatus moves a job to a new status.
func (s *Store) UpdateJobStatus(ctx context.Context, id int64, status string) error {
	if !ValidJobStatus(status) {
		return fmt.Errorf("unknown job status %q", status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = datetime('now') WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d: %w", id, ErrNotFound)
	}

	return nil
}

// CountJobsByStatus reports how many jobs sit in each status.
func (s *Store) CountJobsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("count jobs: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job       Job
		location  sql.NullString
		salaryMin sql.NullInt64
		salaryMax sql.NullInt64
		desc      sql.NullString
		source    sql.NullString
		posted    sql.NullString
		score     sql.NullFloat64
		breakdown sql.NullString
	)

	err := row.Scan(&job.ID, &job.ExternalID, &job.Title, &job.Company, &location,
		&salaryMin, &salaryMax, &desc, &job.URL, &source, &posted, &score,
		&breakdown, &job.Status, &job.DiscoveredAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}

	job.Location = location.String
	job.SalaryMin = int(salaryMin.Int64)
	job.SalaryMax = int(salaryMax.Int64)
	job.Description = desc.String
	job.Source = source.String
	job.PostedDate = posted.String
	job.Score = score.Float64

	if breakdown.Valid && breakdown.String != "" && breakdown.String != "null" {
		if err := json.Unmarshal([]byte(breakdown.String), &job.ScoreBreakdown); err != nil {
			return nil, fmt.Errorf("parse stored score breakdown: %w", err)
		}
	}

	return &job, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
