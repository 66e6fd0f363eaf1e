package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Statuses a tailored application moves through before and after submission.
const (
	ApplicationStatusDraft     = "draft"
	ApplicationStatusReady     = "ready"
	ApplicationStatusSubmitted = "submitted"
	ApplicationStatusConfirmed = "confirmed"
)

// Application is one set of tailored materials for a stored job. The newest
// application per job wins; older ones stay for history.
type Application struct {
	ID                 int64           `json:"id"`
	JobID              int64           `json:"job_id"`
	TailoredResume     json.RawMessage `json:"tailored_resume,omitempty"`
	CoverLetter        string          `json:"cover_letter,omitempty"`
	ATSScore           float64         `json:"ats_score"`
	ATSKeywordsMatched []string        `json:"ats_keywords_matched,omitempty"`
	ATSKeywordsMissing []string        `json:"ats_keywords_missing,omitempty"`
	TailoringNotes     string          `json:"tailoring_notes,omitempty"`
	Status             string          `json:"status"`
	CreatedAt          string          `json:"created_at"`
	SubmittedAt        string          `json:"submitted_at,omitempty"`
}

// SaveApplication stores tailored materials and returns the new row id.
func (s *Store) SaveApplication(ctx context.Context, app *Application) (int64, error) {
	matched, err := json.Marshal(app.ATSKeywordsMatched)
	if err != nil {
		return 0, fmt.Errorf("marshal matched keywords: %w", err)
	}
	missing, err := json.Marshal(app.ATSKeywordsMissing)
	if err != nil {
		return 0, fmt.Errorf("marshal missing keywords: %w", err)
	}

	status := app.Status
	if status == "" {
		status = ApplicationStatusDraft
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO applications
  (job_id, tailored_resume, cover_letter, ats_score, ats_keywords_matched,
   ats_keywords_missing, tailoring_notes, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
		app.JobID, string(app.TailoredResume), app.CoverLetter, app.ATSScore,
		string(matched), string(missing), app.TailoringNotes, status,
	)
	if err != nil {
		return 0, fmt.Errorf("insert application: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert application: %w", err)
	}

	return id, nil
}

// GetApplicationByJobID returns the most recent application for a job, or nil
// when none exists.
func (s *Store) GetApplicationByJobID(ctx context.Context, jobID int64) (*Application, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, job_id, tailored_resume, cover_letter, ats_score,
       ats_keywords_matched, ats_keywords_missing, tailoring_notes, status,
       created_at, submitted_at
  FROM applications
 WHERE job_id = ?
 ORDER BY id DESC
 LIMIT 1`, jobID)

	var (
		app         Application
		resume      sql.NullString
		coverLetter sql.NullString
		atsScore    sql.NullFloat64
		matched     sql.NullString
		missing     sql.NullString
		notes       sql.NullString
		submittedAt sql.NullString
	)

	err := row.Scan(&app.ID, &app.JobID, &resume, &coverLetter, &atsScore,
		&matched, &missing, &notes, &app.Status, &app.CreatedAt, &submittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}

	if resume.Valid && resume.String != "" {
		app.TailoredResume = json.RawMessage(resume.String)
	}
	app.CoverLetter = coverLetter.String
	app.ATSScore = atsScore.Float64
	app.TailoringNotes = notes.String
	app.SubmittedAt = submittedAt.String

	if err := unmarshalKeywords(matched, &app.ATSKeywordsMatched); err != nil {
		return nil, err
	}
	if err := unmarshalKeywords(missing, &app.ATSKeywordsMissing); err != nil {
		return nil, err
	}

	return &app, nil
}

func unmarshalKeywords(column sql.NullString, target *[]string) error {
	if !column.Valid || column.String == "" || column.String == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(column.String), target); err != nil {
		return fmt.Errorf("parse stored keywords: %w", err)
	}
	return nil
}
