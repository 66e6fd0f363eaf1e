package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Statuses an outreach draft moves through. Nothing is ever sent by the
// system itself; sent and replied are recorded manually.
const (
	OutreachStatusDraft    = "draft"
	OutreachStatusApproved = "approved"
	OutreachStatusSent     = "sent"
	OutreachStatusReplied  = "replied"
)

var outreachStatuses = map[string]struct{}{
	OutreachStatusDraft:    {},
	OutreachStatusApproved: {},
	OutreachStatusSent:     {},
	OutreachStatusReplied:  {},
}

// ValidOutreachStatus reports whether status names a known outreach status.
func ValidOutreachStatus(status string) bool {
	_, ok := outreachStatuses[status]
	return ok
}

// OutreachMessage is one drafted LinkedIn message tied to a job.
type OutreachMessage struct {
	ID                   int64  `json:"id"`
	JobID                int64  `json:"job_id"`
	ApplicationID        int64  `json:"application_id,omitempty"`
	RecipientName        string `json:"recipient_name"`
	RecipientTitle       string `json:"recipient_title,omitempty"`
	RecipientLinkedInURL string `json:"recipient_linkedin_url,omitempty"`
	RecipientType        string `json:"recipient_type,omitempty"`
	MessageType          string `json:"message_type"`
	MessageText          string `json:"message_text"`
	Status               string `json:"status"`
	ScheduledFor         string `json:"scheduled_for,omitempty"`
	SentAt               string `json:"sent_at,omitempty"`
	CreatedAt            string `json:"created_at"`
}

// SaveOutreach stores a drafted message and returns the new row id.
func (s *Store) SaveOutreach(ctx context.Context, msg *OutreachMessage) (int64, error) {
	status := msg.Status
	if status == "" {
		status = OutreachStatusDraft
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO outreach
  (job_id, application_id, recipient_name, recipient_title,
   recipient_linkedin_url, recipient_type, message_type, message_text, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		msg.JobID, nullableInt64(msg.ApplicationID), msg.RecipientName,
		nullableString(msg.RecipientTitle), nullableString(msg.RecipientLinkedInURL),
		nullableString(msg.RecipientType), msg.MessageType, msg.MessageText, status,
	)
	if err != nil {
		return 0, fmt.Errorf("insert outreach: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert outreach: %w", err)
	}

	return id, nil
}

// ListOutreachByJob returns every drafted message for a job, newest first.
func (s *Store) ListOutreachByJob(ctx context.Context, jobID int64) ([]OutreachMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, job_id, application_id, recipient_name, recipient_title,
       recipient_linkedin_url, recipient_type, message_type, message_text,
       status, scheduled_for, sent_at, created_at
  FROM outreach
 WHERE job_id = ?
 ORDER BY id DESC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list outreach: %w", err)
	}
	defer rows.Close()

	var messages []OutreachMessage
	for rows.Next() {
		var (
			msg          OutreachMessage
			appID        sql.NullInt64
			recipTitle   sql.NullString
			linkedin     sql.NullString
			recipType    sql.NullString
			scheduledFor sql.NullString
			sentAt       sql.NullString
		)

		err := rows.Scan(&msg.ID, &msg.JobID, &appID, &msg.RecipientName,
			&recipTitle, &linkedin, &recipType, &msg.MessageType,
			&msg.MessageText, &msg.Status, &scheduledFor, &sentAt, &msg.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan outreach: %w", err)
		}

		msg.ApplicationID = appID.Int64
		msg.RecipientTitle = recipTitle.String
		msg.RecipientLinkedInURL = linkedin.String
		msg.RecipientType = recipType.String
		msg.ScheduledFor = scheduledFor.String
		msg.SentAt = sentAt.String

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// UpdateOutreachStatus moves a drafted message to a new status. Moving to
// sent also stamps sent_at.
func (s *Store) UpdateOutreachStatus(ctx context.Context, id int64, status string) error {
	if !ValidOutreachStatus(status) {
		return fmt.Errorf("unknown outreach status %q", status)
	}

	query := `UPDATE outreach SET status = ? WHERE id = ?`
	if status == OutreachStatusSent {
		query = `UPDATE outreach SET status = ?, sent_at = datetime('now') WHERE id = ?`
	}

	res, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update outreach status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update outreach status: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("outreach %d: %w", id, ErrNotFound)
	}

	return nil
}

func nullableInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
