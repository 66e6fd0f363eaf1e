package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/jmorante/job-hunter/internal/outreach"
	"github.com/jmorante/job-hunter/internal/store"
	"github.com/jmorante/job-hunter/internal/tailoring"
)

type outreachRequest struct {
	JobID                int64  `json:"job_id"`
	RecipientName        string `json:"recipient_name"`
	RecipientTitle       string `json:"recipient_title"`
	RecipientLinkedInURL string `json:"recipient_linkedin_url,omitempty"`
	RecipientType        string `json:"recipient_type,omitempty"`
	MessageType          string `json:"message_type,omitempty"`
	AdditionalContext    string `json:"additional_context,omitempty"`
}

func (s *Server) handleDraftOutreach(w http.ResponseWriter, r *http.Request) {
	req := outreachRequest{
		RecipientType: "recruiter",
		MessageType:   outreach.TypeConnectionRequest,
	}
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.RecipientName == "" {
		s.errorResponse(w, http.StatusBadRequest, "Recipient name is required")
		return
	}
	if !outreach.ValidMessageType(req.MessageType) {
		s.errorResponse(w, http.StatusBadRequest,
			"Invalid message type. Must be one of: connection_request, follow_up, inmail")
		return
	}

	job, err := s.deps.Store.GetJob(r.Context(), req.JobID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if job == nil {
		s.errorResponse(w, http.StatusNotFound, "Job not found")
		return
	}

	// A stored application is optional context, never a requirement.
	app, err := s.deps.Store.GetApplicationByJobID(r.Context(), req.JobID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	var applicationID int64
	var summary string
	if app != nil {
		applicationID = app.ID
		summary = resumeSummary(app.TailoredResume)
	}

	message, err := s.deps.Outreach.Draft(r.Context(), outreach.Request{
		JobTitle:           job.Title,
		Company:            job.Company,
		RecipientName:      req.RecipientName,
		RecipientTitle:     req.RecipientTitle,
		MessageType:        req.MessageType,
		AdditionalContext:  req.AdditionalContext,
		ApplicationSummary: summary,
	})
	if err != nil {
		s.errorResponse(w, http.StatusBadGateway, "Outreach drafting failed: "+err.Error())
		return
	}

	outreachID, err := s.deps.Store.SaveOutreach(r.Context(), &store.OutreachMessage{
		JobID:                job.ID,
		ApplicationID:        applicationID,
		RecipientName:        req.RecipientName,
		RecipientTitle:       req.RecipientTitle,
		RecipientLinkedInURL: req.RecipientLinkedInURL,
		RecipientType:        req.RecipientType,
		MessageType:          req.MessageType,
		MessageText:          message,
	})
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"outreach_id": outreachID,
		"message":     message,
	})
}

func (s *Server) handleJobOutreach(w http.ResponseWriter, r *http.Request) {
	jobID, err := strconv.ParseInt(r.PathValue("job_id"), 10, 64)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	messages, err := s.deps.Store.ListOutreachByJob(r.Context(), jobID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"messages":           messages,
		"count":              len(messages),
		"follow_up_schedule": outreach.FollowUpSchedule(scheduleBase(messages)),
	})
}

// scheduleBase anchors the follow-up plan on the oldest sent message. With
// nothing sent yet the plan starts from now.
func scheduleBase(messages []store.OutreachMessage) time.Time {
	// Messages arrive newest first.
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].SentAt == "" {
			continue
		}
		sent, err := time.Parse("2006-01-02 15:04:05", messages[i].SentAt)
		if err != nil {
			continue
		}
		return sent
	}
	return time.Now()
}

func resumeSummary(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var resume tailoring.TailoredResume
	if err := json.Unmarshal(raw, &resume); err != nil {
		return ""
	}
	return resume.Summary
}
