package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/jmorante/job-hunter/internal/store"
	"github.com/jmorante/job-hunter/internal/tailoring"
)

type tailorRequest struct {
	JobID       int64  `json:"job_id"`
	CompanyInfo string `json:"company_info,omitempty"`
}

func (s *Server) handleTailor(w http.ResponseWriter, r *http.Request) {
	var req tailorRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
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

	baseResume, err := tailoring.LoadBaseResume(s.cfg.ResumePath)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Base resume: "+err.Error())
		return
	}

	result, err := s.deps.Tailor.Tailor(r.Context(), baseResume, tailoring.JobDetails{
		Title:       job.Title,
		Company:     job.Company,
		Location:    job.Location,
		Description: job.Description,
		CompanyInfo: req.CompanyInfo,
	})
	if err != nil {
		s.errorResponse(w, http.StatusBadGateway, "Tailoring failed: "+err.Error())
		return
	}

	resumeJSON, err := json.Marshal(result.TailoredResume)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Encoding resume failed: "+err.Error())
		return
	}

	appID, err := s.deps.Store.SaveApplication(r.Context(), &store.Application{
		JobID:              job.ID,
		TailoredResume:     resumeJSON,
		CoverLetter:        result.CoverLetter,
		ATSScore:           result.ATSAnalysis.Score,
		ATSKeywordsMatched: result.ATSAnalysis.KeywordsMatched,
		ATSKeywordsMissing: result.ATSAnalysis.KeywordsMissing,
		TailoringNotes:     result.TailoringNotes,
	})
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"application_id":  appID,
		"tailored_resume": result.TailoredResume,
		"ats_analysis":    result.ATSAnalysis,
		"tailoring_notes": result.TailoringNotes,
		"cover_letter":    result.CoverLetter,
	})
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	app, ok := s.applicationFromPath(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, app)
}

// handleDownloadResume serves the stored tailored resume as plain text.
func (s *Server) handleDownloadResume(w http.ResponseWriter, r *http.Request) {
	app, ok := s.applicationFromPath(w, r)
	if !ok {
		return
	}

	var resume tailoring.TailoredResume
	if err := json.Unmarshal(app.TailoredResume, &resume); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Stored resume is unreadable: "+err.Error())
		return
	}

	filename := fmt.Sprintf("resume_job_%d.txt", app.JobID)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write([]byte(tailoring.RenderText(resume))); err != nil {
		s.logger.Warn("writing resume download failed", zap.Error(err))
	}
}

func (s *Server) applicationFromPath(w http.ResponseWriter, r *http.Request) (*store.Application, bool) {
	jobID, err := strconv.ParseInt(r.PathValue("job_id"), 10, 64)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID")
		return nil, false
	}

	app, err := s.deps.Store.GetApplicationByJobID(r.Context(), jobID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return nil, false
	}
	if app == nil {
		s.errorResponse(w, http.StatusNotFound, "No application found for this job")
		return nil, false
	}

	return app, true
}
