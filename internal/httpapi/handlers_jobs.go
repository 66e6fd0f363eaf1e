package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/jmorante/job-hunter/internal/discovery"
	"github.com/jmorante/job-hunter/internal/events"
	"github.com/jmorante/job-hunter/internal/preferences"
	"github.com/jmorante/job-hunter/internal/store"
)

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	opts := store.ListJobsOptions{Status: r.URL.Query().Get("status")}

	if raw := r.URL.Query().Get("min_score"); raw != "" {
		minScore, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "Invalid min_score")
			return
		}
		opts.MinScore = &minScore
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			s.errorResponse(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		opts.Limit = limit
	}

	jobs, err := s.deps.Store.ListJobs(r.Context(), opts)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := s.deps.Store.GetJob(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if job == nil {
		s.errorResponse(w, http.StatusNotFound, "Job not found")
		return
	}

	s.jsonResponse(w, http.StatusOK, job)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateJobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	var req updateStatusRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !store.ValidJobStatus(req.Status) {
		s.errorResponse(w, http.StatusBadRequest,
			"Invalid status. Must be one of: new, reviewed, favorited, applied, rejected, archived")
		return
	}

	if err := s.deps.Store.UpdateJobStatus(r.Context(), id, req.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "Job not found")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleDiscover runs the full discovery pipeline. Discovery is single-flight
// across processes; the file lock is shared with the run command.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	locked, err := s.lock.TryLock()
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Lock error: "+err.Error())
		return
	}
	if !locked {
		s.errorResponse(w, http.StatusConflict, "A discovery run is already in progress")
		return
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("releasing discovery lock failed", zap.Error(err))
		}
	}()

	prefs, err := preferences.Load(s.cfg.PreferencesPath)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Preferences: "+err.Error())
		return
	}

	ctx := r.Context()
	runID, err := s.deps.Store.CreateRun(ctx)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	s.deps.Hub.Publish(events.Event{Type: events.TypeRunStarted, RunID: runID})

	progress := func(stage discovery.Stage) {
		s.deps.Hub.Publish(events.Event{Type: events.TypeStage, RunID: runID, Data: map[string]any{
			"name":    stage.Name,
			"initial": stage.Initial,
			"dropped": stage.Dropped,
			"left":    stage.Left,
		}})
	}

	result, err := s.deps.Pipeline.Run(ctx, prefs, progress)
	if err != nil {
		s.deps.Hub.Publish(events.Event{Type: events.TypeRunFinished, RunID: runID, Data: map[string]any{
			"error": err.Error(),
		}})
		s.errorResponse(w, http.StatusBadGateway, "Discovery failed: "+err.Error())
		return
	}

	saved := 0
	for _, job := range result.Jobs {
		inserted, err := s.deps.Store.InsertJob(ctx, job)
		if err != nil {
			s.logger.Warn("saving job failed",
				zap.String("external_id", job.ExternalID), zap.Error(err))
			continue
		}
		if inserted {
			saved++
		}
	}

	if err := s.deps.Store.FinishRun(ctx, runID, result.Counters, saved); err != nil {
		s.logger.Warn("finishing run record failed", zap.String("run_id", runID), zap.Error(err))
	}

	s.deps.Hub.Publish(events.Event{Type: events.TypeRunFinished, RunID: runID, Data: map[string]any{
		"surfaced": result.Counters.Surfaced,
		"saved":    saved,
	}})

	top := result.Jobs
	if len(top) > 5 {
		top = top[:5]
	}
	topJobs := make([]map[string]any, 0, len(top))
	for _, job := range top {
		topJobs = append(topJobs, map[string]any{
			"title":   job.Title,
			"company": job.Company,
			"score":   math.Round(job.Score.OverallScore*100) / 100,
		})
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"run_id":      runID,
		"found":       result.Counters.Found,
		"unique":      result.Counters.Unique,
		"prefiltered": result.Counters.Prefiltered,
		"scored":      result.Counters.Scored,
		"surfaced":    result.Counters.Surfaced,
		"saved":       saved,
		"top_jobs":    topJobs,
	})
}
