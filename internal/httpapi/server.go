// Package httpapi serves the job hunter REST API: job listings, discovery
// runs, resume tailoring, outreach drafting and a progress event stream.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/jmorante/job-hunter/internal/discovery"
	"github.com/jmorante/job-hunter/internal/events"
	"github.com/jmorante/job-hunter/internal/outreach"
	"github.com/jmorante/job-hunter/internal/preferences"
	"github.com/jmorante/job-hunter/internal/store"
	"github.com/jmorante/job-hunter/internal/tailoring"
)

// Pipeline runs one discovery pass over the configured search queries.
type Pipeline interface {
	Run(ctx context.Context, prefs *preferences.PreferenceSet, progress discovery.ProgressFunc) (*discovery.Result, error)
}

// TailoringAgent rewrites the base resume for one job.
type TailoringAgent interface {
	Tailor(ctx context.Context, baseResume json.RawMessage, job tailoring.JobDetails) (*tailoring.Result, error)
}

// OutreachAgent drafts one recruiter message.
type OutreachAgent interface {
	Draft(ctx context.Context, req outreach.Request) (string, error)
}

// Config holds the server listen address and the data files the handlers
// read on demand.
type Config struct {
	Addr            string
	Version         string
	PreferencesPath string
	ResumePath      string
	LockPath        string
}

// Deps are the collaborators the handlers dispatch to.
type Deps struct {
	Store    *store.Store
	Pipeline Pipeline
	Tailor   TailoringAgent
	Outreach OutreachAgent
	Hub      *events.Hub
	Logger   *zap.Logger
}

type Server struct {
	cfg        Config
	deps       Deps
	logger     *zap.Logger
	lock       *flock.Flock
	httpServer *http.Server
}

func New(cfg Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.LockPath == "" {
		cfg.LockPath = filepath.Join(os.TempDir(), "job-hunter-discovery.lock")
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger,
		lock:   flock.New(cfg.LockPath),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("POST /api/jobs/{id}/status", s.handleUpdateJobStatus)
	mux.HandleFunc("POST /api/jobs/discover", s.handleDiscover)

	mux.HandleFunc("POST /api/applications/tailor", s.handleTailor)
	mux.HandleFunc("GET /api/applications/{job_id}", s.handleGetApplication)
	mux.HandleFunc("GET /api/applications/{job_id}/download", s.handleDownloadResume)

	mux.HandleFunc("POST /api/outreach/draft", s.handleDraftOutreach)
	mux.HandleFunc("GET /api/outreach/{job_id}", s.handleJobOutreach)

	mux.HandleFunc("GET /api/preferences", s.handleGetPreferences)
	mux.HandleFunc("GET /api/resume", s.handleGetResume)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.withLogging(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // discovery runs call the search provider and the scoring model
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves requests until ctx is canceled, then drains in-flight
// requests before returning.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok", "version": s.cfg.Version})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, _ *http.Request) {
	prefs, err := preferences.Load(s.cfg.PreferencesPath)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Preferences: "+err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, prefs)
}

func (s *Server) handleGetResume(w http.ResponseWriter, _ *http.Request) {
	raw, err := tailoring.LoadBaseResume(s.cfg.ResumePath)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Base resume: "+err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, raw)
}

const maxRequestBody = 1 << 20

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	return json.NewDecoder(r.Body).Decode(dst)
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("encoding response failed", zap.Error(err))
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
