package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/jmorante/job-hunter/internal/ai"
	"github.com/jmorante/job-hunter/internal/discovery"
	"github.com/jmorante/job-hunter/internal/events"
	"github.com/jmorante/job-hunter/internal/outreach"
	"github.com/jmorante/job-hunter/internal/preferences"
	"github.com/jmorante/job-hunter/internal/search"
	"github.com/jmorante/job-hunter/internal/store"
	"github.com/jmorante/job-hunter/internal/tailoring"
)

type stubPipeline struct {
	result *discovery.Result
	err    error
	calls  int
}

func (p *stubPipeline) Run(ctx context.Context, prefs *preferences.PreferenceSet, progress discovery.ProgressFunc) (*discovery.Result, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if progress != nil {
		progress(discovery.Stage{Name: "search", Initial: len(prefs.SearchQueries), Left: p.result.Counters.Found})
	}
	return p.result, nil
}

type stubTailorAgent struct {
	result *tailoring.Result
	err    error
}

func (a *stubTailorAgent) Tailor(ctx context.Context, baseResume json.RawMessage, job tailoring.JobDetails) (*tailoring.Result, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

type stubOutreachAgent struct {
	message string
	err     error
	lastReq outreach.Request
}

func (a *stubOutreachAgent) Draft(ctx context.Context, req outreach.Request) (string, error) {
	a.lastReq = req
	if a.err != nil {
		return "", a.err
	}
	return a.message, nil
}

const testPreferences = `{
  "target_titles": ["Product Manager"],
  "search_queries": ["product manager remote", "senior product manager"],
  "discovery": {"exclude_keywords": ["office manager"]},
  "location": {"requirement": "remote_only", "dealbreakers": ["on-site"]},
  "compensation": {"minimum_base_salary": 150000},
  "company": {"preferred_sizes": ["startup"], "industries_preferred": ["saas"]},
  "scoring": {"weights": {"title_match": 0.4, "salary": 0.6}, "minimum_score_to_surface": 0.75}
}`

const testBaseResume = `{
  "contact": {"name": "Jamie Rivera", "email": "jamie@example.com"},
  "summary": "Product leader with eight years in B2B SaaS.",
  "experience": [{"id": "exp1", "title": "PM", "company": "Acme", "bullets": ["Shipped things"]}],
  "skills": ["roadmaps", "sql"]
}`

type testServer struct {
	*Server
	store    *store.Store
	pipeline *stubPipeline
	tailor   *stubTailorAgent
	drafter  *stubOutreachAgent
	hub      *events.Hub
	lockPath string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	prefsPath := filepath.Join(dir, "preferences.json")
	if err := os.WriteFile(prefsPath, []byte(testPreferences), 0o644); err != nil {
		t.Fatalf("writing preferences fixture: %v", err)
	}
	resumePath := filepath.Join(dir, "resume.json")
	if err := os.WriteFile(resumePath, []byte(testBaseResume), 0o644); err != nil {
		t.Fatalf("writing resume fixture: %v", err)
	}

	st, err := store.Open(filepath.Join(dir, "jobs.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ts := &testServer{
		store:    st,
		pipeline: &stubPipeline{result: &discovery.Result{}},
		tailor:   &stubTailorAgent{},
		drafter:  &stubOutreachAgent{message: "Hi Sam, your PM opening caught my eye."},
		hub:      events.NewHub(),
		lockPath: filepath.Join(dir, "discovery.lock"),
	}

	ts.Server = New(Config{
		Addr:            ":0",
		Version:         "test",
		PreferencesPath: prefsPath,
		ResumePath:      resumePath,
		LockPath:        ts.lockPath,
	}, Deps{
		Store:    st,
		Pipeline: ts.pipeline,
		Tailor:   ts.tailor,
		Outreach: ts.drafter,
		Hub:      ts.hub,
		Logger:   zap.NewNop(),
	})

	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
}

func scoredCandidate(title, url string, score float64) discovery.ScoredCandidate {
	return discovery.ScoredCandidate{
		Candidate: discovery.Candidate{
			Listing: search.Listing{
				Title:       title,
				Company:     "Acme",
				Location:    "Remote",
				Description: "Own the roadmap.",
				Link:        url,
				Source:      "google_jobs",
			},
			ExternalID: discovery.ExternalID(url),
			URL:        url,
		},
		Score: &ai.ScoreResult{
			OverallScore: score,
			Breakdown:    map[string]float64{"title_match": score},
		},
	}
}

func seedJob(t *testing.T, ts *testServer, title, url string, score float64) *store.Job {
	t.Helper()

	cand := scoredCandidate(title, url, score)
	if _, err := ts.store.InsertJob(context.Background(), cand); err != nil {
		t.Fatalf("seeding job: %v", err)
	}
	job, err := ts.store.GetJobByExternalID(context.Background(), cand.ExternalID)
	if err != nil {
		t.Fatalf("reading seeded job: %v", err)
	}
	if job == nil {
		t.Fatalf("seeded job %q not found", title)
	}
	return job
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]string
	decodeResponse(t, w, &resp)
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Fatalf("unexpected health payload: %v", resp)
	}
}

func TestGetPreferences(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/preferences", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var prefs preferences.PreferenceSet
	decodeResponse(t, w, &prefs)
	if len(prefs.SearchQueries) != 2 || prefs.Location.Requirement != "remote_only" {
		t.Fatalf("unexpected preferences payload: %+v", prefs)
	}
}

func TestGetResume(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/resume", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resume map[string]any
	decodeResponse(t, w, &resume)
	if resume["summary"] != "Product leader with eight years in B2B SaaS." {
		t.Fatalf("unexpected resume payload: %v", resume)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
