package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmorante/job-hunter/internal/ai"
	"github.com/jmorante/job-hunter/internal/discovery"
	"github.com/jmorante/job-hunter/internal/search"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func candidateFixture(title, url string, score float64) discovery.ScoredCandidate {
	return discovery.ScoredCandidate{
		Candidate: discovery.Candidate{
			Listing: search.Listing{
				Title:       title,
				Company:     "Acme",
				Location:    "Remote",
				Description: "Own the roadmap.",
				Link:        url,
				Source:      "google_jobs",
				SalaryMin:   150000,
				SalaryMax:   180000,
				Raw:         map[string]any{"title": title},
			},
			ExternalID: discovery.ExternalID(url),
			URL:        url,
		},
		Score: &ai.ScoreResult{
			OverallScore: score,
			Breakdown:    map[string]float64{"title_match": 0.9},
			Reasoning:    "solid fit",
		},
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	_ = second.Close()
}

func TestInsertJobIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	candidate := candidateFixture("Senior PM", "https://jobs.example.com/1", 0.91)

	inserted, err := s.InsertJob(ctx, candidate)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if !inserted {
		t.Fatal("expected the first insert to report true")
	}

	inserted, err = s.InsertJob(ctx, candidate)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Fatal("expected the duplicate insert to report false")
	}

	jobs, err := s.ListJobs(ctx, ListJobsOptions{})
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected a single stored job, got %d", len(jobs))
	}
}

func TestInsertJobPersistsFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	candidate := candidateFixture("Senior PM", "https://jobs.example.com/2", 0.87)
	if _, err := s.InsertJob(ctx, candidate); err != nil {
		t.Fatalf("inserting: %v", err)
	}

	job, err := s.GetJobByExternalID(ctx, candidate.ExternalID)
	if err != nil {
		t.Fatalf("getting: %v", err)
	}
	if job == nil {
		t.Fatal("expected the job to exist")
	}

	if job.Title != "Senior PM" || job.Company != "Acme" {
		t.Fatalf("unexpected job fields: %+v", job)
	}
	if job.URL != candidate.URL {
		t.Fatalf("expected url %q, got %q", candidate.URL, job.URL)
	}
	if job.Score != 0.87 {
		t.Fatalf("expected score 0.87, got %v", job.Score)
	}
	if job.ScoreBreakdown["title_match"] != 0.9 {
		t.Fatalf("unexpected breakdown: %v", job.ScoreBreakdown)
	}
	if job.Status != StatusNew {
		t.Fatalf("expected status %q, got %q", StatusNew, job.Status)
	}
	if job.SalaryMin != 150000 || job.SalaryMax != 180000 {
		t.Fatalf("unexpected salary bounds: %d-%d", job.SalaryMin, job.SalaryMax)
	}
	if job.DiscoveredAt == "" || job.UpdatedAt == "" {
		t.Fatal("expected timestamps to be set")
	}
}

func TestListJobsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fixtures := []discovery.ScoredCandidate{
		candidateFixture("Best", "https://jobs.example.com/a", 0.95),
		candidateFixture("Middle", "https://jobs.example.com/b", 0.8),
		candidateFixture("Low", "https://jobs.example.com/c", 0.5),
	}
	for _, f := range fixtures {
		if _, err := s.InsertJob(ctx, f); err != nil {
			t.Fatalf("inserting %q: %v", f.Title, err)
		}
	}

	jobs, err := s.ListJobs(ctx, ListJobsOptions{})
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	if jobs[0].Title != "Best" || jobs[2].Title != "Low" {
		t.Fatalf("expected descending score order, got %q .. %q", jobs[0].Title, jobs[2].Title)
	}

	minScore := 0.79
	jobs, err = s.ListJobs(ctx, ListJobsOptions{MinScore: &minScore})
	if err != nil {
		t.Fatalf("listing with min score: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs above 0.79, got %d", len(jobs))
	}

	if err := s.UpdateJobStatus(ctx, jobs[0].ID, StatusFavorited); err != nil {
		t.Fatalf("updating status: %v", err)
	}
	jobs, err = s.ListJobs(ctx, ListJobsOptions{Status: StatusFavorited})
	if err != nil {
		t.Fatalf("listing by status: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != StatusFavorited {
		t.Fatalf("expected the favorited job, got %+v", jobs)
	}

	jobs, err = s.ListJobs(ctx, ListJobsOptions{Limit: 1})
	if err != nil {
		t.Fatalf("listing with limit: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected the limit to apply, got %d", len(jobs))
	}
}

func TestGetJobMissing(t *testing.T) {
	s := newTestStore(t)

	job, err := s.GetJob(context.Background(), 12345)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil for a missing job, got %+v", job)
	}
}

func TestUpdateJobStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertJob(ctx, candidateFixture("PM", "https://jobs.example.com/s", 0.9)); err != nil {
		t.Fatalf("inserting: %v", err)
	}
	jobs, err := s.ListJobs(ctx, ListJobsOptions{})
	if err != nil || len(jobs) != 1 {
		t.Fatalf("listing: %v (%d jobs)", err, len(jobs))
	}

	if err := s.UpdateJobStatus(ctx, jobs[0].ID, StatusApplied); err != nil {
		t.Fatalf("updating: %v", err)
	}
	job, err := s.GetJob(ctx, jobs[0].ID)
	if err != nil {
		t.Fatalf("getting: %v", err)
	}
	if job.Status != StatusApplied {
		t.Fatalf("expected status %q, got %q", StatusApplied, job.Status)
	}

	if err := s.UpdateJobStatus(ctx, jobs[0].ID, "bogus"); err == nil {
		t.Fatal("expected an error for an unknown status")
	}

	err = s.UpdateJobStatus(ctx, 99999, StatusArchived)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing job, got %v", err)
	}
}

func TestCountJobsByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, url := range []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"} {
		if _, err := s.InsertJob(ctx, candidateFixture("PM", url, 0.9)); err != nil {
			t.Fatalf("inserting %d: %v", i, err)
		}
	}
	jobs, _ := s.ListJobs(ctx, ListJobsOptions{})
	if err := s.UpdateJobStatus(ctx, jobs[0].ID, StatusRejected); err != nil {
		t.Fatalf("updating: %v", err)
	}

	counts, err := s.CountJobsByStatus(ctx)
	if err != nil {
		t.Fatalf("counting: %v", err)
	}
	if counts[StatusNew] != 2 || counts[StatusRejected] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestApplications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertJob(ctx, candidateFixture("PM", "https://jobs.example.com/app", 0.9)); err != nil {
		t.Fatalf("inserting job: %v", err)
	}
	jobs, _ := s.ListJobs(ctx, ListJobsOptions{})
	jobID := jobs[0].ID

	missing, err := s.GetApplicationByJobID(ctx, jobID)
	if err != nil {
		t.Fatalf("getting missing application: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil before any application is saved")
	}

	app := &Application{
		JobID:              jobID,
		TailoredResume:     []byte(`{"summary": "Seasoned PM."}`),
		CoverLetter:        "Dear team,",
		ATSScore:           0.82,
		ATSKeywordsMatched: []string{"roadmap", "stakeholders"},
		ATSKeywordsMissing: []string{"OKRs"},
		TailoringNotes:     "Emphasized platform work.",
	}
	id, err := s.SaveApplication(ctx, app)
	if err != nil {
		t.Fatalf("saving: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a row id")
	}

	got, err := s.GetApplicationByJobID(ctx, jobID)
	if err != nil {
		t.Fatalf("getting: %v", err)
	}
	if got == nil {
		t.Fatal("expected the application to exist")
	}
	if got.Status != ApplicationStatusDraft {
		t.Fatalf("expected default status draft, got %q", got.Status)
	}
	if got.ATSScore != 0.82 {
		t.Fatalf("expected ats score 0.82, got %v", got.ATSScore)
	}
	if len(got.ATSKeywordsMatched) != 2 || got.ATSKeywordsMatched[0] != "roadmap" {
		t.Fatalf("unexpected matched keywords: %v", got.ATSKeywordsMatched)
	}
	if string(got.TailoredResume) != `{"summary": "Seasoned PM."}` {
		t.Fatalf("unexpected stored resume: %s", got.TailoredResume)
	}

	// A second application becomes the current one.
	later := &Application{JobID: jobID, CoverLetter: "Updated letter"}
	if _, err := s.SaveApplication(ctx, later); err != nil {
		t.Fatalf("saving second: %v", err)
	}
	got, err = s.GetApplicationByJobID(ctx, jobID)
	if err != nil {
		t.Fatalf("getting latest: %v", err)
	}
	if got.CoverLetter != "Updated letter" {
		t.Fatalf("expected the newest application, got %q", got.CoverLetter)
	}
}

func TestOutreach(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertJob(ctx, candidateFixture("PM", "https://jobs.example.com/out", 0.9)); err != nil {
		t.Fatalf("inserting job: %v", err)
	}
	jobs, _ := s.ListJobs(ctx, ListJobsOptions{})
	jobID := jobs[0].ID

	first := &OutreachMessage{
		JobID:          jobID,
		RecipientName:  "Jordan Smith",
		RecipientTitle: "Recruiter",
		RecipientType:  "recruiter",
		MessageType:    "connection_request",
		MessageText:    "Hi Jordan, I saw the Senior PM opening.",
	}
	firstID, err := s.SaveOutreach(ctx, first)
	if err != nil {
		t.Fatalf("saving: %v", err)
	}

	second := &OutreachMessage{
		JobID:         jobID,
		RecipientName: "Sam Lee",
		MessageType:   "inmail",
		MessageText:   "Hello Sam,",
	}
	if _, err := s.SaveOutreach(ctx, second); err != nil {
		t.Fatalf("saving second: %v", err)
	}

	messages, err := s.ListOutreachByJob(ctx, jobID)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].RecipientName != "Sam Lee" {
		t.Fatalf("expected newest first, got %q", messages[0].RecipientName)
	}
	if messages[1].Status != OutreachStatusDraft {
		t.Fatalf("expected default status draft, got %q", messages[1].Status)
	}

	if err := s.UpdateOutreachStatus(ctx, firstID, OutreachStatusSent); err != nil {
		t.Fatalf("updating: %v", err)
	}
	messages, _ = s.ListOutreachByJob(ctx, jobID)
	for _, msg := range messages {
		if msg.ID == firstID {
			if msg.Status != OutreachStatusSent {
				t.Fatalf("expected status sent, got %q", msg.Status)
			}
			if msg.SentAt == "" {
				t.Fatal("expected sent_at to be stamped")
			}
		}
	}

	if err := s.UpdateOutreachStatus(ctx, firstID, "bogus"); err == nil {
		t.Fatal("expected an error for an unknown status")
	}
	if err := s.UpdateOutreachStatus(ctx, 99999, OutreachStatusApproved); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateRun(ctx)
	if err != nil {
		t.Fatalf("creating: %v", err)
	}
	if id == "" {
		t.Fatal("expected a run id")
	}

	run, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("getting: %v", err)
	}
	if run == nil || run.StartedAt == "" {
		t.Fatalf("expected a started run, got %+v", run)
	}
	if run.FinishedAt != "" {
		t.Fatalf("expected an unfinished run, got %q", run.FinishedAt)
	}

	counters := discovery.Counters{Found: 20, Unique: 15, Prefiltered: 12, Scored: 11, Surfaced: 4}
	if err := s.FinishRun(ctx, id, counters, 3); err != nil {
		t.Fatalf("finishing: %v", err)
	}

	run, err = s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("getting finished: %v", err)
	}
	if run.FinishedAt == "" {
		t.Fatal("expected finished_at to be stamped")
	}
	if run.ListingsFound != 20 || run.UniqueCandidates != 15 || run.Surfaced != 4 || run.Saved != 3 {
		t.Fatalf("unexpected run counters: %+v", run)
	}

	if err := s.FinishRun(ctx, "unknown-run", counters, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	missing, err := s.GetRun(ctx, "unknown-run")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for a missing run, got %+v", missing)
	}
}
