package serpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/jmorante/job-hunter/internal/search"
)

const resultsBody = `{
  "jobs_results": [
    {
      "title": "Senior Product Manager",
      "company_name": "Acme",
      "location": "Remote",
      "description": "Own the roadmap.",
      "link": "https://jobs.example.com/acme/pm",
      "apply_options": [
        {"title": "Apply on Acme", "link": "https://apply.example.com/acme/pm"}
      ],
      "detected_extensions": {"posted_at": "3 days ago", "schedule_type": "Full-time", "salary": "150K–180K a year"}
    },
    {
      "title": "Product Manager",
      "company_name": "Globex",
      "location": "New York, NY",
      "description": "",
      "link": "https://jobs.example.com/globex/pm"
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := New("test-key", zap.NewNop())
	client.APIURL = server.URL

	return client
}

func TestSearch(t *testing.T) {
	var gotQuery map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"engine":   q.Get("engine"),
			"q":        q.Get("q"),
			"location": q.Get("location"),
			"num":      q.Get("num"),
			"hl":       q.Get("hl"),
			"gl":       q.Get("gl"),
			"api_key":  q.Get("api_key"),
		}
		w.Write([]byte(resultsBody))
	})

	listings, err := client.Search(context.Background(), "product manager remote", 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := map[string]string{
		"engine":   "google_jobs",
		"q":        "product manager remote",
		"location": "United States",
		"num":      "10",
		"hl":       "en",
		"gl":       "us",
		"api_key":  "test-key",
	}
	for key, value := range want {
		if gotQuery[key] != value {
			t.Fatalf("expected query param %s=%q, got %q", key, value, gotQuery[key])
		}
	}

	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}

	first := listings[0]
	if first.Company != "Acme" {
		t.Fatalf("expected company Acme, got %q", first.Company)
	}
	if len(first.ApplyLinks) != 1 || first.ApplyLinks[0] != "https://apply.example.com/acme/pm" {
		t.Fatalf("unexpected apply links: %v", first.ApplyLinks)
	}
	if first.PostedDate != "3 days ago" {
		t.Fatalf("expected posted date from detected extensions, got %q", first.PostedDate)
	}
	if first.Source != Source {
		t.Fatalf("expected source %q, got %q", Source, first.Source)
	}
	if first.SalaryMin != 150000 || first.SalaryMax != 180000 {
		t.Fatalf("expected salary bounds 150000-180000, got %d-%d", first.SalaryMin, first.SalaryMax)
	}

	second := listings[1]
	if len(second.ApplyLinks) != 0 {
		t.Fatalf("expected no apply links, got %v", second.ApplyLinks)
	}
	if second.Raw == nil {
		t.Fatal("expected the raw result to be kept")
	}
}

func TestSearchAPIErrorBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "Google Jobs hasn't returned any results for this query."}`))
	})

	_, err := client.Search(context.Background(), "obscure query", 10)
	if err == nil {
		t.Fatal("expected an error from the error body")
	}

	var provErr *search.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected a *search.ProviderError, got %T", err)
	}
	if provErr.Query != "obscure query" {
		t.Fatalf("expected the failing query in the error, got %q", provErr.Query)
	}
}

func TestSearchBadStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	_, err := client.Search(context.Background(), "product manager", 10)

	var provErr *search.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected a *search.ProviderError, got %T", err)
	}
	if provErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", provErr.Status)
	}
}

func TestParseSalary(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantMin int
		wantMax int
	}{
		{"range with K suffix", "100K–120K a year", 100000, 120000},
		{"range with commas", "$95,000 - $110,000 a year", 95000, 110000},
		{"single amount", "85K a year", 85000, 85000},
		{"hourly ignored", "$30.41 an hour", 0, 0},
		{"empty", "", 0, 0},
		{"no numbers", "competitive a year", 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotMin, gotMax := parseSalary(tc.in)
			if gotMin != tc.wantMin || gotMax != tc.wantMax {
				t.Fatalf("parseSalary(%q) = %d, %d, want %d, %d", tc.in, gotMin, gotMax, tc.wantMin, tc.wantMax)
			}
		})
	}
}

func TestSearchDefaultsNum(t *testing.T) {
	var gotNum string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotNum = r.URL.Query().Get("num")
		w.Write([]byte(`{"jobs_results": []}`))
	})

	if _, err := client.Search(context.Background(), "product manager", 0); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotNum != "10" {
		t.Fatalf("expected default num 10, got %q", gotNum)
	}
}
