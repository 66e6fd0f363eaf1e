// Package search defines the listing model and the provider contract the
// discovery pipeline fans out over.
package search

import (
	"context"
	"fmt"
)

// Listing is one raw job result returned by a search provider, before
// deduplication and scoring.
type Listing struct {
	Title       string         `json:"title"`
	Company     string         `json:"company"`
	Location    string         `json:"location"`
	Description string         `json:"description"`
	Link        string         `json:"link"`
	ApplyLinks  []string       `json:"apply_links,omitempty"`
	PostedDate  string         `json:"posted_date,omitempty"`
	SalaryMin   int            `json:"salary_min,omitempty"`
	SalaryMax   int            `json:"salary_max,omitempty"`
	Source      string         `json:"source"`
	Raw         map[string]any `json:"-"`
}

// Provider executes a single search query against an external jobs backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, num int) ([]Listing, error)
}

// ProviderError describes a failed provider call for one query. The pipeline
// logs these and keeps going with the other queries.
type ProviderError struct {
	Provider string
	Query    string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s query %q failed with status %d: %v", e.Provider, e.Query, e.Status, e.Err)
	}
	return fmt.Sprintf("%s query %q failed: %v", e.Provider, e.Query, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
