// Package discovery implements the job discovery pipeline: concurrent search
// fan-out, URL deduplication, a cheap prefilter, bounded-concurrency oracle
// scoring and threshold-filtered ranking.
package discovery

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jmorante/job-hunter/internal/ai"
	"github.com/jmorante/job-hunter/internal/preferences"
	"github.com/jmorante/job-hunter/internal/search"
)

const defaultNumResults = 10

// Stage describes the outcome of one pipeline stage: how many items entered,
// how many were dropped, how many remain. The search stage counts queries in
// Initial and Dropped, and gathered listings in Left.
type Stage struct {
	Name    string `json:"name"`
	Initial int    `json:"initial"`
	Dropped int    `json:"dropped"`
	Left    int    `json:"left"`
}

// ProgressFunc observes stage completions during a run. Callbacks run inline
// on the pipeline goroutine and must not block.
type ProgressFunc func(Stage)

// Counters aggregates one run's stage totals. Individual provider or oracle
// failures never surface past these numbers.
type Counters struct {
	Found       int `json:"found"`
	Unique      int `json:"unique"`
	Prefiltered int `json:"prefiltered"`
	Scored      int `json:"scored"`
	Surfaced    int `json:"surfaced"`
}

// Result is the terminal output of one discovery run.
type Result struct {
	Jobs     []ScoredCandidate
	Counters Counters
}

// Pipeline wires a search provider and a scoring oracle into one discovery
// run. It holds no per-run state, so a single Pipeline may serve concurrent
// runs as long as its collaborators do.
type Pipeline struct {
	provider search.Provider
	scorer   ai.Scorer
	logger   *zap.Logger

	// NumResults is the per-query result count requested from the provider.
	NumResults int
}

func New(provider search.Provider, scorer ai.Scorer, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		provider:   provider,
		scorer:     scorer,
		logger:     logger,
		NumResults: defaultNumResults,
	}
}

// Run executes one discovery cycle over the preference set's queries and
// returns the surfaced jobs, best first. Stage boundaries are reported
// through progress when it is non-nil.
func (p *Pipeline) Run(ctx context.Context, prefs *preferences.PreferenceSet, progress ProgressFunc) (*Result, error) {
	if p.provider == nil || p.scorer == nil {
		return nil, errors.New("discovery pipeline requires a search provider and a scorer")
	}
	if prefs == nil {
		return nil, errors.New("preferences are required")
	}

	queries := prefs.SearchQueries

	listings, failed := p.searchAll(ctx, queries)
	p.stage(progress, Stage{Name: "search", Initial: len(queries), Dropped: failed, Left: len(listings)})

	candidates := Deduplicate(listings)
	p.stage(progress, Stage{Name: "dedup", Initial: len(listings), Dropped: len(listings) - len(candidates), Left: len(candidates)})

	filter := NewPrefilter(prefs.Discovery.ExcludeKeywords, prefs.Location.Dealbreakers)
	kept := filter.Apply(candidates)
	p.stage(progress, Stage{Name: "prefilter", Initial: len(candidates), Dropped: len(candidates) - len(kept), Left: len(kept)})

	scored := p.scoreAll(ctx, prefs.Reduced(), kept)
	p.stage(progress, Stage{Name: "score", Initial: len(kept), Dropped: len(kept) - len(scored), Left: len(scored)})

	surfaced := Rank(scored, prefs.Scoring.MinimumScoreToSurface)
	p.stage(progress, Stage{Name: "rank", Initial: len(scored), Dropped: len(scored) - len(surfaced), Left: len(surfaced)})

	return &Result{
		Jobs: surfaced,
		Counters: Counters{
			Found:       len(listings),
			Unique:      len(candidates),
			Prefiltered: len(kept),
			Scored:      len(scored),
			Surfaced:    len(surfaced),
		},
	}, nil
}

// searchAll issues every query concurrently and concatenates the results in
// query declaration order, so downstream stages see a deterministic sequence
// no matter how provider calls interleave. A failed query contributes nothing
// and never delays its siblings.
func (p *Pipeline) searchAll(ctx context.Context, queries []string) ([]search.Listing, int) {
	perQuery := make([][]search.Listing, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	for i, query := range queries {
		g.Go(func() error {
			listings, err := p.provider.Search(ctx, query, p.numResults())
			if err != nil {
				errs[i] = err
				p.logger.Warn("search query failed",
					zap.String("provider", p.provider.Name()),
					zap.String("query", query),
					zap.Error(err),
				)
				return nil
			}
			perQuery[i] = listings
			return nil
		})
	}
	_ = g.Wait() // queries absorb their own errors

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}

	var flattened []search.Listing
	for _, listings := range perQuery {
		flattened = append(flattened, listings...)
	}

	return flattened, failed
}

func (p *Pipeline) numResults() int {
	if p.NumResults > 0 {
		return p.NumResults
	}
	return defaultNumResults
}

func (p *Pipeline) stage(progress ProgressFunc, s Stage) {
	p.logger.Info("pipeline stage",
		zap.String("name", s.Name),
		zap.Int("initial", s.Initial),
		zap.Int("dropped", s.Dropped),
		zap.Int("left", s.Left),
	)

	if progress != nil {
		progress(s)
	}
}
