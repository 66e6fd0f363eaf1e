package ai

import (
	"context"

	"github.com/jmorante/job-hunter/internal/preferences"
	"github.com/jmorante/job-hunter/internal/search"
)

// ScoreResult is the oracle's verdict for a single listing. OverallScore is
// always within [0, 1] after parsing.
type ScoreResult struct {
	OverallScore float64            `json:"overall_score"`
	Breakdown    map[string]float64 `json:"breakdown,omitempty"`
	Reasoning    string             `json:"reasoning,omitempty"`
	Raw          string             `json:"-"`
}

// Scorer rates one listing against the candidate's preferences.
type Scorer interface {
	Score(ctx context.Context, prefs preferences.Reduced, listing search.Listing) (*ScoreResult, error)
}
