package discovery

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jmorante/job-hunter/internal/ai"
	"github.com/jmorante/job-hunter/internal/preferences"
)

// maxConcurrentScores caps in-flight oracle calls across one run. The cap
// protects the oracle's rate limits; it is not a throughput knob.
const maxConcurrentScores = 5

// ScoredCandidate pairs a candidate with the oracle's verdict. A candidate is
// scored exactly once per run.
type ScoredCandidate struct {
	Candidate

	Score *ai.ScoreResult `json:"score"`
}

// scoreOutcome holds one oracle call's result in the candidate's own slot, so
// completion order cannot disturb discovery order.
type scoreOutcome struct {
	result *ai.ScoreResult
	err    error
}

// scoreAll fans the candidates out to the oracle with at most
// maxConcurrentScores in flight. A failed or unparseable scoring drops just
// that candidate; the rest proceed.
func (p *Pipeline) scoreAll(ctx context.Context, prefs preferences.Reduced, candidates []Candidate) []ScoredCandidate {
	outcomes := make([]scoreOutcome, len(candidates))

	var g errgroup.Group
	g.SetLimit(maxConcurrentScores)
	for i, candidate := range candidates {
		g.Go(func() error {
			result, err := p.scorer.Score(ctx, prefs, candidate.Listing)
			outcomes[i] = scoreOutcome{result: result, err: err}
			return nil
		})
	}
	_ = g.Wait() // tasks report through their outcome slot, never an error

	scored := make([]ScoredCandidate, 0, len(candidates))
	for i, outcome := range outcomes {
		if outcome.err != nil || outcome.result == nil {
			p.logger.Warn("scoring failed, dropping candidate",
				zap.String("external_id", candidates[i].ExternalID),
				zap.String("title", candidates[i].Title),
				zap.Error(outcome.err),
			)
			continue
		}
		scored = append(scored, ScoredCandidate{Candidate: candidates[i], Score: outcome.result})
	}

	return scored
}
