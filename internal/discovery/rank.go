package discovery

import "sort"

// Rank keeps the candidates whose overall score clears minScore (inclusive)
// and orders them best first. The sort is stable, so equal scores keep their
// discovery order.
func Rank(scored []ScoredCandidate, minScore float64) []ScoredCandidate {
	surfaced := make([]ScoredCandidate, 0, len(scored))
	for _, candidate := range scored {
		if candidate.Score.OverallScore >= minScore {
			surfaced = append(surfaced, candidate)
		}
	}

	sort.SliceStable(surfaced, func(i, j int) bool {
		return surfaced[i].Score.OverallScore > surfaced[j].Score.OverallScore
	})

	return surfaced
}
