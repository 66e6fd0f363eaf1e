package discovery

import "strings"

// Prefilter is the cheap gate that runs before oracle scoring. Matching is
// literal substring matching on lower-cased text, never semantic: its only
// job is to stop obvious mismatches from spending an oracle call.
type Prefilter struct {
	exclude      []string
	dealbreakers []string
}

// NewPrefilter lower-cases and trims both keyword sets. Empty entries are
// discarded so they cannot match everything.
func NewPrefilter(excludeKeywords, locationDealbreakers []string) *Prefilter {
	return &Prefilter{
		exclude:      normalizeKeywords(excludeKeywords),
		dealbreakers: normalizeKeywords(locationDealbreakers),
	}
}

// Keep reports whether a candidate earns an oracle call. A title containing
// an excluded keyword is rejected. A location containing a dealbreaker is
// rejected unless the description mentions "remote" somewhere.
func (f *Prefilter) Keep(c Candidate) bool {
	title := strings.ToLower(c.Title)
	for _, keyword := range f.exclude {
		if strings.Contains(title, keyword) {
			return false
		}
	}

	location := strings.ToLower(c.Location)
	description := strings.ToLower(c.Description)
	for _, dealbreaker := range f.dealbreakers {
		if strings.Contains(location, dealbreaker) && !strings.Contains(description, "remote") {
			return false
		}
	}

	return true
}

// Apply keeps the candidates that pass Keep, preserving their relative order
// and Order tags.
func (f *Prefilter) Apply(candidates []Candidate) []Candidate {
	kept := make([]Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if f.Keep(candidate) {
			kept = append(kept, candidate)
		}
	}
	return kept
}

func normalizeKeywords(keywords []string) []string {
	normalized := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		normalized = append(normalized, keyword)
	}
	return normalized
}
