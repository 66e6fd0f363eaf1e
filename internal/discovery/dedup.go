package discovery

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/jmorante/job-hunter/internal/search"
)

// Candidate is a listing that survived deduplication. ExternalID is the
// stable identity derived from the canonical URL. Order is the position in
// discovery order (query declaration order, then in-provider order) and later
// breaks ranking ties.
type Candidate struct {
	search.Listing

	ExternalID string `json:"external_id"`
	URL        string `json:"url"`
	Order      int    `json:"order"`
}

// CanonicalURL picks the single link that identifies a listing: the first
// apply option when it carries a link, otherwise the generic link. A listing
// with neither yields the empty string, and all link-less listings collapse
// into one candidate.
func CanonicalURL(l search.Listing) string {
	if len(l.ApplyLinks) > 0 && l.ApplyLinks[0] != "" {
		return l.ApplyLinks[0]
	}
	return l.Link
}

// ExternalID derives the dedup key for a canonical URL.
func ExternalID(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Deduplicate collapses listings that share a canonical URL. The first
// occurrence wins; later duplicates are dropped silently. The output keeps
// the relative order of the input.
func Deduplicate(listings []search.Listing) []Candidate {
	seen := make(map[string]struct{}, len(listings))
	candidates := make([]Candidate, 0, len(listings))

	for _, listing := range listings {
		url := CanonicalURL(listing)
		id := ExternalID(url)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		candidates = append(candidates, Candidate{
			Listing:    listing,
			ExternalID: id,
			URL:        url,
			Order:      len(candidates),
		})
	}

	return candidates
}
