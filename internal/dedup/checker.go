package dedup

import (
	"github.com/helixir/gap-analysis-service/internal/domain"
)

// DefaultSimilarityThreshold is the title similarity above which two results
// are treated as the same paper.
const DefaultSimilarityThreshold = 0.8

// Checker performs title-based deduplication of search results.
type Checker struct {
	// Threshold is compared strictly: a result is dropped only when its
	// similarity to an accepted title is greater than Threshold.
	Threshold float64
}

// NewChecker creates a Checker with the default similarity threshold.
func NewChecker() *Checker {
	return &Checker{Threshold: DefaultSimilarityThreshold}
}

// Deduplicate returns the subsequence of results whose titles are not near
// duplicates of an earlier accepted result, truncated to maxResults.
// First-occurrence order is preserved. A maxResults of zero or less means no
// cap. The number of dropped duplicates is returned alongside.
//
// The comparison is pairwise against every accepted title, which is fine for
// the few dozen results a single validation query produces.
func (c *Checker) Deduplicate(results []domain.SearchResult, maxResults int) ([]domain.SearchResult, int) {
	unique := make([]domain.SearchResult, 0, len(results))
	accepted := make([]string, 0, len(results))
	removed := 0

	for _, r := range results {
		normalized := NormalizeTitle(r.Title)

		if c.isDuplicate(normalized, accepted) {
			removed++
			continue
		}

		unique = append(unique, r)
		accepted = append(accepted, normalized)
	}

	if maxResults > 0 && len(unique) > maxResults {
		unique = unique[:maxResults]
	}

	return unique, removed
}

func (c *Checker) isDuplicate(title string, accepted []string) bool {
	for _, existing := range accepted {
		if TitleSimilarity(title, existing) > c.Threshold {
			return true
		}
	}
	return false
}
