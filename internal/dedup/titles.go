// Package dedup removes near-duplicate search results by comparing
// normalized paper titles.
package dedup

import (
	"strings"
	"unicode"
)

// NormalizeTitle normalizes a title for comparison:
//   - Converts to lowercase
//   - Removes punctuation and symbols (anything that is not a letter, digit or space)
//   - Collapses runs of whitespace to a single space
//   - Trims leading and trailing whitespace
func NormalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	if title == "" {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(title))
	prevSpace := false

	for _, r := range title {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			sb.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimRight(sb.String(), " ")
}

// TitleSimilarity returns the Jaccard similarity of the word-token sets of two
// normalized titles. Two empty titles are identical (1.0); an empty and a
// non-empty title share nothing (0.0). The result is symmetric.
func TitleSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
