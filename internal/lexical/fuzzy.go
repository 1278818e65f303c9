package lexical

import (
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// FuzzyScore returns an edit-distance similarity in [0,1]: one minus the
// Levenshtein distance normalized by the longer string's rune length, so
// longer strings are not unfairly penalized for small absolute edits.
// Pure and deterministic; equal non-empty strings score 1.0.
func FuzzyScore(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}

	if sim, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein); err == nil {
		return float64(sim)
	}
	// Fallback path; edlib only fails on an unknown algorithm constant.
	dist := LevenshteinDistance(a, b)
	longer := utf8.RuneCountInString(a)
	if lb := utf8.RuneCountInString(b); lb > longer {
		longer = lb
	}
	if longer == 0 {
		return 0
	}
	return 1.0 - float64(dist)/float64(longer)
}
