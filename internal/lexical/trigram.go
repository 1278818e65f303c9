// Package lexical provides pure string similarity scoring between a
// normalized query and normalized catalog names.
package lexical

import "strings"

// TrigramSimilarity returns the trigram overlap similarity of two strings
// in [0,1]. The measure is symmetric, returns 1.0 only for equal non-empty
// strings, and 0.0 when the strings share no trigrams. Strings are padded
// with leading/trailing spaces so short tokens still produce trigrams.
func TrigramSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}

	ta := trigramSet(a)
	tb := trigramSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for t := range ta {
		if tb[t] {
			shared++
		}
	}
	if shared == 0 {
		return 0
	}
	// Jaccard over the trigram sets. Equal sets from unequal strings are
	// possible in theory, so cap below 1.0 to keep "1.0 only for exact match".
	union := len(ta) + len(tb) - shared
	sim := float64(shared) / float64(union)
	if sim >= 1.0 {
		sim = 0.999
	}
	return sim
}

// trigramSet returns the set of rune trigrams of s, padded with two leading
// and one trailing space in the style of PostgreSQL's pg_trgm.
func trigramSet(s string) map[string]bool {
	padded := []rune("  " + s + " ")
	set := make(map[string]bool, len(padded))
	for i := 0; i+3 <= len(padded); i++ {
		set[string(padded[i:i+3])] = true
	}
	return set
}

// TokenSetRatio returns the proportion of whitespace tokens of the shorter
// string that appear in the longer one. Used as a cheap containment check.
func TokenSetRatio(a, b string) float64 {
	fa := strings.Fields(a)
	fb := strings.Fields(b)
	if len(fa) == 0 || len(fb) == 0 {
		return 0
	}
	short, long := fa, fb
	if len(fb) < len(fa) {
		short, long = fb, fa
	}
	set := make(map[string]bool, len(long))
	for _, t := range long {
		set[t] = true
	}
	hits := 0
	for _, t := range short {
		if set[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(short))
}
