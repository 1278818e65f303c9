// Package normalize canonicalizes raw line item text into a comparable form.
package normalize

import (
	"strings"
)

// Normalizer applies a fixed, deterministic sequence of canonicalization
// rules so that the same raw text always normalizes to the same string:
// lowercase, whitespace collapse, whole-token abbreviation expansion,
// conjunction symbol substitution, separator collapse, character allow-list
// filtering, final collapse and trim.
type Normalizer struct {
	synonyms *SynonymTable
}

// NewNormalizer returns a normalizer using the built-in abbreviation table.
func NewNormalizer() *Normalizer {
	return &Normalizer{synonyms: NewSynonymTable(nil)}
}

// NewNormalizerWithSynonyms returns a normalizer backed by the given table.
// The table may be hot-reloaded concurrently; each Normalize call reads a
// consistent snapshot.
func NewNormalizerWithSynonyms(table *SynonymTable) *Normalizer {
	if table == nil {
		table = NewSynonymTable(nil)
	}
	return &Normalizer{synonyms: table}
}

// Normalize canonicalizes raw text. Empty input normalizes to the empty
// string; callers must treat an empty normalized query as unmatchable
// (zero candidates), not as an error. Normalize is idempotent.
func (n *Normalizer) Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	s := strings.ToLower(raw)
	s = collapseWhitespace(s)
	s = substituteConjunctions(s)
	s = collapseSeparators(s)
	s = stripDisallowed(s)
	// Expansion runs after the character strip so that stripping cannot
	// uncover a new abbreviation token; this keeps Normalize idempotent.
	s = n.expandTokens(s)
	return collapseWhitespace(s)
}

// expandTokens expands known abbreviations on whole-token boundaries only.
// Substring replacement would corrupt part-number-like tokens, so tokens
// are matched exactly against the table after trailing-period trimming
// ("hx." and "hx" both expand to "hex").
func (n *Normalizer) expandTokens(s string) string {
	expand := n.synonyms.Snapshot()
	fields := strings.Fields(s)
	for i, tok := range fields {
		if full, ok := expand[tok]; ok {
			fields[i] = full
			continue
		}
		trimmed := strings.TrimRight(tok, ".")
		if trimmed != tok {
			if full, ok := expand[trimmed]; ok {
				fields[i] = full
			}
		}
	}
	return strings.Join(fields, " ")
}

// substituteConjunctions replaces standalone symbol conjunctions with their
// word forms. Only whole tokens are replaced; "5/16+18" style part tokens
// are left alone.
func substituteConjunctions(s string) string {
	fields := strings.Fields(s)
	for i, tok := range fields {
		switch tok {
		case "&", "+":
			fields[i] = "and"
		case "w/":
			fields[i] = "with"
		}
	}
	return strings.Join(fields, " ")
}

// collapseSeparators collapses runs of repeated separator characters
// (hyphens, underscores, commas) into a single space.
func collapseSeparators(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSep := false
	for _, r := range s {
		switch r {
		case '-', '_', ',', ';', ':':
			if !prevSep {
				b.WriteRune(' ')
			}
			prevSep = true
		default:
			b.WriteRune(r)
			prevSep = false
		}
	}
	return b.String()
}

// stripDisallowed removes characters outside the allow-list of lowercase
// letters, digits, space, period, and slash. The set is chosen to preserve
// part-number-like tokens such as "5/16-18x2-1/2" (the hyphen has already
// been turned into a space by collapseSeparators; "x" and slashes survive).
func stripDisallowed(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '.' || r == '/':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// collapseWhitespace collapses runs of whitespace to single spaces and trims.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
