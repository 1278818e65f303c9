package match

import (
	"sort"

	"github.com/procurehub/linematch/internal/models"
	"github.com/procurehub/linematch/pkg/utils"
)

// Weights holds the relative weight of each component signal in the
// combined score.
type Weights struct {
	Lexical  float64 `yaml:"lexical"`
	Fuzzy    float64 `yaml:"fuzzy"`
	Alias    float64 `yaml:"alias"`
	Semantic float64 `yaml:"semantic"`
}

// DefaultWeights returns the default signal weighting.
func DefaultWeights() Weights {
	return Weights{Lexical: 0.30, Fuzzy: 0.20, Alias: 0.30, Semantic: 0.20}
}

// Ranker combines component signals into a final score, applies the
// acceptance threshold, and orders candidates deterministically.
type Ranker struct {
	weights Weights
}

// NewRanker creates a ranker. Weights that are all zero fall back to defaults.
func NewRanker(weights Weights) *Ranker {
	if weights.Lexical == 0 && weights.Fuzzy == 0 && weights.Alias == 0 && weights.Semantic == 0 {
		weights = DefaultWeights()
	}
	return &Ranker{weights: weights}
}

// Combine returns the weighted combination of the present signals. Absent
// signals are excluded from the denominator (renormalized weighting), not
// treated as zero, so a catalog without embeddings degrades to a
// lexical-only score rather than an artificially low one. The second return
// is false when no signal is present at all.
func (r *Ranker) Combine(s models.ComponentScores) (float64, bool) {
	var sum, denom float64
	if s.Lexical.Present {
		sum += r.weights.Lexical * s.Lexical.Score
		denom += r.weights.Lexical
	}
	if s.Fuzzy.Present {
		sum += r.weights.Fuzzy * s.Fuzzy.Score
		denom += r.weights.Fuzzy
	}
	if s.Alias.Present {
		sum += r.weights.Alias * s.Alias.Score
		denom += r.weights.Alias
	}
	if s.Semantic.Present {
		sum += r.weights.Semantic * s.Semantic.Score
		denom += r.weights.Semantic
	}
	if denom == 0 {
		return 0, false
	}
	return sum / denom, true
}

// Rank computes each candidate's final score (combined signals plus the
// learned adjustment, clamped to [0,1]), drops candidates below threshold,
// sorts by final score descending with deterministic tie-breaking, and
// truncates to limit. An empty result is a value, never an error.
func (r *Ranker) Rank(candidates []*models.MatchCandidate, threshold float64, limit int) []*models.MatchCandidate {
	ranked := make([]*models.MatchCandidate, 0, len(candidates))
	for _, c := range candidates {
		base, ok := r.Combine(c.Scores)
		if !ok {
			continue
		}
		c.FinalScore = utils.Clamp01(base + c.Adjustment)
		if c.FinalScore < threshold {
			continue
		}
		ranked = append(ranked, c)
	}

	sort.Slice(ranked, func(i, j int) bool {
		return lessCandidate(ranked[j], ranked[i])
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// lessCandidate reports whether a ranks strictly below b. Ties on final
// score break on the alias signal (an exact alias wins), then on the
// trigram score, then on entry ID so the order is fully deterministic.
func lessCandidate(a, b *models.MatchCandidate) bool {
	if a.FinalScore != b.FinalScore {
		return a.FinalScore < b.FinalScore
	}
	if av, bv := signalValue(a.Scores.Alias), signalValue(b.Scores.Alias); av != bv {
		return av < bv
	}
	if av, bv := signalValue(a.Scores.Lexical), signalValue(b.Scores.Lexical); av != bv {
		return av < bv
	}
	return a.Entry.ID > b.Entry.ID
}

// signalValue orders signals: absent sorts below any present score.
func signalValue(s models.Signal) float64 {
	if !s.Present {
		return -1
	}
	return s.Score
}
