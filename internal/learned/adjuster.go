// Package learned derives per-candidate score adjustments from historical
// human review outcomes. This is the one scoring component with
// cross-request memory; it reads training records for exactly one tenant.
package learned

import (
	"context"
	"fmt"

	"github.com/procurehub/linematch/internal/lexical"
	"github.com/procurehub/linematch/internal/models"
	"github.com/procurehub/linematch/internal/storage"
)

// Config bounds the learned adjustment. The magnitudes are deliberately
// small: feedback shifts the final decision, it never dominates it.
type Config struct {
	// SimilarityFloor is the minimum trigram similarity between a training
	// record's text and the current query for the record to count.
	SimilarityFloor float64 `yaml:"similarity_floor"`
	// ConfirmBoost is the per-record boost when a similar query was
	// confirmed for this candidate, scaled by the similarity.
	ConfirmBoost float64 `yaml:"confirm_boost"`
	// ContradictPenalty is the per-record penalty when a similar query was
	// confirmed for a different candidate, scaled by the similarity.
	ContradictPenalty float64 `yaml:"contradict_penalty"`
	// RejectPenalty is the per-record penalty when a similar query was
	// explicitly rejected for this candidate, scaled by the similarity.
	RejectPenalty float64 `yaml:"reject_penalty"`
	// MaxAdjustment clamps the aggregate to [-MaxAdjustment, +MaxAdjustment].
	MaxAdjustment float64 `yaml:"max_adjustment"`
}

// DefaultConfig returns the default adjustment bounds.
func DefaultConfig() Config {
	return Config{
		SimilarityFloor:   0.80,
		ConfirmBoost:      0.05,
		ContradictPenalty: 0.03,
		RejectPenalty:     0.05,
		MaxAdjustment:     0.15,
	}
}

// Adjuster computes bounded boosts and penalties from a tenant's training
// history.
type Adjuster struct {
	store storage.Storage
	cfg   Config
}

// NewAdjuster creates an adjuster over the given storage. Zero-valued
// config fields fall back to defaults.
func NewAdjuster(store storage.Storage, cfg Config) *Adjuster {
	def := DefaultConfig()
	if cfg.SimilarityFloor == 0 {
		cfg.SimilarityFloor = def.SimilarityFloor
	}
	if cfg.ConfirmBoost == 0 {
		cfg.ConfirmBoost = def.ConfirmBoost
	}
	if cfg.ContradictPenalty == 0 {
		cfg.ContradictPenalty = def.ContradictPenalty
	}
	if cfg.RejectPenalty == 0 {
		cfg.RejectPenalty = def.RejectPenalty
	}
	if cfg.MaxAdjustment == 0 {
		cfg.MaxAdjustment = def.MaxAdjustment
	}
	return &Adjuster{store: store, cfg: cfg}
}

// History loads the tenant's training records once per matching invocation
// so the per-candidate computation stays pure.
func (a *Adjuster) History(ctx context.Context, tenant string) ([]*models.TrainingRecord, error) {
	recs, err := a.store.ListTrainingRecords(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to load training history: %w", err)
	}
	return recs, nil
}

// Adjust returns the bounded adjustment for one candidate given the
// normalized query and the tenant's training history. Records whose text is
// sufficiently similar to the query contribute:
//   - a boost when the record confirms this candidate,
//   - a penalty when the record confirms a different candidate,
//   - a penalty when the record explicitly rejects this candidate.
func (a *Adjuster) Adjust(normalizedQuery, candidateEntryID string, history []*models.TrainingRecord) float64 {
	if normalizedQuery == "" || len(history) == 0 {
		return 0
	}

	var delta float64
	for _, rec := range history {
		sim := lexical.TrigramSimilarity(rec.NormalizedText, normalizedQuery)
		if sim < a.cfg.SimilarityFloor {
			continue
		}
		switch rec.Label {
		case models.LabelPositive:
			if rec.EntryID == candidateEntryID {
				delta += a.cfg.ConfirmBoost * sim
			} else {
				delta -= a.cfg.ContradictPenalty * sim
			}
		case models.LabelNegative:
			if rec.EntryID == candidateEntryID {
				delta -= a.cfg.RejectPenalty * sim
			}
		}
	}

	if delta > a.cfg.MaxAdjustment {
		delta = a.cfg.MaxAdjustment
	}
	if delta < -a.cfg.MaxAdjustment {
		delta = -a.cfg.MaxAdjustment
	}
	return delta
}
