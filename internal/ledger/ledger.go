// Package ledger persists the single durable decision per line item and
// feeds confirmed outcomes back into the training corpus.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/procurehub/linematch/internal/models"
	"github.com/procurehub/linematch/internal/normalize"
	"github.com/procurehub/linematch/internal/storage"
)

// ErrInvalidInput marks synchronous rejection of malformed decision input.
var ErrInvalidInput = errors.New("invalid input")

// Ledger records decisions through an idempotent, atomic upsert keyed by
// (tenant, line item). The per-line-item row is the only contended resource
// in the system; concurrent writers serialize on it and never duplicate it.
type Ledger struct {
	store      storage.Storage
	normalizer *normalize.Normalizer
	logger     *zap.Logger
}

// NewLedger creates a ledger over the given storage.
func NewLedger(store storage.Storage, normalizer *normalize.Normalizer, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: store, normalizer: normalizer, logger: logger}
}

// RecordDecision creates or replaces the decision for a line item and
// returns the post-write authoritative state. Approving verifies the entry
// belongs to the tenant before anything is written. On approve, a positive
// training record is written for (normalized query, entry); on reject a
// negative one, both in the same transaction as the decision. A pending
// write never downgrades a reviewed decision; the existing state is
// returned instead.
func (l *Ledger) RecordDecision(ctx context.Context, tenant string, input *models.DecisionInput) (*models.MatchDecision, error) {
	if tenant == "" {
		return nil, fmt.Errorf("%w: tenant cannot be empty", ErrInvalidInput)
	}
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	decision := &models.MatchDecision{
		TenantID:   tenant,
		LineItemID: input.LineItemID,
		Status:     input.Status,
		Reviewer:   input.Reviewer,
	}

	var rec *models.TrainingRecord
	normalized := l.normalizer.Normalize(input.QueryText)

	switch input.Status {
	case models.StatusApproved:
		// Cross-tenant approval is fatal and rejected before any write.
		if _, err := l.store.GetEntry(ctx, tenant, input.EntryID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%w: entry %s not found for tenant %s", ErrInvalidInput, input.EntryID, tenant)
			}
			return nil, fmt.Errorf("failed to verify entry: %w", err)
		}
		entryID := input.EntryID
		decision.EntryID = &entryID
		now := time.Now()
		decision.ReviewedAt = &now
		if normalized != "" {
			rec = l.trainingRecord(tenant, normalized, input.EntryID, models.LabelPositive, input.Reviewer)
		}

	case models.StatusRejected:
		now := time.Now()
		decision.ReviewedAt = &now
		if normalized != "" {
			// input.EntryID names the rejected pairing when the reviewer
			// turned down a specific candidate; empty records a blanket
			// "no match" fact for the text.
			rec = l.trainingRecord(tenant, normalized, input.EntryID, models.LabelNegative, input.Reviewer)
		}

	case models.StatusPending:
		// Scoring-time placeholder; no reviewer action, no training feedback.
	}

	current, err := l.store.UpsertDecision(ctx, decision, rec)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("decision recorded",
		zap.String("tenant", tenant),
		zap.String("line_item", input.LineItemID),
		zap.String("status", string(current.Status)))
	return current, nil
}

// Decision returns the current decision for a line item, or
// storage.ErrNotFound when the line item has never been scored or reviewed.
func (l *Ledger) Decision(ctx context.Context, tenant, lineItemID string) (*models.MatchDecision, error) {
	if tenant == "" || lineItemID == "" {
		return nil, fmt.Errorf("%w: tenant and line_item_id are required", ErrInvalidInput)
	}
	return l.store.GetDecision(ctx, tenant, lineItemID)
}

func (l *Ledger) trainingRecord(tenant, normalized, entryID string, label models.TrainingLabel, reviewer string) *models.TrainingRecord {
	return &models.TrainingRecord{
		ID:             uuid.NewString(),
		TenantID:       tenant,
		NormalizedText: normalized,
		EntryID:        entryID,
		Label:          label,
		Reviewer:       reviewer,
	}
}
