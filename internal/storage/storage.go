// Package storage defines the persistence interface for catalog entries,
// aliases, training records, and match decisions. Every operation takes an
// explicit tenant identifier; there is no ambient caller identity.
package storage

import (
	"context"
	"errors"

	"github.com/procurehub/linematch/internal/models"
)

// ErrNotFound is returned when a requested row does not exist for the tenant.
var ErrNotFound = errors.New("not found")

// Storage defines tenant-scoped persistence operations.
type Storage interface {
	// Catalog operations
	PutEntries(ctx context.Context, tenant string, entries []*models.CatalogEntry) error
	GetEntry(ctx context.Context, tenant, id string) (*models.CatalogEntry, error)
	ListEntries(ctx context.Context, tenant string) ([]*models.CatalogEntry, error)
	CountEntries(ctx context.Context, tenant string) (int64, error)
	ListTenants(ctx context.Context) ([]string, error)

	// Alias operations. Alias text is stored in normalized form.
	PutAlias(ctx context.Context, tenant, aliasNormalized, entryID string) error
	GetAliasEntry(ctx context.Context, tenant, aliasNormalized string) (string, error)
	ListAliases(ctx context.Context, tenant string) (map[string]string, error)

	// Training record operations. Records are only ever written through
	// decision recording; scoring reads them.
	UpsertTrainingRecord(ctx context.Context, rec *models.TrainingRecord) error
	ListTrainingRecords(ctx context.Context, tenant string) ([]*models.TrainingRecord, error)
	CountTrainingRecords(ctx context.Context, tenant string) (int64, error)

	// Decision operations. UpsertDecision is the atomic insert-or-update
	// keyed by (tenant, line item); concurrent writers never duplicate and
	// the returned row is the post-write authoritative state. rec, when
	// non-nil, is written in the same transaction as the decision.
	UpsertDecision(ctx context.Context, d *models.MatchDecision, rec *models.TrainingRecord) (*models.MatchDecision, error)
	GetDecision(ctx context.Context, tenant, lineItemID string) (*models.MatchDecision, error)
	CountDecisions(ctx context.Context, tenant string) (int64, error)

	Close() error
}
