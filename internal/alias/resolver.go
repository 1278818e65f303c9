// Package alias resolves known competitor and alternate names to canonical
// catalog entries.
package alias

import (
	"context"
	"errors"
	"fmt"

	"github.com/procurehub/linematch/internal/models"
	"github.com/procurehub/linematch/internal/storage"
)

// ExactMatchScore is the fixed signal emitted for an exact normalized alias
// hit. An alias is a curated human fact, so it is treated as near-certain.
const ExactMatchScore = 0.95

// Resolver looks up normalized query text against a tenant's alias table.
// It emits a signal only on a qualifying match; partial or fuzzy alias
// matching is deliberately left to the lexical scorer.
type Resolver struct {
	store storage.Storage
}

// NewResolver creates a resolver backed by the given storage.
func NewResolver(store storage.Storage) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the entry ID for an exact normalized alias match, or
// ("", absent) when no alias exists. An empty alias table is a normal
// condition, never an error.
func (r *Resolver) Resolve(ctx context.Context, tenant, normalizedQuery string) (string, models.Signal, error) {
	if normalizedQuery == "" {
		return "", models.AbsentSignal(), nil
	}
	entryID, err := r.store.GetAliasEntry(ctx, tenant, normalizedQuery)
	if errors.Is(err, storage.ErrNotFound) {
		return "", models.AbsentSignal(), nil
	}
	if err != nil {
		return "", models.AbsentSignal(), fmt.Errorf("alias lookup failed: %w", err)
	}
	return entryID, models.SignalOf(ExactMatchScore), nil
}

// Add registers an alias for a catalog entry. aliasNormalized must already
// be in normalized form; the entry must belong to the tenant.
func (r *Resolver) Add(ctx context.Context, tenant, aliasNormalized, entryID string) error {
	if _, err := r.store.GetEntry(ctx, tenant, entryID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("entry %s not found for tenant %s", entryID, tenant)
		}
		return err
	}
	return r.store.PutAlias(ctx, tenant, aliasNormalized, entryID)
}
