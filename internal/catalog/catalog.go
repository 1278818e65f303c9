package catalog

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/procurehub/linematch/internal/models"
	"github.com/procurehub/linematch/internal/normalize"
	"github.com/procurehub/linematch/internal/storage"
)

// Service ingests catalog entries for a tenant and keeps the shortlist
// index in sync with storage. The matching engine treats the catalog as
// read-only within a scoring call.
type Service struct {
	store      storage.Storage
	index      *ShortlistIndex
	normalizer *normalize.Normalizer
	logger     *zap.Logger
}

// NewService creates a catalog service.
func NewService(store storage.Storage, index *ShortlistIndex, normalizer *normalize.Normalizer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, index: index, normalizer: normalizer, logger: logger}
}

// PutEntries upserts entries (and their aliases) for the tenant, normalizing
// names and alias text at write time, and updates the shortlist index.
// Returns the number of entries written.
func (s *Service) PutEntries(ctx context.Context, tenant string, inputs []*models.CatalogEntryInput) (int, error) {
	if tenant == "" {
		return 0, fmt.Errorf("tenant cannot be empty")
	}

	entries := make([]*models.CatalogEntry, 0, len(inputs))
	for _, in := range inputs {
		if in.ID == "" {
			return 0, fmt.Errorf("catalog entry id cannot be empty")
		}
		if in.Name == "" {
			return 0, fmt.Errorf("catalog entry %s: name cannot be empty", in.ID)
		}
		entries = append(entries, &models.CatalogEntry{
			TenantID:       tenant,
			ID:             in.ID,
			Name:           in.Name,
			NormalizedName: s.normalizer.Normalize(in.Name),
			SKU:            in.SKU,
			Embedding:      in.Embedding,
			Aliases:        in.Aliases,
		})
	}

	if err := s.store.PutEntries(ctx, tenant, entries); err != nil {
		return 0, fmt.Errorf("failed to store entries: %w", err)
	}

	for i, e := range entries {
		normAliases := make([]string, 0, len(e.Aliases))
		for _, a := range inputs[i].Aliases {
			na := s.normalizer.Normalize(a)
			if na == "" {
				continue
			}
			if err := s.store.PutAlias(ctx, tenant, na, e.ID); err != nil {
				return 0, fmt.Errorf("failed to store alias for %s: %w", e.ID, err)
			}
			normAliases = append(normAliases, na)
		}
		if err := s.index.Index(ctx, tenant, e.ID, e.NormalizedName, strings.Join(normAliases, " ")); err != nil {
			return 0, fmt.Errorf("failed to index entry %s: %w", e.ID, err)
		}
	}
	return len(entries), nil
}

// Entries returns all catalog entries for the tenant.
func (s *Service) Entries(ctx context.Context, tenant string) ([]*models.CatalogEntry, error) {
	return s.store.ListEntries(ctx, tenant)
}

// Entry returns one catalog entry for the tenant.
func (s *Service) Entry(ctx context.Context, tenant, id string) (*models.CatalogEntry, error) {
	return s.store.GetEntry(ctx, tenant, id)
}

// Shortlist returns up to limit candidate entry IDs for the normalized query.
func (s *Service) Shortlist(ctx context.Context, tenant, normalizedQuery string, limit int) ([]string, error) {
	return s.index.Shortlist(ctx, tenant, normalizedQuery, limit)
}

// RebuildAll repopulates the shortlist index from storage for every tenant,
// used at startup since the index is memory-only.
func (s *Service) RebuildAll(ctx context.Context) error {
	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}
	for _, tenant := range tenants {
		entries, err := s.store.ListEntries(ctx, tenant)
		if err != nil {
			return fmt.Errorf("failed to list entries for %s: %w", tenant, err)
		}
		aliases, err := s.store.ListAliases(ctx, tenant)
		if err != nil {
			return fmt.Errorf("failed to list aliases for %s: %w", tenant, err)
		}
		aliasesByEntry := make(map[string][]string)
		for alias, entryID := range aliases {
			aliasesByEntry[entryID] = append(aliasesByEntry[entryID], alias)
		}
		for _, e := range entries {
			if err := s.index.Index(ctx, tenant, e.ID, e.NormalizedName,
				strings.Join(aliasesByEntry[e.ID], " ")); err != nil {
				return fmt.Errorf("failed to index entry %s: %w", e.ID, err)
			}
		}
		s.logger.Info("shortlist index rebuilt",
			zap.String("tenant", tenant), zap.Int("entries", len(entries)))
	}
	return nil
}
