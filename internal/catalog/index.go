// Package catalog provides tenant-scoped catalog access and a keyword
// shortlist index used to bound the set of entries that get fully scored.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

// indexedEntry is the document shape stored in the shortlist index.
type indexedEntry struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Aliases  string `json:"aliases"`
}

// ShortlistIndex is an in-memory Bleve index over normalized catalog names
// and aliases, keyed per tenant. It shortlists candidates before full
// scoring; it never decides a match by itself.
type ShortlistIndex struct {
	mu      sync.RWMutex
	indexes map[string]bleve.Index
}

// NewShortlistIndex creates an empty shortlist index.
func NewShortlistIndex() *ShortlistIndex {
	return &ShortlistIndex{indexes: make(map[string]bleve.Index)}
}

func newTenantIndex() (bleve.Index, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so part-number
	// tokens like "5/16" are not mangled.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("name", textFieldMapping)
	docMapping.AddFieldMappingsAt("aliases", textFieldMapping)
	im.DefaultMapping = docMapping
	return bleve.NewMemOnly(im)
}

func (s *ShortlistIndex) tenantIndex(tenant string, create bool) (bleve.Index, error) {
	s.mu.RLock()
	idx, ok := s.indexes[tenant]
	s.mu.RUnlock()
	if ok || !create {
		return idx, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[tenant]; ok {
		return idx, nil
	}
	idx, err := newTenantIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to create shortlist index: %w", err)
	}
	s.indexes[tenant] = idx
	return idx, nil
}

// Index adds or updates one entry in the tenant's shortlist index.
// name and aliases must already be normalized.
func (s *ShortlistIndex) Index(ctx context.Context, tenant, entryID, name, aliases string) error {
	idx, err := s.tenantIndex(tenant, true)
	if err != nil {
		return err
	}
	return idx.Index(entryID, &indexedEntry{TenantID: tenant, Name: name, Aliases: aliases})
}

// Delete removes an entry from the tenant's shortlist index.
func (s *ShortlistIndex) Delete(ctx context.Context, tenant, entryID string) error {
	idx, err := s.tenantIndex(tenant, false)
	if err != nil || idx == nil {
		return err
	}
	return idx.Delete(entryID)
}

// Shortlist returns up to limit entry IDs whose name or aliases match the
// normalized query. An empty result is normal; callers fall back to the
// full catalog so purely trigram-level matches are not lost.
func (s *ShortlistIndex) Shortlist(ctx context.Context, tenant, normalizedQuery string, limit int) ([]string, error) {
	idx, err := s.tenantIndex(tenant, false)
	if err != nil {
		return nil, err
	}
	if idx == nil || normalizedQuery == "" || limit <= 0 {
		return nil, nil
	}

	q := bleve.NewMatchQuery(normalizedQuery)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("shortlist search failed: %w", err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Close closes all tenant indexes.
func (s *ShortlistIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for tenant, idx := range s.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.indexes, tenant)
	}
	return firstErr
}
