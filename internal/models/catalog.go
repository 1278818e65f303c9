// Package models defines core data structures for catalog entries, match
// candidates, decisions, and training records.
package models

import "time"

// CatalogEntry represents one product in a tenant's catalog. Entries are
// read-only from the matching engine's perspective; only alias additions
// mutate associated state.
type CatalogEntry struct {
	TenantID       string    `json:"tenant_id" db:"tenant_id"`
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	NormalizedName string    `json:"normalized_name,omitempty" db:"normalized_name"`
	SKU            string    `json:"sku,omitempty" db:"sku"`
	Embedding      []float32 `json:"-" db:"-"`
	Aliases        []string  `json:"aliases,omitempty" db:"-"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// CatalogEntryInput is the input for creating or updating a catalog entry.
type CatalogEntryInput struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	Aliases   []string  `json:"aliases,omitempty"`
}
