// Package e2e contains end to end tests that exercise the full matching
// pipeline: catalog ingestion, normalization, scoring, ranking, and the
// decision ledger, against real storage and indexes.
package e2e

import "github.com/procurehub/linematch/internal/models"

// fixtureCatalog is a small fastener catalog in the shape tenants upload:
// raw names, optional SKUs and aliases.
func fixtureCatalog() []*models.CatalogEntryInput {
	return []*models.CatalogEntryInput{
		{
			ID:      "sku-hhcs-516",
			Name:    "Grade 8 Hex Head Cap Screw 5/16-18x2-1/2",
			SKU:     "HHCS-516-G8",
			Aliases: []string{"ACME Fastener #22"},
		},
		{
			ID:   "sku-hhcs-38",
			Name: "Grade 5 Hex Head Cap Screw 3/8-16x1",
			SKU:  "HHCS-38-G5",
		},
		{
			ID:   "sku-fw-516",
			Name: "Flat Washer 5/16 Zinc Plated",
			SKU:  "FW-516-ZN",
		},
		{
			ID:   "sku-hn-516",
			Name: "Hex Nut 5/16-18 Stainless Steel",
			SKU:  "HN-516-SS",
		},
		{
			ID:   "sku-lw-516",
			Name: "Lock Washer 5/16 Spring Steel",
			SKU:  "LW-516",
		},
	}
}

// matchCase is one supplier line with the catalog entry a buyer would pick.
type matchCase struct {
	description string
	query       string
	expectedTop string
}

// fixtureMatchCases are supplier-style abbreviated lines against the
// fixture catalog.
func fixtureMatchCases() []matchCase {
	return []matchCase{
		{
			description: "abbreviated line resolves through expansion",
			query:       "GR. 8 HX HD CAP SCR 5/16-18X2-1/2",
			expectedTop: "sku-hhcs-516",
		},
		{
			description: "washer line does not confuse screws",
			query:       "FLAT WSHR 5/16 ZN PLTD",
			expectedTop: "sku-fw-516",
		},
		{
			description: "stainless nut line",
			query:       "SS HX NUT 5/16-18",
			expectedTop: "sku-hn-516",
		},
		{
			description: "curated alias wins outright",
			query:       "ACME Fastener #22",
			expectedTop: "sku-hhcs-516",
		},
	}
}
