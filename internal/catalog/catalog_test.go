package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/procurehub/linematch/internal/models"
	"github.com/procurehub/linematch/internal/normalize"
	"github.com/procurehub/linematch/internal/storage"
)

func newTestService(t *testing.T) (*Service, storage.Storage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	idx := NewShortlistIndex()
	t.Cleanup(func() {
		idx.Close()
		store.Close()
	})
	return NewService(store, idx, normalize.NewNormalizer(), nil), store
}

func TestServicePutEntriesNormalizes(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	n, err := svc.PutEntries(ctx, "acme", []*models.CatalogEntryInput{
		{
			ID:      "sku-100",
			Name:    "GR. 8 HX HD CAP SCR 5/16-18X2-1/2",
			SKU:     "HHCS-516",
			Aliases: []string{"ACME Fastener #22"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 entry written, got %d", n)
	}

	got, err := store.GetEntry(ctx, "acme", "sku-100")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "GR. 8 HX HD CAP SCR 5/16-18X2-1/2" {
		t.Errorf("raw name must be preserved, got %q", got.Name)
	}
	if got.NormalizedName != "grade 8 hex head cap screw 5/16 18x2 1/2" {
		t.Errorf("normalized name wrong: %q", got.NormalizedName)
	}

	// Aliases are stored in normalized form.
	entryID, err := store.GetAliasEntry(ctx, "acme", "acme fastener 22")
	if err != nil {
		t.Fatal(err)
	}
	if entryID != "sku-100" {
		t.Errorf("expected alias to map to sku-100, got %s", entryID)
	}

	// The new entry is immediately shortlistable.
	ids, err := svc.Shortlist(ctx, "acme", "hex head cap screw", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "sku-100" {
		t.Errorf("expected shortlist hit, got %v", ids)
	}
}

func TestServicePutEntriesValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.PutEntries(ctx, "", []*models.CatalogEntryInput{{ID: "x", Name: "y"}}); err == nil {
		t.Error("expected error for empty tenant")
	}
	if _, err := svc.PutEntries(ctx, "acme", []*models.CatalogEntryInput{{Name: "y"}}); err == nil {
		t.Error("expected error for empty entry ID")
	}
	if _, err := svc.PutEntries(ctx, "acme", []*models.CatalogEntryInput{{ID: "x"}}); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestServiceRebuildAll(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if _, err := svc.PutEntries(ctx, "acme", []*models.CatalogEntryInput{
		{ID: "sku-100", Name: "Hex Nut", Aliases: []string{"Globex Part 9"}},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PutEntries(ctx, "globex", []*models.CatalogEntryInput{
		{ID: "sku-200", Name: "Flat Washer"},
	}); err != nil {
		t.Fatal(err)
	}

	// A fresh index simulates process restart; storage is the source of truth.
	fresh := NewShortlistIndex()
	defer fresh.Close()
	rebuilt := NewService(store, fresh, normalize.NewNormalizer(), nil)
	if err := rebuilt.RebuildAll(ctx); err != nil {
		t.Fatal(err)
	}

	ids, err := rebuilt.Shortlist(ctx, "acme", "hex nut", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "sku-100" {
		t.Errorf("rebuilt index missing entry, got %v", ids)
	}
	// Aliases survive the rebuild too.
	ids, err = rebuilt.Shortlist(ctx, "acme", "globex part", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "sku-100" {
		t.Errorf("rebuilt index missing alias tokens, got %v", ids)
	}
	ids, err = rebuilt.Shortlist(ctx, "globex", "flat washer", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "sku-200" {
		t.Errorf("rebuilt index missing second tenant, got %v", ids)
	}
}
