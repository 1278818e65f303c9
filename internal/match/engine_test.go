package match

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/procurehub/linematch/internal/alias"
	"github.com/procurehub/linematch/internal/catalog"
	"github.com/procurehub/linematch/internal/learned"
	"github.com/procurehub/linematch/internal/models"
	"github.com/procurehub/linematch/internal/normalize"
	"github.com/procurehub/linematch/internal/semantic"
	"github.com/procurehub/linematch/internal/storage"
)

type engineFixture struct {
	engine  *Engine
	catalog *catalog.Service
	store   storage.Storage
}

func newEngineFixture(t *testing.T, embedder semantic.Embedder) *engineFixture {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	idx := catalog.NewShortlistIndex()
	t.Cleanup(func() {
		idx.Close()
		store.Close()
	})

	normalizer := normalize.NewNormalizer()
	cat := catalog.NewService(store, idx, normalizer, nil)
	engine := NewEngine(
		cat,
		alias.NewResolver(store),
		learned.NewAdjuster(store, learned.DefaultConfig()),
		embedder,
		normalizer,
		Options{},
		nil,
	)
	return &engineFixture{engine: engine, catalog: cat, store: store}
}

func (f *engineFixture) seed(t *testing.T, tenant string, inputs ...*models.CatalogEntryInput) {
	t.Helper()
	if _, err := f.catalog.PutEntries(context.Background(), tenant, inputs); err != nil {
		t.Fatal(err)
	}
}

func TestEngineMatchBasic(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.seed(t, "acme",
		&models.CatalogEntryInput{ID: "sku-100", Name: "Hex Head Cap Screw Grade 8", SKU: "HHCS-8"},
		&models.CatalogEntryInput{ID: "sku-200", Name: "Flat Washer Zinc Plated"},
	)

	resp, err := f.engine.Match(context.Background(), "acme",
		&models.MatchQuery{Query: "GR. 8 HX HD CAP SCR"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total == 0 {
		t.Fatal("expected at least one result")
	}
	top := resp.Results[0]
	if top.EntryID != "sku-100" {
		t.Errorf("expected sku-100 first, got %s", top.EntryID)
	}
	if top.Rank != 1 {
		t.Errorf("expected rank 1, got %d", top.Rank)
	}
	if !top.Scores.Lexical.Present || !top.Scores.Fuzzy.Present {
		t.Errorf("lexical signals should be present: %+v", top.Scores)
	}
	if top.Scores.Semantic.Present {
		t.Error("no embedder configured, semantic must be absent")
	}
	if resp.SemanticDegraded {
		t.Error("no embedder configured is not a degradation")
	}
}

func TestEngineMatchEmptyAndInvalid(t *testing.T) {
	f := newEngineFixture(t, nil)
	ctx := context.Background()

	// Unmatchable query is an empty result, not an error.
	resp, err := f.engine.Match(ctx, "acme", &models.MatchQuery{Query: "###"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 0 || len(resp.Results) != 0 {
		t.Errorf("expected empty response, got %+v", resp)
	}

	if _, err := f.engine.Match(ctx, "", &models.MatchQuery{Query: "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty tenant must be ErrInvalidInput, got %v", err)
	}
	if _, err := f.engine.Match(ctx, "acme", &models.MatchQuery{Query: "x", Threshold: 2}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad threshold must be ErrInvalidInput, got %v", err)
	}
}

func TestEngineMatchAliasTargetAlwaysScored(t *testing.T) {
	f := newEngineFixture(t, nil)
	// The alias text shares no tokens with the entry name, so the keyword
	// shortlist alone would miss it.
	f.seed(t, "acme",
		&models.CatalogEntryInput{
			ID:      "sku-100",
			Name:    "Hex Head Cap Screw",
			Aliases: []string{"ACME Fastener 22"},
		},
		&models.CatalogEntryInput{ID: "sku-200", Name: "Flat Washer"},
	)

	resp, err := f.engine.Match(context.Background(), "acme",
		&models.MatchQuery{Query: "acme fastener 22"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total == 0 {
		t.Fatal("expected the alias target to be returned")
	}
	top := resp.Results[0]
	if top.EntryID != "sku-100" {
		t.Errorf("alias target should rank first, got %s", top.EntryID)
	}
	if !top.Scores.Alias.Present || top.Scores.Alias.Score != alias.ExactMatchScore {
		t.Errorf("expected alias signal %g, got %+v", alias.ExactMatchScore, top.Scores.Alias)
	}
}

func TestEngineMatchSemanticSignal(t *testing.T) {
	mock := semantic.NewMockEmbedder(32)
	f := newEngineFixture(t, mock)
	ctx := context.Background()

	emb, err := mock.Embed(ctx, "hex head cap screw")
	if err != nil {
		t.Fatal(err)
	}
	f.seed(t, "acme",
		&models.CatalogEntryInput{ID: "sku-100", Name: "Hex Head Cap Screw", Embedding: emb},
		&models.CatalogEntryInput{ID: "sku-200", Name: "Flat Washer"},
	)

	resp, err := f.engine.Match(ctx, "acme", &models.MatchQuery{Query: "hex head cap screw"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.SemanticDegraded {
		t.Error("healthy embedder should not report degradation")
	}
	var withEmb, withoutEmb *models.MatchResult
	for _, res := range resp.Results {
		switch res.EntryID {
		case "sku-100":
			withEmb = res
		case "sku-200":
			withoutEmb = res
		}
	}
	if withEmb == nil {
		t.Fatal("embedded entry missing from results")
	}
	if !withEmb.Scores.Semantic.Present {
		t.Error("entry with embedding should carry a semantic signal")
	}
	if withoutEmb != nil && withoutEmb.Scores.Semantic.Present {
		t.Error("entry without embedding must have an absent semantic signal")
	}
}

func TestEngineMatchDegradesWhenEmbedderFails(t *testing.T) {
	f := newEngineFixture(t, semantic.NewFailingEmbedder(32))
	f.seed(t, "acme",
		&models.CatalogEntryInput{ID: "sku-100", Name: "Hex Head Cap Screw"},
	)

	resp, err := f.engine.Match(context.Background(), "acme",
		&models.MatchQuery{Query: "hex head cap screw"})
	if err != nil {
		t.Fatalf("embedder failure must not fail the match: %v", err)
	}
	if !resp.SemanticDegraded {
		t.Error("expected SemanticDegraded when the provider errors")
	}
	if resp.Total == 0 {
		t.Fatal("lexical signals should still produce results")
	}
	if resp.Results[0].Scores.Semantic.Present {
		t.Error("semantic signal must be absent after provider failure")
	}
}

func TestEngineMatchTenantIsolation(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.seed(t, "acme",
		&models.CatalogEntryInput{ID: "sku-100", Name: "Hex Head Cap Screw"},
	)

	resp, err := f.engine.Match(context.Background(), "globex",
		&models.MatchQuery{Query: "hex head cap screw"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 0 {
		t.Errorf("another tenant's catalog must be invisible, got %d results", resp.Total)
	}
}

func TestEngineMatchLearnedAdjustmentChangesOrder(t *testing.T) {
	f := newEngineFixture(t, nil)
	ctx := context.Background()
	// Two near-identical entries; training history favors the second.
	f.seed(t, "acme",
		&models.CatalogEntryInput{ID: "sku-a", Name: "hex head cap screw type a"},
		&models.CatalogEntryInput{ID: "sku-b", Name: "hex head cap screw type b"},
	)
	err := f.store.UpsertTrainingRecord(ctx, &models.TrainingRecord{
		ID:             "tr-1",
		TenantID:       "acme",
		NormalizedText: "hex head cap screw",
		EntryID:        "sku-b",
		Label:          models.LabelPositive,
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := f.engine.Match(ctx, "acme", &models.MatchQuery{Query: "hex head cap screw"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total < 2 {
		t.Fatalf("expected both entries scored, got %d", resp.Total)
	}
	if resp.Results[0].EntryID != "sku-b" {
		t.Errorf("confirmed candidate should rank first, got %s", resp.Results[0].EntryID)
	}
	if resp.Results[0].Adjustment <= 0 {
		t.Errorf("expected positive adjustment, got %g", resp.Results[0].Adjustment)
	}
	if resp.Results[1].Adjustment >= 0 {
		t.Errorf("expected contradict penalty on the other candidate, got %g", resp.Results[1].Adjustment)
	}
}
