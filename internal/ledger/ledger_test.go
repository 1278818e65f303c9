package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/procurehub/linematch/internal/models"
	"github.com/procurehub/linematch/internal/normalize"
	"github.com/procurehub/linematch/internal/storage"
)

func newTestLedger(t *testing.T) (*Ledger, storage.Storage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return NewLedger(store, normalize.NewNormalizer(), nil), store
}

func seedEntry(t *testing.T, store storage.Storage, tenant, id string) {
	t.Helper()
	err := store.PutEntries(context.Background(), tenant, []*models.CatalogEntry{
		{TenantID: tenant, ID: id, Name: "Hex Head Cap Screw", NormalizedName: "hex head cap screw"},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRecordDecisionApprove(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()
	seedEntry(t, store, "acme", "sku-100")

	decision, err := l.RecordDecision(ctx, "acme", &models.DecisionInput{
		LineItemID: "li-1",
		Status:     models.StatusApproved,
		EntryID:    "sku-100",
		QueryText:  "HX HD CAP SCR",
		Reviewer:   "alice",
	})
	if err != nil {
		t.Fatal(err)
	}
	if decision.Status != models.StatusApproved {
		t.Errorf("expected approved, got %s", decision.Status)
	}
	if decision.EntryID == nil || *decision.EntryID != "sku-100" {
		t.Errorf("entry not recorded: %+v", decision)
	}
	if decision.ReviewedAt == nil {
		t.Error("ReviewedAt should be set on review")
	}

	// Approval feeds the training corpus with the normalized text.
	recs, err := store.ListTrainingRecords(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 training record, got %d", len(recs))
	}
	if recs[0].NormalizedText != "hex head cap screw" {
		t.Errorf("training text must be normalized: %q", recs[0].NormalizedText)
	}
	if recs[0].Label != models.LabelPositive || recs[0].EntryID != "sku-100" {
		t.Errorf("unexpected training record: %+v", recs[0])
	}
}

func TestRecordDecisionRejectBlanketNoMatch(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	decision, err := l.RecordDecision(ctx, "acme", &models.DecisionInput{
		LineItemID: "li-1",
		Status:     models.StatusRejected,
		QueryText:  "mystery widget",
		Reviewer:   "alice",
	})
	if err != nil {
		t.Fatal(err)
	}
	if decision.Status != models.StatusRejected || decision.EntryID != nil {
		t.Errorf("unexpected decision: %+v", decision)
	}

	recs, _ := store.ListTrainingRecords(ctx, "acme")
	if len(recs) != 1 || recs[0].Label != models.LabelNegative || recs[0].EntryID != "" {
		t.Errorf("expected blanket negative record, got %+v", recs)
	}
}

func TestRecordDecisionReplaceInPlace(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()
	seedEntry(t, store, "acme", "sku-100")
	seedEntry(t, store, "acme", "sku-200")

	steps := []models.DecisionInput{
		{LineItemID: "li-1", Status: models.StatusApproved, EntryID: "sku-100", QueryText: "hex screw"},
		{LineItemID: "li-1", Status: models.StatusRejected, EntryID: "sku-100", QueryText: "hex screw"},
		{LineItemID: "li-1", Status: models.StatusApproved, EntryID: "sku-200", QueryText: "hex screw"},
	}
	for i := range steps {
		if _, err := l.RecordDecision(ctx, "acme", &steps[i]); err != nil {
			t.Fatal(err)
		}
	}

	count, err := store.CountDecisions(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected exactly one decision row after replays, got %d", count)
	}
	current, err := l.Decision(ctx, "acme", "li-1")
	if err != nil {
		t.Fatal(err)
	}
	if current.Status != models.StatusApproved || *current.EntryID != "sku-200" {
		t.Errorf("last write should win: %+v", current)
	}
}

func TestRecordDecisionPending(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()
	seedEntry(t, store, "acme", "sku-100")

	// Pending is a scoring placeholder: no training feedback.
	if _, err := l.RecordDecision(ctx, "acme", &models.DecisionInput{
		LineItemID: "li-1",
		Status:     models.StatusPending,
		QueryText:  "hex screw",
	}); err != nil {
		t.Fatal(err)
	}
	count, _ := store.CountTrainingRecords(ctx, "acme")
	if count != 0 {
		t.Errorf("pending must not create training records, got %d", count)
	}

	// Pending after review returns the reviewed state untouched.
	if _, err := l.RecordDecision(ctx, "acme", &models.DecisionInput{
		LineItemID: "li-1",
		Status:     models.StatusApproved,
		EntryID:    "sku-100",
	}); err != nil {
		t.Fatal(err)
	}
	current, err := l.RecordDecision(ctx, "acme", &models.DecisionInput{
		LineItemID: "li-1",
		Status:     models.StatusPending,
	})
	if err != nil {
		t.Fatal(err)
	}
	if current.Status != models.StatusApproved {
		t.Errorf("pending must not downgrade a review, got %s", current.Status)
	}
}

func TestRecordDecisionValidation(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()
	seedEntry(t, store, "acme", "sku-100")

	cases := []struct {
		name   string
		tenant string
		input  models.DecisionInput
	}{
		{"empty tenant", "", models.DecisionInput{LineItemID: "li-1", Status: models.StatusPending}},
		{"empty line item", "acme", models.DecisionInput{Status: models.StatusPending}},
		{"bad status", "acme", models.DecisionInput{LineItemID: "li-1", Status: "maybe"}},
		{"approve without entry", "acme", models.DecisionInput{LineItemID: "li-1", Status: models.StatusApproved}},
		{"approve unknown entry", "acme", models.DecisionInput{LineItemID: "li-1", Status: models.StatusApproved, EntryID: "missing"}},
		{"approve cross-tenant entry", "globex", models.DecisionInput{LineItemID: "li-1", Status: models.StatusApproved, EntryID: "sku-100"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := l.RecordDecision(ctx, tc.tenant, &tc.input); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	// Nothing was written for any invalid input.
	for _, tenant := range []string{"acme", "globex"} {
		count, _ := store.CountDecisions(ctx, tenant)
		if count != 0 {
			t.Errorf("invalid input must not write decisions for %s, got %d", tenant, count)
		}
	}
}

func TestDecisionLookup(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.Decision(ctx, "acme", "li-404"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := l.Decision(ctx, "", "li-1"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty tenant, got %v", err)
	}
	if _, err := l.Decision(ctx, "acme", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty line item, got %v", err)
	}
}
