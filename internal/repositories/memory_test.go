package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"payment-reconciliation/internal/models"
)

func TestMemoryStoreRunRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	run := &models.ReconciliationRun{
		ID:      "RUN-1",
		Gateway: "cards",
		Status:  models.RunStatusInProgress,
		RunDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	run.Status = models.RunStatusCompleted
	run.Matches = []models.TransactionMatch{{ID: "RUN-1-MATCH-P1", RunID: "RUN-1"}}
	if err := store.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := store.GetRun(ctx, "RUN-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != models.RunStatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if len(got.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got.Matches))
	}

	// The returned run is a copy; mutating it must not leak back.
	got.Status = models.RunStatusFailed
	again, _ := store.GetRun(ctx, "RUN-1")
	if again.Status != models.RunStatusCompleted {
		t.Fatalf("stored run mutated through returned copy")
	}
}

func TestMemoryStoreRunNotFound(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.GetRun(ctx, "RUN-missing"); !models.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if err := store.FinishRun(ctx, &models.ReconciliationRun{ID: "RUN-missing"}); !models.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestMemoryStoreListRunsByGateway(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, r := range []models.ReconciliationRun{
		{ID: "RUN-1", Gateway: "cards", RunDate: base},
		{ID: "RUN-2", Gateway: "cards", RunDate: base.AddDate(0, 0, 10)},
		{ID: "RUN-3", Gateway: "mobile_banking", RunDate: base},
	} {
		r := r
		if err := store.CreateRun(ctx, &r); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	runs, err := store.ListRunsByGateway(ctx, "cards", base, base.AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("ListRunsByGateway: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "RUN-1" {
		t.Fatalf("expected only RUN-1, got %+v", runs)
	}
}

func TestMemoryStoreResolveSingleWinner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	disc := models.Discrepancy{
		ID:       "RUN-1-DISC-MG-P1",
		RunID:    "RUN-1",
		Type:     models.DiscrepancyMissingGateway,
		Status:   models.DiscrepancyStatusPending,
		Variance: decimal.NewFromInt(100),
	}
	if err := store.InsertDiscrepancies(ctx, []models.Discrepancy{disc}); err != nil {
		t.Fatalf("InsertDiscrepancies: %v", err)
	}

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Resolve(ctx, disc.ID, models.DiscrepancyStatusResolved, models.ResolutionRecord{
				ResolutionType: models.ResolutionWriteOff,
				ResolvedBy:     "ops",
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case models.IsInvalidState(err):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	got, err := store.GetDiscrepancy(ctx, disc.ID)
	if err != nil {
		t.Fatalf("GetDiscrepancy: %v", err)
	}
	if got.Status != models.DiscrepancyStatusResolved {
		t.Fatalf("expected resolved, got %s", got.Status)
	}
	if got.Resolution == nil || got.Resolution.ResolvedBy != "ops" {
		t.Fatalf("expected resolution record, got %+v", got.Resolution)
	}
}

func TestMemoryStoreListByRun(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	discs := []models.Discrepancy{
		{ID: "RUN-1-DISC-MG-P1", RunID: "RUN-1", Status: models.DiscrepancyStatusPending},
		{ID: "RUN-1-DISC-MP-G1", RunID: "RUN-1", Status: models.DiscrepancyStatusPending},
		{ID: "RUN-2-DISC-MG-P9", RunID: "RUN-2", Status: models.DiscrepancyStatusPending},
	}
	if err := store.InsertDiscrepancies(ctx, discs); err != nil {
		t.Fatalf("InsertDiscrepancies: %v", err)
	}

	got, err := store.ListByRun(ctx, "RUN-1")
	if err != nil {
		t.Fatalf("ListByRun: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 discrepancies for RUN-1, got %d", len(got))
	}
}
