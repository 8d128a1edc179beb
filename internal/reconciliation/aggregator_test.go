package reconciliation

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"payment-reconciliation/internal/models"
)

var testBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testKey() models.RunKey {
	return models.RunKey{
		Gateway:     "cards",
		PeriodStart: testBase,
		PeriodEnd:   testBase.Add(24 * time.Hour),
	}
}

func TestAggregateSummary(t *testing.T) {
	platform := []models.PlatformTransaction{
		{ID: "P1", Amount: decimal.NewFromInt(1500), OccurredAt: testBase},
		{ID: "P2", Amount: decimal.NewFromInt(2250), OccurredAt: testBase},
	}
	gateway := []models.GatewayTransaction{
		{ID: "G1", Amount: decimal.NewFromInt(1500), OccurredAt: testBase},
	}
	matches := []models.TransactionMatch{
		{ID: "M1", PlatformTxID: "P1", GatewayTxID: "G1", PlatformAmount: decimal.NewFromInt(1500)},
	}
	discs := []models.Discrepancy{
		{ID: "D1", Type: models.DiscrepancyMissingGateway, PlatformTxID: "P2"},
	}

	run := NewRun(testKey(), "tester")
	if err := Aggregate(run, platform, gateway, matches, discs); err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if run.TotalTransactions != 2 {
		t.Fatalf("expected 2 total transactions, got %d", run.TotalTransactions)
	}
	if !run.TotalAmount.Equal(decimal.NewFromInt(3750)) {
		t.Fatalf("expected total amount 3750, got %s", run.TotalAmount)
	}
	if run.ReconciledTransactions != 1 {
		t.Fatalf("expected 1 reconciled transaction, got %d", run.ReconciledTransactions)
	}
	if !run.ReconciledAmount.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("expected reconciled amount 1500, got %s", run.ReconciledAmount)
	}
	if run.MatchingAccuracy != 50 {
		t.Fatalf("expected accuracy 50, got %f", run.MatchingAccuracy)
	}
	if run.Status != models.RunStatusInProgress {
		t.Fatalf("Aggregate must not complete the run, got %s", run.Status)
	}
}

func TestAggregateEmptyRun(t *testing.T) {
	run := NewRun(testKey(), "tester")
	if err := Aggregate(run, nil, nil, nil, nil); err != nil {
		t.Fatalf("empty inputs are not an error: %v", err)
	}
	if run.MatchingAccuracy != 0 {
		t.Fatalf("accuracy must be 0 with no transactions, got %f", run.MatchingAccuracy)
	}
	if err := Complete(run); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if run.Status != models.RunStatusCompleted {
		t.Fatalf("expected completed, got %s", run.Status)
	}
}

func TestAggregateInvariantViolation(t *testing.T) {
	platform := []models.PlatformTransaction{
		{ID: "P1", Amount: decimal.NewFromInt(100), OccurredAt: testBase},
		{ID: "P2", Amount: decimal.NewFromInt(200), OccurredAt: testBase},
	}

	// One platform transaction unaccounted for: no match, no discrepancy.
	run := NewRun(testKey(), "tester")
	err := Aggregate(run, platform, nil, nil, []models.Discrepancy{
		{ID: "D1", Type: models.DiscrepancyMissingGateway, PlatformTxID: "P1"},
	})
	if err == nil {
		t.Fatal("expected invariant violation")
	}
	var iv *models.InvariantViolationError
	if !errors.As(err, &iv) {
		t.Fatalf("expected InvariantViolationError, got %T", err)
	}
	if run.Status != models.RunStatusFailed {
		t.Fatalf("an invariant violation must fail the run, got %s", run.Status)
	}
	if run.CompletedAt == nil {
		t.Fatal("failed runs are terminal and must carry a completion time")
	}
}

func TestLifecycleTerminalGuard(t *testing.T) {
	run := NewRun(testKey(), "tester")
	if err := Complete(run); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	for _, transition := range []func(*models.ReconciliationRun) error{Complete, Cancel, Fail} {
		if err := transition(run); !models.IsInvalidState(err) {
			t.Fatalf("terminal run must reject transitions with InvalidStateError, got %v", err)
		}
	}
	if run.Status != models.RunStatusCompleted {
		t.Fatalf("terminal status must not change, got %s", run.Status)
	}
}

func TestCancelRetainsMatches(t *testing.T) {
	run := NewRun(testKey(), "tester")
	run.Matches = []models.TransactionMatch{{ID: "M1"}}
	if err := Cancel(run); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if run.Status != models.RunStatusCancelled {
		t.Fatalf("expected cancelled, got %s", run.Status)
	}
	if len(run.Matches) != 1 {
		t.Fatal("partial matches must be retained for audit")
	}
}
