package reconciliation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payment-reconciliation/internal/models"
)

// NewRun opens an in-progress run for a (gateway, period) key.
func NewRun(key models.RunKey, initiatedBy string) *models.ReconciliationRun {
	return &models.ReconciliationRun{
		ID:               "RUN-" + uuid.NewString(),
		Gateway:          key.Gateway,
		RunDate:          time.Now().UTC(),
		PeriodStart:      key.PeriodStart,
		PeriodEnd:        key.PeriodEnd,
		Status:           models.RunStatusInProgress,
		TotalAmount:      decimal.Zero,
		ReconciledAmount: decimal.Zero,
		InitiatedBy:      initiatedBy,
	}
}

// Aggregate fills the run summary from the matcher and classifier outputs
// and checks the completion invariant on both sides. On a violation the run
// is marked failed and the error carries the full diagnostic counts; the
// run's output must then be quarantined, not merged into analytics.
//
// Aggregate leaves a healthy run in_progress; callers persist the
// discrepancies and then call Complete.
func Aggregate(run *models.ReconciliationRun, platformTxs []models.PlatformTransaction, gatewayTxs []models.GatewayTransaction, matches []models.TransactionMatch, discs []models.Discrepancy) error {
	if run.Terminal() {
		return &models.InvalidStateError{Entity: "run", ID: run.ID, State: run.Status, Op: "aggregate"}
	}

	totalAmount := decimal.Zero
	for i := range platformTxs {
		totalAmount = totalAmount.Add(platformTxs[i].Amount)
	}
	reconciledAmount := decimal.Zero
	for i := range matches {
		reconciledAmount = reconciledAmount.Add(matches[i].PlatformAmount)
	}

	run.TotalTransactions = len(platformTxs)
	run.TotalAmount = totalAmount
	run.ReconciledTransactions = len(matches)
	run.ReconciledAmount = reconciledAmount
	run.Matches = matches
	run.Discrepancies = discs

	if run.TotalTransactions == 0 {
		run.MatchingAccuracy = 0
	} else {
		run.MatchingAccuracy = float64(run.ReconciledTransactions) / float64(run.TotalTransactions) * 100
	}

	missingGateway := 0
	missingPlatform := 0
	for i := range discs {
		switch discs[i].Type {
		case models.DiscrepancyMissingGateway:
			missingGateway++
		case models.DiscrepancyMissingPlatform:
			missingPlatform++
		}
	}

	if run.ReconciledTransactions+missingGateway != len(platformTxs) {
		return failInvariant(run, fmt.Sprintf(
			"platform side: %d matched + %d missing_gateway != %d platform transactions",
			run.ReconciledTransactions, missingGateway, len(platformTxs),
		))
	}
	if run.ReconciledTransactions+missingPlatform != len(gatewayTxs) {
		return failInvariant(run, fmt.Sprintf(
			"gateway side: %d matched + %d missing_platform != %d gateway transactions",
			run.ReconciledTransactions, missingPlatform, len(gatewayTxs),
		))
	}

	return nil
}

func failInvariant(run *models.ReconciliationRun, details string) error {
	now := time.Now().UTC()
	run.Status = models.RunStatusFailed
	run.CompletedAt = &now
	return &models.InvariantViolationError{RunID: run.ID, Details: details}
}

// Complete moves an in-progress run to its happy terminal state.
func Complete(run *models.ReconciliationRun) error {
	return transition(run, models.RunStatusCompleted, "complete")
}

// Cancel marks an aborted run. Matches already made are retained for audit.
func Cancel(run *models.ReconciliationRun) error {
	return transition(run, models.RunStatusCancelled, "cancel")
}

// Fail marks a run that hit an unrecoverable error.
func Fail(run *models.ReconciliationRun) error {
	return transition(run, models.RunStatusFailed, "fail")
}

func transition(run *models.ReconciliationRun, status, op string) error {
	if run.Terminal() {
		return &models.InvalidStateError{Entity: "run", ID: run.ID, State: run.Status, Op: op}
	}
	now := time.Now().UTC()
	run.Status = status
	run.CompletedAt = &now
	return nil
}
