package resolution

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"payment-reconciliation/internal/models"
	"payment-reconciliation/internal/repositories"
)

// Request is an operator decision on a single pending discrepancy.
type Request struct {
	DiscrepancyID  string
	ResolutionType string
	// Amount defaults to the discrepancy variance when nil.
	Amount     *decimal.Decimal
	Notes      string
	ResolvedBy string
}

// Impact reports what the resolution would mean for reconciled reality.
// Stored runs are immutable once terminal; only a future run reflects the
// adjustment.
type Impact struct {
	AmountAdjusted      decimal.Decimal `json:"amount_adjusted"`
	AccuracyImprovement float64         `json:"accuracy_improvement"`
}

// Outcome carries the updated discrepancy, the immutable resolution record,
// the optional adjustment request for the accounting collaborator, and the
// reported impact.
type Outcome struct {
	Discrepancy models.Discrepancy
	Resolution  models.ResolutionRecord
	Adjustment  *models.AdjustmentEntryRequest
	Impact      Impact
}

// Workflow applies operator resolutions. Each discrepancy resolves exactly
// once: the status transition is a compare-and-set on pending, so concurrent
// attempts have one winner and the losers receive InvalidStateError.
type Workflow struct {
	discs  repositories.DiscrepancyRepository
	runs   repositories.RunRepository
	logger *logrus.Logger
}

func NewWorkflow(discs repositories.DiscrepancyRepository, runs repositories.RunRepository, logger *logrus.Logger) *Workflow {
	return &Workflow{discs: discs, runs: runs, logger: logger}
}

func (w *Workflow) Resolve(ctx context.Context, req Request) (*Outcome, error) {
	newStatus, err := statusFor(req.ResolutionType)
	if err != nil {
		return nil, err
	}

	disc, err := w.discs.GetDiscrepancy(ctx, req.DiscrepancyID)
	if err != nil {
		return nil, err
	}
	if disc.Status != models.DiscrepancyStatusPending {
		return nil, &models.InvalidStateError{Entity: "discrepancy", ID: disc.ID, State: disc.Status, Op: "resolve"}
	}

	amount := disc.Variance
	if req.Amount != nil {
		amount = *req.Amount
	}

	record := models.ResolutionRecord{
		DiscrepancyID:  disc.ID,
		ResolutionType: req.ResolutionType,
		Amount:         amount,
		Notes:          req.Notes,
		ResolvedBy:     req.ResolvedBy,
		ResolvedAt:     time.Now().UTC(),
	}

	if err := w.discs.Resolve(ctx, disc.ID, newStatus, record); err != nil {
		return nil, err
	}
	disc.Status = newStatus
	disc.Resolution = &record

	outcome := &Outcome{
		Discrepancy: *disc,
		Resolution:  record,
		Impact:      w.impact(ctx, disc, amount),
	}
	if !amount.IsZero() {
		outcome.Adjustment = &models.AdjustmentEntryRequest{
			Amount: amount,
			Description: fmt.Sprintf("%s adjustment for discrepancy %s (%s), resolved by %s",
				req.ResolutionType, disc.ID, disc.Type, req.ResolvedBy),
		}
	}

	w.logger.WithFields(logrus.Fields{
		"discrepancy_id": disc.ID,
		"resolution":     req.ResolutionType,
		"status":         newStatus,
		"amount":         amount,
		"resolved_by":    req.ResolvedBy,
	}).Info("discrepancy resolved")

	return outcome, nil
}

func statusFor(resolutionType string) (string, error) {
	switch resolutionType {
	case models.ResolutionDispute:
		return models.DiscrepancyStatusDisputed, nil
	case models.ResolutionWaive:
		return models.DiscrepancyStatusWaived, nil
	case models.ResolutionPlatformAdjustment, models.ResolutionGatewayAdjustment, models.ResolutionWriteOff:
		return models.DiscrepancyStatusResolved, nil
	default:
		return "", &models.ValidationError{Field: "resolution_type", Reason: fmt.Sprintf("unknown resolution type %q", resolutionType)}
	}
}

// impact reports the accuracy a re-run would gain once the adjustment lands.
// Lookup failures degrade to a zero improvement; the resolution itself has
// already been committed.
func (w *Workflow) impact(ctx context.Context, disc *models.Discrepancy, amount decimal.Decimal) Impact {
	imp := Impact{AmountAdjusted: amount}

	switch disc.Resolution.ResolutionType {
	case models.ResolutionPlatformAdjustment, models.ResolutionGatewayAdjustment:
	default:
		return imp
	}

	run, err := w.runs.GetRun(ctx, disc.RunID)
	if err != nil || run.TotalTransactions == 0 {
		return imp
	}
	imp.AccuracyImprovement = 100 / float64(run.TotalTransactions)
	return imp
}
