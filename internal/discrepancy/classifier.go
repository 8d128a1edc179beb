package discrepancy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"payment-reconciliation/internal/models"
)

// DefaultHighPriorityThreshold is the amount (currency major units) above
// which an unmatched transaction is escalated to high priority.
var DefaultHighPriorityThreshold = decimal.NewFromInt(10000)

// Classifier turns matcher leftovers into typed, prioritized discrepancy
// records. Every record starts pending.
type Classifier struct {
	highPriorityThreshold decimal.Decimal
}

func NewClassifier(highPriorityThreshold decimal.Decimal) *Classifier {
	return &Classifier{highPriorityThreshold: highPriorityThreshold}
}

// Classify produces exactly one discrepancy per leftover transaction: an
// unmatched platform transaction becomes missing_gateway, an unmatched
// gateway transaction becomes missing_platform.
func (c *Classifier) Classify(runID string, unmatchedPlatform []models.PlatformTransaction, unmatchedGateway []models.GatewayTransaction) []models.Discrepancy {
	discs := make([]models.Discrepancy, 0, len(unmatchedPlatform)+len(unmatchedGateway))
	now := time.Now().UTC()

	for i := range unmatchedPlatform {
		pt := &unmatchedPlatform[i]
		discs = append(discs, models.Discrepancy{
			ID:             fmt.Sprintf("%s-DISC-MG-%s", runID, pt.ID),
			RunID:          runID,
			Type:           models.DiscrepancyMissingGateway,
			PlatformTxID:   pt.ID,
			PlatformAmount: pt.Amount,
			Variance:       pt.Amount,
			Priority:       c.priorityFor(pt.Amount),
			Status:         models.DiscrepancyStatusPending,
			DetectedAt:     now,
		})
	}

	for i := range unmatchedGateway {
		gt := &unmatchedGateway[i]
		discs = append(discs, models.Discrepancy{
			ID:            fmt.Sprintf("%s-DISC-MP-%s", runID, gt.ID),
			RunID:         runID,
			Type:          models.DiscrepancyMissingPlatform,
			GatewayTxID:   gt.ID,
			GatewayAmount: gt.Amount,
			Variance:      gt.Amount,
			Priority:      c.priorityFor(gt.Amount),
			Status:        models.DiscrepancyStatusPending,
			DetectedAt:    now,
		})
	}

	return discs
}

// ClassifyLinked compares pairs linked by an explicit reference key (gateway
// reference == platform order id) and emits amount_mismatch when the amounts
// disagree beyond tolerance, status_mismatch when the amounts agree but the
// statuses do not, and duplicate when several gateway transactions carry the
// same reference. Pairs without a counterpart are ignored here; the base
// Classify pass owns those.
func (c *Classifier) ClassifyLinked(runID string, platformTxs []models.PlatformTransaction, gatewayTxs []models.GatewayTransaction, tolerance decimal.Decimal) []models.Discrepancy {
	var discs []models.Discrepancy
	now := time.Now().UTC()

	byOrder := make(map[string]*models.PlatformTransaction, len(platformTxs))
	for i := range platformTxs {
		byOrder[platformTxs[i].OrderID] = &platformTxs[i]
	}

	seenRef := make(map[string]string, len(gatewayTxs))
	for i := range gatewayTxs {
		gt := &gatewayTxs[i]
		if gt.Reference == "" {
			continue
		}

		if _, dup := seenRef[gt.Reference]; dup {
			discs = append(discs, models.Discrepancy{
				ID:            fmt.Sprintf("%s-DISC-DUP-%s", runID, gt.ID),
				RunID:         runID,
				Type:          models.DiscrepancyDuplicate,
				GatewayTxID:   gt.ID,
				GatewayAmount: gt.Amount,
				Variance:      gt.Amount,
				Priority:      models.PriorityHigh,
				Status:        models.DiscrepancyStatusPending,
				DetectedAt:    now,
			})
			continue
		}
		seenRef[gt.Reference] = gt.ID

		pt, ok := byOrder[gt.Reference]
		if !ok {
			continue
		}

		diff := pt.Amount.Sub(gt.Amount).Abs()
		if diff.Cmp(tolerance) > 0 {
			discs = append(discs, models.Discrepancy{
				ID:             fmt.Sprintf("%s-DISC-AM-%s", runID, pt.ID),
				RunID:          runID,
				Type:           models.DiscrepancyAmountMismatch,
				PlatformTxID:   pt.ID,
				GatewayTxID:    gt.ID,
				PlatformAmount: pt.Amount,
				GatewayAmount:  gt.Amount,
				Variance:       diff,
				Priority:       c.priorityFor(diff),
				Status:         models.DiscrepancyStatusPending,
				DetectedAt:     now,
			})
			continue
		}

		if pt.Status != gt.Status {
			discs = append(discs, models.Discrepancy{
				ID:             fmt.Sprintf("%s-DISC-SM-%s", runID, pt.ID),
				RunID:          runID,
				Type:           models.DiscrepancyStatusMismatch,
				PlatformTxID:   pt.ID,
				GatewayTxID:    gt.ID,
				PlatformAmount: pt.Amount,
				GatewayAmount:  gt.Amount,
				Priority:       models.PriorityMedium,
				Status:         models.DiscrepancyStatusPending,
				DetectedAt:     now,
			})
		}
	}

	return discs
}

func (c *Classifier) priorityFor(amount decimal.Decimal) string {
	if amount.Cmp(c.highPriorityThreshold) > 0 {
		return models.PriorityHigh
	}
	return models.PriorityMedium
}
