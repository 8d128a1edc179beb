package analytics

import (
	"github.com/shopspring/decimal"

	"payment-reconciliation/internal/models"
)

// Variance rate thresholds (percent of total amount) for the risk ladder.
const (
	criticalVarianceRate = 5.0
	highVarianceRate     = 2.0
	mediumVarianceRate   = 1.0
)

// VarianceReport is the numeric variance contract for one completed run,
// plus advisory pattern text for operators.
type VarianceReport struct {
	RunID           string          `json:"run_id"`
	Gateway         string          `json:"gateway"`
	TotalVariance   decimal.Decimal `json:"total_variance"`
	AverageVariance decimal.Decimal `json:"average_variance"`
	LargestVariance decimal.Decimal `json:"largest_variance"`
	VarianceRate    float64         `json:"variance_rate"`
	RiskLevel       string          `json:"risk_level"`
	Patterns        []string        `json:"patterns,omitempty"`
}

// AnalyzeVariance computes variance statistics and a risk level for a
// completed run. Failed and cancelled runs are quarantined from analytics
// and rejected with InvalidStateError.
func AnalyzeVariance(run *models.ReconciliationRun) (*VarianceReport, error) {
	if run.Status != models.RunStatusCompleted {
		return nil, &models.InvalidStateError{Entity: "run", ID: run.ID, State: run.Status, Op: "analyze"}
	}

	report := &VarianceReport{
		RunID:           run.ID,
		Gateway:         run.Gateway,
		TotalVariance:   decimal.Zero,
		AverageVariance: decimal.Zero,
		LargestVariance: decimal.Zero,
	}

	for i := range run.Discrepancies {
		v := run.Discrepancies[i].Variance.Abs()
		report.TotalVariance = report.TotalVariance.Add(v)
		if v.Cmp(report.LargestVariance) > 0 {
			report.LargestVariance = v
		}
	}

	if n := len(run.Discrepancies); n > 0 {
		report.AverageVariance = report.TotalVariance.Div(decimal.NewFromInt(int64(n)))
	}
	if run.TotalAmount.IsPositive() {
		rate, _ := report.TotalVariance.Div(run.TotalAmount).Mul(decimal.NewFromInt(100)).Float64()
		report.VarianceRate = rate
	}

	report.RiskLevel = riskLevel(report.VarianceRate)
	report.Patterns = patterns(run)
	return report, nil
}

func riskLevel(varianceRate float64) string {
	switch {
	case varianceRate > criticalVarianceRate:
		return models.RiskCritical
	case varianceRate > highVarianceRate:
		return models.RiskHigh
	case varianceRate > mediumVarianceRate:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// patterns is an advisory rule table, not part of the numeric contract.
func patterns(run *models.ReconciliationRun) []string {
	var missingGateway, missingPlatform, mismatches int
	for i := range run.Discrepancies {
		switch run.Discrepancies[i].Type {
		case models.DiscrepancyMissingGateway:
			missingGateway++
		case models.DiscrepancyMissingPlatform:
			missingPlatform++
		case models.DiscrepancyAmountMismatch, models.DiscrepancyStatusMismatch:
			mismatches++
		}
	}

	var out []string
	if missingGateway > 0 && missingGateway >= 2*max(missingPlatform, 1) {
		out = append(out, "gateway feed is missing a disproportionate share of platform captures; check feed completeness before closing the period")
	}
	if missingPlatform > 0 && missingPlatform >= 2*max(missingGateway, 1) {
		out = append(out, "gateway reports transactions the platform never recorded; check for duplicate or out-of-band captures")
	}
	if mismatches > 0 {
		out = append(out, "linked pairs disagree on amount or status; review gateway fee handling and status mapping")
	}
	if run.MatchingAccuracy < 90 && run.TotalTransactions > 0 {
		out = append(out, "matching accuracy below 90%; consider reviewing tolerance and time window settings")
	}
	return out
}
