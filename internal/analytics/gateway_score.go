package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"payment-reconciliation/internal/models"
)

// Composite score weights: accuracy 40%, run success 30%, amount
// reconciliation 30%.
const (
	accuracyWeight   = 0.4
	successWeight    = 0.3
	amountRateWeight = 0.3
)

// GatewayScore aggregates many runs for one gateway into comparative
// performance metrics used for vendor-trust decisions.
type GatewayScore struct {
	Gateway                  string  `json:"gateway"`
	Runs                     int     `json:"runs"`
	TxnReconciliationRate    float64 `json:"txn_reconciliation_rate"`
	AmountReconciliationRate float64 `json:"amount_reconciliation_rate"`
	DiscrepancyRate          float64 `json:"discrepancy_rate"`
	Accuracy                 float64 `json:"accuracy"`
	SuccessRate              float64 `json:"success_rate"`
	CompositeScore           float64 `json:"composite_score"`
}

// ScoreGateway computes the performance metrics for one gateway over a set
// of runs. Transaction and amount rates aggregate completed runs only;
// failed and cancelled runs are quarantined from those sums but still count
// against the success rate.
func ScoreGateway(gateway string, runs []models.ReconciliationRun) (*GatewayScore, error) {
	if len(runs) == 0 {
		return nil, &models.NotFoundError{Entity: "runs for gateway", ID: gateway}
	}

	score := &GatewayScore{Gateway: gateway, Runs: len(runs)}

	var (
		totalTxns        int
		reconciledTxns   int
		discrepancies    int
		completed        int
		accuracySum      float64
		totalAmount      = decimal.Zero
		reconciledAmount = decimal.Zero
	)

	for i := range runs {
		run := &runs[i]
		if run.Status != models.RunStatusCompleted {
			continue
		}
		completed++
		totalTxns += run.TotalTransactions
		reconciledTxns += run.ReconciledTransactions
		discrepancies += len(run.Discrepancies)
		accuracySum += run.MatchingAccuracy
		totalAmount = totalAmount.Add(run.TotalAmount)
		reconciledAmount = reconciledAmount.Add(run.ReconciledAmount)
	}

	if totalTxns > 0 {
		score.TxnReconciliationRate = float64(reconciledTxns) / float64(totalTxns) * 100
		score.DiscrepancyRate = float64(discrepancies) / float64(totalTxns) * 100
	}
	if totalAmount.IsPositive() {
		rate, _ := reconciledAmount.Div(totalAmount).Mul(decimal.NewFromInt(100)).Float64()
		score.AmountReconciliationRate = rate
	}
	if completed > 0 {
		score.Accuracy = accuracySum / float64(completed)
	}
	score.SuccessRate = float64(completed) / float64(len(runs)) * 100
	score.CompositeScore = score.Accuracy*accuracyWeight +
		score.SuccessRate*successWeight +
		score.AmountReconciliationRate*amountRateWeight

	return score, nil
}

// RankGateways scores every gateway and orders them by composite score,
// best first. Ties break toward the higher accuracy.
func RankGateways(runsByGateway map[string][]models.ReconciliationRun) ([]GatewayScore, error) {
	scores := make([]GatewayScore, 0, len(runsByGateway))
	for gateway, runs := range runsByGateway {
		score, err := ScoreGateway(gateway, runs)
		if err != nil {
			return nil, err
		}
		scores = append(scores, *score)
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].CompositeScore != scores[j].CompositeScore {
			return scores[i].CompositeScore > scores[j].CompositeScore
		}
		if scores[i].Accuracy != scores[j].Accuracy {
			return scores[i].Accuracy > scores[j].Accuracy
		}
		return scores[i].Gateway < scores[j].Gateway
	})

	return scores, nil
}
