package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"payment-reconciliation/internal/models"
)

const (
	// DefaultTimeWindow is the maximum timestamp distance for a match when
	// the caller does not configure one.
	DefaultTimeWindow = 2 * time.Hour

	// ExactMatchScore is assigned to tolerance matches found by the
	// automatic pass.
	ExactMatchScore = 100
)

// Config controls the matching pass. The zero value requires exact amount
// and timestamp equality; use DefaultConfig for the stock tolerances.
type Config struct {
	// ToleranceAmount is the maximum allowed absolute amount difference.
	ToleranceAmount decimal.Decimal

	// TimeWindow is the maximum allowed absolute timestamp difference.
	TimeWindow time.Duration

	// AutoMatchScoreThreshold is the minimum score (0-100) a candidate pair
	// must reach to be matched automatically.
	AutoMatchScoreThreshold float64
}

// DefaultConfig returns the stock matching configuration: exact amounts,
// a two hour window, and automatic matching at full score only.
func DefaultConfig() Config {
	return Config{
		ToleranceAmount:         decimal.Zero,
		TimeWindow:              DefaultTimeWindow,
		AutoMatchScoreThreshold: ExactMatchScore,
	}
}

// Result carries the output of one matching pass.
type Result struct {
	Matches           []models.TransactionMatch
	UnmatchedPlatform []models.PlatformTransaction
	UnmatchedGateway  []models.GatewayTransaction
}

// MatchEngine pairs platform transactions against gateway transactions
// within an amount tolerance and a time window.
type MatchEngine struct {
	cfg Config
}

func NewMatchEngine(cfg Config) *MatchEngine {
	return &MatchEngine{cfg: cfg}
}

// Match runs the first-found greedy pass. For each platform transaction, in
// input order, the first gateway transaction within both tolerances wins and
// both sides are consumed for the rest of the run. There is no backtracking
// and no closest-amount preference, so identical, identically ordered inputs
// always produce the identical match set.
//
// On context cancellation Match returns the matches made so far together
// with the context error; leftovers are not reported in that case.
func (m *MatchEngine) Match(ctx context.Context, runID string, platformTxs []models.PlatformTransaction, gatewayTxs []models.GatewayTransaction) (*Result, error) {
	result := &Result{}

	consumedGateway := make(map[int]bool, len(gatewayTxs))
	matchedPlatform := make(map[int]bool, len(platformTxs))

	for pi := range platformTxs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		pt := &platformTxs[pi]
		for gi := range gatewayTxs {
			if consumedGateway[gi] {
				continue
			}

			gt := &gatewayTxs[gi]
			if !m.withinTolerance(pt.Amount, gt.Amount) {
				continue
			}
			if !m.withinWindow(pt.OccurredAt, gt.OccurredAt) {
				continue
			}
			if ExactMatchScore < m.cfg.AutoMatchScoreThreshold {
				continue
			}

			result.Matches = append(result.Matches, models.TransactionMatch{
				ID:             fmt.Sprintf("%s-MATCH-%s", runID, pt.ID),
				RunID:          runID,
				PlatformTxID:   pt.ID,
				GatewayTxID:    gt.ID,
				Method:         models.MatchMethodAutomatic,
				Score:          ExactMatchScore,
				PlatformAmount: pt.Amount,
				GatewayAmount:  gt.Amount,
				Variance:       pt.Amount.Sub(gt.Amount).Abs(),
				MatchedAt:      time.Now().UTC(),
			})
			consumedGateway[gi] = true
			matchedPlatform[pi] = true
			break
		}
	}

	for pi := range platformTxs {
		if !matchedPlatform[pi] {
			result.UnmatchedPlatform = append(result.UnmatchedPlatform, platformTxs[pi])
		}
	}
	for gi := range gatewayTxs {
		if !consumedGateway[gi] {
			result.UnmatchedGateway = append(result.UnmatchedGateway, gatewayTxs[gi])
		}
	}

	return result, nil
}

func (m *MatchEngine) withinTolerance(platformAmount, gatewayAmount decimal.Decimal) bool {
	return platformAmount.Sub(gatewayAmount).Abs().Cmp(m.cfg.ToleranceAmount) <= 0
}

func (m *MatchEngine) withinWindow(platformTime, gatewayTime time.Time) bool {
	diff := platformTime.Sub(gatewayTime)
	if diff < 0 {
		diff = -diff
	}
	return diff <= m.cfg.TimeWindow
}
