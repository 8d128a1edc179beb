package analytics

import (
	"testing"

	"github.com/shopspring/decimal"

	"payment-reconciliation/internal/models"
)

func completedRun(totalAmount int64, variances ...float64) *models.ReconciliationRun {
	run := &models.ReconciliationRun{
		ID:          "R1",
		Gateway:     "cards",
		Status:      models.RunStatusCompleted,
		TotalAmount: decimal.NewFromInt(totalAmount),
	}
	for i, v := range variances {
		run.Discrepancies = append(run.Discrepancies, models.Discrepancy{
			ID:       string(rune('A' + i)),
			Type:     models.DiscrepancyMissingGateway,
			Variance: decimal.NewFromFloat(v),
			Status:   models.DiscrepancyStatusPending,
		})
	}
	return run
}

func TestAnalyzeVarianceStatistics(t *testing.T) {
	run := completedRun(1000, 10, 30, 20)

	report, err := AnalyzeVariance(run)
	if err != nil {
		t.Fatalf("AnalyzeVariance: %v", err)
	}

	if !report.TotalVariance.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected total variance 60, got %s", report.TotalVariance)
	}
	if !report.AverageVariance.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected average variance 20, got %s", report.AverageVariance)
	}
	if !report.LargestVariance.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected largest variance 30, got %s", report.LargestVariance)
	}
	if report.VarianceRate != 6 {
		t.Fatalf("expected variance rate 6, got %f", report.VarianceRate)
	}
}

func TestAnalyzeVarianceRiskThresholds(t *testing.T) {
	cases := []struct {
		variance float64
		risk     string
	}{
		{6.0, models.RiskCritical},
		{3.0, models.RiskHigh},
		{1.5, models.RiskMedium},
		{0.5, models.RiskLow},
	}
	for _, tc := range cases {
		// Total amount 100 makes the variance rate equal the variance.
		run := completedRun(100, tc.variance)
		report, err := AnalyzeVariance(run)
		if err != nil {
			t.Fatalf("AnalyzeVariance: %v", err)
		}
		if report.VarianceRate != tc.variance {
			t.Fatalf("variance %g: expected rate %g, got %g", tc.variance, tc.variance, report.VarianceRate)
		}
		if report.RiskLevel != tc.risk {
			t.Fatalf("rate %g: expected risk %s, got %s", tc.variance, tc.risk, report.RiskLevel)
		}
	}
}

func TestAnalyzeVarianceNoDiscrepancies(t *testing.T) {
	report, err := AnalyzeVariance(completedRun(1000))
	if err != nil {
		t.Fatalf("AnalyzeVariance: %v", err)
	}
	if !report.TotalVariance.IsZero() || !report.AverageVariance.IsZero() || !report.LargestVariance.IsZero() {
		t.Fatalf("clean run should report zero variance, got %+v", report)
	}
	if report.VarianceRate != 0 || report.RiskLevel != models.RiskLow {
		t.Fatalf("clean run should be low risk, got %s at %f", report.RiskLevel, report.VarianceRate)
	}
}

func TestAnalyzeVarianceZeroTotalAmount(t *testing.T) {
	report, err := AnalyzeVariance(completedRun(0, 5))
	if err != nil {
		t.Fatalf("AnalyzeVariance: %v", err)
	}
	if report.VarianceRate != 0 {
		t.Fatalf("variance rate must be 0 with no total amount, got %f", report.VarianceRate)
	}
}

func TestAnalyzeVarianceQuarantinesNonCompletedRuns(t *testing.T) {
	for _, status := range []string{models.RunStatusInProgress, models.RunStatusFailed, models.RunStatusCancelled} {
		run := completedRun(1000, 10)
		run.Status = status
		if _, err := AnalyzeVariance(run); !models.IsInvalidState(err) {
			t.Fatalf("status %s: expected InvalidStateError, got %v", status, err)
		}
	}
}
