package discrepancy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"payment-reconciliation/internal/models"
)

var testBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestClassifyLeftovers(t *testing.T) {
	unmatchedPlatform := []models.PlatformTransaction{
		{ID: "P1", OrderID: "O1", Amount: decimal.NewFromInt(2250), Currency: "USD", Status: "captured", OccurredAt: testBase},
	}
	unmatchedGateway := []models.GatewayTransaction{
		{ID: "G1", Gateway: "cards", Amount: decimal.NewFromInt(75), Currency: "USD", Status: "settled", OccurredAt: testBase},
	}

	c := NewClassifier(DefaultHighPriorityThreshold)
	discs := c.Classify("R1", unmatchedPlatform, unmatchedGateway)

	if len(discs) != 2 {
		t.Fatalf("expected one discrepancy per leftover, got %d", len(discs))
	}

	mg := discs[0]
	if mg.Type != models.DiscrepancyMissingGateway {
		t.Fatalf("unmatched platform tx must classify as missing_gateway, got %s", mg.Type)
	}
	if mg.PlatformTxID != "P1" || !mg.PlatformAmount.Equal(decimal.NewFromInt(2250)) {
		t.Fatalf("missing_gateway should carry the platform side, got %+v", mg)
	}
	if mg.GatewayTxID != "" {
		t.Fatalf("missing_gateway must not carry a gateway tx id, got %q", mg.GatewayTxID)
	}
	if mg.Status != models.DiscrepancyStatusPending {
		t.Fatalf("new discrepancies start pending, got %s", mg.Status)
	}

	mp := discs[1]
	if mp.Type != models.DiscrepancyMissingPlatform {
		t.Fatalf("unmatched gateway tx must classify as missing_platform, got %s", mp.Type)
	}
	if mp.GatewayTxID != "G1" || !mp.GatewayAmount.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("missing_platform should carry the gateway side, got %+v", mp)
	}
}

func TestClassifyPriorityRule(t *testing.T) {
	cases := []struct {
		amount   int64
		priority string
	}{
		{12000, models.PriorityHigh},
		{10001, models.PriorityHigh},
		{10000, models.PriorityMedium},
		{9999, models.PriorityMedium},
		{75, models.PriorityMedium},
	}

	c := NewClassifier(DefaultHighPriorityThreshold)
	for _, tc := range cases {
		discs := c.Classify("R1", []models.PlatformTransaction{
			{ID: "P1", Amount: decimal.NewFromInt(tc.amount), OccurredAt: testBase},
		}, nil)
		if len(discs) != 1 {
			t.Fatalf("amount %d: expected 1 discrepancy, got %d", tc.amount, len(discs))
		}
		if discs[0].Priority != tc.priority {
			t.Fatalf("amount %d: expected priority %s, got %s", tc.amount, tc.priority, discs[0].Priority)
		}
	}
}

func TestClassifyEmpty(t *testing.T) {
	c := NewClassifier(DefaultHighPriorityThreshold)
	if discs := c.Classify("R1", nil, nil); len(discs) != 0 {
		t.Fatalf("no leftovers means no discrepancies, got %d", len(discs))
	}
}

func TestClassifyLinked(t *testing.T) {
	platform := []models.PlatformTransaction{
		{ID: "P1", OrderID: "O1", Amount: decimal.NewFromInt(100), Status: "captured", OccurredAt: testBase},
		{ID: "P2", OrderID: "O2", Amount: decimal.NewFromInt(200), Status: "captured", OccurredAt: testBase},
	}
	gateway := []models.GatewayTransaction{
		{ID: "G1", Reference: "O1", Amount: decimal.NewFromInt(150), Status: "settled", OccurredAt: testBase},
		{ID: "G2", Reference: "O2", Amount: decimal.NewFromInt(200), Status: "failed", OccurredAt: testBase},
		{ID: "G3", Reference: "O2", Amount: decimal.NewFromInt(200), Status: "failed", OccurredAt: testBase},
	}

	c := NewClassifier(DefaultHighPriorityThreshold)
	discs := c.ClassifyLinked("R1", platform, gateway, decimal.NewFromInt(1))

	var amountMismatch, statusMismatch, duplicates int
	for _, d := range discs {
		switch d.Type {
		case models.DiscrepancyAmountMismatch:
			amountMismatch++
			if d.PlatformTxID != "P1" || d.GatewayTxID != "G1" {
				t.Fatalf("amount_mismatch should link P1/G1, got %s/%s", d.PlatformTxID, d.GatewayTxID)
			}
			if !d.Variance.Equal(decimal.NewFromInt(50)) {
				t.Fatalf("expected variance 50, got %s", d.Variance)
			}
		case models.DiscrepancyStatusMismatch:
			statusMismatch++
			if d.PlatformTxID != "P2" {
				t.Fatalf("status_mismatch should link P2, got %s", d.PlatformTxID)
			}
		case models.DiscrepancyDuplicate:
			duplicates++
			if d.GatewayTxID != "G3" {
				t.Fatalf("the second transaction with a repeated reference is the duplicate, got %s", d.GatewayTxID)
			}
		}
	}
	if amountMismatch != 1 || statusMismatch != 1 || duplicates != 1 {
		t.Fatalf("expected 1 of each linked type, got amount=%d status=%d dup=%d",
			amountMismatch, statusMismatch, duplicates)
	}
}
