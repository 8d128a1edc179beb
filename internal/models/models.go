package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PlatformTransaction is a payment recorded by the platform's order flow.
// Immutable once a reconciliation run has consumed it.
type PlatformTransaction struct {
	ID            string          `db:"id" json:"id" validate:"required"`
	OrderID       string          `db:"order_id" json:"order_id" validate:"required"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Currency      string          `db:"currency" json:"currency" validate:"required,len=3"`
	Status        string          `db:"status" json:"status" validate:"required"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	OccurredAt    time.Time       `db:"occurred_at" json:"occurred_at"`
	CustomerID    string          `db:"customer_id" json:"customer_id"`
	VendorID      string          `db:"vendor_id" json:"vendor_id,omitempty"`
}

// GatewayTransaction is a payment reported by an external gateway feed.
type GatewayTransaction struct {
	ID         string          `db:"id" json:"id" validate:"required"`
	Gateway    string          `db:"gateway" json:"gateway" validate:"required"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Currency   string          `db:"currency" json:"currency" validate:"required,len=3"`
	Status     string          `db:"status" json:"status" validate:"required"`
	OccurredAt time.Time       `db:"occurred_at" json:"occurred_at"`
	Reference  string          `db:"reference" json:"reference,omitempty"`
}

// TransactionMatch pairs one platform transaction with one gateway
// transaction. Each transaction id appears in at most one match per run.
type TransactionMatch struct {
	ID             string          `db:"id" json:"id"`
	RunID          string          `db:"run_id" json:"run_id"`
	PlatformTxID   string          `db:"platform_tx_id" json:"platform_tx_id"`
	GatewayTxID    string          `db:"gateway_tx_id" json:"gateway_tx_id"`
	Method         string          `db:"method" json:"method"`
	Score          float64         `db:"score" json:"score"`
	PlatformAmount decimal.Decimal `db:"platform_amount" json:"platform_amount"`
	GatewayAmount  decimal.Decimal `db:"gateway_amount" json:"gateway_amount"`
	Variance       decimal.Decimal `db:"variance" json:"variance"`
	MatchedAt      time.Time       `db:"matched_at" json:"matched_at"`
}

// Discrepancy is a transaction that could not be matched, or a matched pair
// that disagrees on amount or status. Only the fields relevant to the Type
// are populated.
type Discrepancy struct {
	ID             string            `db:"id" json:"id"`
	RunID          string            `db:"run_id" json:"run_id"`
	Type           string            `db:"type" json:"type"`
	PlatformTxID   string            `db:"platform_tx_id" json:"platform_tx_id,omitempty"`
	GatewayTxID    string            `db:"gateway_tx_id" json:"gateway_tx_id,omitempty"`
	PlatformAmount decimal.Decimal   `db:"platform_amount" json:"platform_amount"`
	GatewayAmount  decimal.Decimal   `db:"gateway_amount" json:"gateway_amount"`
	Variance       decimal.Decimal   `db:"variance" json:"variance"`
	Priority       string            `db:"priority" json:"priority"`
	Status         string            `db:"status" json:"status"`
	Resolution     *ResolutionRecord `db:"-" json:"resolution,omitempty"`
	DetectedAt     time.Time         `db:"detected_at" json:"detected_at"`
}

// ReconciliationRun is one execution of the matching pipeline for a
// (gateway, period) key. Terminal once Status leaves RunStatusInProgress.
type ReconciliationRun struct {
	ID                     string             `db:"id" json:"id"`
	Gateway                string             `db:"gateway" json:"gateway"`
	RunDate                time.Time          `db:"run_date" json:"run_date"`
	PeriodStart            time.Time          `db:"period_start" json:"period_start"`
	PeriodEnd              time.Time          `db:"period_end" json:"period_end"`
	Status                 string             `db:"status" json:"status"`
	TotalTransactions      int                `db:"total_transactions" json:"total_transactions"`
	TotalAmount            decimal.Decimal    `db:"total_amount" json:"total_amount"`
	ReconciledTransactions int                `db:"reconciled_transactions" json:"reconciled_transactions"`
	ReconciledAmount       decimal.Decimal    `db:"reconciled_amount" json:"reconciled_amount"`
	MatchingAccuracy       float64            `db:"matching_accuracy" json:"matching_accuracy"`
	Matches                []TransactionMatch `db:"-" json:"matches,omitempty"`
	Discrepancies          []Discrepancy      `db:"-" json:"discrepancies,omitempty"`
	ProcessingTimeMs       int64              `db:"processing_time_ms" json:"processing_time_ms"`
	InitiatedBy            string             `db:"initiated_by" json:"initiated_by"`
	CompletedAt            *time.Time         `db:"completed_at" json:"completed_at,omitempty"`
}

// Terminal reports whether the run can no longer be mutated.
func (r *ReconciliationRun) Terminal() bool {
	return r.Status != RunStatusInProgress
}

// ResolutionRecord captures an operator decision on a discrepancy.
// Immutable once written.
type ResolutionRecord struct {
	DiscrepancyID  string          `db:"discrepancy_id" json:"discrepancy_id"`
	ResolutionType string          `db:"resolution_type" json:"resolution_type"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Notes          string          `db:"notes" json:"notes"`
	ResolvedBy     string          `db:"resolved_by" json:"resolved_by"`
	ResolvedAt     time.Time       `db:"resolved_at" json:"resolved_at"`
}

// AdjustmentEntryRequest is handed to the accounting collaborator for ledger
// posting. The engine never posts entries itself.
type AdjustmentEntryRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// RunKey is the idempotency key for a reconciliation run.
type RunKey struct {
	Gateway     string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

func (k RunKey) String() string {
	return fmt.Sprintf("%s:%s:%s",
		k.Gateway,
		k.PeriodStart.UTC().Format(time.RFC3339),
		k.PeriodEnd.UTC().Format(time.RFC3339),
	)
}

// Match method constants
const (
	MatchMethodAutomatic = "automatic"
	MatchMethodManual    = "manual"
	MatchMethodFuzzy     = "fuzzy"
)

// Discrepancy type constants
const (
	DiscrepancyMissingPlatform = "missing_platform"
	DiscrepancyMissingGateway  = "missing_gateway"
	DiscrepancyAmountMismatch  = "amount_mismatch"
	DiscrepancyStatusMismatch  = "status_mismatch"
	DiscrepancyDuplicate       = "duplicate"
)

// Discrepancy priority constants
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Discrepancy status constants
const (
	DiscrepancyStatusPending  = "pending"
	DiscrepancyStatusResolved = "resolved"
	DiscrepancyStatusWaived   = "waived"
	DiscrepancyStatusDisputed = "disputed"
)

// Run status constants
const (
	RunStatusInProgress = "in_progress"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
	RunStatusCancelled  = "cancelled"
)

// Resolution type constants
const (
	ResolutionPlatformAdjustment = "platform_adjustment"
	ResolutionGatewayAdjustment  = "gateway_adjustment"
	ResolutionWriteOff           = "write_off"
	ResolutionWaive              = "waive"
	ResolutionDispute            = "dispute"
)

// Risk level constants
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)
