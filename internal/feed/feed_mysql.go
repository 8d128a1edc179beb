package feed

import (
	"context"
	"database/sql"

	"payment-reconciliation/internal/models"
)

// MySQLFeed reads the staged feed tables that the ingestion pipeline fills.
// Platform transactions are selected by payment method routing to the
// gateway; gateway transactions by the gateway column.
type MySQLFeed struct {
	db *sql.DB
}

func NewMySQLFeed(db *sql.DB) *MySQLFeed {
	return &MySQLFeed{db: db}
}

func (f *MySQLFeed) Fetch(ctx context.Context, key models.RunKey) ([]models.PlatformTransaction, []models.GatewayTransaction, error) {
	platform, err := f.platformTransactions(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	gateway, err := f.gatewayTransactions(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return platform, gateway, nil
}

func (f *MySQLFeed) platformTransactions(ctx context.Context, key models.RunKey) ([]models.PlatformTransaction, error) {
	query := `
		SELECT id, order_id, amount, currency, status, payment_method,
		       occurred_at, customer_id, vendor_id
		FROM platform_transactions
		WHERE payment_method = ?
		AND occurred_at BETWEEN ? AND ?
		ORDER BY occurred_at, id
	`
	rows, err := f.db.QueryContext(ctx, query, key.Gateway, key.PeriodStart, key.PeriodEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.PlatformTransaction
	for rows.Next() {
		var t models.PlatformTransaction
		err := rows.Scan(
			&t.ID,
			&t.OrderID,
			&t.Amount,
			&t.Currency,
			&t.Status,
			&t.PaymentMethod,
			&t.OccurredAt,
			&t.CustomerID,
			&t.VendorID,
		)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (f *MySQLFeed) gatewayTransactions(ctx context.Context, key models.RunKey) ([]models.GatewayTransaction, error) {
	query := `
		SELECT id, gateway, amount, currency, status, occurred_at, reference
		FROM gateway_transactions
		WHERE gateway = ?
		AND occurred_at BETWEEN ? AND ?
		ORDER BY occurred_at, id
	`
	rows, err := f.db.QueryContext(ctx, query, key.Gateway, key.PeriodStart, key.PeriodEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.GatewayTransaction
	for rows.Next() {
		var t models.GatewayTransaction
		err := rows.Scan(
			&t.ID,
			&t.Gateway,
			&t.Amount,
			&t.Currency,
			&t.Status,
			&t.OccurredAt,
			&t.Reference,
		)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
