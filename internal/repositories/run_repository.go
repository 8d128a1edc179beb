package repositories

import (
	"context"
	"database/sql"
	"time"

	"payment-reconciliation/internal/models"
)

// RunRepository persists reconciliation runs and their matches. The engine
// is storage-agnostic; this port is satisfied by the MySQL implementation
// below and by the in-memory store.
type RunRepository interface {
	CreateRun(ctx context.Context, run *models.ReconciliationRun) error
	// FinishRun writes the run's summary fields and match rows once the run
	// has reached a terminal status.
	FinishRun(ctx context.Context, run *models.ReconciliationRun) error
	GetRun(ctx context.Context, id string) (*models.ReconciliationRun, error)
	ListRunsByGateway(ctx context.Context, gateway string, from, to time.Time) ([]models.ReconciliationRun, error)
}

type runRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) CreateRun(ctx context.Context, run *models.ReconciliationRun) error {
	query := `
		INSERT INTO reconciliation_runs (
			id, gateway, run_date, period_start, period_end, status,
			total_transactions, total_amount, reconciled_transactions,
			reconciled_amount, matching_accuracy, processing_time_ms, initiated_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.Gateway,
		run.RunDate,
		run.PeriodStart,
		run.PeriodEnd,
		run.Status,
		run.TotalTransactions,
		run.TotalAmount,
		run.ReconciledTransactions,
		run.ReconciledAmount,
		run.MatchingAccuracy,
		run.ProcessingTimeMs,
		run.InitiatedBy,
	)
	return err
}

func (r *runRepository) FinishRun(ctx context.Context, run *models.ReconciliationRun) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE reconciliation_runs
		SET status = ?,
			total_transactions = ?,
			total_amount = ?,
			reconciled_transactions = ?,
			reconciled_amount = ?,
			matching_accuracy = ?,
			processing_time_ms = ?,
			completed_at = ?
		WHERE id = ?
	`
	result, err := tx.ExecContext(ctx, query,
		run.Status,
		run.TotalTransactions,
		run.TotalAmount,
		run.ReconciledTransactions,
		run.ReconciledAmount,
		run.MatchingAccuracy,
		run.ProcessingTimeMs,
		run.CompletedAt,
		run.ID,
	)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return &models.NotFoundError{Entity: "reconciliation run", ID: run.ID}
	}

	matchQuery := `
		INSERT INTO transaction_matches (
			id, run_id, platform_tx_id, gateway_tx_id, method, score,
			platform_amount, gateway_amount, variance, matched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i := range run.Matches {
		m := &run.Matches[i]
		_, err := tx.ExecContext(ctx, matchQuery,
			m.ID,
			m.RunID,
			m.PlatformTxID,
			m.GatewayTxID,
			m.Method,
			m.Score,
			m.PlatformAmount,
			m.GatewayAmount,
			m.Variance,
			m.MatchedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *runRepository) GetRun(ctx context.Context, id string) (*models.ReconciliationRun, error) {
	run := &models.ReconciliationRun{}
	query := `
		SELECT id, gateway, run_date, period_start, period_end, status,
		       total_transactions, total_amount, reconciled_transactions,
		       reconciled_amount, matching_accuracy, processing_time_ms,
		       initiated_by, completed_at
		FROM reconciliation_runs
		WHERE id = ?
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Gateway,
		&run.RunDate,
		&run.PeriodStart,
		&run.PeriodEnd,
		&run.Status,
		&run.TotalTransactions,
		&run.TotalAmount,
		&run.ReconciledTransactions,
		&run.ReconciledAmount,
		&run.MatchingAccuracy,
		&run.ProcessingTimeMs,
		&run.InitiatedBy,
		&run.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Entity: "reconciliation run", ID: id}
	}
	if err != nil {
		return nil, err
	}

	matches, err := r.getMatches(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Matches = matches

	discs, err := r.getDiscrepancies(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Discrepancies = discs
	return run, nil
}

func (r *runRepository) getDiscrepancies(ctx context.Context, runID string) ([]models.Discrepancy, error) {
	query := `
		SELECT id, run_id, type, platform_tx_id, gateway_tx_id,
		       platform_amount, gateway_amount, variance, priority, status, detected_at
		FROM discrepancies
		WHERE run_id = ?
		ORDER BY detected_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var discs []models.Discrepancy
	for rows.Next() {
		var d models.Discrepancy
		err := rows.Scan(
			&d.ID,
			&d.RunID,
			&d.Type,
			&d.PlatformTxID,
			&d.GatewayTxID,
			&d.PlatformAmount,
			&d.GatewayAmount,
			&d.Variance,
			&d.Priority,
			&d.Status,
			&d.DetectedAt,
		)
		if err != nil {
			return nil, err
		}
		discs = append(discs, d)
	}
	return discs, rows.Err()
}

func (r *runRepository) getMatches(ctx context.Context, runID string) ([]models.TransactionMatch, error) {
	query := `
		SELECT id, run_id, platform_tx_id, gateway_tx_id, method, score,
		       platform_amount, gateway_amount, variance, matched_at
		FROM transaction_matches
		WHERE run_id = ?
		ORDER BY matched_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []models.TransactionMatch
	for rows.Next() {
		var m models.TransactionMatch
		err := rows.Scan(
			&m.ID,
			&m.RunID,
			&m.PlatformTxID,
			&m.GatewayTxID,
			&m.Method,
			&m.Score,
			&m.PlatformAmount,
			&m.GatewayAmount,
			&m.Variance,
			&m.MatchedAt,
		)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *runRepository) ListRunsByGateway(ctx context.Context, gateway string, from, to time.Time) ([]models.ReconciliationRun, error) {
	query := `
		SELECT id, gateway, run_date, period_start, period_end, status,
		       total_transactions, total_amount, reconciled_transactions,
		       reconciled_amount, matching_accuracy, processing_time_ms,
		       initiated_by, completed_at
		FROM reconciliation_runs
		WHERE gateway = ?
		AND run_date BETWEEN ? AND ?
		ORDER BY run_date
	`
	rows, err := r.db.QueryContext(ctx, query, gateway, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ReconciliationRun
	for rows.Next() {
		var run models.ReconciliationRun
		err := rows.Scan(
			&run.ID,
			&run.Gateway,
			&run.RunDate,
			&run.PeriodStart,
			&run.PeriodEnd,
			&run.Status,
			&run.TotalTransactions,
			&run.TotalAmount,
			&run.ReconciledTransactions,
			&run.ReconciledAmount,
			&run.MatchingAccuracy,
			&run.ProcessingTimeMs,
			&run.InitiatedBy,
			&run.CompletedAt,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Analytics needs the discrepancy lists, not just the summary counts.
	for i := range runs {
		discs, err := r.getDiscrepancies(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Discrepancies = discs
	}
	return runs, nil
}
