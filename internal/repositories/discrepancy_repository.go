package repositories

import (
	"context"
	"database/sql"

	"payment-reconciliation/internal/models"
)

// DiscrepancyRepository persists discrepancies and their resolution records.
// Resolve performs the one-way pending transition; losers of a concurrent
// resolution race receive InvalidStateError.
type DiscrepancyRepository interface {
	InsertDiscrepancies(ctx context.Context, discs []models.Discrepancy) error
	GetDiscrepancy(ctx context.Context, id string) (*models.Discrepancy, error)
	ListByRun(ctx context.Context, runID string) ([]models.Discrepancy, error)
	// Resolve atomically moves the discrepancy from pending to newStatus and
	// writes the resolution record.
	Resolve(ctx context.Context, id string, newStatus string, res models.ResolutionRecord) error
}

type discrepancyRepository struct {
	db *sql.DB
}

func NewDiscrepancyRepository(db *sql.DB) DiscrepancyRepository {
	return &discrepancyRepository{db: db}
}

func (r *discrepancyRepository) InsertDiscrepancies(ctx context.Context, discs []models.Discrepancy) error {
	if len(discs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO discrepancies (
			id, run_id, type, platform_tx_id, gateway_tx_id,
			platform_amount, gateway_amount, variance, priority, status, detected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i := range discs {
		d := &discs[i]
		_, err := tx.ExecContext(ctx, query,
			d.ID,
			d.RunID,
			d.Type,
			d.PlatformTxID,
			d.GatewayTxID,
			d.PlatformAmount,
			d.GatewayAmount,
			d.Variance,
			d.Priority,
			d.Status,
			d.DetectedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *discrepancyRepository) GetDiscrepancy(ctx context.Context, id string) (*models.Discrepancy, error) {
	d := &models.Discrepancy{}
	query := `
		SELECT id, run_id, type, platform_tx_id, gateway_tx_id,
		       platform_amount, gateway_amount, variance, priority, status, detected_at
		FROM discrepancies
		WHERE id = ?
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
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
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Entity: "discrepancy", ID: id}
	}
	if err != nil {
		return nil, err
	}

	res, err := r.getResolution(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Resolution = res
	return d, nil
}

func (r *discrepancyRepository) getResolution(ctx context.Context, discrepancyID string) (*models.ResolutionRecord, error) {
	res := &models.ResolutionRecord{}
	query := `
		SELECT discrepancy_id, resolution_type, amount, notes, resolved_by, resolved_at
		FROM resolution_records
		WHERE discrepancy_id = ?
	`
	err := r.db.QueryRowContext(ctx, query, discrepancyID).Scan(
		&res.DiscrepancyID,
		&res.ResolutionType,
		&res.Amount,
		&res.Notes,
		&res.ResolvedBy,
		&res.ResolvedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *discrepancyRepository) ListByRun(ctx context.Context, runID string) ([]models.Discrepancy, error) {
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

func (r *discrepancyRepository) Resolve(ctx context.Context, id string, newStatus string, res models.ResolutionRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Compare-and-set: only a pending discrepancy can transition, and only
	// one concurrent caller sees a row affected.
	result, err := tx.ExecContext(ctx, `
		UPDATE discrepancies
		SET status = ?
		WHERE id = ? AND status = ?
	`, newStatus, id, models.DiscrepancyStatusPending)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		cur, err := r.GetDiscrepancy(ctx, id)
		if err != nil {
			return err
		}
		return &models.InvalidStateError{Entity: "discrepancy", ID: id, State: cur.Status, Op: "resolve"}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO resolution_records (
			discrepancy_id, resolution_type, amount, notes, resolved_by, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`,
		res.DiscrepancyID,
		res.ResolutionType,
		res.Amount,
		res.Notes,
		res.ResolvedBy,
		res.ResolvedAt,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}
