package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// ReconciliationRepository implements ports.ReconciliationRepository.
type ReconciliationRepository struct {
	pool *pgxpool.Pool
}

// NewReconciliationRepository creates a new reconciliation repository
func NewReconciliationRepository(pool *pgxpool.Pool) *ReconciliationRepository {
	return &ReconciliationRepository{pool: pool}
}

// Save persists one run's report.
func (r *ReconciliationRepository) Save(ctx context.Context, tx ports.DBTX, report *ports.ReconciliationReport) error {
	_, err := querier(r.pool, tx).Exec(ctx, `
		INSERT INTO reconciliation_reports
			(id, store_id, period_start, period_end, gross_revenue, total_fees, net, checksum, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		report.ID, report.StoreID, report.PeriodStart, report.PeriodEnd,
		report.GrossRevenue, report.TotalFees, report.Net,
		report.Checksum, report.Status, report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save reconciliation report: %w", err)
	}
	return nil
}

// GetLatest returns the most recent report for the exact period, or nil when
// the period has never been reconciled.
func (r *ReconciliationRepository) GetLatest(ctx context.Context, tx ports.DBTX, storeID uuid.UUID, periodStart, periodEnd time.Time) (*ports.ReconciliationReport, error) {
	var report ports.ReconciliationReport
	err := querier(r.pool, tx).QueryRow(ctx, `
		SELECT id, store_id, period_start, period_end, gross_revenue, total_fees, net, checksum, status, created_at
		FROM reconciliation_reports
		WHERE store_id = $1 AND period_start = $2 AND period_end = $3
		ORDER BY created_at DESC
		LIMIT 1`,
		storeID, periodStart, periodEnd).Scan(
		&report.ID, &report.StoreID, &report.PeriodStart, &report.PeriodEnd,
		&report.GrossRevenue, &report.TotalFees, &report.Net,
		&report.Checksum, &report.Status, &report.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest reconciliation report: %w", err)
	}
	return &report, nil
}

// ListStoreIDsWithActivity returns stores that posted ledger transactions in
// the period, so the job skips idle tenants.
func (r *ReconciliationRepository) ListStoreIDsWithActivity(ctx context.Context, tx ports.DBTX, from, to time.Time) ([]uuid.UUID, error) {
	rows, err := querier(r.pool, tx).Query(ctx, `
		SELECT DISTINCT store_id
		FROM ledger_transactions
		WHERE created_at >= $1 AND created_at < $2`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list stores with activity: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan store id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
