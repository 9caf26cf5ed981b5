package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// PayoutRepository implements ports.PayoutRepository with pgx.
type PayoutRepository struct {
	pool *pgxpool.Pool
}

// NewPayoutRepository creates a new payout repository
func NewPayoutRepository(pool *pgxpool.Pool) *PayoutRepository {
	return &PayoutRepository{pool: pool}
}

const payoutColumns = `id, store_id, amount, currency, status, bank, idempotency_key,
	earmark_txn_id, failure_code, created_at, updated_at`

// Create persists a new payout with its frozen bank snapshot.
func (r *PayoutRepository) Create(ctx context.Context, tx ports.DBTX, payout *domain.Payout) error {
	bank, err := json.Marshal(payout.Bank)
	if err != nil {
		return fmt.Errorf("marshal bank snapshot: %w", err)
	}

	_, err = querier(r.pool, tx).Exec(ctx, `
		INSERT INTO payouts (`+payoutColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		payout.ID, payout.StoreID, payout.Amount, payout.Currency, payout.Status,
		bank, payout.IdempotencyKey, payout.EarmarkTxnID, payout.FailureCode,
		payout.CreatedAt, payout.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict.WithDetail("idempotency_key", payout.IdempotencyKey)
		}
		return fmt.Errorf("create payout: %w", err)
	}
	return nil
}

// GetByID retrieves a payout by its id.
func (r *PayoutRepository) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*domain.Payout, error) {
	row := querier(r.pool, tx).QueryRow(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id)
	return scanPayout(row)
}

// GetByIdempotencyKey retrieves a payout by its request key.
func (r *PayoutRepository) GetByIdempotencyKey(ctx context.Context, tx ports.DBTX, key string) (*domain.Payout, error) {
	row := querier(r.pool, tx).QueryRow(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE idempotency_key = $1`, key)
	return scanPayout(row)
}

// UpdateStatus moves a payout to a new status. The status precondition is
// part of the UPDATE itself, so a concurrent transition that got there first
// makes this write match zero rows instead of applying twice.
func (r *PayoutRepository) UpdateStatus(ctx context.Context, tx ports.DBTX, id uuid.UUID, from, to domain.PayoutStatus, failureCode string) error {
	tag, err := querier(r.pool, tx).Exec(ctx, `
		UPDATE payouts SET status = $3, failure_code = $4, updated_at = $5
		WHERE id = $1 AND status = $2`,
		id, from, to, failureCode, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update payout status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition.
			WithDetail("payout_id", id.String()).
			WithDetail("expected", string(from)).
			WithDetail("to", string(to))
	}
	return nil
}

// SumRequestedSince totals non-failed payout amounts created after the
// cutoff. Failed payouts do not count against the daily cap because their
// earmark was reversed.
func (r *PayoutRepository) SumRequestedSince(ctx context.Context, tx ports.DBTX, storeID uuid.UUID, since time.Time) (int64, error) {
	var total int64
	err := querier(r.pool, tx).QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM payouts
		WHERE store_id = $1 AND created_at >= $2 AND status <> $3`,
		storeID, since, domain.PayoutStatusFailed).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum requested payouts: %w", err)
	}
	return total, nil
}

func scanPayout(row interface{ Scan(dest ...any) error }) (*domain.Payout, error) {
	var (
		payout domain.Payout
		bank   []byte
	)
	err := row.Scan(
		&payout.ID, &payout.StoreID, &payout.Amount, &payout.Currency, &payout.Status,
		&bank, &payout.IdempotencyKey, &payout.EarmarkTxnID, &payout.FailureCode,
		&payout.CreatedAt, &payout.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("scan payout: %w", err)
	}
	if err := json.Unmarshal(bank, &payout.Bank); err != nil {
		return nil, fmt.Errorf("unmarshal bank snapshot: %w", err)
	}
	return &payout, nil
}
