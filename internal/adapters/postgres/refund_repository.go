package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// RefundRepository implements ports.RefundRepository with pgx.
type RefundRepository struct {
	pool *pgxpool.Pool
}

// NewRefundRepository creates a new refund repository
func NewRefundRepository(pool *pgxpool.Pool) *RefundRepository {
	return &RefundRepository{pool: pool}
}

const refundColumns = `id, intent_id, store_id, amount, fee_reversal, currency, reason, note,
	operator_id, status, idempotency_key, provider_refund_id, created_at, updated_at`

// Create persists a new refund.
func (r *RefundRepository) Create(ctx context.Context, tx ports.DBTX, refund *domain.Refund) error {
	_, err := querier(r.pool, tx).Exec(ctx, `
		INSERT INTO refunds (`+refundColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		refund.ID, refund.IntentID, refund.StoreID, refund.Amount, refund.FeeReversal,
		refund.Currency, refund.Reason, refund.Note, refund.OperatorID, refund.Status,
		refund.IdempotencyKey, refund.ProviderRefundID, refund.CreatedAt, refund.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict.WithDetail("idempotency_key", refund.IdempotencyKey)
		}
		return fmt.Errorf("create refund: %w", err)
	}
	return nil
}

// GetByID retrieves a refund by its id.
func (r *RefundRepository) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*domain.Refund, error) {
	row := querier(r.pool, tx).QueryRow(ctx,
		`SELECT `+refundColumns+` FROM refunds WHERE id = $1`, id)
	return scanRefund(row)
}

// GetByIdempotencyKey retrieves a refund by its request key.
func (r *RefundRepository) GetByIdempotencyKey(ctx context.Context, tx ports.DBTX, key string) (*domain.Refund, error) {
	row := querier(r.pool, tx).QueryRow(ctx,
		`SELECT `+refundColumns+` FROM refunds WHERE idempotency_key = $1`, key)
	return scanRefund(row)
}

// UpdateStatus moves a refund to a new status, optionally recording the
// provider's refund reference.
func (r *RefundRepository) UpdateStatus(ctx context.Context, tx ports.DBTX, id uuid.UUID, status domain.RefundStatus, providerRefundID *string) error {
	tag, err := querier(r.pool, tx).Exec(ctx, `
		UPDATE refunds
		SET status = $2, provider_refund_id = COALESCE($3, provider_refund_id), updated_at = $4
		WHERE id = $1`,
		id, status, providerRefundID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update refund status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRefundNotFound.WithDetail("refund_id", id.String())
	}
	return nil
}

func scanRefund(row interface{ Scan(dest ...any) error }) (*domain.Refund, error) {
	var refund domain.Refund
	err := row.Scan(
		&refund.ID, &refund.IntentID, &refund.StoreID, &refund.Amount, &refund.FeeReversal,
		&refund.Currency, &refund.Reason, &refund.Note, &refund.OperatorID, &refund.Status,
		&refund.IdempotencyKey, &refund.ProviderRefundID, &refund.CreatedAt, &refund.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrRefundNotFound
		}
		return nil, fmt.Errorf("scan refund: %w", err)
	}
	return &refund, nil
}
