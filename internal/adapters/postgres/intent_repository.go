package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// IntentRepository implements ports.IntentRepository with pgx.
type IntentRepository struct {
	pool *pgxpool.Pool
}

// NewIntentRepository creates a new intent repository
func NewIntentRepository(pool *pgxpool.Pool) *IntentRepository {
	return &IntentRepository{pool: pool}
}

const intentColumns = `id, store_id, order_id, idempotency_key, amount, currency, provider,
	provider_ref, status, order_source, version, refunded_amount, refund_count,
	commission, channel_fee, client_url, client_secret, expires_at, created_at, updated_at`

// Create persists a new intent at version 1.
func (r *IntentRepository) Create(ctx context.Context, tx ports.DBTX, intent *domain.PaymentIntent) error {
	commission, err := json.Marshal(intent.Commission)
	if err != nil {
		return fmt.Errorf("marshal commission snapshot: %w", err)
	}

	_, err = querier(r.pool, tx).Exec(ctx, `
		INSERT INTO payment_intents (`+intentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		intent.ID, intent.StoreID, intent.OrderID, intent.IdempotencyKey,
		intent.Amount, intent.Currency, intent.Provider, intent.ProviderRef,
		intent.Status, intent.OrderSource, intent.Version, intent.RefundedAmount,
		intent.RefundCount, commission, intent.ChannelFee, intent.ClientURL,
		intent.ClientSecret, intent.ExpiresAt, intent.CreatedAt, intent.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict.WithDetail("idempotency_key", intent.IdempotencyKey)
		}
		return fmt.Errorf("create intent: %w", err)
	}
	return nil
}

// GetByID retrieves an intent by its id.
func (r *IntentRepository) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*domain.PaymentIntent, error) {
	row := querier(r.pool, tx).QueryRow(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE id = $1`, id)
	return scanIntent(row)
}

// GetByIdempotencyKey retrieves an intent by its creation key.
func (r *IntentRepository) GetByIdempotencyKey(ctx context.Context, tx ports.DBTX, key string) (*domain.PaymentIntent, error) {
	row := querier(r.pool, tx).QueryRow(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE idempotency_key = $1`, key)
	return scanIntent(row)
}

// GetByProviderRef retrieves an intent by the provider's reference.
func (r *IntentRepository) GetByProviderRef(ctx context.Context, tx ports.DBTX, provider, providerRef string) (*domain.PaymentIntent, error) {
	row := querier(r.pool, tx).QueryRow(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE provider = $1 AND provider_ref = $2`,
		provider, providerRef)
	return scanIntent(row)
}

// UpdateCAS writes the intent conditional on the version it was read at.
// The WHERE version clause is the optimistic lock; zero rows affected means
// another writer won the race.
func (r *IntentRepository) UpdateCAS(ctx context.Context, tx ports.DBTX, intent *domain.PaymentIntent) error {
	commission, err := json.Marshal(intent.Commission)
	if err != nil {
		return fmt.Errorf("marshal commission snapshot: %w", err)
	}

	tag, err := querier(r.pool, tx).Exec(ctx, `
		UPDATE payment_intents SET
			provider = $3, provider_ref = $4, status = $5,
			refunded_amount = $6, refund_count = $7, commission = $8,
			client_url = $9, client_secret = $10, expires_at = $11,
			updated_at = $12, version = version + 1
		WHERE id = $1 AND version = $2`,
		intent.ID, intent.Version,
		intent.Provider, intent.ProviderRef, intent.Status,
		intent.RefundedAmount, intent.RefundCount, commission,
		intent.ClientURL, intent.ClientSecret, intent.ExpiresAt,
		intent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOptimisticLockConflict.
			WithDetail("intent_id", intent.ID.String()).
			WithDetail("read_version", intent.Version)
	}
	intent.Version++
	return nil
}

func scanIntent(row interface{ Scan(dest ...any) error }) (*domain.PaymentIntent, error) {
	var (
		intent     domain.PaymentIntent
		commission []byte
	)
	err := row.Scan(
		&intent.ID, &intent.StoreID, &intent.OrderID, &intent.IdempotencyKey,
		&intent.Amount, &intent.Currency, &intent.Provider, &intent.ProviderRef,
		&intent.Status, &intent.OrderSource, &intent.Version, &intent.RefundedAmount,
		&intent.RefundCount, &commission, &intent.ChannelFee, &intent.ClientURL,
		&intent.ClientSecret, &intent.ExpiresAt, &intent.CreatedAt, &intent.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrIntentNotFound
		}
		return nil, fmt.Errorf("scan intent: %w", err)
	}
	if err := json.Unmarshal(commission, &intent.Commission); err != nil {
		return nil, fmt.Errorf("unmarshal commission snapshot: %w", err)
	}
	return &intent, nil
}
