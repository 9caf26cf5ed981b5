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

// StoreRepository implements ports.StoreRepository with pgx. This service
// only reads tenant rows; onboarding owns the writes.
type StoreRepository struct {
	pool *pgxpool.Pool
}

// NewStoreRepository creates a new store repository
func NewStoreRepository(pool *pgxpool.Pool) *StoreRepository {
	return &StoreRepository{pool: pool}
}

// GetByID retrieves a store's orchestrator-relevant configuration.
func (r *StoreRepository) GetByID(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*domain.Store, error) {
	var (
		store        domain.Store
		bank         []byte
		rateSchedule []byte
	)
	err := querier(r.pool, tx).QueryRow(ctx, `
		SELECT id, status, read_only_mode, bank_verified, bank, country, currency,
			enabled_providers, rate_schedule, payout_daily_limit, created_at, updated_at
		FROM stores WHERE id = $1`, id).Scan(
		&store.ID, &store.Status, &store.ReadOnlyMode, &store.BankVerified, &bank,
		&store.Country, &store.Currency, &store.EnabledProviders, &rateSchedule,
		&store.PayoutDailyLimit, &store.CreatedAt, &store.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrStoreNotFound.WithDetail("store_id", id.String())
		}
		return nil, fmt.Errorf("get store: %w", err)
	}
	if err := json.Unmarshal(bank, &store.Bank); err != nil {
		return nil, fmt.Errorf("unmarshal bank snapshot: %w", err)
	}
	if err := json.Unmarshal(rateSchedule, &store.RateSchedule); err != nil {
		return nil, fmt.Errorf("unmarshal rate schedule: %w", err)
	}
	return &store, nil
}
