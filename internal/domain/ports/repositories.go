package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
)

// IntentRepository persists PaymentIntents. All mutations are compare-and-
// swap on the version column; a stale version yields
// OPTIMISTIC_LOCK_CONFLICT.
type IntentRepository interface {
	Create(ctx context.Context, tx DBTX, intent *domain.PaymentIntent) error
	GetByID(ctx context.Context, tx DBTX, id uuid.UUID) (*domain.PaymentIntent, error)
	GetByIdempotencyKey(ctx context.Context, tx DBTX, key string) (*domain.PaymentIntent, error)
	GetByProviderRef(ctx context.Context, tx DBTX, provider, providerRef string) (*domain.PaymentIntent, error)
	// UpdateCAS writes the intent conditional on the version it was read at
	// and bumps the version by one. intent.Version must hold the read
	// version; on success it is incremented in place.
	UpdateCAS(ctx context.Context, tx DBTX, intent *domain.PaymentIntent) error
}

// LedgerRepository appends balanced transactions and derives balances by
// summation. No mutable balance cache exists.
type LedgerRepository interface {
	Append(ctx context.Context, tx DBTX, txn *domain.LedgerTransaction) error
	GetByID(ctx context.Context, tx DBTX, id uuid.UUID) (*domain.LedgerTransaction, error)
	// AccountBalance sums credits minus debits for one store account.
	AccountBalance(ctx context.Context, tx DBTX, storeID uuid.UUID, account domain.LedgerAccount) (int64, error)
	// ListByStorePeriod returns transactions ordered by (created_at, id).
	ListByStorePeriod(ctx context.Context, tx DBTX, storeID uuid.UUID, from, to time.Time) ([]*domain.LedgerTransaction, error)
}

// EventRepository appends audit events. Append returns IDEMPOTENCY_CONFLICT
// when the dedup key already exists.
type EventRepository interface {
	Append(ctx context.Context, tx DBTX, event *domain.PaymentEvent) error
	ExistsByDedupKey(ctx context.Context, tx DBTX, dedupKey string) (bool, error)
	ListByIntent(ctx context.Context, tx DBTX, intentID uuid.UUID) ([]*domain.PaymentEvent, error)
}

// OutboxRepository stores domain events for the publisher loop.
type OutboxRepository interface {
	Append(ctx context.Context, tx DBTX, event *domain.OutboxEvent) error
	// ListUnpublished returns unpublished events ordered by creation.
	ListUnpublished(ctx context.Context, tx DBTX, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, tx DBTX, id uuid.UUID, at time.Time) error
	IncrementAttempts(ctx context.Context, tx DBTX, id uuid.UUID) error
}

// RefundRepository persists refunds.
type RefundRepository interface {
	Create(ctx context.Context, tx DBTX, refund *domain.Refund) error
	GetByID(ctx context.Context, tx DBTX, id uuid.UUID) (*domain.Refund, error)
	GetByIdempotencyKey(ctx context.Context, tx DBTX, key string) (*domain.Refund, error)
	UpdateStatus(ctx context.Context, tx DBTX, id uuid.UUID, status domain.RefundStatus, providerRefundID *string) error
}

// PayoutRepository persists payouts.
type PayoutRepository interface {
	Create(ctx context.Context, tx DBTX, payout *domain.Payout) error
	GetByID(ctx context.Context, tx DBTX, id uuid.UUID) (*domain.Payout, error)
	GetByIdempotencyKey(ctx context.Context, tx DBTX, key string) (*domain.Payout, error)
	// UpdateStatus moves a payout from one status to another. The write is
	// conditional on the payout still being in the from status, so two
	// racing transitions cannot both take effect.
	UpdateStatus(ctx context.Context, tx DBTX, id uuid.UUID, from, to domain.PayoutStatus, failureCode string) error
	// SumRequestedSince totals non-failed payout amounts created after the
	// cutoff, for the rolling daily cap.
	SumRequestedSince(ctx context.Context, tx DBTX, storeID uuid.UUID, since time.Time) (int64, error)
}

// StoreRepository reads tenant configuration. Writes happen elsewhere.
type StoreRepository interface {
	GetByID(ctx context.Context, tx DBTX, id uuid.UUID) (*domain.Store, error)
}

// ReconciliationReport is the persisted outcome of one reconciliation run.
type ReconciliationReport struct {
	ID           uuid.UUID
	StoreID      uuid.UUID
	PeriodStart  time.Time
	PeriodEnd    time.Time
	GrossRevenue int64
	TotalFees    int64
	Net          int64
	Checksum     string
	Status       string // "clean" or "discrepancy"
	CreatedAt    time.Time
}

// ReconciliationRepository persists reports and serves prior ones for
// closed-period comparison.
type ReconciliationRepository interface {
	Save(ctx context.Context, tx DBTX, report *ReconciliationReport) error
	GetLatest(ctx context.Context, tx DBTX, storeID uuid.UUID, periodStart, periodEnd time.Time) (*ReconciliationReport, error)
	ListStoreIDsWithActivity(ctx context.Context, tx DBTX, from, to time.Time) ([]uuid.UUID, error)
}
