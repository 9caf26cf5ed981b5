package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
	"github.com/cokeastorga/underdeskflow-payments/pkg/observability"
)

// Service is the ledger engine. It appends balanced transactions and derives
// balances by summation; there is no mutable balance anywhere.
type Service struct {
	repo   ports.LedgerRepository
	logger ports.Logger
}

// NewService creates the ledger service.
func NewService(repo ports.LedgerRepository, logger ports.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record validates the double-entry invariant and appends the transaction.
// An unbalanced input is a programming fault upstream: it is logged, counted,
// and rejected without retry.
func (s *Service) Record(ctx context.Context, tx ports.DBTX, txn *domain.LedgerTransaction) error {
	if err := txn.Validate(); err != nil {
		observability.LedgerUnbalancedTotal.Inc()
		s.logger.Error("rejected unbalanced ledger transaction",
			ports.String("name", txn.Name),
			ports.String("store_id", txn.StoreID.String()),
			ports.Err(err),
		)
		return err
	}

	if err := s.repo.Append(ctx, tx, txn); err != nil {
		return err
	}
	observability.LedgerTransactionsTotal.WithLabelValues(txn.Name).Inc()
	return nil
}

// AccountBalance sums credits minus debits for one store account.
func (s *Service) AccountBalance(ctx context.Context, tx ports.DBTX, storeID uuid.UUID, account domain.LedgerAccount) (int64, error) {
	return s.repo.AccountBalance(ctx, tx, storeID, account)
}

// Reverse records a new transaction with every entry of the original
// flipped, referencing the original. The original is never touched.
func (s *Service) Reverse(ctx context.Context, tx ports.DBTX, originalID uuid.UUID, name string, at time.Time) (*domain.LedgerTransaction, error) {
	original, err := s.repo.GetByID(ctx, tx, originalID)
	if err != nil {
		return nil, err
	}
	reversal := original.Reverse(name, at)
	if err := s.Record(ctx, tx, reversal); err != nil {
		return nil, err
	}
	return reversal, nil
}

// ListByStorePeriod exposes ordered transactions for reconciliation.
func (s *Service) ListByStorePeriod(ctx context.Context, tx ports.DBTX, storeID uuid.UUID, from, to time.Time) ([]*domain.LedgerTransaction, error) {
	return s.repo.ListByStorePeriod(ctx, tx, storeID, from, to)
}
