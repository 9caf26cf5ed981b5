package payout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
	"github.com/cokeastorga/underdeskflow-payments/internal/services/ledger"
)

// DefaultDailyLimit caps the rolling 24h payout total per store when the
// store carries no limit of its own. Minor currency units.
const DefaultDailyLimit = 5_000_000

// Service is the payout engine. The earmark (balance check plus the
// payoutable to payout_liability posting) happens inside one DB transaction
// under a store-scoped advisory lock, so two concurrent requests can never
// double-spend the same balance.
type Service struct {
	db         ports.DBPort
	payouts    ports.PayoutRepository
	stores     ports.StoreRepository
	outbox     ports.OutboxRepository
	ledger     *ledger.Service
	clock      ports.Clock
	logger     ports.Logger
	dailyLimit int64
}

// NewService creates the payout service. A dailyLimit of zero selects the
// default.
func NewService(
	db ports.DBPort,
	payouts ports.PayoutRepository,
	stores ports.StoreRepository,
	outbox ports.OutboxRepository,
	ledgerSvc *ledger.Service,
	clock ports.Clock,
	logger ports.Logger,
	dailyLimit int64,
) *Service {
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	return &Service{
		db:         db,
		payouts:    payouts,
		stores:     stores,
		outbox:     outbox,
		ledger:     ledgerSvc,
		clock:      clock,
		logger:     logger,
		dailyLimit: dailyLimit,
	}
}

// Request earmarks funds for a payout to the store's verified bank account.
// A repeat of the same (store, amount, day) returns the existing payout.
func (s *Service) Request(ctx context.Context, storeID uuid.UUID, amount int64) (*domain.Payout, error) {
	if amount <= 0 {
		return nil, domain.NewError(domain.ErrorCodeValidationAmountInvalid, "payout amount must be positive")
	}

	store, err := s.stores.GetByID(ctx, nil, storeID)
	if err != nil {
		return nil, err
	}
	if err := store.CanMutate(); err != nil {
		return nil, err
	}
	if !store.BankVerified {
		return nil, domain.ErrBankAccountNotVerified.WithDetail("store_id", storeID.String())
	}

	now := s.clock.Now()
	key := domain.PayoutIdempotencyKey(storeID, amount, now)
	if existing, err := s.payouts.GetByIdempotencyKey(ctx, nil, key); err == nil {
		return existing, nil
	} else if !domain.IsCode(err, domain.ErrorCodePayoutNotFound) {
		return nil, err
	}

	limit := store.PayoutDailyLimit
	if limit <= 0 {
		limit = s.dailyLimit
	}

	newPayout := &domain.Payout{
		ID:             uuid.New(),
		StoreID:        storeID,
		Amount:         amount,
		Currency:       store.Currency,
		Status:         domain.PayoutStatusRequested,
		Bank:           store.Bank,
		IdempotencyKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		// Serialize all payout earmarks for this store; the lock releases
		// with the transaction.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, storeID); err != nil {
			return fmt.Errorf("acquire payout lock: %w", err)
		}

		requested, err := s.payouts.SumRequestedSince(ctx, tx, storeID, now.Add(-24*time.Hour))
		if err != nil {
			return err
		}
		if requested+amount > limit {
			return domain.ErrPayoutExceedsDailyCap.
				WithDetail("requested_today", requested).
				WithDetail("limit", limit)
		}

		balance, err := s.ledger.AccountBalance(ctx, tx, storeID, domain.AccountPayoutableBalance)
		if err != nil {
			return err
		}
		if balance < amount {
			return domain.ErrInsufficientBalance.
				WithDetail("balance", balance).
				WithDetail("requested", amount)
		}

		earmark := earmarkPostings(newPayout, now)
		if err := s.ledger.Record(ctx, tx, earmark); err != nil {
			return err
		}
		newPayout.EarmarkTxnID = &earmark.ID

		if err := s.payouts.Create(ctx, tx, newPayout); err != nil {
			return err
		}
		return s.appendOutbox(ctx, tx, newPayout, domain.OutboxPayoutRequested, now)
	})
	if err != nil {
		if domain.IsCode(err, domain.ErrorCodeIdempotencyConflict) {
			return s.payouts.GetByIdempotencyKey(ctx, nil, key)
		}
		return nil, err
	}

	s.logger.Info("payout requested",
		ports.String("payout_id", newPayout.ID.String()),
		ports.String("store_id", storeID.String()),
		ports.Int64("amount", amount),
	)
	return newPayout, nil
}

// MarkProcessing moves a payout to PROCESSING when the transfer is handed to
// the bank rail.
func (s *Service) MarkProcessing(ctx context.Context, payoutID uuid.UUID) (*domain.Payout, error) {
	return s.transition(ctx, payoutID, domain.PayoutStatusProcessing, "")
}

// Confirm finalizes a successful transfer: the earmarked liability is
// settled and leaves the books.
func (s *Service) Confirm(ctx context.Context, payoutID uuid.UUID) (*domain.Payout, error) {
	return s.transition(ctx, payoutID, domain.PayoutStatusSucceeded, "")
}

// Fail records a failed transfer and automatically reverses the earmark so
// the funds return to the payoutable balance.
func (s *Service) Fail(ctx context.Context, payoutID uuid.UUID, failureCode string) (*domain.Payout, error) {
	return s.transition(ctx, payoutID, domain.PayoutStatusFailed, failureCode)
}

func (s *Service) transition(ctx context.Context, payoutID uuid.UUID, target domain.PayoutStatus, failureCode string) (*domain.Payout, error) {
	p, err := s.payouts.GetByID(ctx, nil, payoutID)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanTransitionTo(target) {
		return nil, domain.ErrInvalidTransition.
			WithDetail("payout_id", payoutID.String()).
			WithDetail("from", string(p.Status)).
			WithDetail("to", string(target))
	}

	now := s.clock.Now()
	err = s.db.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		// Conditional on the status read above: a racing transition that
		// commits first makes this write fail and rolls the whole tx back,
		// so the settle or reversal postings can never be recorded twice.
		if err := s.payouts.UpdateStatus(ctx, tx, payoutID, p.Status, target, failureCode); err != nil {
			return err
		}

		switch target {
		case domain.PayoutStatusSucceeded:
			if err := s.ledger.Record(ctx, tx, settlePostings(p, now)); err != nil {
				return err
			}
			return s.appendOutbox(ctx, tx, p, domain.OutboxPayoutSucceeded, now)

		case domain.PayoutStatusFailed:
			if p.EarmarkTxnID != nil {
				if _, err := s.ledger.Reverse(ctx, tx, *p.EarmarkTxnID, "payout_earmark_reversal", now); err != nil {
					return err
				}
			}
			return s.appendOutbox(ctx, tx, p, domain.OutboxPayoutFailed, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.Status = target
	p.FailureCode = failureCode
	p.UpdatedAt = now

	s.logger.Info("payout transitioned",
		ports.String("payout_id", payoutID.String()),
		ports.String("status", string(target)),
	)
	return p, nil
}

func (s *Service) appendOutbox(ctx context.Context, tx ports.DBTX, p *domain.Payout, eventType string, at time.Time) error {
	payload, err := json.Marshal(map[string]any{
		"payout_id":   p.ID,
		"store_id":    p.StoreID,
		"amount":      p.Amount,
		"currency":    p.Currency,
		"status":      p.Status,
		"occurred_at": at,
	})
	if err != nil {
		return fmt.Errorf("marshal payout outbox payload: %w", err)
	}
	return s.outbox.Append(ctx, tx, &domain.OutboxEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		AggregateID: p.ID,
		Payload:     payload,
		CreatedAt:   at,
	})
}

// earmarkPostings moves the payout amount from the payoutable balance into
// the payout liability account.
func earmarkPostings(p *domain.Payout, at time.Time) *domain.LedgerTransaction {
	return &domain.LedgerTransaction{
		ID:       uuid.New(),
		StoreID:  p.StoreID,
		Name:     "payout_earmark",
		Currency: p.Currency,
		Entries: []domain.LedgerEntry{
			{ID: uuid.New(), Account: domain.AccountPayoutableBalance, Direction: domain.Debit, Amount: p.Amount},
			{ID: uuid.New(), Account: domain.AccountPayoutLiability, Direction: domain.Credit, Amount: p.Amount},
		},
		CreatedAt: at,
	}
}

// settlePostings clears the liability once the bank transfer succeeded.
func settlePostings(p *domain.Payout, at time.Time) *domain.LedgerTransaction {
	return &domain.LedgerTransaction{
		ID:       uuid.New(),
		StoreID:  p.StoreID,
		Name:     "payout_settled",
		Currency: p.Currency,
		Entries: []domain.LedgerEntry{
			{ID: uuid.New(), Account: domain.AccountPayoutLiability, Direction: domain.Debit, Amount: p.Amount},
			{ID: uuid.New(), Account: domain.AccountPSPInTransit, Direction: domain.Credit, Amount: p.Amount},
		},
		CreatedAt: at,
	}
}
