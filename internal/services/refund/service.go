package refund

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
	"github.com/cokeastorga/underdeskflow-payments/internal/services/intent"
	"github.com/cokeastorga/underdeskflow-payments/internal/services/ledger"
	"github.com/cokeastorga/underdeskflow-payments/internal/services/routing"
)

// Service is the refund engine. Refunds are children of a paid intent with
// their own lifecycle; the fee reversal always comes from the intent's
// frozen commission snapshot, never the live schedule.
type Service struct {
	db      ports.DBPort
	refunds ports.RefundRepository
	stores  ports.StoreRepository
	outbox  ports.OutboxRepository
	intents *intent.Service
	ledger  *ledger.Service
	router  *routing.Router
	clock   ports.Clock
	logger  ports.Logger
}

// NewService creates the refund service.
func NewService(
	db ports.DBPort,
	refunds ports.RefundRepository,
	stores ports.StoreRepository,
	outbox ports.OutboxRepository,
	intents *intent.Service,
	ledgerSvc *ledger.Service,
	router *routing.Router,
	clock ports.Clock,
	logger ports.Logger,
) *Service {
	return &Service{
		db:      db,
		refunds: refunds,
		stores:  stores,
		outbox:  outbox,
		intents: intents,
		ledger:  ledgerSvc,
		router:  router,
		clock:   clock,
		logger:  logger,
	}
}

// Request describes one refund command.
type Request struct {
	IntentID   uuid.UUID
	Amount     int64
	Reason     string
	Note       string
	OperatorID string
}

// Result is a completed refund command. Warning is set when the refund was
// recorded but needs manual settlement.
type Result struct {
	Refund  *domain.Refund
	Intent  *domain.PaymentIntent
	Warning *domain.Warning
}

// Refund validates, persists, and executes one refund. A repeat of the same
// (intent, amount, reason, operator) returns the existing refund unchanged.
// When the provider's online refund window is closed the refund is recorded
// as PENDING_MANUAL and a warning is attached instead of failing.
func (s *Service) Refund(ctx context.Context, req Request) (*Result, error) {
	if req.Amount <= 0 {
		return nil, domain.NewError(domain.ErrorCodeValidationAmountInvalid, "refund amount must be positive")
	}

	paymentIntent, err := s.intents.GetIntent(ctx, req.IntentID)
	if err != nil {
		return nil, err
	}

	store, err := s.stores.GetByID(ctx, nil, paymentIntent.StoreID)
	if err != nil {
		return nil, err
	}
	if err := store.CanMutate(); err != nil {
		return nil, err
	}

	if err := validateAgainst(paymentIntent, req.Amount); err != nil {
		return nil, err
	}

	key := domain.RefundIdempotencyKey(req.IntentID, req.Amount, req.Reason, req.OperatorID)
	if existing, err := s.refunds.GetByIdempotencyKey(ctx, nil, key); err == nil {
		return &Result{Refund: existing, Intent: paymentIntent}, nil
	} else if !domain.IsCode(err, domain.ErrorCodeRefundNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	newRefund := &domain.Refund{
		ID:             uuid.New(),
		IntentID:       paymentIntent.ID,
		StoreID:        paymentIntent.StoreID,
		Amount:         req.Amount,
		FeeReversal:    feeReversalFor(paymentIntent, req.Amount),
		Currency:       paymentIntent.Currency,
		Reason:         req.Reason,
		Note:           req.Note,
		OperatorID:     req.OperatorID,
		Status:         domain.RefundStatusPending,
		IdempotencyKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Persist before calling out so a crash mid-call leaves an auditable
	// PENDING refund rather than an untracked provider-side refund.
	if err := s.refunds.Create(ctx, nil, newRefund); err != nil {
		if domain.IsCode(err, domain.ErrorCodeIdempotencyConflict) {
			existing, getErr := s.refunds.GetByIdempotencyKey(ctx, nil, key)
			if getErr != nil {
				return nil, getErr
			}
			return &Result{Refund: existing, Intent: paymentIntent}, nil
		}
		return nil, err
	}

	adapter, err := s.router.Adapter(paymentIntent.Provider)
	if err != nil {
		return nil, err
	}

	var providerResult *ports.ProviderRefundResult
	callErr := s.router.Call(paymentIntent.Provider, "refund", func() error {
		var rErr error
		providerResult, rErr = adapter.Refund(ctx, paymentIntent, newRefund)
		return rErr
	})
	if callErr != nil {
		if errors.Is(callErr, ports.ErrRefundWindowClosed) {
			return s.recordPendingManual(ctx, newRefund, paymentIntent)
		}
		if updateErr := s.refunds.UpdateStatus(ctx, nil, newRefund.ID, domain.RefundStatusFailed, nil); updateErr != nil {
			s.logger.Error("failed to mark refund failed",
				ports.String("refund_id", newRefund.ID.String()),
				ports.Err(updateErr),
			)
		}
		newRefund.Status = domain.RefundStatusFailed
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "provider refund failed", callErr)
	}

	return s.finalize(ctx, newRefund, paymentIntent.OrderSource, providerResult)
}

// validateAgainst enforces the refund ceiling and status rules against one
// read of the intent.
func validateAgainst(i *domain.PaymentIntent, amount int64) error {
	if !i.CanBeRefunded() {
		return domain.ErrRefundInvalidStatus.WithDetail("status", string(i.Status))
	}
	remaining := i.RemainingRefundable()
	if remaining == 0 {
		return domain.ErrRefundFullyRefunded.WithDetail("intent_id", i.ID.String())
	}
	if amount > remaining {
		return domain.ErrRefundExceedsAmount.
			WithDetail("requested", amount).
			WithDetail("remaining", remaining)
	}
	return nil
}

// feeReversalFor slices the frozen fee proportionally. External-channel
// refunds reverse the channel's commission instead of a platform fee.
func feeReversalFor(i *domain.PaymentIntent, amount int64) int64 {
	if i.OrderSource == domain.OrderSourceExternalChannel {
		snapshot := domain.CommissionSnapshot{Fee: i.ChannelFee}
		return snapshot.ProportionalFeeReversal(amount, i.Amount)
	}
	return i.Commission.ProportionalFeeReversal(amount, i.Amount)
}

// finalize applies the accepted refund: ledger reversal postings, intent
// transition, and the refund's own status, all in one transaction.
func (s *Service) finalize(ctx context.Context, r *domain.Refund, source domain.OrderSource, providerResult *ports.ProviderRefundResult) (*Result, error) {
	now := s.clock.Now()

	applied, err := s.intents.ApplyEvent(ctx, r.IntentID, intent.ApplyInput{
		Type: domain.EventPartiallyRefunded,
		TypeFor: func(i *domain.PaymentIntent) domain.PaymentEventType {
			if i.RefundedAmount+r.Amount >= i.Amount {
				return domain.EventFullyRefunded
			}
			return domain.EventPartiallyRefunded
		},
		Validate: func(i *domain.PaymentIntent) error {
			return validateAgainst(i, r.Amount)
		},
		Mutate: func(i *domain.PaymentIntent) {
			i.RefundedAmount += r.Amount
			i.RefundCount++
		},
		InTx: func(ctx context.Context, tx ports.DBTX) error {
			if err := s.ledger.Record(ctx, tx, refundPostings(r, source, now)); err != nil {
				return err
			}
			status := providerResult.Status
			if status == "" {
				status = domain.RefundStatusSucceeded
			}
			var providerRefundID *string
			if providerResult.ProviderRefundID != "" {
				providerRefundID = &providerResult.ProviderRefundID
			}
			r.Status = status
			r.ProviderRefundID = providerRefundID
			return s.refunds.UpdateStatus(ctx, tx, r.ID, status, providerRefundID)
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("refund recorded",
		ports.String("refund_id", r.ID.String()),
		ports.String("intent_id", r.IntentID.String()),
		ports.Int64("amount", r.Amount),
		ports.Int64("fee_reversal", r.FeeReversal),
		ports.String("status", string(r.Status)),
	)
	return &Result{Refund: r, Intent: applied.Intent, Warning: applied.Warning}, nil
}

// recordPendingManual is the closed-window path: the refund stays on the
// books as PENDING_MANUAL, downstream consumers are notified, and the caller
// gets a warning on an otherwise successful result.
func (s *Service) recordPendingManual(ctx context.Context, r *domain.Refund, i *domain.PaymentIntent) (*Result, error) {
	now := s.clock.Now()
	err := s.db.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.refunds.UpdateStatus(ctx, tx, r.ID, domain.RefundStatusPendingManual, nil); err != nil {
			return err
		}
		payload, err := json.Marshal(map[string]any{
			"refund_id":   r.ID,
			"intent_id":   r.IntentID,
			"store_id":    r.StoreID,
			"amount":      r.Amount,
			"currency":    r.Currency,
			"reason":      r.Reason,
			"operator_id": r.OperatorID,
			"occurred_at": now,
		})
		if err != nil {
			return fmt.Errorf("marshal refund outbox payload: %w", err)
		}
		return s.outbox.Append(ctx, tx, &domain.OutboxEvent{
			ID:          uuid.New(),
			EventType:   domain.OutboxRefundManual,
			AggregateID: r.ID,
			Payload:     payload,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	r.Status = domain.RefundStatusPendingManual
	s.logger.Warn("refund requires manual settlement",
		ports.String("refund_id", r.ID.String()),
		ports.String("intent_id", r.IntentID.String()),
		ports.Int64("amount", r.Amount),
	)
	return &Result{
		Refund:  r,
		Intent:  i,
		Warning: domain.NewWarning(domain.WarningRefundPendingManual, "provider refund window closed; settle by manual bank transfer"),
	}, nil
}

// refundPostings reverses the paid split proportionally: net out of the
// payoutable balance, the fee slice out of its commission account, the full
// amount into the refund reserve pending return to the customer.
func refundPostings(r *domain.Refund, source domain.OrderSource, at time.Time) *domain.LedgerTransaction {
	intentID := r.IntentID
	entries := []domain.LedgerEntry{
		{ID: uuid.New(), Account: domain.AccountPayoutableBalance, Direction: domain.Debit, Amount: r.Amount - r.FeeReversal},
		{ID: uuid.New(), Account: domain.AccountRefundReserve, Direction: domain.Credit, Amount: r.Amount},
	}
	if r.FeeReversal > 0 {
		account := domain.AccountPlatformCommission
		if source == domain.OrderSourceExternalChannel {
			account = domain.AccountChannelCommission
		}
		entries = append(entries, domain.LedgerEntry{
			ID: uuid.New(), Account: account, Direction: domain.Debit, Amount: r.FeeReversal,
		})
	}
	return &domain.LedgerTransaction{
		ID:          uuid.New(),
		StoreID:     r.StoreID,
		Name:        "refund",
		OrderSource: source,
		IntentID:    &intentID,
		Currency:    r.Currency,
		Entries:     entries,
		CreatedAt:   at,
	}
}
