package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
	"github.com/cokeastorga/underdeskflow-payments/internal/services/ledger"
	"github.com/cokeastorga/underdeskflow-payments/internal/services/routing"
	"github.com/cokeastorga/underdeskflow-payments/pkg/observability"
	"github.com/cokeastorga/underdeskflow-payments/pkg/resilience"
)

// DefaultLockRetries bounds how often a transition is retried after losing
// an optimistic-lock race.
const DefaultLockRetries = 3

// errDuplicateEvent aborts the transaction when the dedup key was already
// seen; the caller translates it into an idempotent no-op.
var errDuplicateEvent = errors.New("duplicate payment event")

// Service owns the payment-intent state machine. Every transition, whatever
// its origin (command, webhook, status poll), funnels through ApplyEvent.
type Service struct {
	db          ports.DBPort
	intents     ports.IntentRepository
	events      ports.EventRepository
	outbox      ports.OutboxRepository
	stores      ports.StoreRepository
	orders      ports.OrderResolver
	ledger      *ledger.Service
	router      *routing.Router
	clock       ports.Clock
	logger      ports.Logger
	backoff     resilience.BackoffStrategy
	lockRetries int
}

// NewService creates the intent service. A lockRetries of zero selects the
// default.
func NewService(
	db ports.DBPort,
	intents ports.IntentRepository,
	events ports.EventRepository,
	outbox ports.OutboxRepository,
	stores ports.StoreRepository,
	orders ports.OrderResolver,
	ledgerSvc *ledger.Service,
	router *routing.Router,
	clock ports.Clock,
	logger ports.Logger,
	lockRetries int,
) *Service {
	if lockRetries <= 0 {
		lockRetries = DefaultLockRetries
	}
	return &Service{
		db:          db,
		intents:     intents,
		events:      events,
		outbox:      outbox,
		stores:      stores,
		orders:      orders,
		ledger:      ledgerSvc,
		router:      router,
		clock:       clock,
		logger:      logger,
		backoff:     resilience.DefaultExponentialBackoff(),
		lockRetries: lockRetries,
	}
}

// CreateRequest asks for a new payment intent. Amount and currency come from
// the order, never from the client.
type CreateRequest struct {
	OrderID uuid.UUID
	// Method optionally overrides the order's payment method.
	Method string
}

// CreateResult is a created (or idempotently re-returned) intent.
type CreateResult struct {
	Intent  *domain.PaymentIntent
	Warning *domain.Warning
}

// Create resolves the order server-side, freezes the commission snapshot,
// persists the intent, and initializes the payment at the routed provider.
// A retried request with the same (store, order, amount, currency) returns
// the existing intent unchanged.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	order, err := s.orders.Resolve(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	store, err := s.stores.GetByID(ctx, nil, order.StoreID)
	if err != nil {
		return nil, err
	}
	if err := store.CanMutate(); err != nil {
		return nil, err
	}

	key := domain.IntentIdempotencyKey(order.StoreID, order.OrderID, order.Amount, order.Currency)
	if existing, err := s.intents.GetByIdempotencyKey(ctx, nil, key); err == nil {
		return &CreateResult{Intent: existing}, nil
	} else if !domain.IsCode(err, domain.ErrorCodeIntentNotFound) {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = order.Method
	}

	adapter, err := s.router.Select(ctx, routing.RouteRequest{
		Store:    store,
		Country:  store.Country,
		Currency: order.Currency,
		Method:   method,
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	newIntent := &domain.PaymentIntent{
		ID:             uuid.New(),
		StoreID:        order.StoreID,
		OrderID:        order.OrderID,
		IdempotencyKey: key,
		Amount:         order.Amount,
		Currency:       order.Currency,
		Provider:       adapter.Name(),
		Status:         domain.PaymentStatusCreated,
		OrderSource:    order.Source,
		Version:        1,
		Commission:     s.commissionFor(order, store, now),
		ChannelFee:     order.ChannelFee,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.intents.Create(ctx, tx, newIntent); err != nil {
			return err
		}
		return s.appendOutbox(ctx, tx, newIntent, domain.OutboxPaymentCreated, now)
	})
	if err != nil {
		// Lost a creation race: the winner's intent is the answer.
		if domain.IsCode(err, domain.ErrorCodeIdempotencyConflict) {
			existing, getErr := s.intents.GetByIdempotencyKey(ctx, nil, key)
			if getErr != nil {
				return nil, getErr
			}
			return &CreateResult{Intent: existing}, nil
		}
		return nil, err
	}

	return s.initializeAtProvider(ctx, newIntent, adapter)
}

// commissionFor freezes the fee snapshot. External-channel sales carry no
// platform fee; the channel's own commission lives on the intent separately.
func (s *Service) commissionFor(order *ports.OrderInfo, store *domain.Store, at time.Time) domain.CommissionSnapshot {
	if order.Source == domain.OrderSourceExternalChannel {
		return domain.CommissionSnapshot{
			RateScheduleVersion: store.RateSchedule.Version,
			Rate:                decimal.Zero,
			CapturedAt:          at,
		}
	}
	return domain.ComputeCommission(order.Amount, store.RateSchedule, at)
}

// initializeAtProvider registers the payment at the PSP and moves the intent
// to PENDING or FAILED.
func (s *Service) initializeAtProvider(ctx context.Context, newIntent *domain.PaymentIntent, adapter ports.ProviderAdapter) (*CreateResult, error) {
	var created *ports.CreatePaymentResult
	callErr := s.router.Call(adapter.Name(), "create_payment", func() error {
		var err error
		created, err = adapter.CreatePayment(ctx, newIntent)
		return err
	})

	if callErr != nil {
		s.logger.Error("provider payment initialization failed",
			ports.String("intent_id", newIntent.ID.String()),
			ports.String("provider", adapter.Name()),
			ports.Err(callErr),
		)
		result, applyErr := s.ApplyEvent(ctx, newIntent.ID, ApplyInput{Type: domain.EventProviderInitFailed})
		if applyErr != nil {
			return nil, applyErr
		}
		return &CreateResult{Intent: result.Intent},
			domain.WrapError(domain.ErrorCodeProviderInitFailed, "payment initialization failed", callErr)
	}

	result, err := s.ApplyEvent(ctx, newIntent.ID, ApplyInput{
		Type: domain.EventProviderAccepted,
		Mutate: func(i *domain.PaymentIntent) {
			i.ProviderRef = &created.ProviderIntentID
			i.ClientURL = created.ClientURL
			i.ClientSecret = created.ClientSecret
			if !created.ExpiresAt.IsZero() {
				expires := created.ExpiresAt
				i.ExpiresAt = &expires
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return &CreateResult{Intent: result.Intent, Warning: result.Warning}, nil
}

// ApplyInput is one observed fact to run through the state machine.
type ApplyInput struct {
	Type domain.PaymentEventType
	// DedupKey is the provider's event id; empty derives an internal key.
	DedupKey   string
	RawStatus  string
	OccurredAt time.Time
	// Validate re-checks business rules against the freshly read intent,
	// inside the retry loop, so stale reads cannot slip past a ceiling.
	Validate func(*domain.PaymentIntent) error
	// TypeFor overrides Type based on fresh state, for events whose kind
	// depends on it (partial vs full refund).
	TypeFor func(*domain.PaymentIntent) domain.PaymentEventType
	// Mutate applies extra field changes in the same optimistic write.
	Mutate func(*domain.PaymentIntent)
	// InTx runs additional writes inside the transition's transaction,
	// after the intent write and before the outbox append.
	InTx func(ctx context.Context, tx ports.DBTX) error
}

// ApplyResult reports the authoritative intent after the event. Applied is
// false for duplicates and out-of-order events, which succeed without
// changing anything.
type ApplyResult struct {
	Intent  *domain.PaymentIntent
	Warning *domain.Warning
	Applied bool
}

// ApplyEvent is the single funnel for all intent transitions. In one DB
// transaction it appends the audit event, writes the intent under its
// version lock, records ledger postings, and queues the outbox event. Lost
// version races are retried a bounded number of times against fresh state.
func (s *Service) ApplyEvent(ctx context.Context, intentID uuid.UUID, input ApplyInput) (*ApplyResult, error) {
	var lastErr error
	for attempt := 0; attempt < s.lockRetries; attempt++ {
		result, err := s.applyOnce(ctx, intentID, input)
		if err == nil {
			return result, nil
		}
		if !domain.IsCode(err, domain.ErrorCodeOptimisticLockConflict) {
			return nil, err
		}
		observability.IntentTransitionConflicts.Inc()
		lastErr = err
	}
	return nil, lastErr
}

func (s *Service) applyOnce(ctx context.Context, intentID uuid.UUID, input ApplyInput) (*ApplyResult, error) {
	current, err := s.intents.GetByID(ctx, nil, intentID)
	if err != nil {
		return nil, err
	}

	if input.Validate != nil {
		if err := input.Validate(current); err != nil {
			return nil, err
		}
	}

	eventType := input.Type
	if input.TypeFor != nil {
		eventType = input.TypeFor(current)
	}

	next, ok := domain.NextStatus(current.Status, eventType)
	if !ok {
		s.logger.Warn("ignoring out-of-order payment event",
			ports.String("intent_id", intentID.String()),
			ports.String("status", string(current.Status)),
			ports.String("event", string(eventType)),
		)
		return &ApplyResult{
			Intent:  current,
			Warning: domain.NewWarning(domain.WarningWebhookIgnoredOutOfOrder, fmt.Sprintf("event %s ignored in status %s", eventType, current.Status)),
		}, nil
	}

	now := s.clock.Now()
	occurred := input.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	dedupKey := input.DedupKey
	if dedupKey == "" {
		dedupKey = domain.InternalDedupKey(intentID, eventType, current.Version)
	}

	from := current.Status
	err = s.db.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		seen, err := s.events.ExistsByDedupKey(ctx, tx, dedupKey)
		if err != nil {
			return err
		}
		if seen {
			return errDuplicateEvent
		}

		if err := s.events.Append(ctx, tx, &domain.PaymentEvent{
			ID:         uuid.New(),
			IntentID:   intentID,
			Type:       eventType,
			FromStatus: from,
			ToStatus:   next,
			DedupKey:   dedupKey,
			RawStatus:  input.RawStatus,
			OccurredAt: occurred,
			CreatedAt:  now,
		}); err != nil {
			if domain.IsCode(err, domain.ErrorCodeIdempotencyConflict) {
				return errDuplicateEvent
			}
			return err
		}

		current.Status = next
		if input.Mutate != nil {
			input.Mutate(current)
		}
		current.UpdatedAt = now
		if err := s.intents.UpdateCAS(ctx, tx, current); err != nil {
			return err
		}

		if next == domain.PaymentStatusPaid {
			if err := s.ledger.Record(ctx, tx, paidPostings(current, now)); err != nil {
				return err
			}
		}

		if input.InTx != nil {
			if err := input.InTx(ctx, tx); err != nil {
				return err
			}
		}

		return s.appendOutbox(ctx, tx, current, domain.OutboxTypeForStatus(next), now)
	})
	if err != nil {
		if errors.Is(err, errDuplicateEvent) {
			s.logger.Info("duplicate payment event ignored",
				ports.String("intent_id", intentID.String()),
				ports.String("dedup_key", dedupKey),
			)
			return &ApplyResult{Intent: current}, nil
		}
		return nil, err
	}

	observability.IntentTransitionsTotal.WithLabelValues(string(from), string(next), string(eventType)).Inc()
	s.logger.Info("payment intent transitioned",
		ports.String("intent_id", intentID.String()),
		ports.String("from", string(from)),
		ports.String("to", string(next)),
		ports.String("event", string(eventType)),
	)
	return &ApplyResult{Intent: current, Applied: true}, nil
}

// GetIntent returns the authoritative intent.
func (s *Service) GetIntent(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	return s.intents.GetByID(ctx, nil, id)
}

// GetByProviderRef looks an intent up by the provider's reference.
func (s *Service) GetByProviderRef(ctx context.Context, provider, providerRef string) (*domain.PaymentIntent, error) {
	return s.intents.GetByProviderRef(ctx, nil, provider, providerRef)
}

// queryAttempts bounds status-poll retries; mutating calls are never
// auto-retried.
const queryAttempts = 3

// QueryAndSync polls the provider for the current status and feeds any
// observed change through ApplyEvent. Used when webhooks are delayed.
func (s *Service) QueryAndSync(ctx context.Context, intentID uuid.UUID) (*ApplyResult, error) {
	current, err := s.intents.GetByID(ctx, nil, intentID)
	if err != nil {
		return nil, err
	}
	if current.ProviderRef == nil {
		return &ApplyResult{Intent: current}, nil
	}

	adapter, err := s.router.Adapter(current.Provider)
	if err != nil {
		return nil, err
	}

	var status *ports.ProviderStatus
	for attempt := 0; attempt < queryAttempts; attempt++ {
		err = s.router.Call(current.Provider, "query_status", func() error {
			var qErr error
			status, qErr = adapter.QueryStatus(ctx, *current.ProviderRef)
			return qErr
		})
		if err == nil {
			break
		}
		if attempt < queryAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.backoff.NextDelay(attempt)):
			}
		}
	}
	if err != nil {
		return nil, err
	}

	if status.Normalized == "" {
		s.logger.Warn("provider reported unmapped status",
			ports.String("intent_id", intentID.String()),
			ports.String("raw_status", status.RawStatus),
		)
		return &ApplyResult{Intent: current}, nil
	}

	return s.ApplyEvent(ctx, intentID, ApplyInput{
		Type:      status.Normalized,
		RawStatus: status.RawStatus,
	})
}

// intentEventPayload is the outbox wire shape for intent events.
type intentEventPayload struct {
	IntentID       uuid.UUID            `json:"intent_id"`
	OrderID        uuid.UUID            `json:"order_id"`
	StoreID        uuid.UUID            `json:"store_id"`
	Status         domain.PaymentStatus `json:"status"`
	Amount         int64                `json:"amount"`
	Currency       string               `json:"currency"`
	RefundedAmount int64                `json:"refunded_amount"`
	OccurredAt     time.Time            `json:"occurred_at"`
}

func (s *Service) appendOutbox(ctx context.Context, tx ports.DBTX, i *domain.PaymentIntent, eventType string, at time.Time) error {
	payload, err := json.Marshal(intentEventPayload{
		IntentID:       i.ID,
		OrderID:        i.OrderID,
		StoreID:        i.StoreID,
		Status:         i.Status,
		Amount:         i.Amount,
		Currency:       i.Currency,
		RefundedAmount: i.RefundedAmount,
		OccurredAt:     at,
	})
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	return s.outbox.Append(ctx, tx, &domain.OutboxEvent{
		ID:          uuid.New(),
		EventType:   eventType,
		AggregateID: i.ID,
		Payload:     payload,
		CreatedAt:   at,
	})
}
