package intent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
	"github.com/cokeastorga/underdeskflow-payments/internal/services/ledger"
	"github.com/cokeastorga/underdeskflow-payments/internal/services/routing"
	"github.com/cokeastorga/underdeskflow-payments/internal/testutil"
	"github.com/cokeastorga/underdeskflow-payments/pkg/resilience"
)

type fixture struct {
	svc     *Service
	intents *testutil.FakeIntentRepo
	events  *testutil.FakeEventRepo
	outbox  *testutil.FakeOutboxRepo
	ledger  *testutil.FakeLedgerRepo
	stores  *testutil.FakeStoreRepo
	orders  *testutil.FakeOrderResolver
	router  *routing.Router
	adapter *testutil.FakeProviderAdapter
	clock   *testutil.FixedClock
	store   *domain.Store
	order   *ports.OrderInfo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := testutil.NopLogger{}
	clock := testutil.NewFixedClock(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))

	store := &domain.Store{
		ID:               uuid.New(),
		Status:           domain.StoreStatusActive,
		BankVerified:     true,
		Country:          "CL",
		Currency:         "CLP",
		EnabledProviders: []string{"cardnet"},
		RateSchedule: domain.RateSchedule{
			Version: "2026-01",
			Rate:    decimal.RequireFromString("0.08"),
		},
	}
	order := &ports.OrderInfo{
		OrderID:  uuid.New(),
		StoreID:  store.ID,
		Amount:   10_000,
		Currency: "CLP",
		Source:   domain.OrderSourceOwnStore,
		Method:   "card",
	}

	adapter := &testutil.FakeProviderAdapter{AdapterName: "cardnet"}
	router := routing.NewRouter(resilience.DefaultCircuitBreakerConfig(), logger)
	router.Register(adapter)

	f := &fixture{
		intents: testutil.NewFakeIntentRepo(),
		events:  testutil.NewFakeEventRepo(),
		outbox:  testutil.NewFakeOutboxRepo(),
		ledger:  testutil.NewFakeLedgerRepo(),
		stores:  testutil.NewFakeStoreRepo(store),
		orders:  testutil.NewFakeOrderResolver(order),
		router:  router,
		adapter: adapter,
		clock:   clock,
		store:   store,
		order:   order,
	}
	f.svc = NewService(
		testutil.FakeDB{},
		f.intents, f.events, f.outbox, f.stores, f.orders,
		ledger.NewService(f.ledger, logger),
		router, clock, logger, 0,
	)
	return f
}

func (f *fixture) outboxTypes() []string {
	var types []string
	for _, e := range f.outbox.All() {
		types = append(types, e.EventType)
	}
	return types
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates_pending_intent_with_commission_snapshot", func(t *testing.T) {
		f := newFixture(t)

		result, err := f.svc.Create(ctx, CreateRequest{OrderID: f.order.OrderID})
		require.NoError(t, err)

		i := result.Intent
		assert.Equal(t, domain.PaymentStatusPending, i.Status)
		assert.Equal(t, "cardnet", i.Provider)
		assert.Equal(t, int64(10_000), i.Amount)
		assert.Equal(t, int64(800), i.Commission.Fee)
		assert.Equal(t, "2026-01", i.Commission.RateScheduleVersion)
		require.NotNil(t, i.ProviderRef)

		assert.Equal(t, []string{domain.OutboxPaymentCreated, domain.OutboxPaymentPending}, f.outboxTypes())
	})

	t.Run("retried_create_returns_existing_intent", func(t *testing.T) {
		f := newFixture(t)

		first, err := f.svc.Create(ctx, CreateRequest{OrderID: f.order.OrderID})
		require.NoError(t, err)

		second, err := f.svc.Create(ctx, CreateRequest{OrderID: f.order.OrderID})
		require.NoError(t, err)

		assert.Equal(t, first.Intent.ID, second.Intent.ID)
		// No second provider call, no second outbox trail.
		assert.Len(t, f.outbox.All(), 2)
	})

	t.Run("provider_init_failure_fails_intent", func(t *testing.T) {
		f := newFixture(t)
		f.adapter.CreatePaymentFn = func(ctx context.Context, i *domain.PaymentIntent) (*ports.CreatePaymentResult, error) {
			return nil, errors.New("gateway down")
		}

		result, err := f.svc.Create(ctx, CreateRequest{OrderID: f.order.OrderID})
		require.Error(t, err)
		assert.Equal(t, domain.ErrorCodeProviderInitFailed, domain.CodeOf(err))
		require.NotNil(t, result)
		assert.Equal(t, domain.PaymentStatusFailed, result.Intent.Status)

		assert.Equal(t, []string{domain.OutboxPaymentCreated, domain.OutboxPaymentFailed}, f.outboxTypes())
	})

	t.Run("external_channel_order_freezes_zero_platform_rate", func(t *testing.T) {
		f := newFixture(t)
		f.order.Source = domain.OrderSourceExternalChannel
		f.order.ChannelFee = 1_200
		f.orders.Put(f.order)

		result, err := f.svc.Create(ctx, CreateRequest{OrderID: f.order.OrderID})
		require.NoError(t, err)

		assert.True(t, result.Intent.Commission.Rate.IsZero())
		assert.Equal(t, int64(0), result.Intent.Commission.Fee)
		assert.Equal(t, int64(1_200), result.Intent.ChannelFee)
		assert.Equal(t, "2026-01", result.Intent.Commission.RateScheduleVersion)
	})

	t.Run("read_only_store_is_rejected", func(t *testing.T) {
		f := newFixture(t)
		f.store.ReadOnlyMode = true
		f.stores.Put(f.store)

		_, err := f.svc.Create(ctx, CreateRequest{OrderID: f.order.OrderID})
		assert.Equal(t, domain.ErrorCodeReadOnlyModeEnabled, domain.CodeOf(err))
	})

	t.Run("no_capable_provider", func(t *testing.T) {
		f := newFixture(t)
		f.adapter.Methods = []string{"wallet"}

		_, err := f.svc.Create(ctx, CreateRequest{OrderID: f.order.OrderID})
		assert.Equal(t, domain.ErrorCodeNoProviderAvailable, domain.CodeOf(err))
	})
}

// paidIntent creates an intent and walks it to PAID.
func paidIntent(t *testing.T, f *fixture) *domain.PaymentIntent {
	t.Helper()
	ctx := context.Background()

	created, err := f.svc.Create(ctx, CreateRequest{OrderID: f.order.OrderID})
	require.NoError(t, err)

	result, err := f.svc.ApplyEvent(ctx, created.Intent.ID, ApplyInput{
		Type:     domain.EventPaymentPaid,
		DedupKey: "cardnet|evt-paid-1",
	})
	require.NoError(t, err)
	require.True(t, result.Applied)
	return result.Intent
}

func TestApplyEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("paid_records_balanced_postings", func(t *testing.T) {
		f := newFixture(t)
		i := paidIntent(t, f)

		assert.Equal(t, domain.PaymentStatusPaid, i.Status)

		txns := f.ledger.All()
		require.Len(t, txns, 1)
		txn := txns[0]
		assert.Equal(t, "payment_paid", txn.Name)
		require.NoError(t, txn.Validate())

		amounts := map[domain.LedgerAccount]int64{}
		for _, e := range txn.Entries {
			amounts[e.Account] = e.Amount
		}
		assert.Equal(t, int64(10_000), amounts[domain.AccountPSPInTransit])
		assert.Equal(t, int64(9_200), amounts[domain.AccountPayoutableBalance])
		assert.Equal(t, int64(800), amounts[domain.AccountPlatformCommission])

		balance, err := f.ledger.AccountBalance(ctx, nil, f.store.ID, domain.AccountPayoutableBalance)
		require.NoError(t, err)
		assert.Equal(t, int64(9_200), balance)
	})

	t.Run("external_channel_paid_credits_channel_commission", func(t *testing.T) {
		f := newFixture(t)
		f.order.Source = domain.OrderSourceExternalChannel
		f.order.ChannelFee = 1_200
		f.orders.Put(f.order)

		paidIntent(t, f)

		txns := f.ledger.All()
		require.Len(t, txns, 1)
		require.NoError(t, txns[0].Validate())

		amounts := map[domain.LedgerAccount]int64{}
		for _, e := range txns[0].Entries {
			amounts[e.Account] = e.Amount
		}
		assert.Equal(t, int64(10_000), amounts[domain.AccountPSPInTransit])
		assert.Equal(t, int64(8_800), amounts[domain.AccountPayoutableBalance])
		assert.Equal(t, int64(1_200), amounts[domain.AccountChannelCommission])
		assert.NotContains(t, amounts, domain.AccountPlatformCommission)
	})

	t.Run("duplicate_dedup_key_is_a_noop", func(t *testing.T) {
		f := newFixture(t)
		i := paidIntent(t, f)

		first, err := f.svc.ApplyEvent(ctx, i.ID, ApplyInput{
			Type:     domain.EventPartiallyRefunded,
			DedupKey: "cardnet|evt-refund-1",
			Mutate:   func(i *domain.PaymentIntent) { i.RefundedAmount += 3_000 },
		})
		require.NoError(t, err)
		require.True(t, first.Applied)

		// Redelivery: the transition is still legal from PARTIALLY_REFUNDED,
		// so only the dedup key stops it from double-counting.
		second, err := f.svc.ApplyEvent(ctx, i.ID, ApplyInput{
			Type:     domain.EventPartiallyRefunded,
			DedupKey: "cardnet|evt-refund-1",
			Mutate:   func(i *domain.PaymentIntent) { i.RefundedAmount += 3_000 },
		})
		require.NoError(t, err)
		assert.False(t, second.Applied)
		assert.Nil(t, second.Warning)

		stored, err := f.svc.GetIntent(ctx, i.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3_000), stored.RefundedAmount)
	})

	t.Run("out_of_order_event_warns_without_error", func(t *testing.T) {
		f := newFixture(t)
		i := paidIntent(t, f)

		// A late "failed" webhook after PAID must not regress the intent.
		result, err := f.svc.ApplyEvent(ctx, i.ID, ApplyInput{
			Type:     domain.EventPaymentFailed,
			DedupKey: "cardnet|evt-late-fail",
		})
		require.NoError(t, err)
		assert.False(t, result.Applied)
		require.NotNil(t, result.Warning)
		assert.Equal(t, domain.WarningWebhookIgnoredOutOfOrder, result.Warning.Code)
		assert.Equal(t, domain.PaymentStatusPaid, result.Intent.Status)
	})

	t.Run("authorized_then_paid", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.svc.Create(ctx, CreateRequest{OrderID: f.order.OrderID})
		require.NoError(t, err)

		auth, err := f.svc.ApplyEvent(ctx, created.Intent.ID, ApplyInput{Type: domain.EventPaymentAuthorized})
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusAuthorized, auth.Intent.Status)

		paid, err := f.svc.ApplyEvent(ctx, created.Intent.ID, ApplyInput{Type: domain.EventPaymentPaid})
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusPaid, paid.Intent.Status)
	})

	t.Run("version_advances_per_transition", func(t *testing.T) {
		f := newFixture(t)
		i := paidIntent(t, f)
		// Create leaves version 1, provider-accepted bumps to 2, paid to 3.
		stored, err := f.svc.GetIntent(ctx, i.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stored.Version)
	})

	t.Run("validate_hook_rejects_before_writing", func(t *testing.T) {
		f := newFixture(t)
		i := paidIntent(t, f)

		_, err := f.svc.ApplyEvent(ctx, i.ID, ApplyInput{
			Type: domain.EventPartiallyRefunded,
			Validate: func(*domain.PaymentIntent) error {
				return domain.ErrRefundExceedsAmount
			},
		})
		assert.Equal(t, domain.ErrorCodeRefundExceedsAmount, domain.CodeOf(err))
		assert.Len(t, f.events.All(), 2) // created->pending, pending->paid only
	})

	t.Run("unknown_intent", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ApplyEvent(ctx, uuid.New(), ApplyInput{Type: domain.EventPaymentPaid})
		assert.Equal(t, domain.ErrorCodeIntentNotFound, domain.CodeOf(err))
	})
}

// conflictRepo loses the version race a fixed number of times before
// delegating to the real fake.
type conflictRepo struct {
	*testutil.FakeIntentRepo
	conflicts int
}

func (r *conflictRepo) UpdateCAS(ctx context.Context, tx ports.DBTX, intent *domain.PaymentIntent) error {
	if r.conflicts > 0 {
		r.conflicts--
		return domain.ErrOptimisticLockConflict
	}
	return r.FakeIntentRepo.UpdateCAS(ctx, tx, intent)
}

func newConflictFixture(t *testing.T) (*fixture, *conflictRepo) {
	t.Helper()
	f := newFixture(t)
	wrapped := &conflictRepo{FakeIntentRepo: f.intents}
	f.svc = NewService(
		testutil.FakeDB{Tracked: []testutil.TxTracked{f.events}},
		wrapped, f.events, f.outbox, f.stores, f.orders,
		ledger.NewService(f.ledger, testutil.NopLogger{}),
		f.router, f.clock, testutil.NopLogger{}, 0,
	)
	return f, wrapped
}

func TestApplyEventLockConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("retries_against_fresh_state", func(t *testing.T) {
		f, wrapped := newConflictFixture(t)

		created, err := f.svc.Create(ctx, CreateRequest{OrderID: f.order.OrderID})
		require.NoError(t, err)

		wrapped.conflicts = 2
		result, err := f.svc.ApplyEvent(ctx, created.Intent.ID, ApplyInput{Type: domain.EventPaymentPaid})
		require.NoError(t, err)
		assert.True(t, result.Applied)
		assert.Equal(t, domain.PaymentStatusPaid, result.Intent.Status)
		assert.Len(t, f.ledger.All(), 1)
		assert.Len(t, f.events.All(), 2)
	})

	t.Run("gives_up_after_bounded_retries", func(t *testing.T) {
		f, wrapped := newConflictFixture(t)

		created, err := f.svc.Create(ctx, CreateRequest{OrderID: f.order.OrderID})
		require.NoError(t, err)

		wrapped.conflicts = DefaultLockRetries + 1
		_, err = f.svc.ApplyEvent(ctx, created.Intent.ID, ApplyInput{Type: domain.EventPaymentPaid})
		assert.Equal(t, domain.ErrorCodeOptimisticLockConflict, domain.CodeOf(err))

		stored, err := f.svc.GetIntent(ctx, created.Intent.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusPending, stored.Status)
		assert.Empty(t, f.ledger.All())
	})
}

func TestQueryAndSync(t *testing.T) {
	ctx := context.Background()

	t.Run("applies_provider_reported_status", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.svc.Create(ctx, CreateRequest{OrderID: f.order.OrderID})
		require.NoError(t, err)

		f.adapter.QueryStatusFn = func(ctx context.Context, ref string) (*ports.ProviderStatus, error) {
			return &ports.ProviderStatus{RawStatus: "captured", Normalized: domain.EventPaymentPaid}, nil
		}

		result, err := f.svc.QueryAndSync(ctx, created.Intent.ID)
		require.NoError(t, err)
		assert.True(t, result.Applied)
		assert.Equal(t, domain.PaymentStatusPaid, result.Intent.Status)
	})

	t.Run("unmapped_status_is_a_noop", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.svc.Create(ctx, CreateRequest{OrderID: f.order.OrderID})
		require.NoError(t, err)

		f.adapter.QueryStatusFn = func(ctx context.Context, ref string) (*ports.ProviderStatus, error) {
			return &ports.ProviderStatus{RawStatus: "in_review"}, nil
		}

		result, err := f.svc.QueryAndSync(ctx, created.Intent.ID)
		require.NoError(t, err)
		assert.False(t, result.Applied)
		assert.Equal(t, domain.PaymentStatusPending, result.Intent.Status)
	})

	t.Run("intent_without_provider_ref_is_a_noop", func(t *testing.T) {
		f := newFixture(t)
		bare := &domain.PaymentIntent{
			ID:             uuid.New(),
			StoreID:        f.store.ID,
			IdempotencyKey: "bare",
			Status:         domain.PaymentStatusCreated,
			Version:        1,
		}
		require.NoError(t, f.intents.Create(ctx, nil, bare))

		result, err := f.svc.QueryAndSync(ctx, bare.ID)
		require.NoError(t, err)
		assert.False(t, result.Applied)
	})
}
