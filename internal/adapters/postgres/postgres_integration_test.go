//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// startPostgres brings up a disposable database and applies the migrations.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("payments"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.Up(db, "../../../migrations"))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func seedStore(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO stores (id, status, bank_verified, country, currency, enabled_providers, created_at, updated_at)
		VALUES ($1, 'active', TRUE, 'CL', 'CLP', '{cardnet,bankpay}', now(), now())`, id)
	require.NoError(t, err)
	return id
}

func TestPostgresRepositories(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	storeID := seedStore(t, pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	stores := NewStoreRepository(pool)
	intents := NewIntentRepository(pool)
	events := NewEventRepository(pool)
	ledger := NewLedgerRepository(pool)
	outbox := NewOutboxRepository(pool)
	payouts := NewPayoutRepository(pool)
	reports := NewReconciliationRepository(pool)

	t.Run("store_round_trip", func(t *testing.T) {
		store, err := stores.GetByID(ctx, nil, storeID)
		require.NoError(t, err)
		require.Equal(t, domain.StoreStatusActive, store.Status)
		require.True(t, store.BankVerified)
		require.Equal(t, []string{"cardnet", "bankpay"}, store.EnabledProviders)

		_, err = stores.GetByID(ctx, nil, uuid.New())
		require.True(t, domain.IsNotFound(err))
	})

	intent := &domain.PaymentIntent{
		ID:             uuid.New(),
		StoreID:        storeID,
		OrderID:        uuid.New(),
		IdempotencyKey: "it-" + uuid.NewString(),
		Amount:         10_000,
		Currency:       "CLP",
		Provider:       "cardnet",
		Status:         domain.PaymentStatusPending,
		OrderSource:    domain.OrderSourceOwnStore,
		Version:        1,
		Commission: domain.CommissionSnapshot{
			RateScheduleVersion: "2026-01",
			Rate:                decimal.RequireFromString("0.08"),
			Fee:                 800,
			CapturedAt:          now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.Run("intent_round_trip_and_cas", func(t *testing.T) {
		require.NoError(t, intents.Create(ctx, nil, intent))

		got, err := intents.GetByID(ctx, nil, intent.ID)
		require.NoError(t, err)
		require.Equal(t, intent.Amount, got.Amount)
		require.True(t, intent.Commission.Rate.Equal(got.Commission.Rate))

		byKey, err := intents.GetByIdempotencyKey(ctx, nil, intent.IdempotencyKey)
		require.NoError(t, err)
		require.Equal(t, intent.ID, byKey.ID)

		// CAS against the stored version succeeds and bumps it.
		got.Status = domain.PaymentStatusPaid
		require.NoError(t, intents.UpdateCAS(ctx, nil, got))
		require.Equal(t, int64(2), got.Version)

		// A second writer holding the stale version loses.
		stale := *got
		stale.Version = 1
		err = intents.UpdateCAS(ctx, nil, &stale)
		require.ErrorIs(t, err, domain.ErrOptimisticLockConflict)
	})

	t.Run("event_dedup_key_is_unique", func(t *testing.T) {
		event := &domain.PaymentEvent{
			ID:         uuid.New(),
			IntentID:   intent.ID,
			Type:       domain.EventPaymentPaid,
			FromStatus: domain.PaymentStatusPending,
			ToStatus:   domain.PaymentStatusPaid,
			DedupKey:   "cardnet|evt-1",
			OccurredAt: now,
			CreatedAt:  now,
		}
		require.NoError(t, events.Append(ctx, nil, event))

		seen, err := events.ExistsByDedupKey(ctx, nil, "cardnet|evt-1")
		require.NoError(t, err)
		require.True(t, seen)

		dup := *event
		dup.ID = uuid.New()
		err = events.Append(ctx, nil, &dup)
		require.ErrorIs(t, err, domain.ErrIdempotencyConflict)

		listed, err := events.ListByIntent(ctx, nil, intent.ID)
		require.NoError(t, err)
		require.Len(t, listed, 1)
	})

	t.Run("ledger_append_and_balance", func(t *testing.T) {
		intentID := intent.ID
		txn := &domain.LedgerTransaction{
			ID:          uuid.New(),
			StoreID:     storeID,
			Name:        "payment_received",
			OrderSource: domain.OrderSourceOwnStore,
			IntentID:    &intentID,
			Currency:    "CLP",
			Entries: []domain.LedgerEntry{
				{ID: uuid.New(), Account: domain.AccountPSPInTransit, Direction: domain.Debit, Amount: 10_000},
				{ID: uuid.New(), Account: domain.AccountPayoutableBalance, Direction: domain.Credit, Amount: 9_200},
				{ID: uuid.New(), Account: domain.AccountPlatformCommission, Direction: domain.Credit, Amount: 800},
			},
			CreatedAt: now,
		}
		require.NoError(t, ledger.Append(ctx, nil, txn))

		balance, err := ledger.AccountBalance(ctx, nil, storeID, domain.AccountPayoutableBalance)
		require.NoError(t, err)
		require.Equal(t, int64(9_200), balance)

		got, err := ledger.GetByID(ctx, nil, txn.ID)
		require.NoError(t, err)
		require.Len(t, got.Entries, 3)

		period, err := ledger.ListByStorePeriod(ctx, nil, storeID, now.Add(-time.Hour), now.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, period, 1)

		active, err := reports.ListStoreIDsWithActivity(ctx, nil, now.Add(-time.Hour), now.Add(time.Hour))
		require.NoError(t, err)
		require.Contains(t, active, storeID)
	})

	t.Run("outbox_publish_cycle", func(t *testing.T) {
		event := &domain.OutboxEvent{
			ID:          uuid.New(),
			EventType:   "payment.paid",
			AggregateID: intent.ID,
			Payload:     []byte(`{"intent_id":"x"}`),
			CreatedAt:   now,
		}
		require.NoError(t, outbox.Append(ctx, nil, event))

		pending, err := outbox.ListUnpublished(ctx, nil, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)

		require.NoError(t, outbox.IncrementAttempts(ctx, nil, event.ID))
		require.NoError(t, outbox.MarkPublished(ctx, nil, event.ID, now))

		pending, err = outbox.ListUnpublished(ctx, nil, 10)
		require.NoError(t, err)
		require.Empty(t, pending)
	})

	t.Run("payout_daily_cap_sum_excludes_failed", func(t *testing.T) {
		create := func(amount int64, status domain.PayoutStatus) *domain.Payout {
			p := &domain.Payout{
				ID:             uuid.New(),
				StoreID:        storeID,
				Amount:         amount,
				Currency:       "CLP",
				Status:         domain.PayoutStatusRequested,
				Bank:           domain.BankSnapshot{BankName: "Banco Estado", AccountNumber: "00123456789", AccountHolder: "Tienda Lucero SpA"},
				IdempotencyKey: "po-" + uuid.NewString(),
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			require.NoError(t, payouts.Create(ctx, nil, p))
			if status != domain.PayoutStatusRequested {
				require.NoError(t, payouts.UpdateStatus(ctx, nil, p.ID, domain.PayoutStatusRequested, status, "insufficient_funds"))
			}
			return p
		}

		kept := create(40_000, domain.PayoutStatusRequested)
		create(25_000, domain.PayoutStatusFailed)

		total, err := payouts.SumRequestedSince(ctx, nil, storeID, now.Add(-24*time.Hour))
		require.NoError(t, err)
		require.Equal(t, int64(40_000), total)

		got, err := payouts.GetByIdempotencyKey(ctx, nil, kept.IdempotencyKey)
		require.NoError(t, err)
		require.Equal(t, kept.ID, got.ID)
		require.Equal(t, "Banco Estado", got.Bank.BankName)

		// A write assuming a status the payout no longer holds matches
		// zero rows.
		err = payouts.UpdateStatus(ctx, nil, kept.ID, domain.PayoutStatusProcessing, domain.PayoutStatusSucceeded, "")
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("reconciliation_report_round_trip", func(t *testing.T) {
		periodStart := now.Truncate(24 * time.Hour)
		periodEnd := periodStart.Add(24 * time.Hour)

		missing, err := reports.GetLatest(ctx, nil, storeID, periodStart, periodEnd)
		require.NoError(t, err)
		require.Nil(t, missing)

		report := &ports.ReconciliationReport{
			ID:           uuid.New(),
			StoreID:      storeID,
			PeriodStart:  periodStart,
			PeriodEnd:    periodEnd,
			GrossRevenue: 10_000,
			TotalFees:    800,
			Net:          9_200,
			Checksum:     "a1b2c3",
			Status:       "clean",
			CreatedAt:    now,
		}
		require.NoError(t, reports.Save(ctx, nil, report))

		got, err := reports.GetLatest(ctx, nil, storeID, periodStart, periodEnd)
		require.NoError(t, err)
		require.Equal(t, report.Checksum, got.Checksum)
		require.Equal(t, "clean", got.Status)
	})
}
