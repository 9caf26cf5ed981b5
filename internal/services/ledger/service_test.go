package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/testutil"
)

func paidTxn(storeID uuid.UUID, at time.Time) *domain.LedgerTransaction {
	return &domain.LedgerTransaction{
		ID:       uuid.New(),
		StoreID:  storeID,
		Name:     "payment_paid",
		Currency: "CLP",
		Entries: []domain.LedgerEntry{
			{ID: uuid.New(), Account: domain.AccountPSPInTransit, Direction: domain.Debit, Amount: 10_000},
			{ID: uuid.New(), Account: domain.AccountPayoutableBalance, Direction: domain.Credit, Amount: 9_200},
			{ID: uuid.New(), Account: domain.AccountPlatformCommission, Direction: domain.Credit, Amount: 800},
		},
		CreatedAt: at,
	}
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	storeID := uuid.New()

	t.Run("appends_balanced_transaction", func(t *testing.T) {
		repo := testutil.NewFakeLedgerRepo()
		svc := NewService(repo, testutil.NopLogger{})

		require.NoError(t, svc.Record(ctx, nil, paidTxn(storeID, time.Now())))
		assert.Len(t, repo.All(), 1)

		balance, err := svc.AccountBalance(ctx, nil, storeID, domain.AccountPayoutableBalance)
		require.NoError(t, err)
		assert.Equal(t, int64(9_200), balance)
	})

	t.Run("rejects_unbalanced_transaction", func(t *testing.T) {
		repo := testutil.NewFakeLedgerRepo()
		svc := NewService(repo, testutil.NopLogger{})

		txn := paidTxn(storeID, time.Now())
		txn.Entries = txn.Entries[:2] // drop the commission leg

		err := svc.Record(ctx, nil, txn)
		assert.True(t, domain.IsCode(err, domain.ErrorCodeLedgerUnbalanced))
		assert.Empty(t, repo.All())
	})

	t.Run("debits_reduce_the_balance", func(t *testing.T) {
		repo := testutil.NewFakeLedgerRepo()
		svc := NewService(repo, testutil.NopLogger{})

		require.NoError(t, svc.Record(ctx, nil, paidTxn(storeID, time.Now())))
		require.NoError(t, svc.Record(ctx, nil, &domain.LedgerTransaction{
			ID:       uuid.New(),
			StoreID:  storeID,
			Name:     "payout_earmark",
			Currency: "CLP",
			Entries: []domain.LedgerEntry{
				{ID: uuid.New(), Account: domain.AccountPayoutableBalance, Direction: domain.Debit, Amount: 4_000},
				{ID: uuid.New(), Account: domain.AccountPayoutLiability, Direction: domain.Credit, Amount: 4_000},
			},
			CreatedAt: time.Now(),
		}))

		balance, err := svc.AccountBalance(ctx, nil, storeID, domain.AccountPayoutableBalance)
		require.NoError(t, err)
		assert.Equal(t, int64(5_200), balance)
	})
}

func TestReverse(t *testing.T) {
	ctx := context.Background()
	storeID := uuid.New()
	repo := testutil.NewFakeLedgerRepo()
	svc := NewService(repo, testutil.NopLogger{})

	original := paidTxn(storeID, time.Now())
	require.NoError(t, svc.Record(ctx, nil, original))

	reversal, err := svc.Reverse(ctx, nil, original.ID, "payment_paid_reversal", time.Now())
	require.NoError(t, err)

	require.NotNil(t, reversal.ReferenceID)
	assert.Equal(t, original.ID, *reversal.ReferenceID)
	assert.Len(t, repo.All(), 2)

	// Every account nets to zero after the reversal.
	for _, account := range []domain.LedgerAccount{
		domain.AccountPSPInTransit, domain.AccountPayoutableBalance, domain.AccountPlatformCommission,
	} {
		balance, err := svc.AccountBalance(ctx, nil, storeID, account)
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance, "account %s", account)
	}

	t.Run("unknown_original", func(t *testing.T) {
		_, err := svc.Reverse(ctx, nil, uuid.New(), "x", time.Now())
		assert.Error(t, err)
	})
}
