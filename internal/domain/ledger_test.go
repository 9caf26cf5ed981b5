package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func balancedTxn() *LedgerTransaction {
	intentID := uuid.New()
	return &LedgerTransaction{
		ID:          uuid.New(),
		StoreID:     uuid.New(),
		Name:        "payment_paid",
		OrderSource: OrderSourceOwnStore,
		IntentID:    &intentID,
		Currency:    "CLP",
		Entries: []LedgerEntry{
			{ID: uuid.New(), Account: AccountPSPInTransit, Direction: Debit, Amount: 10_000},
			{ID: uuid.New(), Account: AccountPayoutableBalance, Direction: Credit, Amount: 9_200},
			{ID: uuid.New(), Account: AccountPlatformCommission, Direction: Credit, Amount: 800},
		},
		CreatedAt: time.Now(),
	}
}

func TestLedgerTransactionValidate(t *testing.T) {
	t.Run("balanced_transaction_passes", func(t *testing.T) {
		assert.NoError(t, balancedTxn().Validate())
	})

	t.Run("unbalanced_transaction_fails", func(t *testing.T) {
		txn := balancedTxn()
		txn.Entries[1].Amount = 9_199
		err := txn.Validate()
		require.Error(t, err)
		assert.True(t, IsCode(err, ErrorCodeLedgerUnbalanced))
	})

	t.Run("empty_transaction_fails", func(t *testing.T) {
		txn := &LedgerTransaction{ID: uuid.New()}
		assert.True(t, IsCode(txn.Validate(), ErrorCodeLedgerUnbalanced))
	})

	t.Run("zero_amount_entry_fails", func(t *testing.T) {
		txn := balancedTxn()
		txn.Entries = append(txn.Entries, LedgerEntry{
			ID: uuid.New(), Account: AccountRefundReserve, Direction: Debit, Amount: 0,
		})
		assert.True(t, IsCode(txn.Validate(), ErrorCodeLedgerUnbalanced))
	})

	t.Run("negative_amount_entry_fails", func(t *testing.T) {
		txn := balancedTxn()
		txn.Entries[0].Amount = -10_000
		assert.True(t, IsCode(txn.Validate(), ErrorCodeLedgerUnbalanced))
	})

	t.Run("unknown_direction_fails", func(t *testing.T) {
		txn := balancedTxn()
		txn.Entries[0].Direction = "SIDEWAYS"
		assert.True(t, IsCode(txn.Validate(), ErrorCodeLedgerUnbalanced))
	})
}

func TestLedgerTransactionReverse(t *testing.T) {
	original := balancedTxn()
	at := time.Now().Add(time.Hour)

	reversed := original.Reverse("payout_earmark_reversal", at)

	require.NoError(t, reversed.Validate())
	assert.NotEqual(t, original.ID, reversed.ID)
	assert.Equal(t, "payout_earmark_reversal", reversed.Name)
	assert.Equal(t, original.StoreID, reversed.StoreID)
	assert.Equal(t, original.Currency, reversed.Currency)
	assert.Equal(t, at, reversed.CreatedAt)

	require.NotNil(t, reversed.ReferenceID)
	assert.Equal(t, original.ID, *reversed.ReferenceID)

	require.Len(t, reversed.Entries, len(original.Entries))
	for i, e := range reversed.Entries {
		assert.Equal(t, original.Entries[i].Account, e.Account)
		assert.Equal(t, original.Entries[i].Amount, e.Amount)
		assert.NotEqual(t, original.Entries[i].Direction, e.Direction)
	}

	// The original is untouched.
	assert.Equal(t, Debit, original.Entries[0].Direction)
	assert.Nil(t, original.ReferenceID)
}
