package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerAccount is one of the fixed set of accounts money moves between.
type LedgerAccount string

const (
	AccountPayoutableBalance  LedgerAccount = "payoutable_balance"
	AccountPlatformCommission LedgerAccount = "platform_commissions"
	AccountPSPInTransit       LedgerAccount = "psp_in_transit"
	AccountRefundReserve      LedgerAccount = "refund_reserve"
	AccountPayoutLiability    LedgerAccount = "payout_liability"
	AccountChannelCommission  LedgerAccount = "channel_commissions"
)

// EntryDirection tags a ledger entry as a debit or a credit.
type EntryDirection string

const (
	Debit  EntryDirection = "DEBIT"
	Credit EntryDirection = "CREDIT"
)

// OrderSource distinguishes own-store sales (platform fee applies) from
// external-channel sales (no platform fee, channel commission instead).
type OrderSource string

const (
	OrderSourceOwnStore        OrderSource = "own_store"
	OrderSourceExternalChannel OrderSource = "external_channel"
)

// LedgerEntry is one leg of a balanced transaction. Amounts are positive;
// direction carries the sign.
type LedgerEntry struct {
	ID        uuid.UUID      `json:"id"`
	Account   LedgerAccount  `json:"account"`
	Direction EntryDirection `json:"direction"`
	Amount    int64          `json:"amount"`
}

// LedgerTransaction is an atomic, named, immutable group of entries.
// Corrections are new reversing transactions, never edits.
type LedgerTransaction struct {
	ID          uuid.UUID     `json:"id"`
	StoreID     uuid.UUID     `json:"store_id"`
	Name        string        `json:"name"`
	OrderSource OrderSource   `json:"order_source"`
	ReferenceID *uuid.UUID    `json:"reference_id,omitempty"` // original txn for reversals
	IntentID    *uuid.UUID    `json:"intent_id,omitempty"`
	Currency    string        `json:"currency"`
	Entries     []LedgerEntry `json:"entries"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Validate enforces the double-entry invariant: sum(debits) == sum(credits)
// and at least one entry with a positive amount.
func (t *LedgerTransaction) Validate() error {
	if len(t.Entries) == 0 {
		return ErrLedgerUnbalanced.WithDetail("reason", "no entries")
	}
	var debits, credits int64
	for _, e := range t.Entries {
		if e.Amount <= 0 {
			return ErrLedgerUnbalanced.WithDetail("reason", "non-positive entry amount")
		}
		switch e.Direction {
		case Debit:
			debits += e.Amount
		case Credit:
			credits += e.Amount
		default:
			return ErrLedgerUnbalanced.WithDetail("reason", "unknown entry direction")
		}
	}
	if debits != credits {
		return ErrLedgerUnbalanced.
			WithDetail("debits", debits).
			WithDetail("credits", credits)
	}
	return nil
}

// Reverse builds a new transaction with every entry's direction flipped,
// referencing the original transaction id.
func (t *LedgerTransaction) Reverse(name string, at time.Time) *LedgerTransaction {
	entries := make([]LedgerEntry, len(t.Entries))
	for i, e := range t.Entries {
		dir := Credit
		if e.Direction == Credit {
			dir = Debit
		}
		entries[i] = LedgerEntry{
			ID:        uuid.New(),
			Account:   e.Account,
			Direction: dir,
			Amount:    e.Amount,
		}
	}
	ref := t.ID
	return &LedgerTransaction{
		ID:          uuid.New(),
		StoreID:     t.StoreID,
		Name:        name,
		OrderSource: t.OrderSource,
		ReferenceID: &ref,
		IntentID:    t.IntentID,
		Currency:    t.Currency,
		Entries:     entries,
		CreatedAt:   at,
	}
}
