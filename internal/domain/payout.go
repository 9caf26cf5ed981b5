package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PayoutStatus is the lifecycle state of a Payout.
type PayoutStatus string

const (
	PayoutStatusRequested  PayoutStatus = "REQUESTED"
	PayoutStatusProcessing PayoutStatus = "PROCESSING"
	PayoutStatusSucceeded  PayoutStatus = "SUCCEEDED"
	PayoutStatusFailed     PayoutStatus = "FAILED"
)

// payoutTransitions mirrors the intent transition table for payouts.
var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusRequested:  {PayoutStatusProcessing, PayoutStatusFailed},
	PayoutStatusProcessing: {PayoutStatusSucceeded, PayoutStatusFailed},
}

// CanTransitionTo reports whether the payout may move to the target status.
func (s PayoutStatus) CanTransitionTo(target PayoutStatus) bool {
	for _, next := range payoutTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// BankSnapshot freezes the destination bank details at request time so a
// later change never silently redirects an in-flight payout.
type BankSnapshot struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
	AccountType   string `json:"account_type"`
	TaxID         string `json:"tax_id"`
}

// Payout is a transfer of payoutable balance to the store's bank account.
// EarmarkTxnID points at the ledger transaction that reserved the funds.
type Payout struct {
	ID             uuid.UUID    `json:"id"`
	StoreID        uuid.UUID    `json:"store_id"`
	Amount         int64        `json:"amount"`
	Currency       string       `json:"currency"`
	Status         PayoutStatus `json:"status"`
	Bank           BankSnapshot `json:"bank"`
	IdempotencyKey string       `json:"idempotency_key"`
	EarmarkTxnID   *uuid.UUID   `json:"earmark_txn_id,omitempty"`
	FailureCode    string       `json:"failure_code,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// PayoutIdempotencyKey derives the deterministic key for a payout request.
// The day component scopes retries to the same calendar day.
func PayoutIdempotencyKey(storeID uuid.UUID, amount int64, day time.Time) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("payout|%s|%d|%s", storeID, amount, day.UTC().Format("2006-01-02"))))
	return hex.EncodeToString(h[:])
}
