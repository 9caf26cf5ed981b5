package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RefundStatus is the lifecycle state of a Refund.
type RefundStatus string

const (
	RefundStatusPending       RefundStatus = "PENDING"
	RefundStatusSucceeded     RefundStatus = "SUCCEEDED"
	RefundStatusFailed        RefundStatus = "FAILED"
	RefundStatusPendingManual RefundStatus = "PENDING_MANUAL"
)

// IsTerminal reports whether the refund needs no further processing.
// PENDING_MANUAL is not terminal: an operator resolves it by hand.
func (s RefundStatus) IsTerminal() bool {
	return s == RefundStatusSucceeded || s == RefundStatusFailed
}

// Refund is a child of a PaymentIntent with its own state machine and
// a fee reversal computed from the intent's frozen commission snapshot.
type Refund struct {
	ID                uuid.UUID    `json:"id"`
	IntentID          uuid.UUID    `json:"intent_id"`
	StoreID           uuid.UUID    `json:"store_id"`
	Amount            int64        `json:"amount"`
	FeeReversal       int64        `json:"fee_reversal"`
	Currency          string       `json:"currency"`
	Reason            string       `json:"reason"`
	Note              string       `json:"note,omitempty"`
	OperatorID        string       `json:"operator_id"`
	Status            RefundStatus `json:"status"`
	IdempotencyKey    string       `json:"idempotency_key"`
	ProviderRefundID  *string      `json:"provider_refund_id,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// RefundIdempotencyKey derives the deterministic key for a refund request.
func RefundIdempotencyKey(intentID uuid.UUID, amount int64, reason, operatorID string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("refund|%s|%d|%s|%s", intentID, amount, reason, operatorID)))
	return hex.EncodeToString(h[:])
}
