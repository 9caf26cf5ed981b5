package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentIntent is one attempt to collect money for one order. New attempts
// after failure create a new intent; terminal intents are never mutated.
type PaymentIntent struct {
	ID             uuid.UUID          `json:"id"`
	StoreID        uuid.UUID          `json:"store_id"`
	OrderID        uuid.UUID          `json:"order_id"`
	IdempotencyKey string             `json:"idempotency_key"`
	Amount         int64              `json:"amount"`
	Currency       string             `json:"currency"`
	Provider       string             `json:"provider"`
	ProviderRef    *string            `json:"provider_ref,omitempty"`
	Status         PaymentStatus      `json:"status"`
	OrderSource    OrderSource        `json:"order_source"`
	Version        int64              `json:"version"`
	RefundedAmount int64              `json:"refunded_amount"`
	RefundCount    int                `json:"refund_count"`
	Commission     CommissionSnapshot `json:"commission"`
	ChannelFee     int64              `json:"channel_fee,omitempty"`
	ClientURL      string             `json:"client_url,omitempty"`
	ClientSecret   string             `json:"client_secret,omitempty"`
	ExpiresAt      *time.Time         `json:"expires_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// IntentIdempotencyKey derives the deterministic creation key so retried
// create requests are no-ops.
func IntentIdempotencyKey(storeID, orderID uuid.UUID, amount int64, currency string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("intent|%s|%s|%d|%s", storeID, orderID, amount, currency)))
	return hex.EncodeToString(h[:])
}

// RemainingRefundable is the amount still eligible for refund.
func (p *PaymentIntent) RemainingRefundable() int64 {
	return p.Amount - p.RefundedAmount
}

// CanBeRefunded reports whether the intent accepts a refund at all.
func (p *PaymentIntent) CanBeRefunded() bool {
	return p.Status == PaymentStatusPaid || p.Status == PaymentStatusPartiallyRefunded
}

// NetPayoutable is the amount credited to the store's payoutable balance on
// PAID: gross minus platform fee for own-store orders, gross minus the
// channel's own commission for external-channel orders (no platform fee).
func (p *PaymentIntent) NetPayoutable() int64 {
	if p.OrderSource == OrderSourceExternalChannel {
		return p.Amount - p.ChannelFee
	}
	return p.Amount - p.Commission.Fee
}
