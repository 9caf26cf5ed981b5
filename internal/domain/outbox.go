package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is a domain fact queued for at-least-once delivery to
// downstream consumers. Never deleted; PublishedAt flips once on success so
// history stays replayable.
type OutboxEvent struct {
	ID          uuid.UUID       `json:"id"`
	EventType   string          `json:"event_type"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Outbox event types mirrored from intent/refund/payout transitions.
const (
	OutboxPaymentCreated    = "payment.created"
	OutboxPaymentPending    = "payment.pending"
	OutboxPaymentAuthorized = "payment.authorized"
	OutboxPaymentPaid       = "payment.paid"
	OutboxPaymentFailed     = "payment.failed"
	OutboxPaymentCanceled   = "payment.canceled"
	OutboxPaymentRefunded   = "payment.refunded"
	OutboxPaymentPartial    = "payment.partially_refunded"
	OutboxRefundManual      = "refund.pending_manual"
	OutboxPayoutRequested   = "payout.requested"
	OutboxPayoutSucceeded   = "payout.succeeded"
	OutboxPayoutFailed      = "payout.failed"
)

// OutboxTypeForStatus maps a new intent status to its outbound event type.
func OutboxTypeForStatus(status PaymentStatus) string {
	switch status {
	case PaymentStatusCreated:
		return OutboxPaymentCreated
	case PaymentStatusPending:
		return OutboxPaymentPending
	case PaymentStatusAuthorized:
		return OutboxPaymentAuthorized
	case PaymentStatusPaid:
		return OutboxPaymentPaid
	case PaymentStatusFailed:
		return OutboxPaymentFailed
	case PaymentStatusCanceled:
		return OutboxPaymentCanceled
	case PaymentStatusPartiallyRefunded:
		return OutboxPaymentPartial
	case PaymentStatusRefunded:
		return OutboxPaymentRefunded
	}
	return "payment.unknown"
}
