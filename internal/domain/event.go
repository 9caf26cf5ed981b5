package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentEvent is the immutable audit record of one observed transition.
// DedupKey is the provider's event id for webhooks, or a deterministic hash
// for internally generated events; a unique constraint on it makes event
// processing idempotent.
type PaymentEvent struct {
	ID         uuid.UUID        `json:"id"`
	IntentID   uuid.UUID        `json:"intent_id"`
	Type       PaymentEventType `json:"type"`
	FromStatus PaymentStatus    `json:"from_status"`
	ToStatus   PaymentStatus    `json:"to_status"`
	DedupKey   string           `json:"dedup_key"`
	RawStatus  string           `json:"raw_status,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
	CreatedAt  time.Time        `json:"created_at"`
}

// InternalDedupKey derives the dedup key for events the orchestrator
// generates itself (no provider event id exists).
func InternalDedupKey(intentID uuid.UUID, event PaymentEventType, version int64) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("event|%s|%s|%d", intentID, event, version)))
	return hex.EncodeToString(h[:])
}
