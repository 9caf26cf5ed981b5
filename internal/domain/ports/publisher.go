package ports

import (
	"context"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
)

// EventPublisher delivers one outbox event to downstream consumers.
// Delivery is at-least-once; consumers must be idempotent.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.OutboxEvent) error
}
