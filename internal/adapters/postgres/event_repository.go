package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// EventRepository implements ports.EventRepository. The unique constraint on
// dedup_key is what makes webhook processing idempotent across restarts.
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a new event repository
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Append writes the audit event; a duplicate dedup key surfaces as
// IDEMPOTENCY_CONFLICT.
func (r *EventRepository) Append(ctx context.Context, tx ports.DBTX, event *domain.PaymentEvent) error {
	_, err := querier(r.pool, tx).Exec(ctx, `
		INSERT INTO payment_events (id, intent_id, type, from_status, to_status, dedup_key, raw_status, occurred_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		event.ID, event.IntentID, event.Type, event.FromStatus, event.ToStatus,
		event.DedupKey, event.RawStatus, event.OccurredAt, event.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict.WithDetail("dedup_key", event.DedupKey)
		}
		return fmt.Errorf("append payment event: %w", err)
	}
	return nil
}

// ExistsByDedupKey reports whether an event with the key was already seen.
func (r *EventRepository) ExistsByDedupKey(ctx context.Context, tx ports.DBTX, dedupKey string) (bool, error) {
	var exists bool
	err := querier(r.pool, tx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM payment_events WHERE dedup_key = $1)`, dedupKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check event dedup key: %w", err)
	}
	return exists, nil
}

// ListByIntent returns the audit trail for one intent in order.
func (r *EventRepository) ListByIntent(ctx context.Context, tx ports.DBTX, intentID uuid.UUID) ([]*domain.PaymentEvent, error) {
	rows, err := querier(r.pool, tx).Query(ctx, `
		SELECT id, intent_id, type, from_status, to_status, dedup_key, raw_status, occurred_at, created_at
		FROM payment_events WHERE intent_id = $1 ORDER BY created_at, id`, intentID)
	if err != nil {
		return nil, fmt.Errorf("list payment events: %w", err)
	}
	defer rows.Close()

	var events []*domain.PaymentEvent
	for rows.Next() {
		var e domain.PaymentEvent
		if err := rows.Scan(&e.ID, &e.IntentID, &e.Type, &e.FromStatus, &e.ToStatus,
			&e.DedupKey, &e.RawStatus, &e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
