package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// OutboxRepository implements ports.OutboxRepository. Events are never
// deleted; published_at flips once so history stays replayable.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// Append stores a domain event in the same transaction as the state change.
func (r *OutboxRepository) Append(ctx context.Context, tx ports.DBTX, event *domain.OutboxEvent) error {
	_, err := querier(r.pool, tx).Exec(ctx, `
		INSERT INTO outbox_events (id, event_type, aggregate_id, payload, attempts, published_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		event.ID, event.EventType, event.AggregateID, []byte(event.Payload),
		event.Attempts, event.PublishedAt, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}

// ListUnpublished returns pending events ordered by creation.
func (r *OutboxRepository) ListUnpublished(ctx context.Context, tx ports.DBTX, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := querier(r.pool, tx).Query(ctx, `
		SELECT id, event_type, aggregate_id, payload, attempts, published_at, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpublished outbox events: %w", err)
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var (
			e       domain.OutboxEvent
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.EventType, &e.AggregateID, &payload,
			&e.Attempts, &e.PublishedAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		e.Payload = payload
		events = append(events, &e)
	}
	return events, rows.Err()
}

// MarkPublished records successful delivery.
func (r *OutboxRepository) MarkPublished(ctx context.Context, tx ports.DBTX, id uuid.UUID, at time.Time) error {
	_, err := querier(r.pool, tx).Exec(ctx,
		`UPDATE outbox_events SET published_at = $2 WHERE id = $1 AND published_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("mark outbox event published: %w", err)
	}
	return nil
}

// IncrementAttempts counts a failed delivery attempt.
func (r *OutboxRepository) IncrementAttempts(ctx context.Context, tx ports.DBTX, id uuid.UUID) error {
	_, err := querier(r.pool, tx).Exec(ctx,
		`UPDATE outbox_events SET attempts = attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment outbox attempts: %w", err)
	}
	return nil
}
