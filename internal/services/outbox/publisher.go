package outbox

import (
	"context"
	"time"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
	"github.com/cokeastorga/underdeskflow-payments/pkg/observability"
	"github.com/cokeastorga/underdeskflow-payments/pkg/resilience"
)

// Defaults for the poll loop.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultBatchSize    = 100
)

// Publisher drains the outbox: unpublished events in creation order, one
// delivery attempt each per cycle, published_at set only on success.
// Delivery is at-least-once; consumers dedup by event id.
type Publisher struct {
	repo      ports.OutboxRepository
	sink      ports.EventPublisher
	clock     ports.Clock
	logger    ports.Logger
	backoff   resilience.BackoffStrategy
	interval  time.Duration
	batchSize int
}

// NewPublisher creates the outbox publisher. Zero interval or batch size
// select the defaults.
func NewPublisher(repo ports.OutboxRepository, sink ports.EventPublisher, clock ports.Clock, logger ports.Logger, interval time.Duration, batchSize int) *Publisher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Publisher{
		repo:      repo,
		sink:      sink,
		clock:     clock,
		logger:    logger,
		backoff:   resilience.PublisherBackoff(),
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until the context is canceled. Cycles that fail entirely back
// off exponentially so a down consumer is not hammered.
func (p *Publisher) Run(ctx context.Context) {
	p.logger.Info("outbox publisher started",
		ports.Duration("interval", p.interval),
		ports.Int("batch_size", p.batchSize),
	)

	failedCycles := 0
	for {
		delay := p.interval
		if failedCycles > 0 {
			delay = p.backoff.NextDelay(failedCycles - 1)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("outbox publisher stopped")
			return
		case <-time.After(delay):
		}

		published, failed := p.cycle(ctx)
		if published == 0 && failed > 0 {
			failedCycles++
		} else {
			failedCycles = 0
		}
	}
}

// cycle delivers one batch and reports (published, failed) counts.
func (p *Publisher) cycle(ctx context.Context) (int, int) {
	events, err := p.repo.ListUnpublished(ctx, nil, p.batchSize)
	if err != nil {
		p.logger.Error("failed to list unpublished outbox events", ports.Err(err))
		return 0, 1
	}
	observability.OutboxPendingGauge.Set(float64(len(events)))
	if len(events) == 0 {
		return 0, 0
	}

	var published, failed int
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		if err := p.sink.Publish(ctx, event); err != nil {
			failed++
			observability.OutboxPublishedTotal.WithLabelValues("failure").Inc()
			p.logger.Warn("outbox delivery failed",
				ports.String("event_id", event.ID.String()),
				ports.String("event_type", event.EventType),
				ports.Int("attempts", event.Attempts+1),
				ports.Err(err),
			)
			if err := p.repo.IncrementAttempts(ctx, nil, event.ID); err != nil {
				p.logger.Error("failed to record outbox attempt", ports.Err(err))
			}
			// Delivery is ordered by creation: later events must not
			// overtake a failed one, so the rest of the batch waits for
			// the next cycle.
			break
		}

		published++
		observability.OutboxPublishedTotal.WithLabelValues("success").Inc()
		if err := p.repo.MarkPublished(ctx, nil, event.ID, p.clock.Now()); err != nil {
			// The consumer has the event; the next cycle redelivers and the
			// consumer's dedup absorbs it.
			p.logger.Error("failed to mark outbox event published",
				ports.String("event_id", event.ID.String()),
				ports.Err(err),
			)
		}
	}
	return published, failed
}
