package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/testutil"
)

func appendEvents(t *testing.T, repo *testutil.FakeOutboxRepo, n int) []*domain.OutboxEvent {
	t.Helper()
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	events := make([]*domain.OutboxEvent, 0, n)
	for i := 0; i < n; i++ {
		e := &domain.OutboxEvent{
			ID:          uuid.New(),
			EventType:   domain.OutboxPaymentPaid,
			AggregateID: uuid.New(),
			Payload:     []byte(`{"amount":10000}`),
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Append(context.Background(), nil, e))
		events = append(events, e)
	}
	return events
}

func newPublisher(repo *testutil.FakeOutboxRepo, sink *testutil.FakePublisher) *Publisher {
	clock := testutil.NewFixedClock(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	return NewPublisher(repo, sink, clock, testutil.NopLogger{}, 0, 0)
}

func TestCycle(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes_and_marks_in_order", func(t *testing.T) {
		repo := testutil.NewFakeOutboxRepo()
		appended := appendEvents(t, repo, 3)
		sink := &testutil.FakePublisher{}
		p := newPublisher(repo, sink)

		published, failed := p.cycle(ctx)
		assert.Equal(t, 3, published)
		assert.Equal(t, 0, failed)

		require.Equal(t, 3, sink.Count())
		for i, delivered := range sink.Published {
			assert.Equal(t, appended[i].ID, delivered.ID)
		}

		remaining, err := repo.ListUnpublished(ctx, nil, 10)
		require.NoError(t, err)
		assert.Empty(t, remaining)
	})

	t.Run("published_events_stay_on_record", func(t *testing.T) {
		repo := testutil.NewFakeOutboxRepo()
		appendEvents(t, repo, 2)
		p := newPublisher(repo, &testutil.FakePublisher{})

		p.cycle(ctx)

		all := repo.All()
		require.Len(t, all, 2)
		for _, e := range all {
			assert.NotNil(t, e.PublishedAt)
		}
	})

	t.Run("failed_delivery_keeps_event_pending", func(t *testing.T) {
		repo := testutil.NewFakeOutboxRepo()
		appendEvents(t, repo, 1)
		sink := &testutil.FakePublisher{Err: errors.New("consumer down")}
		p := newPublisher(repo, sink)

		published, failed := p.cycle(ctx)
		assert.Equal(t, 0, published)
		assert.Equal(t, 1, failed)

		remaining, err := repo.ListUnpublished(ctx, nil, 10)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, 1, remaining[0].Attempts)
	})

	t.Run("failed_head_event_blocks_its_successors", func(t *testing.T) {
		repo := testutil.NewFakeOutboxRepo()
		appended := appendEvents(t, repo, 3)
		sink := &testutil.FakePublisher{Err: errors.New("consumer down")}
		p := newPublisher(repo, sink)

		published, failed := p.cycle(ctx)
		assert.Equal(t, 0, published)
		assert.Equal(t, 1, failed)
		// Nothing after the failed head may be attempted, or the consumer
		// would see events out of creation order.
		assert.Equal(t, 0, sink.Count())

		remaining, err := repo.ListUnpublished(ctx, nil, 10)
		require.NoError(t, err)
		require.Len(t, remaining, 3)
		assert.Equal(t, 1, remaining[0].Attempts)
		assert.Equal(t, 0, remaining[1].Attempts)
		assert.Equal(t, 0, remaining[2].Attempts)

		sink.SetErr(nil)
		published, failed = p.cycle(ctx)
		assert.Equal(t, 3, published)
		assert.Equal(t, 0, failed)
		require.Equal(t, 3, sink.Count())
		for i, delivered := range sink.Published {
			assert.Equal(t, appended[i].ID, delivered.ID)
		}
	})

	t.Run("recovered_consumer_gets_the_backlog", func(t *testing.T) {
		repo := testutil.NewFakeOutboxRepo()
		appendEvents(t, repo, 2)
		sink := &testutil.FakePublisher{Err: errors.New("consumer down")}
		p := newPublisher(repo, sink)

		p.cycle(ctx)
		sink.SetErr(nil)
		published, failed := p.cycle(ctx)

		assert.Equal(t, 2, published)
		assert.Equal(t, 0, failed)
		assert.Equal(t, 2, sink.Count())
	})

	t.Run("respects_batch_size", func(t *testing.T) {
		repo := testutil.NewFakeOutboxRepo()
		appendEvents(t, repo, 5)
		sink := &testutil.FakePublisher{}
		clock := testutil.NewFixedClock(time.Now())
		p := NewPublisher(repo, sink, clock, testutil.NopLogger{}, 0, 2)

		published, _ := p.cycle(ctx)
		assert.Equal(t, 2, published)

		remaining, err := repo.ListUnpublished(ctx, nil, 10)
		require.NoError(t, err)
		assert.Len(t, remaining, 3)
	})

	t.Run("empty_outbox_is_a_quiet_cycle", func(t *testing.T) {
		p := newPublisher(testutil.NewFakeOutboxRepo(), &testutil.FakePublisher{})
		published, failed := p.cycle(ctx)
		assert.Equal(t, 0, published)
		assert.Equal(t, 0, failed)
	})
}

func TestRunStopsOnContextCancel(t *testing.T) {
	repo := testutil.NewFakeOutboxRepo()
	appendEvents(t, repo, 1)
	sink := &testutil.FakePublisher{}
	clock := testutil.NewFixedClock(time.Now())
	p := NewPublisher(repo, sink, clock, testutil.NopLogger{}, 5*time.Millisecond, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sink.Count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop after context cancellation")
	}
}
