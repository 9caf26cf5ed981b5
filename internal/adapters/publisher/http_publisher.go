package publisher

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// HTTPPublisher delivers outbox events to a downstream consumer over HTTP,
// signing each delivery the same way our own providers sign theirs so the
// consumer can verify authenticity.
type HTTPPublisher struct {
	client        *http.Client
	logger        ports.Logger
	endpoint      string
	signingSecret string
}

// NewHTTPPublisher creates an HTTP event publisher.
func NewHTTPPublisher(endpoint, signingSecret string, timeout time.Duration, logger ports.Logger) *HTTPPublisher {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPPublisher{
		client:        &http.Client{Timeout: timeout},
		logger:        logger,
		endpoint:      endpoint,
		signingSecret: signingSecret,
	}
}

// delivery is the wire envelope for one outbox event.
type delivery struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data"`
}

// Publish implements ports.EventPublisher. Any non-2xx response is a
// failure; the outbox loop redelivers.
func (p *HTTPPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	body, err := json.Marshal(delivery{
		EventID:     event.ID.String(),
		EventType:   event.EventType,
		AggregateID: event.AggregateID.String(),
		OccurredAt:  event.CreatedAt,
		Data:        event.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Id", event.ID.String())
	req.Header.Set("X-Signature", p.sign(body))

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver event: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("consumer rejected event: status %d", resp.StatusCode)
	}
	return nil
}

func (p *HTTPPublisher) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(p.signingSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
