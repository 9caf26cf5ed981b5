package webhook

import (
	"context"
	"fmt"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
	"github.com/cokeastorga/underdeskflow-payments/internal/services/intent"
	"github.com/cokeastorga/underdeskflow-payments/internal/services/routing"
	"github.com/cokeastorga/underdeskflow-payments/pkg/observability"
)

// Service is the webhook ingestor: verify, parse, dedup, apply. Providers
// retry deliveries, so every path through Ingest must be idempotent.
type Service struct {
	router  *routing.Router
	intents *intent.Service
	logger  ports.Logger
}

// NewService creates the webhook service.
func NewService(router *routing.Router, intents *intent.Service, logger ports.Logger) *Service {
	return &Service{router: router, intents: intents, logger: logger}
}

// Ingest processes one raw webhook delivery. A nil result with nil error
// means the delivery was accepted but carried no transition (unmapped
// provider status).
func (s *Service) Ingest(ctx context.Context, provider string, payload []byte, signature string) (*intent.ApplyResult, error) {
	adapter, err := s.router.Adapter(provider)
	if err != nil {
		observability.WebhooksTotal.WithLabelValues(provider, "unknown_provider").Inc()
		return nil, err
	}

	if err := adapter.VerifyWebhook(payload, signature); err != nil {
		observability.WebhooksTotal.WithLabelValues(provider, "signature_invalid").Inc()
		s.logger.Warn("webhook signature verification failed", ports.String("provider", provider))
		return nil, err
	}

	event, err := adapter.ParseWebhook(payload)
	if err != nil {
		observability.WebhooksTotal.WithLabelValues(provider, "unparseable").Inc()
		return nil, err
	}

	if event.Normalized == "" {
		observability.WebhooksTotal.WithLabelValues(provider, "unmapped_status").Inc()
		s.logger.Info("webhook carried unmapped provider status",
			ports.String("provider", provider),
			ports.String("raw_status", event.RawStatus),
		)
		return nil, nil
	}

	paymentIntent, err := s.intents.GetByProviderRef(ctx, provider, event.ProviderIntentID)
	if err != nil {
		observability.WebhooksTotal.WithLabelValues(provider, "unknown_intent").Inc()
		s.logger.Warn("webhook references unknown intent",
			ports.String("provider", provider),
			ports.String("provider_intent_id", event.ProviderIntentID),
		)
		return nil, err
	}

	result, err := s.intents.ApplyEvent(ctx, paymentIntent.ID, intent.ApplyInput{
		Type: event.Normalized,
		// Scope the provider's event id to the provider so two PSPs can
		// never collide on dedup keys.
		DedupKey:   fmt.Sprintf("%s|%s", provider, event.ProviderEventID),
		RawStatus:  event.RawStatus,
		OccurredAt: event.OccurredAt,
	})
	if err != nil {
		observability.WebhooksTotal.WithLabelValues(provider, "error").Inc()
		return nil, err
	}

	switch {
	case result.Applied:
		observability.WebhooksTotal.WithLabelValues(provider, "applied").Inc()
	case result.Warning != nil:
		observability.WebhooksTotal.WithLabelValues(provider, "out_of_order").Inc()
	default:
		observability.WebhooksTotal.WithLabelValues(provider, "duplicate").Inc()
	}
	return result, nil
}
