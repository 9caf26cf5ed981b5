package ports

import (
	"context"
	"errors"
	"time"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
)

// ErrRefundWindowClosed is returned by adapters whose provider cannot
// complete a refund online anymore (e.g. a bank-redirect method past its
// cutoff). The refund engine records the refund as PENDING_MANUAL instead
// of failing.
var ErrRefundWindowClosed = errors.New("provider refund window closed")

// CreatePaymentResult is the provider's acknowledgement of a new payment.
type CreatePaymentResult struct {
	ProviderIntentID string
	ClientURL        string
	ClientSecret     string
	ExpiresAt        time.Time
}

// ProviderRefundResult is the provider's acknowledgement of a refund.
type ProviderRefundResult struct {
	ProviderRefundID string
	Status           domain.RefundStatus
	IsAsync          bool
}

// ProviderStatus is the provider's view of a payment.
type ProviderStatus struct {
	RawStatus  string
	Normalized domain.PaymentEventType
	Amount     int64
	Currency   string
}

// ProviderEvent is a parsed, normalized webhook delivery.
type ProviderEvent struct {
	ProviderEventID  string
	ProviderIntentID string
	RawStatus        string
	Normalized       domain.PaymentEventType
	Amount           int64
	Currency         string
	OccurredAt       time.Time
}

// ProviderAdapter translates the orchestrator's abstract operations into one
// PSP's HTTP API. Mutating calls must be safe to resend verbatim under the
// same idempotency key; only QueryStatus may be auto-retried.
type ProviderAdapter interface {
	Name() string
	// Capabilities used by the router.
	SupportsCountry(country string) bool
	SupportsCurrency(currency string) bool
	SupportsMethod(method string) bool

	CreatePayment(ctx context.Context, intent *domain.PaymentIntent) (*CreatePaymentResult, error)
	Refund(ctx context.Context, intent *domain.PaymentIntent, refund *domain.Refund) (*ProviderRefundResult, error)
	QueryStatus(ctx context.Context, providerIntentID string) (*ProviderStatus, error)

	// VerifyWebhook checks the raw payload's signature.
	VerifyWebhook(payload []byte, signature string) error
	// ParseWebhook normalizes a verified payload.
	ParseWebhook(payload []byte) (*ProviderEvent, error)
}
