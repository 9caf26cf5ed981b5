package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// CardnetAdapter integrates the Cardnet card PSP. Card payments confirm
// synchronously on the client side and settle through webhooks.
type CardnetAdapter struct {
	client        *Client
	clock         ports.Clock
	webhookSecret string
}

// NewCardnetAdapter creates a Cardnet adapter.
func NewCardnetAdapter(client *Client, webhookSecret string, clock ports.Clock) *CardnetAdapter {
	return &CardnetAdapter{client: client, clock: clock, webhookSecret: webhookSecret}
}

// Name implements ports.ProviderAdapter.
func (a *CardnetAdapter) Name() string { return "cardnet" }

// SupportsCountry implements ports.ProviderAdapter.
func (a *CardnetAdapter) SupportsCountry(country string) bool {
	switch country {
	case "CL", "PE", "CO", "MX":
		return true
	}
	return false
}

// SupportsCurrency implements ports.ProviderAdapter.
func (a *CardnetAdapter) SupportsCurrency(currency string) bool {
	switch currency {
	case "CLP", "PEN", "COP", "MXN", "USD":
		return true
	}
	return false
}

// SupportsMethod implements ports.ProviderAdapter.
func (a *CardnetAdapter) SupportsMethod(method string) bool {
	return method == "card"
}

// cardnetStatuses normalizes Cardnet charge statuses into payment events.
// Statuses absent from this table carry no transition.
var cardnetStatuses = map[string]domain.PaymentEventType{
	"pending":    domain.EventProviderAccepted,
	"authorized": domain.EventPaymentAuthorized,
	"captured":   domain.EventPaymentPaid,
	"failed":     domain.EventPaymentFailed,
	"voided":     domain.EventPaymentCanceled,
}

type cardnetChargeRequest struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type cardnetCharge struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	ClientSecret string    `json:"client_secret"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CreatePayment registers a charge and returns the client secret the
// storefront uses to collect card details.
func (a *CardnetAdapter) CreatePayment(ctx context.Context, intent *domain.PaymentIntent) (*ports.CreatePaymentResult, error) {
	var charge cardnetCharge
	err := a.client.PostJSON(ctx, "/v1/charges", intent.IdempotencyKey, cardnetChargeRequest{
		Reference: intent.ID.String(),
		Amount:    intent.Amount,
		Currency:  intent.Currency,
	}, &charge)
	if err != nil {
		return nil, fmt.Errorf("cardnet create charge: %w", err)
	}
	return &ports.CreatePaymentResult{
		ProviderIntentID: charge.ID,
		ClientSecret:     charge.ClientSecret,
		ExpiresAt:        charge.ExpiresAt,
	}, nil
}

type cardnetRefundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type cardnetRefund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Refund issues a card refund. Cardnet answers synchronously.
func (a *CardnetAdapter) Refund(ctx context.Context, intent *domain.PaymentIntent, refund *domain.Refund) (*ports.ProviderRefundResult, error) {
	if intent.ProviderRef == nil {
		return nil, domain.ErrRefundInvalidStatus.WithDetail("reason", "intent has no provider reference")
	}
	var out cardnetRefund
	err := a.client.PostJSON(ctx,
		fmt.Sprintf("/v1/charges/%s/refunds", *intent.ProviderRef),
		refund.IdempotencyKey,
		cardnetRefundRequest{Amount: refund.Amount, Reason: refund.Reason},
		&out)
	if err != nil {
		return nil, fmt.Errorf("cardnet refund: %w", err)
	}
	status := domain.RefundStatusSucceeded
	if out.Status != "succeeded" {
		status = domain.RefundStatusFailed
	}
	return &ports.ProviderRefundResult{ProviderRefundID: out.ID, Status: status}, nil
}

// QueryStatus fetches the charge and normalizes its status.
func (a *CardnetAdapter) QueryStatus(ctx context.Context, providerIntentID string) (*ports.ProviderStatus, error) {
	var charge cardnetCharge
	if err := a.client.GetJSON(ctx, "/v1/charges/"+providerIntentID, &charge); err != nil {
		return nil, fmt.Errorf("cardnet query status: %w", err)
	}
	return &ports.ProviderStatus{
		RawStatus:  charge.Status,
		Normalized: cardnetStatuses[charge.Status],
		Amount:     charge.Amount,
		Currency:   charge.Currency,
	}, nil
}

// VerifyWebhook implements ports.ProviderAdapter.
func (a *CardnetAdapter) VerifyWebhook(payload []byte, signature string) error {
	return VerifySignature(a.webhookSecret, payload, signature)
}

type cardnetWebhook struct {
	EventID    string    `json:"event_id"`
	ChargeID   string    `json:"charge_id"`
	Status     string    `json:"status"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ParseWebhook normalizes a verified Cardnet delivery.
func (a *CardnetAdapter) ParseWebhook(payload []byte) (*ports.ProviderEvent, error) {
	var wh cardnetWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeWebhookUnparseable, "cardnet webhook", err)
	}
	if wh.EventID == "" || wh.ChargeID == "" {
		return nil, domain.ErrWebhookUnparseable.WithDetail("provider", a.Name())
	}
	occurred := wh.OccurredAt
	if occurred.IsZero() {
		occurred = a.clock.Now()
	}
	return &ports.ProviderEvent{
		ProviderEventID:  wh.EventID,
		ProviderIntentID: wh.ChargeID,
		RawStatus:        wh.Status,
		Normalized:       cardnetStatuses[wh.Status],
		Amount:           wh.Amount,
		Currency:         wh.Currency,
		OccurredAt:       occurred,
	}, nil
}
