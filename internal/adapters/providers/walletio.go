package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// WalletioAdapter integrates the Walletio wallet PSP. Wallet payments
// confirm in-app; refunds are accepted immediately but settle
// asynchronously.
type WalletioAdapter struct {
	client        *Client
	clock         ports.Clock
	webhookSecret string
}

// NewWalletioAdapter creates a Walletio adapter.
func NewWalletioAdapter(client *Client, webhookSecret string, clock ports.Clock) *WalletioAdapter {
	return &WalletioAdapter{client: client, clock: clock, webhookSecret: webhookSecret}
}

// Name implements ports.ProviderAdapter.
func (a *WalletioAdapter) Name() string { return "walletio" }

// SupportsCountry implements ports.ProviderAdapter.
func (a *WalletioAdapter) SupportsCountry(country string) bool {
	switch country {
	case "CL", "AR", "BR":
		return true
	}
	return false
}

// SupportsCurrency implements ports.ProviderAdapter.
func (a *WalletioAdapter) SupportsCurrency(currency string) bool {
	switch currency {
	case "CLP", "ARS", "BRL", "USD":
		return true
	}
	return false
}

// SupportsMethod implements ports.ProviderAdapter.
func (a *WalletioAdapter) SupportsMethod(method string) bool {
	return method == "wallet"
}

var walletioStatuses = map[string]domain.PaymentEventType{
	"initiated": domain.EventProviderAccepted,
	"approved":  domain.EventPaymentAuthorized,
	"completed": domain.EventPaymentPaid,
	"declined":  domain.EventPaymentFailed,
	"cancelled": domain.EventPaymentCanceled,
}

type walletioPaymentRequest struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type walletioPayment struct {
	PaymentID   string    `json:"payment_id"`
	Status      string    `json:"status"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	CheckoutURL string    `json:"checkout_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CreatePayment registers a wallet payment and returns the checkout URL.
func (a *WalletioAdapter) CreatePayment(ctx context.Context, intent *domain.PaymentIntent) (*ports.CreatePaymentResult, error) {
	var payment walletioPayment
	err := a.client.PostJSON(ctx, "/v2/payments", intent.IdempotencyKey, walletioPaymentRequest{
		Reference: intent.ID.String(),
		Amount:    intent.Amount,
		Currency:  intent.Currency,
	}, &payment)
	if err != nil {
		return nil, fmt.Errorf("walletio create payment: %w", err)
	}
	return &ports.CreatePaymentResult{
		ProviderIntentID: payment.PaymentID,
		ClientURL:        payment.CheckoutURL,
		ExpiresAt:        payment.ExpiresAt,
	}, nil
}

type walletioRefundRequest struct {
	Amount int64 `json:"amount"`
}

type walletioRefund struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

// Refund requests a wallet refund. Walletio always answers "accepted" and
// confirms through a webhook later.
func (a *WalletioAdapter) Refund(ctx context.Context, intent *domain.PaymentIntent, refund *domain.Refund) (*ports.ProviderRefundResult, error) {
	if intent.ProviderRef == nil {
		return nil, domain.ErrRefundInvalidStatus.WithDetail("reason", "intent has no provider reference")
	}
	var out walletioRefund
	err := a.client.PostJSON(ctx,
		fmt.Sprintf("/v2/payments/%s/refunds", *intent.ProviderRef),
		refund.IdempotencyKey,
		walletioRefundRequest{Amount: refund.Amount},
		&out)
	if err != nil {
		return nil, fmt.Errorf("walletio refund: %w", err)
	}
	return &ports.ProviderRefundResult{
		ProviderRefundID: out.RefundID,
		Status:           domain.RefundStatusPending,
		IsAsync:          true,
	}, nil
}

// QueryStatus fetches the payment and normalizes its status.
func (a *WalletioAdapter) QueryStatus(ctx context.Context, providerIntentID string) (*ports.ProviderStatus, error) {
	var payment walletioPayment
	if err := a.client.GetJSON(ctx, "/v2/payments/"+providerIntentID, &payment); err != nil {
		return nil, fmt.Errorf("walletio query status: %w", err)
	}
	return &ports.ProviderStatus{
		RawStatus:  payment.Status,
		Normalized: walletioStatuses[payment.Status],
		Amount:     payment.Amount,
		Currency:   payment.Currency,
	}, nil
}

// VerifyWebhook implements ports.ProviderAdapter.
func (a *WalletioAdapter) VerifyWebhook(payload []byte, signature string) error {
	return VerifySignature(a.webhookSecret, payload, signature)
}

type walletioWebhook struct {
	ID        string    `json:"id"`
	PaymentID string    `json:"payment_id"`
	Status    string    `json:"status"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

// ParseWebhook normalizes a verified Walletio delivery.
func (a *WalletioAdapter) ParseWebhook(payload []byte) (*ports.ProviderEvent, error) {
	var wh walletioWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeWebhookUnparseable, "walletio webhook", err)
	}
	if wh.ID == "" || wh.PaymentID == "" {
		return nil, domain.ErrWebhookUnparseable.WithDetail("provider", a.Name())
	}
	occurred := wh.Timestamp
	if occurred.IsZero() {
		occurred = a.clock.Now()
	}
	return &ports.ProviderEvent{
		ProviderEventID:  wh.ID,
		ProviderIntentID: wh.PaymentID,
		RawStatus:        wh.Status,
		Normalized:       walletioStatuses[wh.Status],
		Amount:           wh.Amount,
		Currency:         wh.Currency,
		OccurredAt:       occurred,
	}, nil
}
