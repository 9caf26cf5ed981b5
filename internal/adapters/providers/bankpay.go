package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// DefaultBankpayRefundWindow is how long after a payment Bankpay still
// accepts online refunds. Past it, refunds go through the bank's manual
// desk.
const DefaultBankpayRefundWindow = 30 * 24 * time.Hour

// BankpayAdapter integrates the Bankpay bank-redirect PSP. The shopper is
// sent to the bank's page; everything after that arrives via webhook. Online
// refunds only work inside a fixed window after payment.
type BankpayAdapter struct {
	client        *Client
	clock         ports.Clock
	webhookSecret string
	refundWindow  time.Duration
}

// NewBankpayAdapter creates a Bankpay adapter. A zero refundWindow selects
// the default.
func NewBankpayAdapter(client *Client, webhookSecret string, refundWindow time.Duration, clock ports.Clock) *BankpayAdapter {
	if refundWindow == 0 {
		refundWindow = DefaultBankpayRefundWindow
	}
	return &BankpayAdapter{client: client, clock: clock, webhookSecret: webhookSecret, refundWindow: refundWindow}
}

// Name implements ports.ProviderAdapter.
func (a *BankpayAdapter) Name() string { return "bankpay" }

// SupportsCountry implements ports.ProviderAdapter.
func (a *BankpayAdapter) SupportsCountry(country string) bool {
	return country == "CL"
}

// SupportsCurrency implements ports.ProviderAdapter.
func (a *BankpayAdapter) SupportsCurrency(currency string) bool {
	return currency == "CLP"
}

// SupportsMethod implements ports.ProviderAdapter.
func (a *BankpayAdapter) SupportsMethod(method string) bool {
	return method == "bank_redirect"
}

// bankpayStatuses normalizes Bankpay order statuses. Bank redirects have no
// separate authorization step.
var bankpayStatuses = map[string]domain.PaymentEventType{
	"created":  domain.EventProviderAccepted,
	"paid":     domain.EventPaymentPaid,
	"rejected": domain.EventPaymentFailed,
	"expired":  domain.EventPaymentCanceled,
	"aborted":  domain.EventPaymentCanceled,
}

type bankpayOrderRequest struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type bankpayOrder struct {
	OrderID     string    `json:"order_id"`
	Status      string    `json:"status"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	RedirectURL string    `json:"redirect_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CreatePayment registers a bank order and returns the redirect URL.
func (a *BankpayAdapter) CreatePayment(ctx context.Context, intent *domain.PaymentIntent) (*ports.CreatePaymentResult, error) {
	var order bankpayOrder
	err := a.client.PostJSON(ctx, "/api/orders", intent.IdempotencyKey, bankpayOrderRequest{
		Reference: intent.ID.String(),
		Amount:    intent.Amount,
		Currency:  intent.Currency,
	}, &order)
	if err != nil {
		return nil, fmt.Errorf("bankpay create order: %w", err)
	}
	return &ports.CreatePaymentResult{
		ProviderIntentID: order.OrderID,
		ClientURL:        order.RedirectURL,
		ExpiresAt:        order.ExpiresAt,
	}, nil
}

type bankpayRefundRequest struct {
	Amount int64 `json:"amount"`
}

type bankpayRefund struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

// Refund issues a bank refund when the window is still open. Outside the
// window (checked locally and confirmed by the API's error code) the caller
// gets ErrRefundWindowClosed and routes the refund to manual handling.
func (a *BankpayAdapter) Refund(ctx context.Context, intent *domain.PaymentIntent, refund *domain.Refund) (*ports.ProviderRefundResult, error) {
	if intent.ProviderRef == nil {
		return nil, domain.ErrRefundInvalidStatus.WithDetail("reason", "intent has no provider reference")
	}
	if a.clock.Now().Sub(intent.CreatedAt) > a.refundWindow {
		return nil, ports.ErrRefundWindowClosed
	}

	var out bankpayRefund
	err := a.client.PostJSON(ctx,
		fmt.Sprintf("/api/orders/%s/refunds", *intent.ProviderRef),
		refund.IdempotencyKey,
		bankpayRefundRequest{Amount: refund.Amount},
		&out)
	if err != nil {
		var apiErr *ProviderAPIError
		if errors.As(err, &apiErr) && apiErr.Code == "refund_window_closed" {
			return nil, ports.ErrRefundWindowClosed
		}
		return nil, fmt.Errorf("bankpay refund: %w", err)
	}

	// Bank refunds settle out of band; the refund stays PENDING until the
	// bank confirms.
	status := domain.RefundStatusPending
	if out.Status == "succeeded" {
		status = domain.RefundStatusSucceeded
	}
	return &ports.ProviderRefundResult{ProviderRefundID: out.RefundID, Status: status, IsAsync: status == domain.RefundStatusPending}, nil
}

// QueryStatus fetches the order and normalizes its status.
func (a *BankpayAdapter) QueryStatus(ctx context.Context, providerIntentID string) (*ports.ProviderStatus, error) {
	var order bankpayOrder
	if err := a.client.GetJSON(ctx, "/api/orders/"+providerIntentID, &order); err != nil {
		return nil, fmt.Errorf("bankpay query status: %w", err)
	}
	return &ports.ProviderStatus{
		RawStatus:  order.Status,
		Normalized: bankpayStatuses[order.Status],
		Amount:     order.Amount,
		Currency:   order.Currency,
	}, nil
}

// VerifyWebhook implements ports.ProviderAdapter.
func (a *BankpayAdapter) VerifyWebhook(payload []byte, signature string) error {
	return VerifySignature(a.webhookSecret, payload, signature)
}

type bankpayWebhook struct {
	NotificationID string    `json:"notification_id"`
	OrderID        string    `json:"order_id"`
	Status         string    `json:"status"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	NotifiedAt     time.Time `json:"notified_at"`
}

// ParseWebhook normalizes a verified Bankpay notification.
func (a *BankpayAdapter) ParseWebhook(payload []byte) (*ports.ProviderEvent, error) {
	var wh bankpayWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeWebhookUnparseable, "bankpay webhook", err)
	}
	if wh.NotificationID == "" || wh.OrderID == "" {
		return nil, domain.ErrWebhookUnparseable.WithDetail("provider", a.Name())
	}
	occurred := wh.NotifiedAt
	if occurred.IsZero() {
		occurred = a.clock.Now()
	}
	return &ports.ProviderEvent{
		ProviderEventID:  wh.NotificationID,
		ProviderIntentID: wh.OrderID,
		RawStatus:        wh.Status,
		Normalized:       bankpayStatuses[wh.Status],
		Amount:           wh.Amount,
		Currency:         wh.Currency,
		OccurredAt:       occurred,
	}, nil
}
