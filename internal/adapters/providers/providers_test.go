package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...ports.Field)  {}
func (nopLogger) Error(string, ...ports.Field) {}
func (nopLogger) Warn(string, ...ports.Field)  {}
func (nopLogger) Debug(string, ...ports.Field) {}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "test-key"}, nopLogger{})
}

func testIntent(providerRef string) *domain.PaymentIntent {
	intent := &domain.PaymentIntent{
		ID:             uuid.New(),
		StoreID:        uuid.New(),
		OrderID:        uuid.New(),
		Amount:         10000,
		Currency:       "CLP",
		Status:         domain.PaymentStatusPaid,
		IdempotencyKey: "test-idem-key",
		CreatedAt:      time.Now().UTC(),
	}
	if providerRef != "" {
		intent.ProviderRef = &providerRef
	}
	return intent
}

func TestSignature(t *testing.T) {
	payload := []byte(`{"event_id":"evt_1"}`)

	t.Run("valid_signature_passes", func(t *testing.T) {
		sig := SignPayload("secret", payload)
		assert.NoError(t, VerifySignature("secret", payload, sig))
	})

	t.Run("wrong_secret_fails", func(t *testing.T) {
		sig := SignPayload("other", payload)
		err := VerifySignature("secret", payload, sig)
		assert.True(t, domain.IsCode(err, domain.ErrorCodeWebhookSignatureInvalid))
	})

	t.Run("tampered_payload_fails", func(t *testing.T) {
		sig := SignPayload("secret", payload)
		err := VerifySignature("secret", []byte(`{"event_id":"evt_2"}`), sig)
		assert.True(t, domain.IsCode(err, domain.ErrorCodeWebhookSignatureInvalid))
	})
}

func TestClientAPIError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error_code": "insufficient_funds", "message": "nope"})
	}))

	var out struct{}
	err := client.PostJSON(context.Background(), "/v1/charges", "k", map[string]any{}, &out)
	require.Error(t, err)

	var apiErr *ProviderAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "insufficient_funds", apiErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
}

func TestCardnetCreatePayment(t *testing.T) {
	expires := time.Now().UTC().Add(30 * time.Minute).Truncate(time.Second)
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/charges", r.URL.Path)
		assert.Equal(t, "test-idem-key", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(cardnetCharge{
			ID:           "ch_123",
			Status:       "pending",
			ClientSecret: "cs_abc",
			ExpiresAt:    expires,
		})
	}))

	adapter := NewCardnetAdapter(client, "whsec", ports.RealClock{})
	result, err := adapter.CreatePayment(context.Background(), testIntent(""))
	require.NoError(t, err)
	assert.Equal(t, "ch_123", result.ProviderIntentID)
	assert.Equal(t, "cs_abc", result.ClientSecret)
	assert.True(t, expires.Equal(result.ExpiresAt))
}

func TestCardnetQueryStatusNormalization(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.PaymentEventType
	}{
		{"pending", domain.EventProviderAccepted},
		{"authorized", domain.EventPaymentAuthorized},
		{"captured", domain.EventPaymentPaid},
		{"failed", domain.EventPaymentFailed},
		{"voided", domain.EventPaymentCanceled},
		{"something_new", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(cardnetCharge{ID: "ch_123", Status: tt.raw, Amount: 10000, Currency: "CLP"})
			}))
			adapter := NewCardnetAdapter(client, "whsec", ports.RealClock{})

			status, err := adapter.QueryStatus(context.Background(), "ch_123")
			require.NoError(t, err)
			assert.Equal(t, tt.raw, status.RawStatus)
			assert.Equal(t, tt.want, status.Normalized)
		})
	}
}

func TestCardnetParseWebhook(t *testing.T) {
	clock := fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	adapter := NewCardnetAdapter(nil, "whsec", clock)

	t.Run("valid_payload", func(t *testing.T) {
		payload := []byte(`{"event_id":"evt_1","charge_id":"ch_123","status":"captured","amount":10000,"currency":"CLP"}`)
		event, err := adapter.ParseWebhook(payload)
		require.NoError(t, err)
		assert.Equal(t, "evt_1", event.ProviderEventID)
		assert.Equal(t, "ch_123", event.ProviderIntentID)
		assert.Equal(t, domain.EventPaymentPaid, event.Normalized)
		assert.Equal(t, clock.now, event.OccurredAt)
	})

	t.Run("missing_event_id_unparseable", func(t *testing.T) {
		_, err := adapter.ParseWebhook([]byte(`{"charge_id":"ch_123","status":"captured"}`))
		assert.True(t, domain.IsCode(err, domain.ErrorCodeWebhookUnparseable))
	})

	t.Run("garbage_unparseable", func(t *testing.T) {
		_, err := adapter.ParseWebhook([]byte(`not json`))
		assert.True(t, domain.IsCode(err, domain.ErrorCodeWebhookUnparseable))
	})
}

func TestBankpayRefundWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("inside_window_calls_api", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(bankpayRefund{RefundID: "rf_1", Status: "pending"})
		}))
		adapter := NewBankpayAdapter(client, "whsec", 0, fixedClock{now: now})

		intent := testIntent("ord_1")
		intent.CreatedAt = now.Add(-24 * time.Hour)

		result, err := adapter.Refund(context.Background(), intent, &domain.Refund{Amount: 5000, IdempotencyKey: "rk"})
		require.NoError(t, err)
		assert.Equal(t, "rf_1", result.ProviderRefundID)
		assert.Equal(t, domain.RefundStatusPending, result.Status)
		assert.True(t, result.IsAsync)
	})

	t.Run("past_window_skips_api", func(t *testing.T) {
		adapter := NewBankpayAdapter(nil, "whsec", 0, fixedClock{now: now})

		intent := testIntent("ord_1")
		intent.CreatedAt = now.Add(-31 * 24 * time.Hour)

		_, err := adapter.Refund(context.Background(), intent, &domain.Refund{Amount: 5000})
		assert.ErrorIs(t, err, ports.ErrRefundWindowClosed)
	})

	t.Run("api_window_closed_code_maps_to_sentinel", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error_code": "refund_window_closed"})
		}))
		adapter := NewBankpayAdapter(client, "whsec", 0, fixedClock{now: now})

		intent := testIntent("ord_1")
		intent.CreatedAt = now.Add(-24 * time.Hour)

		_, err := adapter.Refund(context.Background(), intent, &domain.Refund{Amount: 5000})
		assert.ErrorIs(t, err, ports.ErrRefundWindowClosed)
	})
}

func TestBankpayCreatePayment(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders", r.URL.Path)
		json.NewEncoder(w).Encode(bankpayOrder{
			OrderID:     "ord_9",
			Status:      "created",
			RedirectURL: "https://bankpay.example/pay/ord_9",
		})
	}))
	adapter := NewBankpayAdapter(client, "whsec", 0, ports.RealClock{})

	result, err := adapter.CreatePayment(context.Background(), testIntent(""))
	require.NoError(t, err)
	assert.Equal(t, "ord_9", result.ProviderIntentID)
	assert.Equal(t, "https://bankpay.example/pay/ord_9", result.ClientURL)
}

func TestWalletioRefundIsAsync(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(walletioRefund{RefundID: "wrf_1", Status: "accepted"})
	}))
	adapter := NewWalletioAdapter(client, "whsec", ports.RealClock{})

	result, err := adapter.Refund(context.Background(), testIntent("pay_1"), &domain.Refund{Amount: 2500, IdempotencyKey: "rk"})
	require.NoError(t, err)
	assert.True(t, result.IsAsync)
	assert.Equal(t, domain.RefundStatusPending, result.Status)
}

func TestWalletioParseWebhookNormalization(t *testing.T) {
	adapter := NewWalletioAdapter(nil, "whsec", ports.RealClock{})

	payload := []byte(`{"id":"n_1","payment_id":"pay_1","status":"completed","amount":2500,"currency":"CLP","timestamp":"2025-06-01T12:00:00Z"}`)
	event, err := adapter.ParseWebhook(payload)
	require.NoError(t, err)
	assert.Equal(t, domain.EventPaymentPaid, event.Normalized)
	assert.Equal(t, int64(2500), event.Amount)
}

func TestRefundWithoutProviderRef(t *testing.T) {
	adapters := []ports.ProviderAdapter{
		NewCardnetAdapter(nil, "s", ports.RealClock{}),
		NewBankpayAdapter(nil, "s", 0, fixedClock{now: time.Now()}),
		NewWalletioAdapter(nil, "s", ports.RealClock{}),
	}
	for _, adapter := range adapters {
		t.Run(adapter.Name(), func(t *testing.T) {
			_, err := adapter.Refund(context.Background(), testIntent(""), &domain.Refund{Amount: 100})
			assert.True(t, domain.IsCode(err, domain.ErrorCodeRefundInvalidStatus))
		})
	}
}
