// Package orders resolves orders against the commerce subsystem. The
// orchestrator never trusts client-supplied amounts; this adapter is the
// server-side source of truth.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

const maxResponseBody = 1 << 20

// HTTPResolver implements ports.OrderResolver over the commerce service's
// internal API.
type HTTPResolver struct {
	client  *http.Client
	logger  ports.Logger
	baseURL string
	apiKey  string
}

// NewHTTPResolver creates the resolver. A zero timeout defaults to 5s.
func NewHTTPResolver(baseURL, apiKey string, timeout time.Duration, logger ports.Logger) *HTTPResolver {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &HTTPResolver{
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// orderResponse is the commerce service's wire shape.
type orderResponse struct {
	OrderID    uuid.UUID `json:"order_id"`
	StoreID    uuid.UUID `json:"store_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	Source     string    `json:"source"`
	Method     string    `json:"method"`
	ChannelFee int64     `json:"channel_fee"`
}

// Resolve implements ports.OrderResolver.
func (r *HTTPResolver) Resolve(ctx context.Context, orderID uuid.UUID) (*ports.OrderInfo, error) {
	url := fmt.Sprintf("%s/internal/orders/%s", r.baseURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "order lookup failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "read order response", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.NewError(domain.ErrorCodeValidationFailed, "order not found").
			WithDetail("order_id", orderID.String())
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		r.logger.Error("order lookup returned unexpected status",
			ports.String("order_id", orderID.String()),
			ports.Int("status", resp.StatusCode),
		)
		return nil, domain.NewError(domain.ErrorCodeInternalError, "order lookup failed")
	}

	var order orderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "decode order response", err)
	}

	source := domain.OrderSource(order.Source)
	if source != domain.OrderSourceOwnStore && source != domain.OrderSourceExternalChannel {
		return nil, domain.NewError(domain.ErrorCodeValidationFailed, "order has unknown source").
			WithDetail("source", order.Source)
	}

	return &ports.OrderInfo{
		OrderID:    order.OrderID,
		StoreID:    order.StoreID,
		Amount:     order.Amount,
		Currency:   order.Currency,
		Source:     source,
		Method:     order.Method,
		ChannelFee: order.ChannelFee,
	}, nil
}
