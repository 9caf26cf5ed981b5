package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// Client is the HTTP client shared by all provider adapters: one rate
// limiter and one timeout per provider, bearer auth, JSON in and out.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	logger  ports.Logger
	baseURL string
	apiKey  string
}

// ClientConfig tunes one provider's outbound client.
type ClientConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// NewClient builds a rate-limited provider client.
func NewClient(cfg ClientConfig, logger ports.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 20
	}
	if cfg.Burst == 0 {
		cfg.Burst = 5
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// apiError is the error envelope every simulated PSP returns on non-2xx.
type apiError struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// PostJSON sends a mutating request. The idempotency key travels as a header
// so a resent request is a no-op at the provider.
func (c *Client) PostJSON(ctx context.Context, path, idempotencyKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	return c.do(req, out)
}

// GetJSON sends a read request.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeProviderTimeout, "provider request failed", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("provider request",
		ports.String("method", req.Method),
		ports.String("path", req.URL.Path),
		ports.Int("status", resp.StatusCode),
		ports.Duration("duration", time.Since(start)),
	)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Code != "" {
			return &ProviderAPIError{StatusCode: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Message}
		}
		return &ProviderAPIError{StatusCode: resp.StatusCode, Code: "http_error"}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response body: %w", err)
		}
	}
	return nil
}

// ProviderAPIError is a non-2xx response from a provider. The raw message
// stays inside the adapter layer; services translate the code.
type ProviderAPIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderAPIError) Error() string {
	return fmt.Sprintf("provider api error %d (%s)", e.StatusCode, e.Code)
}
