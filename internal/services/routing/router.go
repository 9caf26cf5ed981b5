package routing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
	"github.com/cokeastorga/underdeskflow-payments/pkg/observability"
	"github.com/cokeastorga/underdeskflow-payments/pkg/resilience"
)

// RouteRequest describes a payment that needs a provider.
type RouteRequest struct {
	Store    *domain.Store
	Country  string
	Currency string
	Method   string
}

// Router selects a provider for a payment and guards every adapter call with
// a per-provider circuit breaker. Selection order follows the store's
// enabled-provider list, so store config doubles as preference order.
type Router struct {
	mu         sync.RWMutex
	adapters   map[string]ports.ProviderAdapter
	breakers   map[string]*resilience.CircuitBreaker
	breakerCfg resilience.CircuitBreakerConfig
	logger     ports.Logger
}

// NewRouter creates a router with the given breaker configuration.
func NewRouter(breakerCfg resilience.CircuitBreakerConfig, logger ports.Logger) *Router {
	return &Router{
		adapters:   make(map[string]ports.ProviderAdapter),
		breakers:   make(map[string]*resilience.CircuitBreaker),
		breakerCfg: breakerCfg,
		logger:     logger,
	}
}

// Register adds a provider adapter and wires its breaker state into metrics.
func (r *Router) Register(adapter ports.ProviderAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := adapter.Name()
	breaker := resilience.NewCircuitBreaker(r.breakerCfg)
	breaker.OnStateChange(func(state resilience.CircuitState) {
		observability.CircuitState.WithLabelValues(name).Set(float64(state))
		r.logger.Warn("provider circuit state changed",
			ports.String("provider", name),
			ports.String("state", state.String()),
		)
	})

	r.adapters[name] = adapter
	r.breakers[name] = breaker
}

// Adapter returns a registered adapter by name.
func (r *Router) Adapter(name string) (ports.ProviderAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[name]
	if !ok {
		return nil, domain.ErrUnknownProvider.WithDetail("provider", name)
	}
	return adapter, nil
}

// Select picks the first enabled, capable provider whose circuit admits
// traffic. An empty candidate set is NO_PROVIDER_AVAILABLE.
func (r *Router) Select(ctx context.Context, req RouteRequest) (ports.ProviderAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range req.Store.EnabledProviders {
		adapter, ok := r.adapters[name]
		if !ok {
			r.logger.Warn("store references unregistered provider",
				ports.String("provider", name),
				ports.String("store_id", req.Store.ID.String()),
			)
			continue
		}
		if !adapter.SupportsCountry(req.Country) ||
			!adapter.SupportsCurrency(req.Currency) ||
			!adapter.SupportsMethod(req.Method) {
			continue
		}
		if r.breakers[name].State() == resilience.StateOpen {
			r.logger.Debug("skipping provider with open circuit", ports.String("provider", name))
			continue
		}
		return adapter, nil
	}

	return nil, domain.ErrNoProviderAvailable.
		WithDetail("country", req.Country).
		WithDetail("currency", req.Currency).
		WithDetail("method", req.Method)
}

// Call runs fn against the named provider through its circuit breaker and
// records the outcome in metrics. Rejections are returned to the caller but
// recorded as breaker successes: the provider answered.
func (r *Router) Call(provider, operation string, fn func() error) error {
	r.mu.RLock()
	breaker, ok := r.breakers[provider]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrUnknownProvider.WithDetail("provider", provider)
	}

	var rejection error
	start := time.Now()
	err := breaker.Call(func() error {
		err := fn()
		if err != nil && isProviderRejection(err) {
			rejection = err
			return nil
		}
		return err
	})
	observability.ProviderCallDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())

	result := "success"
	switch {
	case err != nil:
		result = "failure"
	case rejection != nil:
		result = "rejected"
		err = rejection
	}
	observability.ProviderCallsTotal.WithLabelValues(provider, operation, result).Inc()
	return err
}

// isProviderRejection reports whether an error is the provider's answer
// (a business refusal) rather than a sign of its unavailability. Counting
// these as breaker failures would let routine refusals, like refunds past
// the provider's window, open the circuit and block unrelated payments.
func isProviderRejection(err error) bool {
	return errors.Is(err, ports.ErrRefundWindowClosed) || domain.IsBusinessRejection(err)
}
