package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Payment intent metrics
	IntentTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intent_transitions_total",
			Help: "Total number of payment intent state transitions",
		},
		[]string{"from", "to", "event"},
	)

	IntentTransitionConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_intent_lock_conflicts_total",
			Help: "Total number of optimistic lock conflicts on intent writes",
		},
	)

	// Webhook metrics
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_total",
			Help: "Total number of webhook deliveries by provider and result",
		},
		[]string{"provider", "result"},
	)

	// Ledger metrics
	LedgerTransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_transactions_total",
			Help: "Total number of ledger transactions recorded",
		},
		[]string{"name"},
	)

	LedgerUnbalancedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_unbalanced_total",
			Help: "Total number of rejected unbalanced ledger transactions (should stay zero; page on increase)",
		},
	)

	// Outbox metrics
	OutboxPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Total number of outbox events by delivery result",
		},
		[]string{"result"},
	)

	OutboxPendingGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_pending_events",
			Help: "Number of unpublished outbox events seen by the last publisher cycle",
		},
	)

	// Circuit breaker metrics
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "provider_circuit_state",
			Help: "Circuit breaker state per provider (0=closed, 1=open, 2=half-open)",
		},
		[]string{"provider"},
	)

	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_calls_total",
			Help: "Total number of provider adapter calls by operation and result",
		},
		[]string{"provider", "operation", "result"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_call_duration_seconds",
			Help:    "Duration of provider adapter calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	// Reconciliation metrics
	ReconciliationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_runs_total",
			Help: "Total number of reconciliation runs by result",
		},
		[]string{"result"},
	)
)
