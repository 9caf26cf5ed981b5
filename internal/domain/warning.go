package domain

// WarningCode identifies a degraded-but-successful outcome. Unlike an
// OrchestratorError, the operation completed and its effects were persisted;
// the caller is expected to route the warning to an operator or ignore it.
type WarningCode string

const (
	// WarningRefundPendingManual: the provider cannot complete the refund
	// inside its allowed window; the refund was recorded as PENDING_MANUAL
	// and must be settled by manual bank transfer.
	WarningRefundPendingManual WarningCode = "REFUND_PENDING_MANUAL"

	// WarningWebhookIgnoredOutOfOrder: a duplicate or out-of-order webhook
	// was dropped and the current authoritative state was returned.
	WarningWebhookIgnoredOutOfOrder WarningCode = "WEBHOOK_IGNORED_OUT_OF_ORDER"
)

// Warning is attached to successful results, never returned as an error.
type Warning struct {
	Code    WarningCode
	Message string
}

func NewWarning(code WarningCode, message string) *Warning {
	return &Warning{Code: code, Message: message}
}
