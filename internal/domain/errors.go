package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is a machine-readable orchestrator error code. Every failure
// surfaced outside the orchestrator carries one of these; raw provider
// error text never crosses the boundary.
type ErrorCode string

const (
	// State machine errors (INTENT_*)
	ErrorCodeInvalidTransition      ErrorCode = "INVALID_TRANSITION"
	ErrorCodeIntentNotFound         ErrorCode = "INTENT_NOT_FOUND"
	ErrorCodeIdempotencyConflict    ErrorCode = "IDEMPOTENCY_CONFLICT"
	ErrorCodeOptimisticLockConflict ErrorCode = "OPTIMISTIC_LOCK_CONFLICT"

	// Provider errors (PROVIDER_*)
	ErrorCodeUnknownProvider     ErrorCode = "UNKNOWN_PROVIDER"
	ErrorCodeNoProviderAvailable ErrorCode = "NO_PROVIDER_AVAILABLE"
	ErrorCodeProviderInitFailed  ErrorCode = "PROVIDER_INIT_FAILED"
	ErrorCodeProviderTimeout     ErrorCode = "PROVIDER_TIMEOUT"

	// Refund errors (REFUND_*)
	ErrorCodeRefundExceedsAmount  ErrorCode = "REFUND_EXCEEDS_AMOUNT"
	ErrorCodeRefundFullyRefunded  ErrorCode = "REFUND_ALREADY_FULLY_REFUNDED"
	ErrorCodeRefundInvalidStatus  ErrorCode = "REFUND_INVALID_STATUS"
	ErrorCodeRefundNotFound       ErrorCode = "REFUND_NOT_FOUND"

	// Payout errors (PAYOUT_*)
	ErrorCodeInsufficientBalance    ErrorCode = "INSUFFICIENT_BALANCE"
	ErrorCodeStoreSuspended         ErrorCode = "STORE_SUSPENDED"
	ErrorCodeBankAccountNotVerified ErrorCode = "BANK_ACCOUNT_NOT_VERIFIED"
	ErrorCodePayoutExceedsDailyCap  ErrorCode = "PAYOUT_EXCEEDS_DAILY_LIMIT"
	ErrorCodePayoutNotFound         ErrorCode = "PAYOUT_NOT_FOUND"

	// Webhook errors (WEBHOOK_*)
	ErrorCodeWebhookSignatureInvalid ErrorCode = "WEBHOOK_SIGNATURE_INVALID"
	ErrorCodeWebhookUnparseable      ErrorCode = "WEBHOOK_UNPARSEABLE"

	// Ledger errors (LEDGER_*)
	ErrorCodeLedgerUnbalanced ErrorCode = "LEDGER_UNBALANCED"

	// Store errors (STORE_*)
	ErrorCodeStoreNotFound       ErrorCode = "STORE_NOT_FOUND"
	ErrorCodeReadOnlyModeEnabled ErrorCode = "READ_ONLY_MODE_ENABLED"

	// Validation errors (VALIDATION_*)
	ErrorCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationAmountInvalid ErrorCode = "VALIDATION_AMOUNT_INVALID"

	// Internal errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// OrchestratorError is a structured domain error: the operation aborted and
// nothing was persisted beyond the event log.
type OrchestratorError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *OrchestratorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *OrchestratorError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *OrchestratorError) WithDetail(key string, value interface{}) *OrchestratorError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewError creates a new orchestrator error
func NewError(code ErrorCode, message string) *OrchestratorError {
	return &OrchestratorError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with an orchestrator error code
func WrapError(code ErrorCode, message string, err error) *OrchestratorError {
	return &OrchestratorError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsCode checks if an error is an OrchestratorError with the given code
func IsCode(err error, code ErrorCode) bool {
	var oe *OrchestratorError
	if errors.As(err, &oe) {
		return oe.Code == code
	}
	return false
}

// CodeOf extracts the error code from an error, empty if not an OrchestratorError
func CodeOf(err error) ErrorCode {
	var oe *OrchestratorError
	if errors.As(err, &oe) {
		return oe.Code
	}
	return ""
}

// IsNotFound checks if an error represents a "not found" condition
func IsNotFound(err error) bool {
	code := CodeOf(err)
	return code == ErrorCodeIntentNotFound ||
		code == ErrorCodeRefundNotFound ||
		code == ErrorCodePayoutNotFound ||
		code == ErrorCodeStoreNotFound
}

// IsBusinessRejection reports whether an error is a business-rule rejection
// as opposed to an infrastructure or programming fault.
func IsBusinessRejection(err error) bool {
	switch CodeOf(err) {
	case ErrorCodeRefundExceedsAmount,
		ErrorCodeRefundFullyRefunded,
		ErrorCodeRefundInvalidStatus,
		ErrorCodeInsufficientBalance,
		ErrorCodeStoreSuspended,
		ErrorCodeBankAccountNotVerified,
		ErrorCodePayoutExceedsDailyCap,
		ErrorCodeReadOnlyModeEnabled:
		return true
	}
	return false
}

// IsRetryable reports whether a caller may re-read and retry. Only lock
// conflicts qualify; everything else is either permanent or already safe to
// resend verbatim under its idempotency key.
func IsRetryable(err error) bool {
	return CodeOf(err) == ErrorCodeOptimisticLockConflict
}

// Shared error instances
var (
	ErrIntentNotFound         = NewError(ErrorCodeIntentNotFound, "payment intent not found")
	ErrInvalidTransition      = NewError(ErrorCodeInvalidTransition, "illegal payment state transition")
	ErrIdempotencyConflict    = NewError(ErrorCodeIdempotencyConflict, "idempotency key conflict")
	ErrOptimisticLockConflict = NewError(ErrorCodeOptimisticLockConflict, "intent version changed concurrently")

	ErrUnknownProvider     = NewError(ErrorCodeUnknownProvider, "unknown payment provider")
	ErrNoProviderAvailable = NewError(ErrorCodeNoProviderAvailable, "no payment provider available for request")

	ErrRefundExceedsAmount = NewError(ErrorCodeRefundExceedsAmount, "refund exceeds remaining refundable amount")
	ErrRefundFullyRefunded = NewError(ErrorCodeRefundFullyRefunded, "intent already fully refunded")
	ErrRefundInvalidStatus = NewError(ErrorCodeRefundInvalidStatus, "intent status does not allow refunds")
	ErrRefundNotFound      = NewError(ErrorCodeRefundNotFound, "refund not found")

	ErrInsufficientBalance    = NewError(ErrorCodeInsufficientBalance, "payoutable balance is insufficient")
	ErrStoreSuspended         = NewError(ErrorCodeStoreSuspended, "store is suspended")
	ErrBankAccountNotVerified = NewError(ErrorCodeBankAccountNotVerified, "bank account is not verified")
	ErrPayoutExceedsDailyCap  = NewError(ErrorCodePayoutExceedsDailyCap, "payout exceeds rolling daily limit")
	ErrPayoutNotFound         = NewError(ErrorCodePayoutNotFound, "payout not found")

	ErrWebhookSignatureInvalid = NewError(ErrorCodeWebhookSignatureInvalid, "webhook signature verification failed")
	ErrWebhookUnparseable      = NewError(ErrorCodeWebhookUnparseable, "webhook payload could not be parsed")

	ErrLedgerUnbalanced = NewError(ErrorCodeLedgerUnbalanced, "ledger transaction debits do not equal credits")

	ErrStoreNotFound       = NewError(ErrorCodeStoreNotFound, "store not found")
	ErrReadOnlyModeEnabled = NewError(ErrorCodeReadOnlyModeEnabled, "store is in read-only mode")

	ErrInternalError = NewError(ErrorCodeInternalError, "internal error")
	ErrDatabaseError = NewError(ErrorCodeDatabaseError, "database error")
)
