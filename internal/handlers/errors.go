package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// errorBody is the wire shape for every failure. Raw provider error text
// never appears here; clients see orchestrator codes only.
type errorBody struct {
	Code    domain.ErrorCode       `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// warningBody mirrors domain.Warning for responses that carry one.
type warningBody struct {
	Code    domain.WarningCode `json:"code"`
	Message string             `json:"message"`
}

func warningOf(w *domain.Warning) *warningBody {
	if w == nil {
		return nil
	}
	return &warningBody{Code: w.Code, Message: w.Message}
}

// statusFor maps orchestrator error codes onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsBusinessRejection(err):
		return http.StatusUnprocessableEntity
	}

	switch domain.CodeOf(err) {
	case domain.ErrorCodeValidationFailed, domain.ErrorCodeValidationAmountInvalid, domain.ErrorCodeWebhookUnparseable:
		return http.StatusBadRequest
	case domain.ErrorCodeWebhookSignatureInvalid:
		return http.StatusUnauthorized
	case domain.ErrorCodeIdempotencyConflict, domain.ErrorCodeOptimisticLockConflict, domain.ErrorCodeInvalidTransition:
		return http.StatusConflict
	case domain.ErrorCodeUnknownProvider:
		return http.StatusNotFound
	case domain.ErrorCodeNoProviderAvailable:
		return http.StatusServiceUnavailable
	case domain.ErrorCodeProviderInitFailed, domain.ErrorCodeProviderTimeout:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger ports.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			ports.String("path", c.FullPath()),
			ports.Err(err),
		)
	}

	var oe *domain.OrchestratorError
	if errors.As(err, &oe) {
		body := errorBody{Code: oe.Code, Message: oe.Message}
		if len(oe.Details) > 0 {
			body.Details = oe.Details
		}
		c.JSON(status, gin.H{"error": body})
		return
	}

	c.JSON(status, gin.H{"error": errorBody{
		Code:    domain.ErrorCodeInternalError,
		Message: "internal error",
	}})
}
