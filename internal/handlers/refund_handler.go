package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
	"github.com/cokeastorga/underdeskflow-payments/internal/services/refund"
)

// RefundHandler serves refund commands against a paid intent.
type RefundHandler struct {
	refunds *refund.Service
	logger  ports.Logger
}

func NewRefundHandler(refunds *refund.Service, logger ports.Logger) *RefundHandler {
	return &RefundHandler{refunds: refunds, logger: logger}
}

type createRefundRequest struct {
	Amount     int64  `json:"amount" binding:"required"`
	Reason     string `json:"reason" binding:"required"`
	Note       string `json:"note"`
	OperatorID string `json:"operator_id" binding:"required"`
}

// Create handles POST /v1/intents/:id/refunds. A 200 with a warning means
// the refund was recorded but needs manual settlement.
func (h *RefundHandler) Create(c *gin.Context) {
	intentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, domain.NewError(domain.ErrorCodeValidationFailed, "id must be a uuid"))
		return
	}

	var req createRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, domain.NewError(domain.ErrorCodeValidationFailed, "invalid request body"))
		return
	}

	result, err := h.refunds.Refund(c.Request.Context(), refund.Request{
		IntentID:   intentID,
		Amount:     req.Amount,
		Reason:     req.Reason,
		Note:       req.Note,
		OperatorID: req.OperatorID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"refund":  result.Refund,
		"intent":  result.Intent,
		"warning": warningOf(result.Warning),
	})
}
