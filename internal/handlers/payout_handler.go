package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
	"github.com/cokeastorga/underdeskflow-payments/internal/services/payout"
)

// PayoutHandler serves payout commands. The bank-rail transition routes are
// called by the transfer worker, not by stores.
type PayoutHandler struct {
	payouts *payout.Service
	logger  ports.Logger
}

func NewPayoutHandler(payouts *payout.Service, logger ports.Logger) *PayoutHandler {
	return &PayoutHandler{payouts: payouts, logger: logger}
}

type createPayoutRequest struct {
	StoreID string `json:"store_id" binding:"required"`
	Amount  int64  `json:"amount" binding:"required"`
}

// Create handles POST /v1/payouts.
func (h *PayoutHandler) Create(c *gin.Context) {
	var req createPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, domain.NewError(domain.ErrorCodeValidationFailed, "invalid request body"))
		return
	}
	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		respondError(c, h.logger, domain.NewError(domain.ErrorCodeValidationFailed, "store_id must be a uuid"))
		return
	}

	p, err := h.payouts.Request(c.Request.Context(), storeID, req.Amount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payout": p})
}

type payoutTransitionRequest struct {
	FailureCode string `json:"failure_code"`
}

// Transition handles POST /v1/payouts/:id/:action for the bank-transfer
// worker: processing, confirm, fail.
func (h *PayoutHandler) Transition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, domain.NewError(domain.ErrorCodeValidationFailed, "id must be a uuid"))
		return
	}

	var req payoutTransitionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, h.logger, domain.NewError(domain.ErrorCodeValidationFailed, "invalid request body"))
			return
		}
	}

	var p *domain.Payout
	switch c.Param("action") {
	case "processing":
		p, err = h.payouts.MarkProcessing(c.Request.Context(), id)
	case "confirm":
		p, err = h.payouts.Confirm(c.Request.Context(), id)
	case "fail":
		p, err = h.payouts.Fail(c.Request.Context(), id, req.FailureCode)
	default:
		respondError(c, h.logger, domain.NewError(domain.ErrorCodeValidationFailed, "unknown payout action"))
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payout": p})
}
