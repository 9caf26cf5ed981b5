package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
	"github.com/cokeastorga/underdeskflow-payments/internal/services/intent"
)

// IntentHandler serves the payment-intent command and query routes.
type IntentHandler struct {
	intents *intent.Service
	logger  ports.Logger
}

func NewIntentHandler(intents *intent.Service, logger ports.Logger) *IntentHandler {
	return &IntentHandler{intents: intents, logger: logger}
}

type createIntentRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	// Method optionally overrides the order's payment method; amount and
	// currency always come from the order server-side.
	Method string `json:"method"`
}

// Create handles POST /v1/intents. Retries with the same order are
// idempotent and return the existing intent.
func (h *IntentHandler) Create(c *gin.Context) {
	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, domain.NewError(domain.ErrorCodeValidationFailed, "invalid request body"))
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		respondError(c, h.logger, domain.NewError(domain.ErrorCodeValidationFailed, "order_id must be a uuid"))
		return
	}

	result, err := h.intents.Create(c.Request.Context(), intent.CreateRequest{
		OrderID: orderID,
		Method:  req.Method,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"intent":  result.Intent,
		"warning": warningOf(result.Warning),
	})
}

// Get handles GET /v1/intents/:id.
func (h *IntentHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, domain.NewError(domain.ErrorCodeValidationFailed, "id must be a uuid"))
		return
	}

	paymentIntent, err := h.intents.GetIntent(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"intent": paymentIntent})
}

// Sync handles POST /v1/intents/:id/sync: poll the provider and apply any
// observed status change. Used when webhooks are delayed.
func (h *IntentHandler) Sync(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, domain.NewError(domain.ErrorCodeValidationFailed, "id must be a uuid"))
		return
	}

	result, err := h.intents.QueryAndSync(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"intent":  result.Intent,
		"applied": result.Applied,
		"warning": warningOf(result.Warning),
	})
}
