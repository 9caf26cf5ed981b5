package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
	"github.com/cokeastorga/underdeskflow-payments/internal/services/webhook"
)

// maxWebhookBody bounds webhook payload reads.
const maxWebhookBody = 1 << 20

// WebhookHandler ingests PSP webhook deliveries. Responses are minimal:
// providers only care whether to retry.
type WebhookHandler struct {
	webhooks *webhook.Service
	logger   ports.Logger
}

func NewWebhookHandler(webhooks *webhook.Service, logger ports.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, logger: logger}
}

// Handle handles POST /webhooks/:provider. Duplicates and out-of-order
// deliveries return 200 so the provider stops retrying.
func (h *WebhookHandler) Handle(c *gin.Context) {
	provider := c.Param("provider")
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, h.logger, domain.NewError(domain.ErrorCodeWebhookUnparseable, "failed to read webhook body"))
		return
	}

	signature := c.GetHeader("X-Signature")
	result, err := h.webhooks.Ingest(c.Request.Context(), provider, payload, signature)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if result == nil {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"applied":  result.Applied,
		"warning":  warningOf(result.Warning),
	})
}
