package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// Services bundles everything the HTTP surface needs.
type Services struct {
	Intents  *IntentHandler
	Refunds  *RefundHandler
	Payouts  *PayoutHandler
	Webhooks *WebhookHandler
	DB       ports.DBPort
}

// RegisterRoutes wires all routes onto the engine.
func RegisterRoutes(r *gin.Engine, s Services) {
	r.GET("/healthz", func(c *gin.Context) {
		if err := s.DB.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		v1.POST("/intents", s.Intents.Create)
		v1.GET("/intents/:id", s.Intents.Get)
		v1.POST("/intents/:id/sync", s.Intents.Sync)
		v1.POST("/intents/:id/refunds", s.Refunds.Create)

		v1.POST("/payouts", s.Payouts.Create)
		v1.POST("/payouts/:id/:action", s.Payouts.Transition)
	}

	r.POST("/webhooks/:provider", s.Webhooks.Handle)
}
