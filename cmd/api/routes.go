package main

import (
	"context"
	"net/http"

	"outbound-platform/internal/automation"
	"outbound-platform/internal/billing"
	"outbound-platform/internal/httpapi"
	"outbound-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

type apiDeps struct {
	Handlers         httpapi.Handlers
	AuthMW           gin.HandlerFunc
	Automation       automation.WebhookHandler
	AutomationSecret string
	Stripe           billing.StripeWebhookHandler
	Ready            func(ctx context.Context) error
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d apiDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if err := d.Ready(c.Request.Context()); err != nil {
			logger.FromGin(c).Warn("readiness check failed", "err", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Automation callbacks, HMAC signed by the automation service.
	hooks := r.Group("/webhooks/automation")
	hooks.Use(automation.RequireSignature(d.AutomationSecret))
	{
		hooks.POST("/completion", d.Automation.HandleCompletion)
		hooks.POST("/calls", d.Automation.HandleCallEvent)
		hooks.POST("/leads", d.Automation.HandleLeadStatus)
	}

	// Stripe verifies its own signature inside the handler.
	r.POST("/webhooks/stripe", d.Stripe.Handle)

	// Token issuance sits outside the auth middleware.
	r.POST("/v1/auth/login", d.Handlers.Login)

	v1 := r.Group("/v1")
	v1.Use(d.AuthMW)
	httpapi.RegisterV1(v1, d.Handlers)
}
