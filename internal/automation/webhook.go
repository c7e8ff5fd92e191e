package automation

import (
	"context"
	"errors"
	"net/http"

	"outbound-platform/internal/campaign"
	"outbound-platform/internal/leads"
	"outbound-platform/internal/ledger"
	"outbound-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CallbackApplier is the campaign reconciler as seen by the webhook boundary.
type CallbackApplier interface {
	Complete(ctx context.Context, cb campaign.Completion) (campaign.CompletionResult, error)
	RecordCall(ctx context.Context, ev campaign.CallEvent) (ledger.Transaction, error)
	UpdateLeadStatus(ctx context.Context, ev campaign.LeadStatusEvent) (leads.Lead, error)
}

// WebhookHandler decodes automation callbacks and hands them to the reconciler.
// Signature checks happen in RequireSignature. No business logic here.
//
// 4xx tells the automation service not to retry; 5xx asks it to.
type WebhookHandler struct {
	Reconciler CallbackApplier
}

func (h WebhookHandler) HandleCompletion(c *gin.Context) {
	var cb campaign.Completion
	if err := c.ShouldBindJSON(&cb); err != nil {
		logger.FromGin(c).Warn("completion callback decode failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	c.Set("tenant_id", cb.TenantID)

	res, err := h.Reconciler.Complete(c.Request.Context(), cb)
	if err != nil {
		h.fail(c, "completion", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h WebhookHandler) HandleCallEvent(c *gin.Context) {
	var ev campaign.CallEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		logger.FromGin(c).Warn("call event decode failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	c.Set("tenant_id", ev.TenantID)

	txn, err := h.Reconciler.RecordCall(c.Request.Context(), ev)
	if err != nil {
		h.fail(c, "call event", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"transaction_id": txn.ID,
		"amount":         txn.Amount.StringFixed(2),
		"balance_after":  txn.BalanceAfter.StringFixed(2),
	})
}

func (h WebhookHandler) HandleLeadStatus(c *gin.Context) {
	var ev campaign.LeadStatusEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		logger.FromGin(c).Warn("lead status decode failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	c.Set("tenant_id", ev.TenantID)

	l, err := h.Reconciler.UpdateLeadStatus(c.Request.Context(), ev)
	if err != nil {
		h.fail(c, "lead status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "lead_id": l.ID, "status": l.Status})
}

func (h WebhookHandler) fail(c *gin.Context, kind string, err error) {
	log := logger.FromGin(c)
	switch {
	case errors.Is(err, campaign.ErrInvalidCallback), errors.Is(err, ledger.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, leads.ErrNotFound):
		log.Warn(kind+" for unknown lead", "err", err)
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "lead not found"})
	default:
		log.Error(kind+" callback failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "callback failed"})
	}
}
