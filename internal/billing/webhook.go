package billing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"outbound-platform/internal/ledger"
	"outbound-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	HeaderStripeSignature = "Stripe-Signature"
	maxWebhookBody        = 64 << 10
	signatureTolerance    = 5 * time.Minute
)

// RefillPoster credits captured payments.
type RefillPoster interface {
	Refill(ctx context.Context, tenantID string, amount decimal.Decimal, paymentRef string) (ledger.Transaction, bool, error)
}

// StripeWebhookHandler turns captured auto-refill payments into refill transactions.
// The PaymentIntent id is the ledger reference, so Stripe's redeliveries credit once.
type StripeWebhookHandler struct {
	Ledger        RefillPoster
	WebhookSecret string
	ReleaseGuard  func(ctx context.Context, tenantID string) error
}

func (h StripeWebhookHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	sig := c.GetHeader(HeaderStripeSignature)
	if sig == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing Stripe-Signature header"})
		return
	}
	event, err := webhook.ConstructEventWithTolerance(payload, sig, h.WebhookSecret, signatureTolerance)
	if err != nil {
		log.Warn("stripe webhook verification failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid webhook signature"})
		return
	}
	log = log.With("event_id", event.ID, "event_type", event.Type)

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
	default:
		c.Status(http.StatusOK)
		return
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		log.Error("stripe payment intent decode failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "error parsing payment intent"})
		return
	}
	tenantID := strings.TrimSpace(pi.Metadata["tenant_id"])
	if pi.Metadata["purpose"] != PurposeAutoRefill || tenantID == "" {
		log.Debug("ignoring payment intent not created for auto refill", "payment_intent_id", pi.ID)
		c.Status(http.StatusOK)
		return
	}
	c.Set("tenant_id", tenantID)
	log = log.With("tenant_id", tenantID, "payment_intent_id", pi.ID)

	if event.Type == "payment_intent.payment_failed" {
		msg := ""
		if pi.LastPaymentError != nil {
			msg = pi.LastPaymentError.Msg
		}
		log.Warn("auto refill payment failed", "reason", msg)
		h.release(c.Request.Context(), tenantID)
		c.Status(http.StatusOK)
		return
	}

	cents := pi.AmountReceived
	if cents == 0 {
		cents = pi.Amount
	}
	txn, applied, err := h.Ledger.Refill(c.Request.Context(), tenantID, fromMinorUnits(cents), pi.ID)
	if err != nil {
		// 5xx makes Stripe redeliver
		log.Error("auto refill credit failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "refill failed"})
		return
	}
	if applied {
		log.Info("auto refill credited", "transaction_id", txn.ID, "amount", txn.Amount.StringFixed(2), "balance_after", txn.BalanceAfter.StringFixed(2))
		h.release(c.Request.Context(), tenantID)
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "transaction_id": txn.ID})
}

func (h StripeWebhookHandler) release(ctx context.Context, tenantID string) {
	if h.ReleaseGuard == nil {
		return
	}
	if err := h.ReleaseGuard(ctx, tenantID); err != nil {
		logger.From(ctx).Warn("refill guard release failed", "tenant_id", tenantID, "err", err)
	}
}
