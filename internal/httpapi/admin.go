package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"outbound-platform/internal/audit"
	"outbound-platform/internal/auth"
	"outbound-platform/internal/billing"
	"outbound-platform/internal/ledger"
	"outbound-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Admin handlers act on the tenant named in the path, never on the caller's own.
// Routes mount them behind platform-staff RBAC.

func pathTenant(c *gin.Context) (string, bool) {
	tid := strings.TrimSpace(c.Param("tenant_id"))
	if tid == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "tenant_id required"})
		return "", false
	}
	c.Set("tenant_id", tid)
	return tid, true
}

type adjustBalanceRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" binding:"required,max=500"`
}

func (h Handlers) AdminAdjustBalance(c *gin.Context) {
	tid, ok := pathTenant(c)
	if !ok {
		return
	}
	var req adjustBalanceRequest
	if !bindJSON(c, &req) {
		return
	}
	txn, acct, err := h.Ledger.AdjustBalance(c.Request.Context(), tid, req.Amount, req.Reason, actor(c))
	if err != nil {
		fail(c, "adjust balance", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txn, "account": acct})
}

type bypassRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h Handlers) AdminSetBypass(c *gin.Context) {
	tid, ok := pathTenant(c)
	if !ok {
		return
	}
	var req bypassRequest
	if !bindJSON(c, &req) {
		return
	}
	ctrl, err := h.Campaigns.SetBypass(c.Request.Context(), tid, *req.Enabled, actor(c))
	if err != nil {
		fail(c, "set bypass", err)
		return
	}
	c.JSON(http.StatusOK, ctrl)
}

func (h Handlers) AdminForceStop(c *gin.Context) {
	tid, ok := pathTenant(c)
	if !ok {
		return
	}
	ctrl, err := h.Campaigns.ForceStop(c.Request.Context(), tid, actor(c))
	if err != nil {
		fail(c, "force stop", err)
		return
	}
	c.JSON(http.StatusOK, ctrl)
}

type setRateRequest struct {
	BilledRatePerMinute   decimal.Decimal `json:"billed_rate_per_minute"`
	PlatformCostPerMinute decimal.Decimal `json:"platform_cost_per_minute"`
	EffectiveFrom         *time.Time      `json:"effective_from,omitempty"`
}

func (h Handlers) AdminSetRate(c *gin.Context) {
	tid, ok := pathTenant(c)
	if !ok {
		return
	}
	var req setRateRequest
	if !bindJSON(c, &req) {
		return
	}
	var from time.Time
	if req.EffectiveFrom != nil {
		from = *req.EffectiveFrom
	}
	rate, err := h.Pricing.SetRate(c.Request.Context(), tid, req.BilledRatePerMinute, req.PlatformCostPerMinute, from)
	if err != nil {
		fail(c, "set rate", err)
		return
	}
	c.JSON(http.StatusOK, rate)
}

type billingCustomerRequest struct {
	StripeCustomerID string `json:"stripe_customer_id" binding:"required"`
	PaymentMethodID  string `json:"payment_method_id" binding:"required"`
}

func (h Handlers) AdminLinkBillingCustomer(c *gin.Context) {
	tid, ok := pathTenant(c)
	if !ok {
		return
	}
	var req billingCustomerRequest
	if !bindJSON(c, &req) {
		return
	}
	cust, err := billing.LinkCustomer(c.Request.Context(), h.Customers, billing.Customer{
		TenantID:         tid,
		StripeCustomerID: req.StripeCustomerID,
		PaymentMethodID:  req.PaymentMethodID,
	})
	if err != nil {
		fail(c, "link billing customer", err)
		return
	}
	c.JSON(http.StatusOK, cust)
}

type impersonateRequest struct {
	TenantID string `json:"tenant_id" binding:"required"`
	Reason   string `json:"reason" binding:"required,max=500"`
}

// Impersonate mints a short-lived token scoped to another tenant. Every issuance is audited
// against the target tenant.
func (h Handlers) Impersonate(c *gin.Context) {
	var req impersonateRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	uid, _ := auth.UserID(ctx)
	home, _ := auth.TenantID(ctx)
	role, _ := auth.Role(ctx)

	tok, exp, err := h.Auth.IssueImpersonation(h.now(), auth.Claims{UserID: uid, TenantID: home, Role: role}, req.TenantID)
	if err != nil {
		logger.FromGin(c).Error("impersonation token issuance failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.Set("tenant_id", req.TenantID)
	h.Audit.Record(ctx, req.TenantID, audit.EventTypeImpersonation, actor(c), req.Reason, map[string]any{
		"home_tenant_id": home,
		"expires_at":     exp.UTC().Format(time.RFC3339),
	})
	c.JSON(http.StatusOK, gin.H{"access_token": tok, "expires_at": exp.UTC()})
}

// AdminVerifyLedger checks that the tenant's transactions sum to its balance.
func (h Handlers) AdminVerifyLedger(c *gin.Context) {
	tid, ok := pathTenant(c)
	if !ok {
		return
	}
	err := h.Ledger.VerifyConsistency(c.Request.Context(), tid)
	if errors.Is(err, ledger.ErrLedgerIntegrity) {
		logger.FromGin(c).Error("ledger integrity violation", "err", err)
		c.JSON(http.StatusConflict, gin.H{"consistent": false, "error": err.Error()})
		return
	}
	if err != nil {
		fail(c, "verify ledger", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consistent": true})
}

// AdminListAudit shows the tenant's audit trail to platform staff.
func (h Handlers) AdminListAudit(c *gin.Context) {
	tid, ok := pathTenant(c)
	if !ok {
		return
	}
	f := audit.ListFilter{Type: audit.EventType(c.Query("type"))}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		f.Limit = n
	}
	events, err := h.Audit.List(c.Request.Context(), tid, f)
	if err != nil {
		fail(c, "list audit events", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
