package httpapi

import (
	"errors"
	"net/http"
	"time"

	"outbound-platform/internal/audit"
	"outbound-platform/internal/auth"
	"outbound-platform/internal/billing"
	"outbound-platform/internal/campaign"
	"outbound-platform/internal/commission"
	"outbound-platform/internal/leads"
	"outbound-platform/internal/ledger"
	"outbound-platform/internal/pricing"
	"outbound-platform/internal/reporting"
	"outbound-platform/pkg/logger"
	"outbound-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth       *auth.Manager
	Campaigns  *campaign.Controller
	Ledger     *ledger.Service
	Leads      *leads.Service
	Pricing    *pricing.Service
	Commission *commission.Service
	Reporting  *reporting.Service
	Customers  billing.CustomerRepository
	Audit      *audit.Service

	// DevLogin enables the credential-less Login endpoint. Never set in production.
	DevLogin bool

	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- Auth ---

type loginRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	TenantID string `json:"tenant_id" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// Login issues a token pair without checking credentials. It exists for local
// environments only; identity is owned by an upstream provider.
func (h Handlers) Login(c *gin.Context) {
	if !h.DevLogin || h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	pair, err := h.Auth.IssuePair(h.now(), req.UserID, req.TenantID, req.Role)
	if err != nil {
		logger.FromGin(c).Error("token issuance failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// Me echoes the verified identity.
func (h Handlers) Me(c *gin.Context) {
	ctx := c.Request.Context()
	uid, _ := auth.UserID(ctx)
	tid, _ := auth.TenantID(ctx)
	role, _ := auth.Role(ctx)
	out := gin.H{"user_id": uid, "tenant_id": tid, "role": role}
	if home, ok := auth.HomeTenantID(ctx); ok {
		out["home_tenant_id"] = home
	}
	c.JSON(http.StatusOK, out)
}

// --- helpers ---

// tenantID returns the effective tenant set by auth middleware, or aborts with 401.
func tenantID(c *gin.Context) (string, bool) {
	tid, err := auth.TenantID(c.Request.Context())
	if err != nil || tid == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return "", false
	}
	return tid, true
}

func actor(c *gin.Context) audit.Actor {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	return audit.Actor{UserID: uid, Role: role, IP: c.ClientIP()}
}

// bindJSON binds the body with gin. Unknown fields are rejected once
// utils.ConfigureBinding has run.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": utils.DescribeValidation(err).Error()})
			return false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return false
	}
	return true
}
