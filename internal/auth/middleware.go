package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// RequireAccessToken verifies an access or impersonation token and injects the identity
// into the request context. RBAC checks belong to internal/rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := m.Verify(strings.TrimPrefix(raw, bearerPrefix), time.Now(), TokenTypeAccess, TokenTypeImpersonation)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		tenantID := claims.EffectiveTenantID()
		ctx := WithIdentity(c.Request.Context(), claims.UserID, tenantID, claims.Role)
		if claims.ActsAsTenantID != "" {
			ctx = WithImpersonation(ctx, claims.TenantID)
			c.Set("impersonating", true)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Set("user_id", claims.UserID)
		c.Set("tenant_id", tenantID)
		c.Set("role", claims.Role)

		c.Next()
	}
}
