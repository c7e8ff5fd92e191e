package rbac

import (
	"net/http"

	"outbound-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireTenant enforces that a tenant scope exists in context.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tid, err := auth.TenantID(c.Request.Context())
		if err != nil || tid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// super_admin passes everything; hidden roles must be listed explicitly.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if IsSuperAdmin(role) {
			c.Next()
			return
		}
		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// DenyImpersonation blocks impersonation tokens, e.g. from minting further capabilities.
func DenyImpersonation() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := auth.HomeTenantID(c.Request.Context()); ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not allowed while impersonating"})
			return
		}
		c.Next()
	}
}
