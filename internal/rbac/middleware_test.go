package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"outbound-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func serve(t *testing.T, withCtx func(context.Context) context.Context, chain ...gin.HandlerFunc) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	handlers := []gin.HandlerFunc{func(c *gin.Context) {
		c.Request = c.Request.WithContext(withCtx(c.Request.Context()))
		c.Next()
	}}
	handlers = append(handlers, chain...)
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/x", handlers...)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func identity(role, tenant string) func(context.Context) context.Context {
	return func(ctx context.Context) context.Context {
		return auth.WithIdentity(ctx, "u", tenant, role)
	}
}

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	if code := serve(t, identity(RoleSuperAdmin, "t"), RequireTenant(), RequireAnyRole(RoleOwner)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_HiddenRoleDeniedUnlessAllowed(t *testing.T) {
	if code := serve(t, identity(RoleSupport, "t"), RequireTenant(), RequireAnyRole(RoleOwner)); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serve(t, identity(RoleSupport, "t"), RequireTenant(), RequireAnyRole(RoleOwner, RoleSupport)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireTenant(t *testing.T) {
	if code := serve(t, identity(RoleOwner, ""), RequireTenant(), RequireAnyRole(RoleOwner)); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestDenyImpersonation(t *testing.T) {
	impersonating := func(ctx context.Context) context.Context {
		return auth.WithImpersonation(identity(RoleSuperAdmin, "t-2")(ctx), "platform")
	}
	if code := serve(t, impersonating, DenyImpersonation()); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serve(t, identity(RoleSuperAdmin, "platform"), DenyImpersonation()); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}
