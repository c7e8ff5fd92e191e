package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxTenantID
	ctxRole
	ctxHomeTenantID
)

var ErrNoIdentity = errors.New("identity not in context")

// WithIdentity stores the verified caller in ctx. tenantID is the effective tenant.
func WithIdentity(ctx context.Context, userID, tenantID, role string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxTenantID, tenantID)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

// WithImpersonation marks ctx as acting on behalf of another tenant.
func WithImpersonation(ctx context.Context, homeTenantID string) context.Context {
	return context.WithValue(ctx, ctxHomeTenantID, homeTenantID)
}

func UserID(ctx context.Context) (string, error) {
	return stringValue(ctx, ctxUserID)
}

// TenantID returns the effective tenant for the request.
func TenantID(ctx context.Context) (string, error) {
	return stringValue(ctx, ctxTenantID)
}

func Role(ctx context.Context) (string, error) {
	return stringValue(ctx, ctxRole)
}

// HomeTenantID returns the actor's own tenant when impersonating.
func HomeTenantID(ctx context.Context) (string, bool) {
	s, err := stringValue(ctx, ctxHomeTenantID)
	return s, err == nil
}

func stringValue(ctx context.Context, k ctxKey) (string, error) {
	if s, ok := ctx.Value(k).(string); ok && s != "" {
		return s, nil
	}
	return "", ErrNoIdentity
}
