package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess        TokenType = "access"
	TokenTypeRefresh       TokenType = "refresh"
	TokenTypeImpersonation TokenType = "impersonation"
)

// Claims is the capability carried by every token.
// TenantID is the actor's home tenant. ActsAsTenantID is set only on impersonation
// tokens and names the tenant the actor is operating on.
type Claims struct {
	jwt.RegisteredClaims

	UserID         string    `json:"user_id"`
	TenantID       string    `json:"tenant_id"`
	ActsAsTenantID string    `json:"acts_as_tenant_id,omitempty"`
	Role           string    `json:"role"`
	TokenType      TokenType `json:"token_type"`
}

// EffectiveTenantID is the tenant all reads and writes are scoped to.
func (c Claims) EffectiveTenantID() string {
	if c.ActsAsTenantID != "" {
		return c.ActsAsTenantID
	}
	return c.TenantID
}
