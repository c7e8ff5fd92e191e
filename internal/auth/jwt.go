package auth

import (
	"errors"
	"time"

	"outbound-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenTypeMismatch = errors.New("token_type mismatch")
	ErrMissingClaim      = errors.New("required claim missing")
)

type Manager struct {
	secret           []byte
	issuer           string
	audience         string
	accessTTL        time.Duration
	refreshTTL       time.Duration
	impersonationTTL time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	impTTL := cfg.ImpersonationTTL
	if impTTL <= 0 {
		impTTL = 30 * time.Minute
	}

	return &Manager{
		secret:           []byte(cfg.JWTSecret),
		issuer:           cfg.JWTIssuer,
		audience:         cfg.JWTAudience,
		accessTTL:        cfg.AccessTokenTTL,
		refreshTTL:       cfg.RefreshTokenTTL,
		impersonationTTL: impTTL,
	}, nil
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

func (m *Manager) IssuePair(now time.Time, userID, tenantID, role string) (TokenPair, error) {
	access, err := m.issue(now, Claims{
		UserID:    userID,
		TenantID:  tenantID,
		Role:      role,
		TokenType: TokenTypeAccess,
	}, m.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}

	// refresh tokens do not carry a role
	refresh, err := m.issue(now, Claims{
		UserID:    userID,
		TenantID:  tenantID,
		TokenType: TokenTypeRefresh,
	}, m.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// IssueImpersonation issues a short-lived capability for an admin acting on targetTenantID.
// Role authorization is the caller's job; this only mints the token.
func (m *Manager) IssueImpersonation(now time.Time, actor Claims, targetTenantID string) (string, time.Time, error) {
	if actor.UserID == "" || actor.TenantID == "" || actor.Role == "" || targetTenantID == "" {
		return "", time.Time{}, ErrMissingClaim
	}
	exp := now.Add(m.impersonationTTL)
	tok, err := m.issue(now, Claims{
		UserID:         actor.UserID,
		TenantID:       actor.TenantID,
		ActsAsTenantID: targetTenantID,
		Role:           actor.Role,
		TokenType:      TokenTypeImpersonation,
	}, m.impersonationTTL)
	return tok, exp, err
}

// Verify parses tokenString and checks signature, time claims and that the token type
// is one of expected.
func (m *Manager) Verify(tokenString string, now time.Time, expected ...TokenType) (Claims, error) {
	var claims Claims

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second), // clock skew
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}
	parser := jwt.NewParser(opts...)

	if _, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}); err != nil {
		return Claims{}, err
	}

	if !typeAllowed(claims.TokenType, expected) {
		return Claims{}, ErrTokenTypeMismatch
	}
	if claims.UserID == "" || claims.TenantID == "" {
		return Claims{}, ErrMissingClaim
	}
	if claims.TokenType != TokenTypeRefresh && claims.Role == "" {
		return Claims{}, ErrMissingClaim
	}
	if claims.TokenType == TokenTypeImpersonation && claims.ActsAsTenantID == "" {
		return Claims{}, ErrMissingClaim
	}
	if claims.TokenType != TokenTypeImpersonation && claims.ActsAsTenantID != "" {
		return Claims{}, ErrMissingClaim
	}

	return claims, nil
}

func typeAllowed(got TokenType, expected []TokenType) bool {
	for _, e := range expected {
		if got == e {
			return true
		}
	}
	return false
}

func (m *Manager) issue(now time.Time, c Claims, ttl time.Duration) (string, error) {
	c.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Audience:  audienceOrNil(m.audience),
		Subject:   c.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return t.SignedString(m.secret)
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}
