package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"outbound-platform/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:        "secret",
		JWTIssuer:        "issuer",
		JWTAudience:      "aud",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  24 * time.Hour,
		ImpersonationTTL: 10 * time.Minute,
	})
	require.NoError(t, err)
	return m
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m := newManager(t)
	now := time.Unix(1700000000, 0).UTC()

	pair, err := m.IssuePair(now, "user-1", "t-1", "owner")
	require.NoError(t, err)

	claims, err := m.Verify(pair.AccessToken, now.Add(time.Minute), TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "t-1", claims.EffectiveTenantID())
	assert.Equal(t, "owner", claims.Role)
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m := newManager(t)
	now := time.Now()
	p, err := m.IssuePair(now, "u", "t", "owner")
	require.NoError(t, err)

	_, err = m.Verify(p.RefreshToken, now, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenTypeMismatch)
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := newManager(t)
	now := time.Unix(1700000000, 0).UTC()
	p, err := m.IssuePair(now, "u", "t", "owner")
	require.NoError(t, err)

	_, err = m.Verify(p.AccessToken, now.Add(time.Hour), TokenTypeAccess)
	assert.Error(t, err)
}

func TestImpersonationToken(t *testing.T) {
	m := newManager(t)
	now := time.Unix(1700000000, 0).UTC()

	tok, exp, err := m.IssueImpersonation(now, Claims{UserID: "admin-1", TenantID: "platform", Role: "super_admin"}, "t-42")
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*time.Minute), exp)

	claims, err := m.Verify(tok, now.Add(5*time.Minute), TokenTypeImpersonation)
	require.NoError(t, err)
	assert.Equal(t, "t-42", claims.EffectiveTenantID())
	assert.Equal(t, "platform", claims.TenantID)

	// time-boxed
	_, err = m.Verify(tok, now.Add(11*time.Minute), TokenTypeImpersonation)
	assert.Error(t, err)

	_, _, err = m.IssueImpersonation(now, Claims{UserID: "admin-1", TenantID: "platform", Role: "super_admin"}, "")
	assert.ErrorIs(t, err, ErrMissingClaim)
}

func TestRequireAccessToken_ScopesToActingTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newManager(t)

	tok, _, err := m.IssueImpersonation(time.Now(), Claims{UserID: "admin-1", TenantID: "platform", Role: "super_admin"}, "t-42")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", RequireAccessToken(m), func(c *gin.Context) {
		tid, _ := TenantID(c.Request.Context())
		home, _ := HomeTenantID(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"tenant": tid, "home": home})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tenant":"t-42","home":"platform"}`, w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
