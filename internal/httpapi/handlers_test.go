package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"outbound-platform/internal/audit"
	"outbound-platform/internal/auth"
	"outbound-platform/internal/billing"
	"outbound-platform/internal/campaign"
	"outbound-platform/internal/commission"
	"outbound-platform/internal/config"
	"outbound-platform/internal/leads"
	"outbound-platform/internal/ledger"
	"outbound-platform/internal/pricing"
	"outbound-platform/internal/rbac"
	"outbound-platform/internal/reporting"
	"outbound-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDispatcher struct {
	mu   sync.Mutex
	cmds []campaign.StartCommand
	err  error
}

func (d *stubDispatcher) Dispatch(ctx context.Context, cmd campaign.StartCommand) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.cmds = append(d.cmds, cmd)
	return nil
}

type apiFixture struct {
	router *gin.Engine
	auth   *auth.Manager
	disp   *stubDispatcher
	audit  *audit.MemoryRepo
	leads  *leads.Service
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.ConfigureBinding()

	m, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
	require.NoError(t, err)

	auditRepo := audit.NewMemoryRepo()
	auditSvc := audit.NewService(auditRepo)
	ledgerRepo := ledger.NewMemoryRepo()
	ledgerSvc := ledger.NewService(ledgerRepo, nil, auditSvc)
	leadSvc := leads.NewService(leads.NewMemoryRepo())
	disp := &stubDispatcher{}

	h := Handlers{
		Auth:       m,
		Campaigns:  campaign.NewController(campaign.NewMemoryStore(), leadSvc, ledgerSvc, disp, auditSvc),
		Ledger:     ledgerSvc,
		Leads:      leadSvc,
		Pricing:    pricing.NewService(&pricing.MemoryRepo{}, decimal.RequireFromString("0.30"), decimal.RequireFromString("0.12")),
		Commission: commission.NewService(commission.NewMemoryStore(), auditSvc),
		Reporting:  reporting.NewService(ledgerRepo),
		Customers:  billing.NewMemoryCustomers(),
		Audit:      auditSvc,
		DevLogin:   true,
	}

	r := gin.New()
	r.POST("/v1/auth/login", h.Login)
	v1 := r.Group("/v1", auth.RequireAccessToken(m))
	RegisterV1(v1, h)

	return &apiFixture{router: r, auth: m, disp: disp, audit: auditRepo, leads: leadSvc}
}

func (f *apiFixture) token(t *testing.T, userID, tenantID, role string) string {
	t.Helper()
	pair, err := f.auth.IssuePair(time.Now(), userID, tenantID, role)
	require.NoError(t, err)
	return pair.AccessToken
}

func (f *apiFixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	var rdr *bytes.Buffer
	if body != "" {
		rdr = bytes.NewBufferString(body)
	} else {
		rdr = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) seedLead(t *testing.T, tenantID string) {
	t.Helper()
	_, err := f.leads.Create(context.Background(), leads.Lead{ID: tenantID + "-lead", TenantID: tenantID, Phone: "+15550100", IsQualified: true})
	require.NoError(t, err)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestStartCampaign_Flow(t *testing.T) {
	f := newAPIFixture(t)
	owner := f.token(t, "u1", "t1", rbac.RoleOwner)
	staff := f.token(t, "s1", "platform", rbac.RoleSupport)

	// no fixed clock in the controller; bypass keeps the test independent of wall time
	w := f.do(http.MethodPut, "/v1/admin/tenants/t1/campaign/bypass", staff, `{"enabled":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/v1/campaign/start", owner, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "no leads yet")

	f.seedLead(t, "t1")
	w = f.do(http.MethodPost, "/v1/campaign/start", owner, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "running", body["status"])
	assert.EqualValues(t, 1, body["queue_length"])
	require.Len(t, f.disp.cmds, 1)

	w = f.do(http.MethodPost, "/v1/campaign/start", owner, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(http.MethodPost, "/v1/campaign/stop", owner, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stopped", decode(t, w)["status"])
}

func TestStartCampaign_DispatchFailureIsBadGateway(t *testing.T) {
	f := newAPIFixture(t)
	f.disp.err = errors.New("connection refused")
	owner := f.token(t, "u1", "t1", rbac.RoleOwner)
	staff := f.token(t, "s1", "platform", rbac.RoleSupport)
	f.seedLead(t, "t1")
	require.Equal(t, http.StatusOK, f.do(http.MethodPut, "/v1/admin/tenants/t1/campaign/bypass", staff, `{"enabled":true}`).Code)

	w := f.do(http.MethodPost, "/v1/campaign/start", owner, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")

	w = f.do(http.MethodGet, "/v1/campaign", owner, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stopped", decode(t, w)["status"])
}

func TestUpdateSettings_RejectsUnknownAndOutOfRange(t *testing.T) {
	f := newAPIFixture(t)
	owner := f.token(t, "u1", "t1", rbac.RoleOwner)

	valid := `{"schedule_enabled":true,"schedule_days":[1,2,3],"schedule_start_time":"09:00","schedule_end_time":"17:00","timezone":"UTC","daily_spend_limit":"100","daily_call_limit":50}`
	w := f.do(http.MethodPut, "/v1/campaign/settings", owner, valid)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 50, decode(t, w)["daily_call_limit"])

	unknown := `{"schedule_enabled":true,"schedule_days":[1],"schedule_start_time":"09:00","schedule_end_time":"17:00","timezone":"UTC","daily_spend_limit":"100","daily_call_limit":50,"bypass_restrictions":true}`
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/v1/campaign/settings", owner, unknown).Code)

	tooMany := `{"schedule_enabled":true,"schedule_days":[1],"schedule_start_time":"09:00","schedule_end_time":"17:00","timezone":"UTC","daily_spend_limit":"100","daily_call_limit":601}`
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/v1/campaign/settings", owner, tooMany).Code)
}

func TestRBAC(t *testing.T) {
	f := newAPIFixture(t)
	analyst := f.token(t, "u2", "t1", rbac.RoleAnalyst)
	owner := f.token(t, "u1", "t1", rbac.RoleOwner)

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/v1/campaign", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/v1/campaign", analyst, "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/v1/campaign/start", analyst, "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/v1/admin/tenants/t1/balance-adjustments", owner, `{"amount":"5","reason":"x"}`).Code)
}

func TestImpersonation(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.token(t, "s1", "platform", rbac.RoleSupport)

	w := f.do(http.MethodPost, "/v1/admin/tenants/t2/balance-adjustments", staff, `{"amount":"25.00","reason":"promo credit"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/v1/admin/impersonate", staff, `{"tenant_id":"t2","reason":"ticket 4411"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	imp, _ := decode(t, w)["access_token"].(string)
	require.NotEmpty(t, imp)

	w = f.do(http.MethodGet, "/v1/billing/balance", imp, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "t2", body["tenant_id"])
	assert.Equal(t, "25", body["balance"])

	// a capability cannot mint another capability
	w = f.do(http.MethodPost, "/v1/admin/impersonate", imp, `{"tenant_id":"t3","reason":"x"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	types := map[audit.EventType]int{}
	for _, e := range f.audit.Events() {
		types[e.Type]++
	}
	assert.Equal(t, 1, types[audit.EventTypeImpersonation])
	assert.Equal(t, 1, types[audit.EventTypeBalanceAdjusted])
}

func TestExpense(t *testing.T) {
	f := newAPIFixture(t)
	owner := f.token(t, "u1", "t1", rbac.RoleOwner)

	w := f.do(http.MethodGet, "/v1/billing/expense?refill_amount=30", owner, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	// 30 / 0.30 = 100 minutes at 0.12
	assert.Equal(t, "100", body["minutes_purchased"])
	assert.Equal(t, "12", body["actual_expense"])
	assert.Equal(t, "18", body["margin"])

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/v1/billing/expense?refill_amount=abc", owner, "").Code)
}

func TestCommissionEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	root := f.token(t, "root", "platform", rbac.RoleSuperAdmin)
	staff := f.token(t, "s1", "platform", rbac.RoleSupport)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/v1/admin/commissions/generate", staff, `{"period_month":"2026-01"}`).Code)

	w := f.do(http.MethodPost, "/v1/admin/commissions/generate", root, `{"period_month":"2026-13"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/v1/admin/commissions/referrals", root, `{"referrer_id":"agency","referee_id":"t9","code":"AG","credit_amount":"10"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = f.do(http.MethodPost, "/v1/admin/commissions/referrals", root, `{"referrer_id":"other","referee_id":"t9","code":"OT","credit_amount":"10"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(http.MethodPost, "/v1/admin/commissions/agency/mark-paid", root, `{"method":"bank_transfer","reference":"BT-1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 0, decode(t, w)["marked_paid"])

	agency := f.token(t, "a1", "agency", rbac.RoleOwner)
	w = f.do(http.MethodGet, "/v1/commissions/stats", agency, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decode(t, w)["lifetime_referrals"])
}

func TestLogin_DisabledUnlessDev(t *testing.T) {
	f := newAPIFixture(t)
	w := f.do(http.MethodPost, "/v1/auth/login", "", `{"user_id":"u","tenant_id":"t","role":"owner"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	h := Handlers{Auth: f.auth}
	r := gin.New()
	r.POST("/login", h.Login)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeadQueue(t *testing.T) {
	f := newAPIFixture(t)
	f.seedLead(t, "t1")
	f.seedLead(t, "t2")
	owner := f.token(t, "u1", "t1", rbac.RoleOwner)

	w := f.do(http.MethodGet, "/v1/leads/queue?limit=5", owner, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list, _ := decode(t, w)["leads"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "t1-lead", list[0].(map[string]any)["id"])

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/v1/leads/queue?limit=0", owner, "").Code)
}

func TestAdminVerifyLedger(t *testing.T) {
	f := newAPIFixture(t)
	staff := f.token(t, "s1", "platform", rbac.RoleSupport)

	w := f.do(http.MethodPost, "/v1/admin/tenants/t1/balance-adjustments", staff, `{"amount":"-4.50","reason":"chargeback"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodGet, "/v1/admin/tenants/t1/ledger/verify", staff, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["consistent"])

	w = f.do(http.MethodGet, "/v1/admin/tenants/t1/audit?type=balance_adjusted", staff, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	events, _ := decode(t, w)["events"].([]any)
	require.Len(t, events, 1)
	assert.Equal(t, "chargeback", events[0].(map[string]any)["message"])
}
