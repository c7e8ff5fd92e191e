package automation

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"outbound-platform/internal/campaign"
	"outbound-platform/internal/leads"
	"outbound-platform/internal/ledger"
	"outbound-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeApplier struct {
	completions []campaign.Completion
	calls       []campaign.CallEvent
	completeErr error
}

func (f *fakeApplier) Complete(ctx context.Context, cb campaign.Completion) (campaign.CompletionResult, error) {
	if f.completeErr != nil {
		return campaign.CompletionResult{}, f.completeErr
	}
	f.completions = append(f.completions, cb)
	return campaign.CompletionResult{Success: true, CallsMade: cb.CallsMade}, nil
}

func (f *fakeApplier) RecordCall(ctx context.Context, ev campaign.CallEvent) (ledger.Transaction, error) {
	f.calls = append(f.calls, ev)
	return ledger.Transaction{ID: "txn-1", Amount: decimal.RequireFromString("-0.45"), BalanceAfter: decimal.RequireFromString("9.55")}, nil
}

func (f *fakeApplier) UpdateLeadStatus(ctx context.Context, ev campaign.LeadStatusEvent) (leads.Lead, error) {
	return leads.Lead{}, leads.ErrNotFound
}

const secret = "hook-secret"

func newWebhookRouter(app *fakeApplier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	utils.ConfigureBinding()
	r := gin.New()
	h := WebhookHandler{Reconciler: app}
	g := r.Group("/webhooks/automation", RequireSignature(secret))
	g.POST("/completion", h.HandleCompletion)
	g.POST("/calls", h.HandleCallEvent)
	g.POST("/leads", h.HandleLeadStatus)
	return r
}

func signedRequest(path, body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, Sign([]byte(body), key))
	return req
}

func TestCompletionWebhook(t *testing.T) {
	app := &fakeApplier{}
	r := newWebhookRouter(app)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest("/webhooks/automation/completion", `{"tenantId":"t1","runToken":"r1","callsMade":42,"status":"finished"}`, secret))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true,"callsMade":42}`, w.Body.String())
	require.Len(t, app.completions, 1)
	assert.Equal(t, "r1", app.completions[0].RunToken)
}

func TestCompletionWebhook_BadSignature(t *testing.T) {
	app := &fakeApplier{}
	r := newWebhookRouter(app)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest("/webhooks/automation/completion", `{"tenantId":"t1","callsMade":1,"status":"finished"}`, "wrong"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, app.completions)
}

func TestCompletionWebhook_UnknownFieldRejected(t *testing.T) {
	app := &fakeApplier{}
	r := newWebhookRouter(app)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest("/webhooks/automation/completion", `{"tenantId":"t1","callsMade":1,"status":"finished","bypass":true}`, secret))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, app.completions)
}

func TestCompletionWebhook_InvalidCallbackIs400(t *testing.T) {
	app := &fakeApplier{completeErr: campaign.ErrInvalidCallback}
	r := newWebhookRouter(app)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest("/webhooks/automation/completion", `{"tenantId":"t1","callsMade":-1,"status":"finished"}`, secret))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallEventWebhook(t *testing.T) {
	app := &fakeApplier{}
	r := newWebhookRouter(app)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest("/webhooks/automation/calls", `{"tenantId":"t1","callId":"c1","leadId":"l1","durationSeconds":90,"billedRatePerMinute":"0.30"}`, secret))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true,"transaction_id":"txn-1","amount":"-0.45","balance_after":"9.55"}`, w.Body.String())
	require.Len(t, app.calls, 1)
	require.NotNil(t, app.calls[0].RatePerMinute)
	assert.Equal(t, "0.3", app.calls[0].RatePerMinute.String())
}

func TestLeadStatusWebhook_UnknownLead(t *testing.T) {
	r := newWebhookRouter(&fakeApplier{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest("/webhooks/automation/leads", `{"tenantId":"t1","leadId":"nope","status":"no_show"}`, secret))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompletionWebhook_RejectsUnknownFields(t *testing.T) {
	app := &fakeApplier{}
	r := newWebhookRouter(app)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest("/webhooks/automation/completion", `{"tenantId":"t1","callsMade":3,"status":"finished","queueLength":9}`, secret))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, app.completions)
}
