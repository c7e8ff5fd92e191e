package billing

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"outbound-platform/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

const whsec = "whsec_test"

type webhookFixture struct {
	router   *gin.Engine
	ledger   *ledger.Service
	released []string
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &webhookFixture{ledger: ledger.NewService(ledger.NewMemoryRepo(), nil, nil)}
	h := StripeWebhookHandler{
		Ledger:        f.ledger,
		WebhookSecret: whsec,
		ReleaseGuard: func(ctx context.Context, tenantID string) error {
			f.released = append(f.released, tenantID)
			return nil
		},
	}
	f.router = gin.New()
	f.router.POST("/webhooks/stripe", h.Handle)
	return f
}

func stripeEvent(eventType, piID, tenantID, purpose string, cents int64) string {
	return fmt.Sprintf(`{
  "id": "evt_%s",
  "object": "event",
  "api_version": %q,
  "type": %q,
  "data": {"object": {
    "id": %q,
    "object": "payment_intent",
    "amount": %d,
    "amount_received": %d,
    "currency": "usd",
    "metadata": {"tenant_id": %q, "purpose": %q}
  }}
}`, piID, stripe.APIVersion, eventType, piID, cents, cents, tenantID, purpose)
}

func signStripe(payload, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func (f *webhookFixture) post(payload, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBufferString(payload))
	if signature != "" {
		req.Header.Set(HeaderStripeSignature, signature)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestStripeWebhook_SucceededCreditsOnce(t *testing.T) {
	f := newWebhookFixture(t)
	payload := stripeEvent("payment_intent.succeeded", "pi_123", "t1", PurposeAutoRefill, 5000)

	w := f.post(payload, signStripe(payload, whsec, time.Now()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// redelivery
	w = f.post(payload, signStripe(payload, whsec, time.Now()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	acct, err := f.ledger.GetAccount(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "50.00", acct.Balance.StringFixed(2))

	txns, err := f.ledger.ListTransactions(context.Background(), "t1", ledger.ListFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, ledger.TypeRefill, txns[0].Type)
	assert.Equal(t, "pi_123", txns[0].ExternalRef)

	assert.Equal(t, []string{"t1"}, f.released)
}

func TestStripeWebhook_RejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(t)
	payload := stripeEvent("payment_intent.succeeded", "pi_123", "t1", PurposeAutoRefill, 5000)

	assert.Equal(t, http.StatusBadRequest, f.post(payload, "").Code)
	assert.Equal(t, http.StatusBadRequest, f.post(payload, signStripe(payload, "whsec_other", time.Now())).Code)
	assert.Equal(t, http.StatusBadRequest, f.post(payload, signStripe(payload, whsec, time.Now().Add(-time.Hour))).Code)

	acct, err := f.ledger.GetAccount(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, acct.Balance.IsZero())
}

func TestStripeWebhook_FailedPaymentReleasesGuard(t *testing.T) {
	f := newWebhookFixture(t)
	payload := stripeEvent("payment_intent.payment_failed", "pi_9", "t1", PurposeAutoRefill, 5000)

	w := f.post(payload, signStripe(payload, whsec, time.Now()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"t1"}, f.released)

	txns, _ := f.ledger.ListTransactions(context.Background(), "t1", ledger.ListFilter{})
	assert.Empty(t, txns)
}

func TestStripeWebhook_IgnoresOtherPayments(t *testing.T) {
	f := newWebhookFixture(t)
	payload := stripeEvent("payment_intent.succeeded", "pi_plan", "t1", "subscription", 9900)

	w := f.post(payload, signStripe(payload, whsec, time.Now()))
	require.Equal(t, http.StatusOK, w.Code)

	txns, _ := f.ledger.ListTransactions(context.Background(), "t1", ledger.ListFilter{})
	assert.Empty(t, txns)
	assert.Empty(t, f.released)
}
