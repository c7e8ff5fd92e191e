package automation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"outbound-platform/internal/campaign"
	"outbound-platform/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	body := []byte(`{"tenantId":"t1"}`)
	sig := Sign(body, "s3cret")

	assert.True(t, VerifySignature(body, sig, "s3cret"))
	assert.True(t, VerifySignature(body, "sha256="+sig, "s3cret"))
	assert.False(t, VerifySignature(body, sig, "other"))
	assert.False(t, VerifySignature([]byte(`{"tenantId":"t2"}`), sig, "s3cret"))
	assert.False(t, VerifySignature(body, "not-hex", "s3cret"))
	assert.False(t, VerifySignature(body, "", "s3cret"))
	assert.False(t, VerifySignature(body, sig, ""))
}

func TestClientDispatch_SendsSignedCommand(t *testing.T) {
	var got campaign.StartCommand
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/campaigns/start", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.True(t, VerifySignature(body, r.Header.Get(HeaderSignature), "s3cret"))
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(config.AutomationConfig{BaseURL: srv.URL, SigningSecret: "s3cret", Timeout: time.Second})
	cmd := campaign.StartCommand{TenantID: "t1", QueueLength: 12, DailyCallLimit: 100, RunToken: "run-1"}
	require.NoError(t, c.Dispatch(context.Background(), cmd))
	assert.Equal(t, cmd, got)
}

func TestClientDispatch_Non2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(config.AutomationConfig{BaseURL: srv.URL, SigningSecret: "s"})
	err := c.Dispatch(context.Background(), campaign.StartCommand{TenantID: "t1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestClientDispatch_Unconfigured(t *testing.T) {
	c := NewClient(config.AutomationConfig{})
	assert.Error(t, c.Dispatch(context.Background(), campaign.StartCommand{TenantID: "t1"}))
}

func TestClientHealthCheck(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(config.AutomationConfig{BaseURL: srv.URL, SigningSecret: "s", Timeout: time.Second})
	require.NoError(t, c.HealthCheck(context.Background()))

	healthy.Store(false)
	err := c.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
