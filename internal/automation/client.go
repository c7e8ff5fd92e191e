package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"outbound-platform/internal/campaign"
	"outbound-platform/internal/config"
)

// Client talks to the external dialing automation service.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

func NewClient(cfg config.AutomationConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		secret:  cfg.SigningSecret,
		http:    &http.Client{Timeout: timeout},
	}
}

// Dispatch sends a start command. Any 2xx response confirms it.
func (c *Client) Dispatch(ctx context.Context, cmd campaign.StartCommand) error {
	if c.baseURL == "" {
		return errors.New("automation: base url not configured")
	}
	body, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/campaigns/start", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, Sign(body, c.secret))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("automation: start request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("automation: start rejected: %d %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// HealthCheck calls GET /health on the automation service.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("automation: health %d", resp.StatusCode)
	}
	return nil
}
