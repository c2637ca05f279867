package agentcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fleetdesk/fleetdesk-backend/pkg/config"
	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
)

const responseBodyLimit int64 = 64 << 10

var errURLRequired = errors.New("agent check webhook url is required")

// Result is the external collaborator's verdict on a phone number.
type Result struct {
	Found      bool   `json:"found"`
	IsActive   bool   `json:"is_active"`
	ExternalID string `json:"external_id"`
	Message    string `json:"message"`
}

// Client calls the configured agent-validation webhook. The identity linker
// consults it when a phone has no local record.
type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the webhook client from configuration.
func NewClient(cfg config.AgentCheckConfig, opts ...Option) (*Client, error) {
	url := strings.TrimSpace(cfg.WebhookURL)
	if url == "" {
		return nil, errURLRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		apiKey:     cfg.APIKey,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Check asks the collaborator whether the phone belongs to a known agent.
func (c *Client) Check(ctx context.Context, phone string) (*Result, error) {
	body, err := json.Marshal(map[string]string{"phone": phone})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode agent check request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build agent check request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "agent check unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read agent check response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "agent check rejected the request").
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode agent check response")
	}
	return &result, nil
}
