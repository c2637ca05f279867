package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/fleetdesk/fleetdesk-backend/pkg/errors"
	"github.com/fleetdesk/fleetdesk-backend/pkg/logger"
	"github.com/fleetdesk/fleetdesk-backend/pkg/metrics"
)

const (
	defaultBaseURL          = "https://fleet-api.taxi.yandex.net"
	defaultRetryLimit       = 3
	defaultRetryDelay       = time.Second
	responseBodyLimit int64 = 1 << 20
	errorBodyTruncate       = 512
)

var errBaseURLRequired = errors.New("fleet base url is required")

// Credentials is a resolved bundle of park-scoped API credentials.
type Credentials struct {
	APIKey   string
	ParkID   string
	ClientID string
}

func (c Credentials) complete() bool {
	return c.APIKey != "" && c.ParkID != "" && c.ClientID != ""
}

// statusMessages maps upstream rejections to operator-facing Russian text.
var statusMessages = map[int]string{
	http.StatusBadRequest:          "Некорректный запрос к Fleet API",
	http.StatusUnauthorized:        "Ключ API недействителен или отозван",
	http.StatusForbidden:           "Доступ к парку запрещён для этого ключа",
	http.StatusNotFound:            "Запрошенный объект не найден в парке",
	http.StatusTooManyRequests:     "Слишком много запросов к Fleet API",
	http.StatusInternalServerError: "Сервис Яндекс Флит временно недоступен",
	http.StatusBadGateway:          "Сервис Яндекс Флит временно недоступен",
	http.StatusServiceUnavailable:  "Сервис Яндекс Флит временно недоступен",
}

// StatusMessage returns the localized text for an upstream status code.
func StatusMessage(status int) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return fmt.Sprintf("Fleet API вернул статус %d", status)
}

// Client talks to the external fleet-management REST API. Every operation is a
// POST with JSON body and the three credential headers; transient failures
// (429, network) are retried a fixed number of times with a fixed delay.
type Client struct {
	httpClient *http.Client
	baseURL    string
	retryLimit int
	retryDelay time.Duration
	sleep      func(time.Duration)
	logger     *logger.Logger
	metrics    *metrics.UpstreamMetrics
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

// WithBaseURL overrides the upstream base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithRetry overrides the retry bound and inter-attempt delay.
func WithRetry(limit int, delay time.Duration) Option {
	return func(c *Client) {
		if limit > 0 {
			c.retryLimit = limit
		}
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

// WithSleeper replaces the inter-attempt sleep, used by tests to count delays.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithLogger attaches request/response logging.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) { c.logger = logg }
}

// WithMetrics attaches upstream call metrics.
func WithMetrics(m *metrics.UpstreamMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds the fleet API client.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		retryLimit: defaultRetryLimit,
		retryDelay: defaultRetryDelay,
		sleep:      time.Sleep,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.baseURL == "" {
		return nil, errBaseURLRequired
	}
	return client, nil
}

// listRequest is the upstream's shared request body convention.
type listRequest struct {
	Query  any      `json:"query,omitempty"`
	Fields []string `json:"fields,omitempty"`
	Limit  int      `json:"limit,omitempty"`
	Offset int      `json:"offset,omitempty"`
}

// do issues a POST with retries and returns the successful response body.
// 429 and network-level failures are retried; any other non-2xx is classified
// and returned without retry.
func (c *Client) do(ctx context.Context, op, path string, creds Credentials, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode fleet request")
	}

	var lastStatus int
	var lastBody string
	var lastErr error

	for attempt := 1; attempt <= c.retryLimit; attempt++ {
		if attempt > 1 {
			c.sleep(c.retryDelay)
			c.countRetry(op)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build fleet request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Client-ID", creds.ClientID)
		req.Header.Set("X-API-Key", creds.APIKey)
		req.Header.Set("X-Park-Id", creds.ParkID)

		c.countAttempt(op)
		c.log(ctx, "request", op, map[string]any{"path": path, "attempt": attempt})

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			lastStatus = 0
			c.log(ctx, "error", op, map[string]any{"error": err.Error(), "attempt": attempt})
			continue
		}

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			lastStatus = 0
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			c.log(ctx, "response", op, map[string]any{"status": resp.StatusCode})
			return respBody, nil
		}

		lastStatus = resp.StatusCode
		lastBody = truncate(string(respBody), errorBodyTruncate)

		if resp.StatusCode == http.StatusTooManyRequests {
			c.log(ctx, "throttled", op, map[string]any{"attempt": attempt})
			continue
		}

		c.countFailure(op, resp.StatusCode)
		return nil, c.rejectionError(op, resp.StatusCode, lastBody)
	}

	c.countFailure(op, lastStatus)
	if lastErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamTransient, lastErr, "fleet api unreachable").
			WithDetails(map[string]any{"op": op})
	}
	return nil, pkgerrors.New(pkgerrors.CodeUpstreamTransient, StatusMessage(lastStatus)).
		WithDetails(map[string]any{"op": op, "status": lastStatus, "body": lastBody})
}

func (c *Client) rejectionError(op string, status int, body string) error {
	code := pkgerrors.CodeUpstreamRejected
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		code = pkgerrors.CodeUpstreamAuth
	}
	return pkgerrors.New(code, StatusMessage(status)).
		WithDetails(map[string]any{"op": op, "status": status, "body": body})
}

// IsAuthRejection reports whether err is an upstream 401/403 classification.
func IsAuthRejection(err error) bool {
	typed := pkgerrors.As(err)
	return typed != nil && typed.Code() == pkgerrors.CodeUpstreamAuth
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c.logger == nil {
		return
	}
	merged := map[string]any{"upstream": "fleet", "op": op}
	for k, v := range fields {
		merged[k] = v
	}
	c.logger.Info(c.logger.WithFields(ctx, merged), "fleet."+phase)
}

func (c *Client) countAttempt(op string) {
	if c.metrics != nil {
		c.metrics.IncAttempt(op)
	}
}

func (c *Client) countRetry(op string) {
	if c.metrics != nil {
		c.metrics.IncRetry(op)
	}
}

func (c *Client) countFailure(op string, status int) {
	if c.metrics != nil {
		c.metrics.IncFailure(op, status)
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
