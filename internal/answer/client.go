// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// maxBodySize caps how much of a response body is read.
	maxBodySize = 10 << 20

	// defaultRemaining is assumed when X-RateLimit-Remaining is absent.
	defaultRemaining = 5

	// defaultRetryAfter is assumed when a 429 carries no usable Retry-After.
	defaultRetryAfter = 60 * time.Second

	quotaLowMessage = "Heads up! You're almost out of requests. Try again soon if needed."
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the answer service client.
type ClientConfig struct {
	// BaseURL is the service root (default: http://127.0.0.1:8000)
	BaseURL string

	// Secret is sent as x-vercel-secret when non-empty.
	Secret string

	// Timeout for a single request (default: 60s)
	Timeout time.Duration

	// RequestsPerSecond paces outgoing requests; <= 0 disables pacing.
	RequestsPerSecond float64

	// Burst is how many requests may be sent back to back (default: 3)
	Burst int

	// FeedbackPath is where feedback is posted (default: /api/feedback)
	FeedbackPath string

	UserAgent string
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:           "http://127.0.0.1:8000",
		Timeout:           60 * time.Second,
		RequestsPerSecond: 1,
		Burst:             3,
		FeedbackPath:      DefaultFeedbackPath,
		UserAgent:         "campusbot",
	}
}

// =============================================================================
// NOTICES
// =============================================================================

// NoticeKind distinguishes rate-limit notices.
type NoticeKind int

const (
	// NoticeQuotaLow is raised when one request or fewer remain.
	NoticeQuotaLow NoticeKind = iota
	// NoticeRateLimited is raised on a 429 response.
	NoticeRateLimited
)

// Notice is a user-facing message produced while talking to the service.
type Notice struct {
	Kind       NoticeKind
	Message    string
	Remaining  int
	RetryAfter time.Duration
}

// NoticeHandler receives notices. It is called on the requesting goroutine.
type NoticeHandler func(Notice)

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the answer service. It is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	onNotice   NoticeHandler
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithNoticeHandler registers the receiver for quota and rate-limit notices.
func WithNoticeHandler(fn NoticeHandler) Option {
	return func(c *Client) { c.onNotice = fn }
}

// NewClient creates a client. Zero values in config take defaults.
func NewClient(config *ClientConfig, opts ...Option) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config

	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaults.Burst
	}
	if cfg.FeedbackPath == "" {
		cfg.FeedbackPath = defaults.FeedbackPath
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		config:     &cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, cfg.Burst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root in use.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// QUERIES
// =============================================================================

type queryRequest struct {
	Query string `json:"query"`
}

type serviceResponse struct {
	Response json.RawMessage `json:"response"`
}

// Ask posts query to ep and returns the answer as markdown.
func (c *Client) Ask(ctx context.Context, ep Endpoint, query string) (string, error) {
	body, err := c.post(ctx, ep.Path, queryRequest{Query: query})
	if err != nil {
		return "", err
	}

	var resp serviceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &ServiceError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return decodeAnswer(resp.Response, ep.Format)
}

// For binds the client to one endpoint.
func (c *Client) For(ep Endpoint) *Asker {
	return &Asker{client: c, endpoint: ep}
}

// Asker is a Client bound to one endpoint.
type Asker struct {
	client   *Client
	endpoint Endpoint
}

// Ask posts query to the bound endpoint.
func (a *Asker) Ask(ctx context.Context, query string) (string, error) {
	return a.client.Ask(ctx, a.endpoint, query)
}

// Endpoint returns the bound endpoint.
func (a *Asker) Endpoint() Endpoint {
	return a.endpoint
}

// =============================================================================
// TRANSPORT
// =============================================================================

// post sends payload as JSON and returns the body of a 2xx response.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			return nil, &ServiceError{Type: ErrTypeTimeout, Message: "request would exceed deadline", Cause: err}
		}
		return nil, classifyTransport(ctx, err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &ServiceError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, &ServiceError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if c.config.Secret != "" {
		req.Header.Set("x-vercel-secret", c.config.Secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		wait := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.notify(Notice{
			Kind:       NoticeRateLimited,
			Message:    fmt.Sprintf("Too many requests. Please wait %d seconds before trying again.", int(wait/time.Second)),
			RetryAfter: wait,
		})
		return nil, &ServiceError{
			Type:       ErrTypeRateLimited,
			Message:    "rate limited by answer service",
			Status:     resp.StatusCode,
			RetryAfter: wait,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, &ServiceError{
			Type:    ErrTypeBadStatus,
			Message: "answer service returned " + resp.Status,
			Status:  resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &ServiceError{Type: ErrTypeConnection, Message: "failed to read response", Cause: err}
	}

	if remaining := parseRemaining(resp.Header.Get("X-RateLimit-Remaining")); remaining <= 1 {
		c.notify(Notice{Kind: NoticeQuotaLow, Message: quotaLowMessage, Remaining: remaining})
	}
	return body, nil
}

func (c *Client) notify(n Notice) {
	if c.onNotice != nil {
		c.onNotice(n)
	}
}

// classifyTransport maps a failed round trip onto a ServiceError.
func classifyTransport(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return &ServiceError{Type: ErrTypeCanceled, Message: "request canceled", Cause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &ServiceError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ServiceError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	return &ServiceError{Type: ErrTypeConnection, Message: "answer service unreachable", Cause: err}
}

// parseRetryAfter reads a delay in seconds, falling back to one minute.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

func parseRemaining(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return defaultRemaining
	}
	return n
}
