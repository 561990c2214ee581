// Package backend provides the HTTP client for the remote NutriFact REST API.
// Every piece of data this console shows, and every mutation it performs,
// goes through this client.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nutrifact/console/internal/config"
	"github.com/nutrifact/console/internal/pkg/apierrors"
)

var backendRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "nutrifact_backend_requests_total",
		Help: "Total requests issued to the NutriFact backend API",
	},
	[]string{"method", "status"},
)

// Credentials carries the caller's backend credentials. Either or both may
// be set; the bearer token wins for dashboard traffic, the API key is used
// for data-plane reads.
type Credentials struct {
	AccessToken string
	APIKey      string
}

// Anonymous is the empty credential set for public endpoints.
var Anonymous = Credentials{}

// RequestOption mutates an outgoing request before it is sent.
type RequestOption func(*http.Request)

// WithIdempotencyKey attaches an idempotency key header so the backend can
// deduplicate a resubmitted mutation.
func WithIdempotencyKey(key string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set("Idempotency-Key", key)
	}
}

// WithHeader sets an arbitrary header on the request.
func WithHeader(name, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(name, value)
	}
}

// Envelope is the backend's standard response shape.
type Envelope struct {
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
}

// Page is the backend's paginated response shape.
type Page struct {
	Data  json.RawMessage `json:"data"`
	Total int64           `json:"total"`
	Skip  int             `json:"skip"`
	Limit int             `json:"limit"`
}

// PageInfo reports pagination counters from a list response.
type PageInfo struct {
	Total int64
	Skip  int
	Limit int
}

// Client dispatches requests to the backend with auth headers and
// normalized errors. It performs no caching; retry is limited to a single
// attempt on idempotent GETs that failed at the transport level.
type Client struct {
	baseURL   string
	http      *http.Client
	logger    *slog.Logger
	userAgent string
	getRetry  bool
}

// New creates a backend client from configuration.
func New(cfg config.BackendConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL(),
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
		userAgent: cfg.UserAgent,
		getRetry:  cfg.GetRetry,
	}
}

// Get issues a GET and decodes the envelope's data field into out.
func (c *Client) Get(ctx context.Context, creds Credentials, path string, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodGet, path, creds, nil, out, opts...)
}

// GetPage issues a GET against a paginated resource, decoding the data
// array into out and returning the pagination counters.
func (c *Client) GetPage(ctx context.Context, creds Credentials, path string, out any, opts ...RequestOption) (PageInfo, error) {
	body, status, err := c.roundTrip(ctx, http.MethodGet, path, creds, nil, opts...)
	if err != nil {
		return PageInfo{}, err
	}
	if status == http.StatusNoContent {
		return PageInfo{}, nil
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return PageInfo{}, apierrors.ErrUpstream.WithDetails(fmt.Sprintf("malformed page response: %v", err))
	}
	if out != nil && len(page.Data) > 0 {
		if err := json.Unmarshal(page.Data, out); err != nil {
			return PageInfo{}, apierrors.ErrUpstream.WithDetails(fmt.Sprintf("malformed page data: %v", err))
		}
	}
	return PageInfo{Total: page.Total, Skip: page.Skip, Limit: page.Limit}, nil
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, creds Credentials, path string, body, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPost, path, creds, body, out, opts...)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, creds Credentials, path string, body, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodPut, path, creds, body, out, opts...)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, creds Credentials, path string, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodDelete, path, creds, nil, out, opts...)
}

func (c *Client) do(ctx context.Context, method, path string, creds Credentials, body, out any, opts ...RequestOption) error {
	respBody, status, err := c.roundTrip(ctx, method, path, creds, body, opts...)
	if err != nil {
		return err
	}
	if out == nil || status == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}

	var env Envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return apierrors.ErrUpstream.WithDetails(fmt.Sprintf("malformed response: %v", err))
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apierrors.ErrUpstream.WithDetails(fmt.Sprintf("malformed response data: %v", err))
	}
	return nil
}

// roundTrip performs the HTTP exchange and maps failures: transport errors
// become connectivity errors (with one retry for GETs when enabled),
// non-2xx statuses go through the fixed message table with the raw backend
// payload attached.
func (c *Client) roundTrip(ctx context.Context, method, path string, creds Credentials, body any, opts ...RequestOption) ([]byte, int, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	url := c.baseURL + "/" + strings.TrimLeft(path, "/")

	attempts := 1
	if method == http.MethodGet && c.getRetry {
		attempts = 2
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		if creds.AccessToken != "" {
			req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
		}
		if creds.APIKey != "" {
			req.Header.Set("X-API-Key", creds.APIKey)
		}
		for _, opt := range opts {
			opt(req)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		backendRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := apierrors.FromStatus(resp.StatusCode, respBody)
			c.logger.Debug("backend error response",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
			)
			return nil, resp.StatusCode, apiErr
		}

		return respBody, resp.StatusCode, nil
	}

	backendRequestsTotal.WithLabelValues(method, "connectivity").Inc()
	return nil, 0, apierrors.NewConnectivityError(lastErr)
}
