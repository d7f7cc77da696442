package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/getmockd/kongreg/pkg/logging"
)

// DefaultTimeout is the HTTP timeout used when none is configured.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of a response body is buffered.
const maxResponseBytes = 8 << 20

// Doer sends a single request to the gateway admin API.
// path is relative to the admin base URL and may carry a query string.
// body, when non-nil, is encoded as JSON.
type Doer interface {
	Do(ctx context.Context, method, path string, body any) (*Response, error)
}

// Response is a fully buffered admin API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return fmt.Errorf("empty response body (status %d)", r.StatusCode)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", r.StatusCode, err)
	}
	return nil
}

// MaxDiagnosticBody caps the body text returned by Response.String.
const MaxDiagnosticBody = 4 * 1024

// String returns the body as text, for diagnostics. Bodies longer than
// MaxDiagnosticBody are truncated.
func (r *Response) String() string {
	if len(r.Body) > MaxDiagnosticBody {
		return string(r.Body[:MaxDiagnosticBody]) + "...(truncated)"
	}
	return string(r.Body)
}

// RequestObserver is notified after every request. status is 0 when the
// request failed before a response was received.
type RequestObserver interface {
	ObserveRequest(method string, status int, elapsed time.Duration)
}

// Client is an HTTP client for a gateway admin API.
type Client struct {
	baseURL    string
	basePath   string // path prefix of baseURL, if any
	httpClient *http.Client
	token      string
	headers    http.Header
	limiter    *rate.Limiter
	observer   RequestObserver
	log        *slog.Logger
}

var _ Doer = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying http.Client. Its Timeout is kept
// as set by the caller.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithToken sets a bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHeader adds a static header sent on every request, e.g. Kong-Admin-Token.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithRateLimit paces outgoing requests to rps requests per second with
// the given burst. rps <= 0 disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithObserver registers a RequestObserver.
func WithObserver(o RequestObserver) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithLogger sets the logger used for per-request debug records.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.log = logging.OrNop(l)
	}
}

// New creates a new admin API client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		basePath: basePath(baseURL),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		headers: make(http.Header),
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the admin API base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends the request and buffers the response. A non-nil error means no
// usable response was received; any status code is returned as a Response.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, 0, start)
		c.log.Debug("gateway request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.observe(method, resp.StatusCode, start)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug("gateway request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// resolve joins path onto the base URL. A path that already starts with
// the base URL's path prefix, as pagination links do, is not prefixed again.
func (c *Client) resolve(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if c.basePath != "" && (path == c.basePath || strings.HasPrefix(path, c.basePath+"/")) {
		return strings.TrimSuffix(c.baseURL, c.basePath) + path
	}
	return c.baseURL + path
}

func basePath(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	return strings.TrimRight(u.Path, "/")
}

func (c *Client) observe(method string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRequest(method, status, time.Since(start))
	}
}
