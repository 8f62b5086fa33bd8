// Package apiclient talks JSON to the remote ticketing API. It injects the
// caller's bearer token, retries transient failures with linear backoff and
// turns non-2xx answers into *HTTPError.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	DefaultRetryDelay  = 300 * time.Millisecond
	DefaultReadRetries = 2
	maxBodyBytes       = 8 << 20
)

// TokenProvider yields the bearer token for the call carried by ctx.
// An empty string means no Authorization header.
type TokenProvider interface {
	Token(ctx context.Context) string
}

type TokenProviderFunc func(ctx context.Context) string

func (f TokenProviderFunc) Token(ctx context.Context) string { return f(ctx) }

// Request describes one logical call. Retries is the number of extra attempts
// allowed after the first one; RetryDelay of zero means the client default.
type Request struct {
	Method     string
	URL        string
	Body       any
	Headers    http.Header
	Retries    int
	RetryDelay time.Duration
}

// Result is a successful answer. Exactly one of NoContent, JSON or Text is set.
type Result struct {
	StatusCode int
	NoContent  bool
	JSON       json.RawMessage
	Text       string
}

// Decode unmarshals a JSON result into v. A 204 leaves v untouched.
func (r *Result) Decode(v any) error {
	if r.NoContent {
		return nil
	}
	if r.JSON == nil {
		return fmt.Errorf("apiclient: expected JSON response, got text")
	}
	if err := json.Unmarshal(r.JSON, v); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}
	return nil
}

type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokens      TokenProvider
	retryDelay  time.Duration
	readRetries int
	limiter     *rate.Limiter
	logger      *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTokenProvider(p TokenProvider) Option {
	return func(c *Client) { c.tokens = p }
}

// WithRetryDelay changes the base delay used when a Request leaves RetryDelay unset.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithReadRetries sets how many extra attempts reads and keyed writes get.
func WithReadRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.readRetries = n
		}
	}
}

// WithRateLimit throttles outbound attempts, retries included.
func WithRateLimit(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{},
		retryDelay:  DefaultRetryDelay,
		readRetries: DefaultReadRetries,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) resolve(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return c.baseURL + target
}

// Do performs req, retrying 429, 5xx and transport failures while attempts remain.
func (c *Client) Do(ctx context.Context, req Request) (*Result, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := c.resolve(req.URL)

	var payload []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode body: %w", err)
		}
		payload = b
	}

	delay := req.RetryDelay
	if delay <= 0 {
		delay = c.retryDelay
	}
	retries := max(req.Retries, 0)
	requestID := uuid.NewString()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, canceled(ctx)
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return nil, canceled(ctx)
				}
				return nil, fmt.Errorf("apiclient: rate limit: %w", err)
			}
		}

		res, err := c.attempt(ctx, method, target, payload, req.Headers, requestID)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, canceled(ctx)
		}

		var httpErr *HTTPError
		retryable := !errors.As(err, &httpErr) || httpErr.Retryable()
		if !retryable || attempt > retries {
			return nil, err
		}

		wait := delay * time.Duration(attempt)
		c.logger.Debug("retrying remote call",
			"method", method, "url", target, "attempt", attempt, "wait", wait, "error", err)
		if err := sleep(ctx, wait); err != nil {
			return nil, canceled(ctx)
		}
	}
}

func (c *Client) attempt(ctx context.Context, method, target string, payload []byte, headers http.Header, requestID string) (*Result, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.tokens != nil {
		if token := c.tokens.Token(ctx); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	for key, values := range headers {
		httpReq.Header.Del(key)
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("apiclient: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			URL:        target,
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Details:    parseDetails(raw),
		}
	}

	if resp.StatusCode == http.StatusNoContent {
		return &Result{StatusCode: resp.StatusCode, NoContent: true}, nil
	}
	if isJSON(resp.Header.Get("Content-Type")) {
		if !json.Valid(raw) {
			return nil, fmt.Errorf("apiclient: %s sent malformed JSON", target)
		}
		return &Result{StatusCode: resp.StatusCode, JSON: json.RawMessage(raw)}, nil
	}
	return &Result{StatusCode: resp.StatusCode, Text: string(raw)}, nil
}

func parseDetails(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err == nil {
		return v
	}
	return string(trimmed)
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
