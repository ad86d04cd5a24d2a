// Package remote is a small JSON-over-HTTP client for third-party data
// sources. Transient failures are retried with back-off.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Keksclan/rawrcart/retry"
)

// DefaultTimeout bounds a single HTTP attempt.
const DefaultTimeout = 5 * time.Second

// DefaultUserAgent is sent when no other agent is configured.
const DefaultUserAgent = "rawrcart/1.0"

// maxErrorBody caps how much of a failing response body is kept.
const maxErrorBody = 4 << 10

// HTTPError captures an unexpected status code and the start of the body.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("remote: unexpected status code: %d, body: %s", e.StatusCode, string(e.Body))
}

// Retryable reports whether err is worth another attempt: 429 and 5xx
// responses, timeouts and other transport errors. Caller cancellation and
// undecodable bodies are not.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

// userAgentRoundTripper sets the User-Agent header on every request.
type userAgentRoundTripper struct {
	wrapped   http.RoundTripper
	userAgent string
}

func (rt *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", rt.userAgent)
	return rt.wrapped.RoundTrip(clone)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient uses base instead of a fresh *http.Client. Its transport is
// wrapped, not replaced.
func WithHTTPClient(base *http.Client) Option {
	return func(c *Client) {
		if base != nil {
			c.base = base
		}
	}
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRetry sets the retry policy. A nil Retryable defaults to [Retryable].
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client fetches JSON documents.
type Client struct {
	base      *http.Client
	http      *http.Client
	userAgent string
	timeout   time.Duration
	retry     retry.Config
	logger    *slog.Logger
}

// NewClient returns a Client with a 5s per-attempt timeout and two retries.
func NewClient(opts ...Option) *Client {
	c := &Client{
		base:      &http.Client{},
		userAgent: DefaultUserAgent,
		timeout:   DefaultTimeout,
		retry: retry.Config{
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    time.Second,
			Jitter:      0.2,
		},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.retry.Retryable == nil {
		c.retry.Retryable = Retryable
	}

	transport := c.base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	c.http = &http.Client{
		Transport:     &userAgentRoundTripper{wrapped: transport, userAgent: c.userAgent},
		CheckRedirect: c.base.CheckRedirect,
		Jar:           c.base.Jar,
		Timeout:       c.timeout,
	}
	return c
}

// GetJSON issues GET url and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	attempt := 0
	_, err := retry.Do(ctx, c.retry, func(ctx context.Context) (struct{}, error) {
		attempt++
		err := c.getOnce(ctx, url, out)
		if err != nil {
			c.logger.DebugContext(ctx, "remote attempt failed",
				slog.String("url", url), slog.Int("attempt", attempt), slog.Any("err", err))
		}
		return struct{}{}, err
	})
	return err
}

func (c *Client) getOnce(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode %s: %w", url, err)
	}
	return nil
}
