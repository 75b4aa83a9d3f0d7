// Package http provides the outbound HTTP infrastructure for YouTube
// interactions: per-host rate limiting, circuit breaking and retries.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"ytmonitor/retry"
)

// Client wraps an HTTP client with retry logic and rate limit handling.
type Client struct {
	base           *http.Client
	transport      *http.Transport
	config         *Config
	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker
}

// Config holds HTTP client configuration including retry and rate limit settings.
type Config struct {
	// Timeout for individual HTTP requests
	Timeout time.Duration

	// Retry configuration used by Do
	Retry retry.Config

	// User agent for HTTP requests
	UserAgent string

	// Maximum response body size read by Do (0 = unlimited)
	MaxBodyBytes int64

	// Rate limiter configuration
	RateLimiter RateLimiterConfig

	// Circuit breaker configuration
	CircuitBreaker CircuitBreakerConfig

	// Connection pool configuration
	Transport TransportConfig
}

// TransportConfig configures the HTTP transport (connection pooling).
type TransportConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	ForceAttemptHTTP2   bool
}

// DefaultConfig returns sensible defaults for HTTP client configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:        15 * time.Second,
		Retry:          retry.DefaultConfig(),
		UserAgent:      "ytmonitor/1.0",
		MaxBodyBytes:   10 << 20,
		RateLimiter:    DefaultRateLimiterConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Transport:      DefaultTransportConfig(),
	}
}

// DefaultTransportConfig returns sensible defaults for HTTP transport configuration.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
}

// New creates a new HTTP client with the given configuration.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Transport.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Transport.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.Transport.MaxConnsPerHost,
		IdleConnTimeout:     cfg.Transport.IdleConnTimeout,
		ForceAttemptHTTP2:   cfg.Transport.ForceAttemptHTTP2,
	}

	return &Client{
		base: &http.Client{
			Timeout:       cfg.Timeout,
			Transport:     transport,
			CheckRedirect: checkRedirect,
		},
		transport:      transport,
		config:         cfg,
		rateLimiter:    NewRateLimiter(cfg.RateLimiter),
		circuitBreaker: NewCircuitBreaker(cfg.CircuitBreaker),
	}
}

// Response represents an HTTP response with status code and body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Get performs a GET request with retry logic.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil)
}

// Do performs a body-less request with retry logic and rate limit handling.
// The circuit breaker fails fast when a host keeps failing.
func (c *Client) Do(ctx context.Context, method, rawURL string, headers map[string]string) (*Response, error) {
	host := hostOf(rawURL)

	if err := c.circuitBreaker.Allow(host); err != nil {
		return nil, err
	}

	var out *Response
	err := retry.Do(ctx, c.config.Retry, c.isRetryable, func(ctx context.Context) error {
		if err := c.rateLimiter.Wait(ctx, rawURL); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.base.Do(req)
		if err != nil {
			return fmt.Errorf("http request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			retryAfter := parseRetryAfter(resp.Header)
			if backoff := c.rateLimiter.RecordRateLimit(rawURL, retryAfter); backoff > retryAfter {
				retryAfter = backoff
			}
			return &RateLimitError{StatusCode: resp.StatusCode, RetryAfter: retryAfter}
		}

		body, err := c.readBody(resp.Body)
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &HTTPError{StatusCode: resp.StatusCode, Body: body}
		}

		out = &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
		return nil
	})

	var redirectErr *RedirectError
	if errors.As(err, &redirectErr) {
		return nil, err
	}
	if err != nil {
		c.circuitBreaker.RecordFailure(host, err)
		return nil, err
	}
	if out == nil {
		c.circuitBreaker.RecordFailure(host, ErrNoResponse)
		return nil, ErrNoResponse
	}

	c.rateLimiter.RecordSuccess(rawURL)
	c.circuitBreaker.RecordSuccess(host)
	return out, nil
}

func (c *Client) readBody(r io.Reader) ([]byte, error) {
	if c.config.MaxBodyBytes <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, c.config.MaxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.config.MaxBodyBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", c.config.MaxBodyBytes)
	}
	return body, nil
}

// maxRedirects matches the net/http default.
const maxRedirects = 10

// RedirectPolicy vets each redirect before it is followed. The request is the
// next hop; via holds the requests made so far, oldest first.
type RedirectPolicy func(req *http.Request, via []*http.Request) error

type redirectPolicyKey struct{}

// WithRedirectPolicy returns a context whose requests made by Do run policy
// on every redirect.
func WithRedirectPolicy(ctx context.Context, policy RedirectPolicy) context.Context {
	return context.WithValue(ctx, redirectPolicyKey{}, policy)
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	policy, _ := req.Context().Value(redirectPolicyKey{}).(RedirectPolicy)
	if policy == nil {
		return nil
	}
	if err := policy(req, via); err != nil {
		return &RedirectError{URL: req.URL.String(), Err: err}
	}
	return nil
}

// isRetryable determines if an HTTP error is retryable.
func (c *Client) isRetryable(err error) bool {
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	return retry.IsRetryable(err)
}

// RateLimiter returns the limiter shared by every request of this client.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// CircuitBreaker returns the breaker shared by every request of this client.
func (c *Client) CircuitBreaker() *CircuitBreaker {
	return c.circuitBreaker
}

// Close closes idle connections.
func (c *Client) Close() error {
	c.base.CloseIdleConnections()
	return nil
}

// parseRetryAfter extracts the Retry-After header value, or 0 if absent.
func parseRetryAfter(header http.Header) time.Duration {
	retryAfter := header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		return time.Until(t)
	}
	return 0
}
