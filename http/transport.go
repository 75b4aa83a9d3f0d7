package http

import (
	"net/http"
)

// guardedTransport applies the client's rate limiter and circuit breaker to
// requests made by third-party SDKs. It does not retry; callers decide.
type guardedTransport struct {
	base      http.RoundTripper
	limiter   *RateLimiter
	breaker   *CircuitBreaker
	userAgent string
}

func (t *guardedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	host := req.URL.Hostname()

	if err := t.breaker.Allow(host); err != nil {
		return nil, err
	}
	if err := t.limiter.Wait(req.Context(), req.URL.String()); err != nil {
		return nil, err
	}

	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.breaker.RecordFailure(host, err)
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		retryAfter := parseRetryAfter(resp.Header)
		t.limiter.RecordRateLimit(req.URL.String(), retryAfter)
		t.breaker.RecordFailure(host, &RateLimitError{StatusCode: resp.StatusCode, RetryAfter: retryAfter})
	case IsServerError(resp.StatusCode):
		t.breaker.RecordFailure(host, &HTTPError{StatusCode: resp.StatusCode})
	default:
		t.limiter.RecordSuccess(req.URL.String())
		t.breaker.RecordSuccess(host)
	}
	return resp, nil
}

// HTTPClient returns a standard *http.Client that shares this client's
// connection pool, rate limiter and circuit breaker. Responses are handed
// back unread; non-2xx statuses are not converted to errors.
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{
		Timeout: c.config.Timeout,
		Transport: &guardedTransport{
			base:      c.transport,
			limiter:   c.rateLimiter,
			breaker:   c.circuitBreaker,
			userAgent: c.config.UserAgent,
		},
	}
}
