package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// RateLimitError indicates the server rate limited the request (429 or 503).
type RateLimitError struct {
	// StatusCode is the HTTP status code
	StatusCode int
	// RetryAfter indicates how long to wait before retrying
	RetryAfter time.Duration
}

// Error returns a string representation of the rate limit error.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (status %d): retry after %v", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (status %d)", e.StatusCode)
}

// HTTPError indicates a non-2xx response that is not a rate limit.
type HTTPError struct {
	// StatusCode is the HTTP status code
	StatusCode int
	// Body is the response body
	Body []byte
}

// Error returns a string representation of the HTTP error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d", e.StatusCode)
}

// Permanent reports whether retrying the request cannot help.
func (e *HTTPError) Permanent() bool {
	return !ShouldRetry(e.StatusCode)
}

// RedirectError reports a redirect refused by the request's RedirectPolicy.
type RedirectError struct {
	// URL is the refused location
	URL string
	Err error
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect to %s refused: %v", e.URL, e.Err)
}

func (e *RedirectError) Unwrap() error { return e.Err }

// Permanent reports true; the same location is refused again.
func (e *RedirectError) Permanent() bool { return true }

// ErrNoResponse indicates no response was received from the server.
var ErrNoResponse = errors.New("no response received")

// IsClientError checks if status code is a client error (4xx).
func IsClientError(statusCode int) bool {
	return statusCode >= 400 && statusCode < 500
}

// IsServerError checks if status code is a server error (5xx).
func IsServerError(statusCode int) bool {
	return statusCode >= 500 && statusCode < 600
}

// ShouldRetry determines if a request should be retried based on status code.
func ShouldRetry(statusCode int) bool {
	if IsServerError(statusCode) {
		return true
	}
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return false
}
