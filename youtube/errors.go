package youtube

import (
	"errors"
	"fmt"
)

// Sentinel errors for channel resolution.
var (
	// ErrInvalidReference indicates a channel reference matches no known shape.
	ErrInvalidReference = errors.New("youtube: invalid channel reference")
	// ErrChannelNotFound indicates a channel search returned no match.
	ErrChannelNotFound = errors.New("youtube: channel not found")
)

// InvalidReferenceError reports why a channel reference was rejected.
// It matches ErrInvalidReference with errors.Is.
type InvalidReferenceError struct {
	Reference string
	Reason    string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("youtube: invalid channel reference %q: %s", e.Reference, e.Reason)
}

func (e *InvalidReferenceError) Unwrap() error { return ErrInvalidReference }

// Permanent marks the error as not retryable.
func (e *InvalidReferenceError) Permanent() bool { return true }

// ResolutionError indicates a channel search found nothing for Reference.
type ResolutionError struct {
	Reference string
	Query     string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("youtube: no channel found for %q (query %q)", e.Reference, e.Query)
}

func (e *ResolutionError) Unwrap() error { return ErrChannelNotFound }

// Permanent marks the error as not retryable.
func (e *ResolutionError) Permanent() bool { return true }

// TransportError is a network-level failure reaching the platform.
// It is the only error class that is retried.
type TransportError struct {
	// Op names the external operation ("search.channels", "search.videos", "feed", "page").
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("youtube: %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a structured failure reported by the platform, such as an
// exhausted quota or an invalid key.
type APIError struct {
	Op         string
	StatusCode int
	// Reason is the first machine-readable reason, e.g. "quotaExceeded".
	Reason  string
	Message string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("youtube: %s: api error %d (%s): %s", e.Op, e.StatusCode, e.Reason, e.Message)
	}
	return fmt.Sprintf("youtube: %s: api error %d: %s", e.Op, e.StatusCode, e.Message)
}

// Permanent marks the error as not retryable.
func (e *APIError) Permanent() bool { return true }

// IsQuotaExceeded reports whether the platform refused the call for quota reasons.
func (e *APIError) IsQuotaExceeded() bool {
	switch e.Reason {
	case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "userRateLimitExceeded":
		return true
	}
	return false
}

// IsQuotaError reports whether err is an APIError caused by quota exhaustion.
func IsQuotaError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsQuotaExceeded()
}
