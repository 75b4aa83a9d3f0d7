package ytmonitor

import (
	"errors"
	"fmt"
	"testing"
)

func TestExportedErrorsMatch(t *testing.T) {
	resolveErr := fmt.Errorf("resolve: %w", &ResolutionError{Reference: "@nobody", Query: "nobody"})
	if !errors.Is(resolveErr, ErrChannelNotFound) {
		t.Error("ResolutionError should match ErrChannelNotFound")
	}
	if IsRetryable(resolveErr) {
		t.Error("ResolutionError should not be retryable")
	}

	refErr := &InvalidReferenceError{Reference: "ftp://x", Reason: "unsupported scheme"}
	if !errors.Is(refErr, ErrInvalidReference) {
		t.Error("InvalidReferenceError should match ErrInvalidReference")
	}

	quota := fmt.Errorf("fetch: %w", &APIError{Op: "search.videos", StatusCode: 403, Reason: "quotaExceeded"})
	if !IsQuotaError(quota) {
		t.Error("quotaExceeded should be a quota error")
	}
	if IsRetryable(quota) {
		t.Error("APIError should not be retryable")
	}

	transport := &TransportError{Op: "search.videos", Err: errors.New("connection reset")}
	if !IsRetryable(transport) {
		t.Error("TransportError should be retryable")
	}
	if IsQuotaError(transport) {
		t.Error("TransportError is not a quota error")
	}
}
