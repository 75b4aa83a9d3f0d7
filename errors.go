package ytmonitor

import (
	"ytmonitor/aggregate"
	"ytmonitor/retry"
	"ytmonitor/storage"
	"ytmonitor/youtube"
)

// Error types exported for library users.
//
// Sentinels match with errors.Is and the struct types with errors.As:
//
//	var refErr *ytmonitor.InvalidReferenceError
//	if errors.As(err, &refErr) {
//		fmt.Printf("%s rejected: %s\n", refErr.Reference, refErr.Reason)
//	}

// Type aliases for convenient error handling.
type (
	// InvalidReferenceError reports a channel reference that matches no known shape.
	InvalidReferenceError = youtube.InvalidReferenceError
	// ResolutionError reports a searchable reference that found no channel.
	ResolutionError = youtube.ResolutionError
	// TransportError wraps network failures and timeouts.
	TransportError = youtube.TransportError
	// APIError is a structured error answered by the YouTube API.
	APIError = youtube.APIError
	// ChannelFailure describes one channel omitted from an aggregate result.
	ChannelFailure = aggregate.ChannelFailure
	// RetryableError wraps errors that persisted after retries were exhausted.
	RetryableError = retry.RetryableError
	// StorageError wraps errors during storage operations.
	StorageError = storage.StorageError
)

// Sentinel errors exported from sub-packages.
var (
	// ErrInvalidReference indicates a malformed channel reference.
	ErrInvalidReference = youtube.ErrInvalidReference
	// ErrChannelNotFound indicates no channel matched a reference.
	ErrChannelNotFound = youtube.ErrChannelNotFound
	// ErrAllChannelsFailed indicates no configured channel produced videos.
	ErrAllChannelsFailed = aggregate.ErrAllChannelsFailed

	// Storage errors
	ErrInvalidInput   = storage.ErrInvalidInput
	ErrStorageCorrupt = storage.ErrStorageCorrupt
	ErrLockTimeout    = storage.ErrLockTimeout
	ErrClosed         = storage.ErrClosed
)

// IsRetryable reports whether err may succeed on a later attempt.
// It returns false for permanent errors like ErrChannelNotFound.
func IsRetryable(err error) bool {
	return retry.IsRetryable(err)
}

// IsQuotaError reports whether err is the API refusing a request for quota.
func IsQuotaError(err error) bool {
	return youtube.IsQuotaError(err)
}
