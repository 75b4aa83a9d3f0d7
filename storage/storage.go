// Package storage persists the monitored channel list, keyword filters and
// the channel reference to identifier cache.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common storage conditions.
var (
	// ErrInvalidInput indicates invalid or malformed input was provided.
	ErrInvalidInput = errors.New("storage: invalid input")
	// ErrStorageCorrupt indicates data corruption was detected.
	ErrStorageCorrupt = errors.New("storage: data corruption detected")
	// ErrLockTimeout indicates a timeout acquiring a file lock.
	ErrLockTimeout = errors.New("storage: lock acquisition timeout")
	// ErrClosed indicates the store was used after Close.
	ErrClosed = errors.New("storage: store closed")
)

// StorageError wraps storage errors with operation and entity context.
// Use errors.As() to extract this error type and get operation details:
//
//	var storErr *storage.StorageError
//	if errors.As(err, &storErr) {
//		fmt.Printf("Failed to %s %s %s: %v\n", storErr.Op, storErr.Entity, storErr.ID, storErr.Err)
//	}
type StorageError struct {
	// Op is the operation that failed ("read", "write", "put", "lock").
	Op string
	// Entity is the entity type ("config", "channel_id", "file").
	Entity string
	// ID is the entity ID if applicable.
	ID string
	// Err is the underlying error that occurred.
	Err error
}

// Error returns a string representation of the storage error.
func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *StorageError) Unwrap() error { return e.Err }

// IDCache maps channel references to channel identifiers.
// Entries never expire. Implementations must be safe for concurrent use.
type IDCache interface {
	// Get returns the cached identifier for reference.
	Get(ctx context.Context, reference string) (id string, ok bool, err error)
	// Put records a mapping. It may only be durable after Flush.
	Put(ctx context.Context, reference, id string) error
	// Flush makes every recorded mapping durable.
	Flush(ctx context.Context) error
}

// ConfigStore exposes the user configuration for reading and editing.
type ConfigStore interface {
	// Snapshot returns a deep copy of the current configuration.
	Snapshot() Config
	// SaveSettings replaces the channel and keyword lists and persists the result.
	SaveSettings(ctx context.Context, channels, keywords []string) error
}
