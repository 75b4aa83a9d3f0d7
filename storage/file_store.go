package storage

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const lockTimeout = 5 * time.Second

// FileStore keeps the configuration in memory and rewrites the whole file on
// every save. It implements both ConfigStore and IDCache; Put only touches
// memory and Flush writes the file.
type FileStore struct {
	path   string
	codec  Codec
	lock   *FileLock
	logger zerolog.Logger

	mu     sync.RWMutex
	data   Config
	dirty  bool
	closed bool
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithLogger sets the logger used for store events.
func WithLogger(l zerolog.Logger) FileStoreOption {
	return func(s *FileStore) { s.logger = l }
}

// OpenFileStore locks and loads the configuration file at path. A missing
// file is created with empty defaults.
func OpenFileStore(path string, opts ...FileStoreOption) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		codec:  CodecFor(path),
		lock:   NewFileLock(path),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "store").Str("path", path).Logger()

	lockCtx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	if err := s.lock.Lock(lockCtx); err != nil {
		return nil, err
	}

	if err := s.load(); err != nil {
		s.lock.Unlock()
		return nil, err
	}

	return s, nil
}

// load reads the file into memory. Creates defaults if the file doesn't exist.
func (s *FileStore) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.data = DefaultConfig()
			s.logger.Info().Msg("config file missing, creating defaults")
			// Save immediately to catch permission errors early
			return s.write(s.data)
		}
		return &StorageError{Op: "read", Entity: "config", Err: err}
	}

	var cfg Config
	if err := s.codec.Unmarshal(raw, &cfg); err != nil {
		return &StorageError{Op: "read", Entity: "config", Err: ErrStorageCorrupt}
	}
	cfg.normalize()
	s.data = cfg

	s.logger.Debug().
		Int("channels", len(cfg.Channels)).
		Int("keywords", len(cfg.Keywords)).
		Int("channel_ids", len(cfg.ChannelIDs)).
		Msg("config loaded")
	return nil
}

// write persists cfg atomically. It never touches s.data.
func (s *FileStore) write(cfg Config) error {
	encoded, err := s.codec.Marshal(cfg)
	if err != nil {
		return &StorageError{Op: "write", Entity: "config", Err: err}
	}
	if err := WriteFileAtomic(s.path, encoded); err != nil {
		return &StorageError{Op: "write", Entity: "config", Err: err}
	}
	return nil
}

// Path returns the configuration file path.
func (s *FileStore) Path() string {
	return s.path
}

// Snapshot returns a deep copy of the current configuration.
func (s *FileStore) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// SaveSettings replaces the channel and keyword lists and rewrites the file.
// Entries are trimmed and blanks dropped. On a write failure the in-memory
// configuration is left as it was.
func (s *FileStore) SaveSettings(ctx context.Context, channels, keywords []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &StorageError{Op: "write", Entity: "config", Err: ErrClosed}
	}

	next := s.data.Clone()
	next.Channels = CleanList(channels)
	next.Keywords = CleanList(keywords)

	if err := s.write(next); err != nil {
		s.logger.Error().Err(err).Msg("save settings failed")
		return err
	}

	s.data = next
	s.dirty = false
	s.logger.Info().
		Int("channels", len(next.Channels)).
		Int("keywords", len(next.Keywords)).
		Msg("settings saved")
	return nil
}

// Get returns the cached identifier for reference.
func (s *FileStore) Get(ctx context.Context, reference string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.data.ChannelIDs[reference]
	return id, ok, nil
}

// Put records a mapping in memory. Call Flush to persist it.
func (s *FileStore) Put(ctx context.Context, reference, id string) error {
	if reference == "" || id == "" {
		return &StorageError{Op: "put", Entity: "channel_id", ID: reference, Err: ErrInvalidInput}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &StorageError{Op: "put", Entity: "channel_id", ID: reference, Err: ErrClosed}
	}

	if current, ok := s.data.ChannelIDs[reference]; ok && current == id {
		return nil
	}
	s.data.ChannelIDs[reference] = id
	s.dirty = true
	return nil
}

// Flush rewrites the file if any mapping was recorded since the last write.
func (s *FileStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	if s.closed {
		return &StorageError{Op: "write", Entity: "config", Err: ErrClosed}
	}

	if err := s.write(s.data); err != nil {
		s.logger.Error().Err(err).Msg("flush channel ids failed")
		return err
	}
	s.dirty = false
	return nil
}

// Close releases the file lock.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.lock.Unlock()
}
