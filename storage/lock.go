package storage

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"
)

const lockPollInterval = 10 * time.Millisecond

// FileLock is an advisory, cross-process exclusive lock held on path+".lock".
// The holder's pid is written into the lock file to help diagnose conflicts.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock returns an unacquired lock guarding path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path + ".lock"}
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// Lock polls until the lock is acquired or ctx is done. Expiry of ctx is
// reported as ErrLockTimeout.
func (l *FileLock) Lock(ctx context.Context) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return &StorageError{Op: "lock", Entity: "config", ID: l.path, Err: err}
	}

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()
	for {
		ok, err := tryLock(f.Fd())
		if err != nil {
			f.Close()
			return &StorageError{Op: "lock", Entity: "config", ID: l.path, Err: err}
		}
		if ok {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			f.Close()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &StorageError{Op: "lock", Entity: "config", ID: l.path, Err: ErrLockTimeout}
			}
			return ctx.Err()
		}
	}

	if err := f.Truncate(0); err == nil {
		f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	l.file = f
	return nil
}

// Unlock releases the lock and removes the lock file. Unlocking an
// unacquired lock is a no-op.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil

	err := unlock(f.Fd())
	os.Remove(l.path)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
