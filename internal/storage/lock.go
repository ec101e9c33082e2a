package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

const (
	// DefaultLockTimeout bounds how long a writer waits for the lock.
	DefaultLockTimeout = 10 * time.Second

	// DefaultLockRetryInterval is the poll period while waiting.
	DefaultLockRetryInterval = 50 * time.Millisecond

	lockSuffix = ".lock"
)

// FileLock is an exclusive advisory lock on "<target>.lock". It guards a
// single document; separate documents use separate locks.
type FileLock struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// NewFileLock returns an unlocked lock guarding target.
func NewFileLock(target string) *FileLock {
	return &FileLock{path: target + lockSuffix}
}

// Path returns the lock file path.
func (l *FileLock) Path() string { return l.path }

// Acquire polls a non-blocking flock until it succeeds, ctx is done or
// timeout elapses. A timeout yields a *LockTimeoutError.
func (l *FileLock) Acquire(ctx context.Context, timeout, retry time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	if retry <= 0 {
		retry = DefaultLockRetryInterval
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	start := time.Now()
	deadline := start.Add(timeout)
	ticker := time.NewTicker(retry)
	defer ticker.Stop()

	for {
		err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			l.file = file
			return nil
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) && !errors.Is(err, syscall.EAGAIN) {
			_ = file.Close() //nolint:errcheck // cleanup in error path
			return fmt.Errorf("acquire lock %s: %w", l.path, err)
		}
		if !time.Now().Before(deadline) {
			_ = file.Close() //nolint:errcheck // cleanup in error path
			return &LockTimeoutError{Path: l.path, Waited: time.Since(start)}
		}

		select {
		case <-ctx.Done():
			_ = file.Close() //nolint:errcheck // cleanup in error path
			return fmt.Errorf("acquire lock %s: %w", l.path, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Release unlocks and closes the lock file. Calling it on an unheld lock
// is a no-op.
func (l *FileLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	unlockErr := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if unlockErr != nil {
		return fmt.Errorf("unlock %s: %w", l.path, unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close lock file: %w", closeErr)
	}
	return nil
}
