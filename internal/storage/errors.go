package storage

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the storage package. Using sentinels instead of ad-hoc
// fmt.Errorf allows callers to match with errors.Is for reliable error handling.
var (
	// ErrLockTimeout is matched by every *LockTimeoutError.
	ErrLockTimeout = errors.New("timed out waiting for playbook lock")

	// ErrDiscard can be returned from an Update callback to drop its changes
	// without reporting a failure.
	ErrDiscard = errors.New("discard changes")

	// ErrEmptyPath is returned when a store is built without a target path.
	ErrEmptyPath = errors.New("playbook path is required")
)

// LockTimeoutError reports that another writer held the lock for longer
// than the configured timeout. The operation is safe to retry.
type LockTimeoutError struct {
	Path   string
	Waited time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("lock %s: held by another process after %s", e.Path, e.Waited)
}

// Is lets errors.Is(err, ErrLockTimeout) match.
func (e *LockTimeoutError) Is(target error) bool {
	return target == ErrLockTimeout
}

// Retryable reports that the caller may try again.
func (e *LockTimeoutError) Retryable() bool { return true }

// PersistenceError wraps an I/O failure while reading or writing a playbook.
// The previous document on disk is left intact.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// CorruptStateError is returned by Load when the document cannot be parsed
// and the store is not configured to fail open.
type CorruptStateError struct {
	Path   string
	Backup string
	Err    error
}

func (e *CorruptStateError) Error() string {
	if e.Backup != "" {
		return fmt.Sprintf("playbook %s is corrupt (copy saved to %s): %v", e.Path, e.Backup, e.Err)
	}
	return fmt.Sprintf("playbook %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// IsRetryable reports whether err, or anything it wraps, says it can be retried.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}
