package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the types package. Using sentinels instead of ad-hoc
// fmt.Errorf allows callers to match with errors.Is for reliable error handling.
var (
	// ErrUnknownDeltaType is carried by InvalidDelta for unrecognised discriminators.
	ErrUnknownDeltaType = errors.New("unknown delta type")

	// ErrMalformedDelta is carried by InvalidDelta for entries whose fields have the wrong shape.
	ErrMalformedDelta = errors.New("malformed delta")

	// ErrMalformedDeltas is returned when a delta document is neither a list nor an envelope.
	ErrMalformedDeltas = errors.New("delta document must be a list or contain a 'deltas' list")

	// ErrBulletNotFound is returned when a delta references a missing bullet.
	ErrBulletNotFound = errors.New("bullet not found")

	// ErrEmptyContent is returned when a bullet would have no content.
	ErrEmptyContent = errors.New("bullet content cannot be empty")

	// ErrDeprecatedTarget is returned when a delta tries to change a deprecated bullet.
	ErrDeprecatedTarget = errors.New("bullet is deprecated")

	// ErrPinned is returned when automatic or manual deprecation targets a pinned bullet.
	ErrPinned = errors.New("bullet is pinned")

	// ErrInvalidMerge is returned for merge deltas that do not name two distinct bullets.
	ErrInvalidMerge = errors.New("merge requires two distinct bullet ids")

	// ErrDuplicate marks an add or update whose content matches a live bullet.
	ErrDuplicate = errors.New("duplicate of an existing bullet")

	// ErrNotDuplicates is returned when a merge targets bullets below the dedup threshold.
	ErrNotDuplicates = errors.New("bullets are not similar enough to merge")
)

// ValidationError explains why a single delta could not be applied.
// It never aborts a batch; the curator records it and moves on.
type ValidationError struct {
	Delta    DeltaType
	BulletID string
	Err      error
}

func (e *ValidationError) Error() string {
	if e.BulletID != "" {
		return fmt.Sprintf("%s delta on %s: %v", e.Delta, e.BulletID, e.Err)
	}
	return fmt.Sprintf("%s delta: %v", e.Delta, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
