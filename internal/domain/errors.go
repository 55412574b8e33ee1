package domain

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAliasExists is returned by storage when an insert-or-fail lost on
	// the alias uniqueness constraint.
	ErrAliasExists = errors.New("alias already exists")

	// ErrAliasConflict indicates a caller-supplied alias is already taken.
	ErrAliasConflict = errors.New("alias already in use")

	// ErrCapacityExhausted indicates every generated alias collided.
	ErrCapacityExhausted = errors.New("unable to allocate a unique alias")

	// ErrStorageFailure wraps errors coming from a storage backend.
	ErrStorageFailure = errors.New("storage failure")
)

// IsRetryable reports whether the same request may succeed if sent again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCapacityExhausted) || errors.Is(err, ErrStorageFailure)
}
