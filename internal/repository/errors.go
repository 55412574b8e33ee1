package repository

import (
	"fmt"

	"shortlink/internal/domain"
)

// StorageError wraps a backend error so callers can match
// domain.ErrStorageFailure while the cause stays reachable.
func StorageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageFailure, err)
}
