package repository

import (
	"context"
	"time"

	"shortlink/internal/domain"
)

// Repository defines the contract for URL and usage storage.
// All implementations must be thread-safe for concurrent access.
// Backend errors, context cancellation included, are wrapped with
// domain.ErrStorageFailure.
type Repository interface {
	// CreateURL atomically inserts the record only if its alias is free
	// under the given policy, and assigns record.ID.
	// Returns domain.ErrAliasExists if taken.
	CreateURL(ctx context.Context, record *domain.URLRecord, policy domain.AliasPolicy) error

	// FindByAlias retrieves the live record holding alias.
	// Returns domain.ErrNotFound if there is none.
	FindByAlias(ctx context.Context, alias string) (*domain.URLRecord, error)

	// FindByID retrieves a record by id, soft-deleted ones included.
	// Returns domain.ErrNotFound if the id doesn't exist.
	FindByID(ctx context.Context, id int64) (*domain.URLRecord, error)

	// IncrementHitCount atomically adds one to the hit counter.
	// Returns domain.ErrNotFound if the id doesn't exist.
	IncrementHitCount(ctx context.Context, id int64) error

	// SoftDelete marks the record deleted at the given time. Deleting an
	// already deleted record keeps the first timestamp and succeeds.
	// Returns domain.ErrNotFound if the id doesn't exist.
	SoftDelete(ctx context.Context, id int64, at time.Time) error

	// AppendUsage stores a usage record and assigns usage.ID.
	AppendUsage(ctx context.Context, usage *domain.UsageRecord) error

	// StatsSnapshot reads live URLs and usage tallies in one consistent read.
	StatsSnapshot(ctx context.Context) (*domain.StatsSnapshot, error)

	// Close releases backend resources.
	Close() error
}

// HitRecorder is implemented by backends that can increment the hit
// counter and append the usage record in a single transaction.
type HitRecorder interface {
	// RecordHit increments the hit count of usage.URLID and appends usage.
	// Returns domain.ErrNotFound if the id doesn't exist; nothing is written then.
	RecordHit(ctx context.Context, usage *domain.UsageRecord) error
}
