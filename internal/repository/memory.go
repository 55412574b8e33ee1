package repository

import (
	"context"
	"sync"
	"time"

	"shortlink/internal/domain"
)

type tallyKey struct {
	urlID     int64
	hasAgent  bool
	userAgent string
}

// MemoryRepository provides thread-safe in-memory storage.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[int64]*domain.URLRecord
	live    map[string]int64
	retired map[string]struct{}
	usages  []domain.UsageRecord
	tallies map[tallyKey]int64
	nextURL int64
	nextUse int64
}

// NewMemoryRepository creates a new in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[int64]*domain.URLRecord),
		live:    make(map[string]int64),
		retired: make(map[string]struct{}),
		tallies: make(map[tallyKey]int64),
	}
}

// CreateURL atomically saves the record only if the alias is free.
func (r *MemoryRepository) CreateURL(ctx context.Context, record *domain.URLRecord, policy domain.AliasPolicy) error {
	select {
	case <-ctx.Done():
		return StorageError("inserting url", ctx.Err())
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.live[record.Alias]; exists {
		return domain.ErrAliasExists
	}
	if _, used := r.retired[record.Alias]; used && policy == domain.AliasReuseBlocked {
		return domain.ErrAliasExists
	}

	r.nextURL++
	record.ID = r.nextURL
	r.byID[record.ID] = record.Clone()
	r.live[record.Alias] = record.ID
	return nil
}

// FindByAlias retrieves the live record for alias.
func (r *MemoryRepository) FindByAlias(ctx context.Context, alias string) (*domain.URLRecord, error) {
	select {
	case <-ctx.Done():
		return nil, StorageError("reading url", ctx.Err())
	default:
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.live[alias]
	if !exists {
		return nil, domain.ErrNotFound
	}

	return r.byID[id].Clone(), nil
}

// FindByID retrieves a record by id, including soft-deleted ones.
func (r *MemoryRepository) FindByID(ctx context.Context, id int64) (*domain.URLRecord, error) {
	select {
	case <-ctx.Done():
		return nil, StorageError("reading url", ctx.Err())
	default:
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.byID[id]
	if !exists {
		return nil, domain.ErrNotFound
	}

	return record.Clone(), nil
}

// IncrementHitCount atomically increments the hit counter.
func (r *MemoryRepository) IncrementHitCount(ctx context.Context, id int64) error {
	select {
	case <-ctx.Done():
		return StorageError("incrementing hit count", ctx.Err())
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.byID[id]
	if !exists {
		return domain.ErrNotFound
	}

	record.HitCount++
	return nil
}

// SoftDelete marks the record deleted and releases its live alias.
func (r *MemoryRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	select {
	case <-ctx.Done():
		return StorageError("soft deleting url", ctx.Err())
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.byID[id]
	if !exists {
		return domain.ErrNotFound
	}
	if record.IsDeleted() {
		return nil
	}

	record.DeletedAt = &at
	delete(r.live, record.Alias)
	r.retired[record.Alias] = struct{}{}
	return nil
}

// AppendUsage stores a usage record.
func (r *MemoryRepository) AppendUsage(ctx context.Context, usage *domain.UsageRecord) error {
	select {
	case <-ctx.Done():
		return StorageError("inserting usage", ctx.Err())
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.appendUsageLocked(usage)
	return nil
}

// RecordHit increments the hit counter and appends usage under one lock.
func (r *MemoryRepository) RecordHit(ctx context.Context, usage *domain.UsageRecord) error {
	select {
	case <-ctx.Done():
		return StorageError("recording hit", ctx.Err())
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.byID[usage.URLID]
	if !exists {
		return domain.ErrNotFound
	}

	record.HitCount++
	r.appendUsageLocked(usage)
	return nil
}

func (r *MemoryRepository) appendUsageLocked(usage *domain.UsageRecord) {
	r.nextUse++
	usage.ID = r.nextUse

	stored := *usage
	key := tallyKey{urlID: usage.URLID}
	if usage.UserAgent != nil {
		ua := *usage.UserAgent
		stored.UserAgent = &ua
		key.hasAgent = true
		key.userAgent = ua
	}

	r.usages = append(r.usages, stored)
	r.tallies[key]++
}

// StatsSnapshot copies live URLs and tallies under the read lock.
func (r *MemoryRepository) StatsSnapshot(ctx context.Context) (*domain.StatsSnapshot, error) {
	select {
	case <-ctx.Done():
		return nil, StorageError("reading stats", ctx.Err())
	default:
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := &domain.StatsSnapshot{
		URLs:    make([]domain.URLRecord, 0, len(r.live)),
		Tallies: make([]domain.UsageTally, 0, len(r.tallies)),
	}
	for _, id := range r.live {
		snap.URLs = append(snap.URLs, *r.byID[id].Clone())
	}
	for key, count := range r.tallies {
		tally := domain.UsageTally{URLID: key.urlID, Count: count}
		if key.hasAgent {
			ua := key.userAgent
			tally.UserAgent = &ua
		}
		snap.Tallies = append(snap.Tallies, tally)
	}

	return snap, nil
}

// Usages returns a copy of every stored usage record in insertion order.
func (r *MemoryRepository) Usages() []domain.UsageRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.UsageRecord, len(r.usages))
	copy(out, r.usages)
	return out
}

// Close is a no-op.
func (r *MemoryRepository) Close() error {
	return nil
}
