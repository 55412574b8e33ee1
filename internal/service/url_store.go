package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"shortlink/internal/domain"
	"shortlink/internal/repository"
)

const defaultMaxAttempts = 5

// CodeGenerator defines the interface for short code generation.
type CodeGenerator interface {
	Generate() string
}

// URLStore owns URL records: alias allocation, lookup, hit counting and
// soft deletion.
type URLStore struct {
	repo        repository.Repository
	generator   CodeGenerator
	clock       domain.Clock
	logger      *slog.Logger
	maxAttempts int
	policy      domain.AliasPolicy
}

// StoreOption configures a URLStore.
type StoreOption func(*URLStore)

// WithMaxAttempts bounds how many generated aliases Create tries.
// Values below 1 are ignored.
func WithMaxAttempts(n int) StoreOption {
	return func(s *URLStore) {
		if n >= 1 {
			s.maxAttempts = n
		}
	}
}

// WithAliasPolicy sets whether aliases of soft-deleted records can be reused.
func WithAliasPolicy(p domain.AliasPolicy) StoreOption {
	return func(s *URLStore) {
		s.policy = p
	}
}

// NewURLStore creates a URLStore.
func NewURLStore(repo repository.Repository, generator CodeGenerator, clock domain.Clock, logger *slog.Logger, opts ...StoreOption) *URLStore {
	s := &URLStore{
		repo:        repo,
		generator:   generator,
		clock:       clock,
		logger:      orDiscard(logger),
		maxAttempts: defaultMaxAttempts,
		policy:      domain.AliasReuseBlocked,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new record for longURL.
// An empty alias means one is generated; generated aliases are retried on
// collision up to the attempt limit, then domain.ErrCapacityExhausted is
// returned. A taken explicit alias yields domain.ErrAliasConflict.
func (s *URLStore) Create(ctx context.Context, longURL, alias string) (*domain.URLRecord, error) {
	s.logger.DebugContext(ctx, "creating url", "long_url", longURL, "alias", alias)

	if alias != "" {
		record, err := s.insert(ctx, longURL, alias)
		if errors.Is(err, domain.ErrAliasExists) {
			return nil, fmt.Errorf("alias %q: %w", alias, domain.ErrAliasConflict)
		}
		if err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "url created", "id", record.ID, "alias", record.Alias)
		return record, nil
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		record, err := s.insert(ctx, longURL, s.generator.Generate())
		if err == nil {
			s.logger.InfoContext(ctx, "url created", "id", record.ID, "alias", record.Alias, "attempts", attempt+1)
			return record, nil
		}

		if errors.Is(err, domain.ErrAliasExists) {
			s.logger.DebugContext(ctx, "generated alias collided", "attempt", attempt+1)
			continue // Collision, retry with new code
		}

		return nil, err
	}

	s.logger.WarnContext(ctx, "alias generation exhausted", "attempts", s.maxAttempts)
	return nil, fmt.Errorf("after %d attempts: %w", s.maxAttempts, domain.ErrCapacityExhausted)
}

func (s *URLStore) insert(ctx context.Context, longURL, alias string) (*domain.URLRecord, error) {
	record := &domain.URLRecord{
		Alias:     alias,
		LongURL:   longURL,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreateURL(ctx, record, s.policy); err != nil {
		if errors.Is(err, domain.ErrAliasExists) {
			return nil, err
		}
		return nil, fmt.Errorf("saving record: %w", err)
	}
	return record, nil
}

// FindByAlias returns the live record holding alias, or nil when none does.
func (s *URLStore) FindByAlias(ctx context.Context, alias string) (*domain.URLRecord, error) {
	record, err := s.repo.FindByAlias(ctx, alias)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding alias %q: %w", alias, err)
	}
	return record, nil
}

// FindByID returns the record for id, soft-deleted included, or nil when
// the id doesn't exist.
func (s *URLStore) FindByID(ctx context.Context, id int64) (*domain.URLRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding id %d: %w", id, err)
	}
	return record, nil
}

// IncrementHitCount atomically adds one hit.
// Returns domain.ErrNotFound for unknown ids.
func (s *URLStore) IncrementHitCount(ctx context.Context, id int64) error {
	if err := s.repo.IncrementHitCount(ctx, id); err != nil {
		return fmt.Errorf("incrementing id %d: %w", id, err)
	}
	return nil
}

// SoftDelete marks the record deleted. Repeated calls succeed and keep the
// first deletion time. Returns domain.ErrNotFound for unknown ids.
func (s *URLStore) SoftDelete(ctx context.Context, id int64) error {
	if err := s.repo.SoftDelete(ctx, id, s.clock.Now()); err != nil {
		return fmt.Errorf("deleting id %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "url soft-deleted", "id", id)
	return nil
}

// recordHit runs the increment and usage append as one backend
// transaction when supported. ok is false when it is not.
func (s *URLStore) recordHit(ctx context.Context, usage *domain.UsageRecord) (ok bool, err error) {
	hr, supported := s.repo.(repository.HitRecorder)
	if !supported {
		return false, nil
	}
	return true, hr.RecordHit(ctx, usage)
}
