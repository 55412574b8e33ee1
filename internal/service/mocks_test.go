package service_test

import (
	"context"
	"fmt"
	"time"

	"shortlink/internal/domain"

	"github.com/stretchr/testify/mock"
)

// MockGenerator for testing collision scenarios.
type MockGenerator struct {
	codes []string
	index int
}

func (m *MockGenerator) Generate() string {
	if m.index >= len(m.codes) {
		return fmt.Sprintf("fallback%d", m.index)
	}
	code := m.codes[m.index]
	m.index++
	return code
}

// MockRepository implements repository.Repository (but not HitRecorder).
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateURL(ctx context.Context, record *domain.URLRecord, policy domain.AliasPolicy) error {
	args := m.Called(ctx, record, policy)
	return args.Error(0)
}

func (m *MockRepository) FindByAlias(ctx context.Context, alias string) (*domain.URLRecord, error) {
	args := m.Called(ctx, alias)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.URLRecord), args.Error(1)
}

func (m *MockRepository) FindByID(ctx context.Context, id int64) (*domain.URLRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.URLRecord), args.Error(1)
}

func (m *MockRepository) IncrementHitCount(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockRepository) AppendUsage(ctx context.Context, usage *domain.UsageRecord) error {
	return m.Called(ctx, usage).Error(0)
}

func (m *MockRepository) StatsSnapshot(ctx context.Context) (*domain.StatsSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatsSnapshot), args.Error(1)
}

func (m *MockRepository) Close() error { return nil }

func strPtr(s string) *string { return &s }

var (
	baseTime   = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	errBackend = fmt.Errorf("%w: connection refused", domain.ErrStorageFailure)
)
