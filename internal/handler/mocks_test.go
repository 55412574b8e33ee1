package handler_test

import (
	"context"
	"time"

	"shortlink/internal/domain"
	"shortlink/internal/handler"

	"github.com/stretchr/testify/mock"
)

// MockURLService implements handler.URLService for testing
type MockURLService struct {
	mock.Mock
}

func (m *MockURLService) Create(ctx context.Context, longURL, alias string) (*domain.URLRecord, error) {
	args := m.Called(ctx, longURL, alias)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.URLRecord), args.Error(1)
}

func (m *MockURLService) FindByID(ctx context.Context, id int64) (*domain.URLRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.URLRecord), args.Error(1)
}

func (m *MockURLService) SoftDelete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

// MockResolver implements handler.Resolver for testing
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, alias, ip string, userAgent *string) (*domain.URLRecord, error) {
	args := m.Called(ctx, alias, ip, userAgent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.URLRecord), args.Error(1)
}

// MockStatsService implements handler.StatsService for testing
type MockStatsService struct {
	mock.Mock
}

func (m *MockStatsService) ComputeStatistics(ctx context.Context) ([]domain.URLStatistic, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.URLStatistic), args.Error(1)
}

type mocks struct {
	urls     *MockURLService
	resolver *MockResolver
	stats    *MockStatsService
}

func newHandler() (*handler.Handler, mocks) {
	m := mocks{
		urls:     new(MockURLService),
		resolver: new(MockResolver),
		stats:    new(MockStatsService),
	}
	return handler.New(m.urls, m.resolver, m.stats, "http://localhost:8080", nil), m
}

func strPtr(s string) *string { return &s }

var createdAt = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
