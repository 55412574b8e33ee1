package service

import (
	"context"
	"fmt"
	"log/slog"

	"shortlink/internal/domain"
	"shortlink/internal/repository"
)

// UsageRecorder appends per-access usage records.
type UsageRecorder struct {
	repo   repository.Repository
	clock  domain.Clock
	logger *slog.Logger
}

// NewUsageRecorder creates a UsageRecorder.
func NewUsageRecorder(repo repository.Repository, clock domain.Clock, logger *slog.Logger) *UsageRecorder {
	return &UsageRecorder{
		repo:   repo,
		clock:  clock,
		logger: orDiscard(logger),
	}
}

// Record stores one access of urlID. The id is not validated.
func (r *UsageRecorder) Record(ctx context.Context, urlID int64, ip string, userAgent *string) error {
	usage := r.newUsage(urlID, ip, userAgent)
	if err := r.repo.AppendUsage(ctx, usage); err != nil {
		return fmt.Errorf("recording usage of id %d: %w", urlID, err)
	}
	r.logger.DebugContext(ctx, "usage recorded", "url_id", urlID, "usage_id", usage.ID)
	return nil
}

func (r *UsageRecorder) newUsage(urlID int64, ip string, userAgent *string) *domain.UsageRecord {
	return &domain.UsageRecord{
		URLID:     urlID,
		IP:        ip,
		UserAgent: userAgent,
		Timestamp: r.clock.Now(),
	}
}
