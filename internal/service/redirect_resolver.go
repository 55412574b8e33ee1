package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shortlink/internal/domain"
)

const defaultTelemetryTimeout = 2 * time.Second

// RedirectResolver turns an alias into its record and accounts the access.
type RedirectResolver struct {
	store            *URLStore
	recorder         *UsageRecorder
	logger           *slog.Logger
	atomic           bool
	telemetryTimeout time.Duration
}

// ResolverOption configures a RedirectResolver.
type ResolverOption func(*RedirectResolver)

// WithAtomicTelemetry makes the hit increment and usage append a single
// transaction on backends that support it.
func WithAtomicTelemetry(enabled bool) ResolverOption {
	return func(r *RedirectResolver) {
		r.atomic = enabled
	}
}

// WithTelemetryTimeout bounds the accounting writes. Values <= 0 are ignored.
func WithTelemetryTimeout(d time.Duration) ResolverOption {
	return func(r *RedirectResolver) {
		if d > 0 {
			r.telemetryTimeout = d
		}
	}
}

// NewRedirectResolver creates a RedirectResolver.
func NewRedirectResolver(store *URLStore, recorder *UsageRecorder, logger *slog.Logger, opts ...ResolverOption) *RedirectResolver {
	r := &RedirectResolver{
		store:            store,
		recorder:         recorder,
		logger:           orDiscard(logger),
		telemetryTimeout: defaultTelemetryTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the live record for alias after counting the hit and
// recording the usage. Accounting failures are logged, never returned.
// Returns domain.ErrNotFound when no live record holds alias.
func (r *RedirectResolver) Resolve(ctx context.Context, alias, ip string, userAgent *string) (*domain.URLRecord, error) {
	record, err := r.store.FindByAlias(ctx, alias)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("alias %q: %w", alias, domain.ErrNotFound)
	}

	// Accounting outlives a client that disconnects after the lookup.
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.telemetryTimeout)
	defer cancel()

	if r.account(tctx, record.ID, ip, userAgent) {
		record.HitCount++
	}
	return record, nil
}

// account reports whether the hit count was incremented.
func (r *RedirectResolver) account(ctx context.Context, id int64, ip string, userAgent *string) bool {
	if r.atomic {
		usage := r.recorder.newUsage(id, ip, userAgent)
		supported, err := r.store.recordHit(ctx, usage)
		if supported {
			if err != nil {
				r.logger.WarnContext(ctx, "recording hit failed", "id", id, "error", err)
				return false
			}
			return true
		}
	}

	incremented := true
	if err := r.store.IncrementHitCount(ctx, id); err != nil {
		r.logger.WarnContext(ctx, "incrementing hit count failed", "id", id, "error", err)
		incremented = false
	}
	if err := r.recorder.Record(ctx, id, ip, userAgent); err != nil {
		r.logger.WarnContext(ctx, "recording usage failed", "id", id, "error", err)
	}
	return incremented
}
