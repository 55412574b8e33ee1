package app_test

import (
	"context"
	"testing"
	"time"

	"shortlink/internal/app"
	"shortlink/internal/config"
	"shortlink/internal/domain"
	"shortlink/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func TestNew_AppliesShortcodeSettings(t *testing.T) {
	cfg := config.Default()
	cfg.Shortcode.Length = 5
	cfg.Shortcode.Alphabet = "ab"

	a := app.New(cfg, repository.NewMemoryRepository(), domain.NewMockClock(baseTime), nil)

	record, err := a.Store.Create(context.Background(), "https://example.com", "")
	require.NoError(t, err)
	assert.Regexp(t, `^[ab]{5}$`, record.Alias)
}

func TestNew_AliasReusePolicy(t *testing.T) {
	testCases := []struct {
		name         string
		reuseDeleted bool
		wantErr      error
	}{
		{"blocked by default", false, domain.ErrAliasConflict},
		{"allowed when configured", true, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := config.Default()
			cfg.Aliases.ReuseDeleted = tc.reuseDeleted

			a := app.New(cfg, repository.NewMemoryRepository(), domain.NewMockClock(baseTime), nil)

			first, err := a.Store.Create(ctx, "https://example.com/1", "promo")
			require.NoError(t, err)
			require.NoError(t, a.Store.SoftDelete(ctx, first.ID))

			_, err = a.Store.Create(ctx, "https://example.com/2", "promo")
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestNew_ResolveAndStats(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Resolver.AtomicTelemetry = true

	repo := repository.NewMemoryRepository()
	a := app.New(cfg, repo, domain.NewMockClock(baseTime), nil)

	record, err := a.Store.Create(ctx, "https://example.com", "")
	require.NoError(t, err)

	ua := "curl/8.0"
	_, err = a.Resolver.Resolve(ctx, record.Alias, "10.0.0.1", &ua)
	require.NoError(t, err)

	stats, err := a.Stats.ComputeStatistics(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(1), stats[0].TotalAccessCount)
	assert.Equal(t, []domain.UserAgentCount{{UserAgent: &ua, Count: 1}}, stats[0].UserAgentCounts)
}
