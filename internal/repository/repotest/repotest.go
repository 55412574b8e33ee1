// Package repotest holds the behaviour every repository.Repository
// implementation must share. Backend test files call Run with a factory
// that returns an empty repository.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"shortlink/internal/domain"
	"shortlink/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty repository. Cleanup is registered on t.
type Factory func(t *testing.T) repository.Repository

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

// Run executes the shared repository behaviour suite.
func Run(t *testing.T, newRepo Factory) {
	t.Run("CreateURL assigns id and is readable", func(t *testing.T) {
		testCreateAndFind(t, newRepo(t))
	})
	t.Run("CreateURL assigns distinct ids", func(t *testing.T) {
		testDistinctIDs(t, newRepo(t))
	})
	t.Run("CreateURL rejects live alias", func(t *testing.T) {
		testDuplicateLiveAlias(t, newRepo(t))
	})
	t.Run("CreateURL blocked policy keeps deleted alias taken", func(t *testing.T) {
		testBlockedPolicy(t, newRepo(t))
	})
	t.Run("CreateURL allowed policy reuses deleted alias", func(t *testing.T) {
		testAllowedPolicy(t, newRepo(t))
	})
	t.Run("Find misses return ErrNotFound", func(t *testing.T) {
		testFindMisses(t, newRepo(t))
	})
	t.Run("IncrementHitCount", func(t *testing.T) {
		testIncrement(t, newRepo(t))
	})
	t.Run("IncrementHitCount concurrent", func(t *testing.T) {
		testConcurrentIncrement(t, newRepo(t))
	})
	t.Run("SoftDelete", func(t *testing.T) {
		testSoftDelete(t, newRepo(t))
	})
	t.Run("AppendUsage", func(t *testing.T) {
		testAppendUsage(t, newRepo(t))
	})
	t.Run("StatsSnapshot", func(t *testing.T) {
		testStatsSnapshot(t, newRepo(t))
	})
	t.Run("RecordHit", func(t *testing.T) {
		testRecordHit(t, newRepo(t))
	})
	t.Run("cancelled context", func(t *testing.T) {
		testCancelledContext(t, newRepo(t))
	})
}

func newRecord(alias, longURL string) *domain.URLRecord {
	return &domain.URLRecord{
		Alias:     alias,
		LongURL:   longURL,
		CreatedAt: baseTime,
	}
}

func mustCreate(t *testing.T, repo repository.Repository, alias string) *domain.URLRecord {
	t.Helper()
	rec := newRecord(alias, "https://example.com/"+alias)
	require.NoError(t, repo.CreateURL(context.Background(), rec, domain.AliasReuseBlocked))
	return rec
}

func strPtr(s string) *string { return &s }

func testCreateAndFind(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	rec := newRecord("abc12345", "https://example.com/path")

	require.NoError(t, repo.CreateURL(ctx, rec, domain.AliasReuseBlocked))
	assert.NotZero(t, rec.ID)

	found, err := repo.FindByAlias(ctx, "abc12345")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)
	assert.Equal(t, "abc12345", found.Alias)
	assert.Equal(t, "https://example.com/path", found.LongURL)
	assert.Equal(t, int64(0), found.HitCount)
	assert.True(t, baseTime.Equal(found.CreatedAt), "created_at %v", found.CreatedAt)
	assert.Nil(t, found.DeletedAt)

	byID, err := repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc12345", byID.Alias)
}

func testDistinctIDs(t *testing.T, repo repository.Repository) {
	seen := make(map[int64]bool)
	for i := 0; i < 5; i++ {
		rec := mustCreate(t, repo, fmt.Sprintf("alias%03d", i))
		assert.False(t, seen[rec.ID], "id %d reused", rec.ID)
		seen[rec.ID] = true
	}
}

func testDuplicateLiveAlias(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	mustCreate(t, repo, "taken001")

	for _, policy := range []domain.AliasPolicy{domain.AliasReuseBlocked, domain.AliasReuseAllowed} {
		err := repo.CreateURL(ctx, newRecord("taken001", "https://other.com"), policy)
		assert.ErrorIs(t, err, domain.ErrAliasExists, "policy %s", policy)
	}

	found, err := repo.FindByAlias(ctx, "taken001")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/taken001", found.LongURL)
}

func testBlockedPolicy(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	rec := mustCreate(t, repo, "retired1")
	require.NoError(t, repo.SoftDelete(ctx, rec.ID, baseTime.Add(time.Minute)))

	err := repo.CreateURL(ctx, newRecord("retired1", "https://other.com"), domain.AliasReuseBlocked)
	assert.ErrorIs(t, err, domain.ErrAliasExists)
}

func testAllowedPolicy(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	old := mustCreate(t, repo, "reused01")
	require.NoError(t, repo.SoftDelete(ctx, old.ID, baseTime.Add(time.Minute)))

	fresh := newRecord("reused01", "https://new.example.com")
	require.NoError(t, repo.CreateURL(ctx, fresh, domain.AliasReuseAllowed))
	assert.NotEqual(t, old.ID, fresh.ID)

	found, err := repo.FindByAlias(ctx, "reused01")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, found.ID)
	assert.Equal(t, "https://new.example.com", found.LongURL)

	prev, err := repo.FindByID(ctx, old.ID)
	require.NoError(t, err)
	assert.True(t, prev.IsDeleted())

	// Two live records may never share the alias.
	err = repo.CreateURL(ctx, newRecord("reused01", "https://third.com"), domain.AliasReuseAllowed)
	assert.ErrorIs(t, err, domain.ErrAliasExists)
}

func testFindMisses(t *testing.T, repo repository.Repository) {
	ctx := context.Background()

	_, err := repo.FindByAlias(ctx, "notexist")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.FindByID(ctx, 424242)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testIncrement(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	rec := mustCreate(t, repo, "hits0001")

	require.NoError(t, repo.IncrementHitCount(ctx, rec.ID))
	require.NoError(t, repo.IncrementHitCount(ctx, rec.ID))

	found, err := repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), found.HitCount)

	assert.ErrorIs(t, repo.IncrementHitCount(ctx, 424242), domain.ErrNotFound)
}

func testConcurrentIncrement(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	rec := mustCreate(t, repo, "conc0001")

	const workers = 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.IncrementHitCount(ctx, rec.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	found, err := repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), found.HitCount)
}

func testSoftDelete(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	rec := mustCreate(t, repo, "delete01")
	first := baseTime.Add(time.Hour)

	require.NoError(t, repo.SoftDelete(ctx, rec.ID, first))
	require.NoError(t, repo.SoftDelete(ctx, rec.ID, first.Add(time.Hour)))

	_, err := repo.FindByAlias(ctx, "delete01")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	found, err := repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, found.DeletedAt)
	assert.True(t, first.Equal(*found.DeletedAt), "deleted_at %v", *found.DeletedAt)
	assert.Equal(t, "https://example.com/delete01", found.LongURL)

	assert.ErrorIs(t, repo.SoftDelete(ctx, 424242, first), domain.ErrNotFound)
}

func testAppendUsage(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	rec := mustCreate(t, repo, "usage001")

	u1 := &domain.UsageRecord{URLID: rec.ID, IP: "1.2.3.4", UserAgent: strPtr("curl/8.0"), Timestamp: baseTime}
	u2 := &domain.UsageRecord{URLID: rec.ID, IP: "5.6.7.8", Timestamp: baseTime}
	orphan := &domain.UsageRecord{URLID: 424242, IP: "9.9.9.9", Timestamp: baseTime}

	require.NoError(t, repo.AppendUsage(ctx, u1))
	require.NoError(t, repo.AppendUsage(ctx, u2))
	require.NoError(t, repo.AppendUsage(ctx, orphan))

	assert.NotZero(t, u1.ID)
	assert.NotEqual(t, u1.ID, u2.ID)
	assert.NotEqual(t, u2.ID, orphan.ID)
}

func testStatsSnapshot(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	busy := mustCreate(t, repo, "busy0001")
	quiet := mustCreate(t, repo, "quiet001")
	gone := mustCreate(t, repo, "gone0001")

	for _, ua := range []*string{strPtr("firefox"), strPtr("firefox"), strPtr("curl"), nil} {
		require.NoError(t, repo.AppendUsage(ctx, &domain.UsageRecord{URLID: busy.ID, IP: "1.1.1.1", UserAgent: ua, Timestamp: baseTime}))
	}
	require.NoError(t, repo.AppendUsage(ctx, &domain.UsageRecord{URLID: gone.ID, IP: "1.1.1.1", Timestamp: baseTime}))
	require.NoError(t, repo.SoftDelete(ctx, gone.ID, baseTime))

	snap, err := repo.StatsSnapshot(ctx)
	require.NoError(t, err)

	ids := make([]int64, 0, len(snap.URLs))
	for _, u := range snap.URLs {
		ids = append(ids, u.ID)
	}
	assert.ElementsMatch(t, []int64{busy.ID, quiet.ID}, ids)

	counts := tallyCounts(snap.Tallies, busy.ID)
	assert.Equal(t, map[string]int64{"firefox": 2, "curl": 1, "<nil>": 1}, counts)
	assert.Empty(t, tallyCounts(snap.Tallies, quiet.ID))
}

func tallyCounts(tallies []domain.UsageTally, urlID int64) map[string]int64 {
	out := make(map[string]int64)
	for _, tally := range tallies {
		if tally.URLID != urlID {
			continue
		}
		key := "<nil>"
		if tally.UserAgent != nil {
			key = *tally.UserAgent
		}
		out[key] += tally.Count
	}
	return out
}

func testRecordHit(t *testing.T, repo repository.Repository) {
	hr, ok := repo.(repository.HitRecorder)
	if !ok {
		t.Skip("backend does not record hits atomically")
	}

	ctx := context.Background()
	rec := mustCreate(t, repo, "atomic01")

	usage := &domain.UsageRecord{URLID: rec.ID, IP: "1.2.3.4", UserAgent: strPtr("curl"), Timestamp: baseTime}
	require.NoError(t, hr.RecordHit(ctx, usage))
	assert.NotZero(t, usage.ID)

	found, err := repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.HitCount)

	err = hr.RecordHit(ctx, &domain.UsageRecord{URLID: 424242, IP: "1.2.3.4", Timestamp: baseTime})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	snap, err := repo.StatsSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"curl": 1}, tallyCounts(snap.Tallies, rec.ID))
	assert.Empty(t, tallyCounts(snap.Tallies, 424242))
}

func testCancelledContext(t *testing.T, repo repository.Repository) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.CreateURL(ctx, newRecord("cancel01", "https://example.com"), domain.AliasReuseBlocked)
	assert.ErrorIs(t, err, domain.ErrStorageFailure)

	_, err = repo.FindByAlias(ctx, "cancel01")
	assert.ErrorIs(t, err, domain.ErrStorageFailure)
}
