package gormrepo_test

import (
	"context"
	"testing"
	"time"

	"shortlink/internal/domain"
	"shortlink/internal/repository"
	"shortlink/internal/repository/gormrepo"
	"shortlink/internal/repository/repotest"
	"shortlink/internal/testutil"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Contract(t *testing.T) {
	dsn := testutil.StartPostgres(t)
	ctx := context.Background()

	admin, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(admin.Close)

	repotest.Run(t, func(t *testing.T) repository.Repository {
		repo, err := gormrepo.Open(ctx, dsn, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = repo.Close() })

		_, err = admin.Exec(ctx, `TRUNCATE TABLE url_usages, urls RESTART IDENTITY`)
		require.NoError(t, err)
		return repo
	})
}

func TestRepository_SoftDeleteHidesFromDefaultScope(t *testing.T) {
	dsn := testutil.StartPostgres(t)
	ctx := context.Background()

	repo, err := gormrepo.Open(ctx, dsn, nil)
	require.NoError(t, err)
	defer repo.Close()

	rec := &domain.URLRecord{Alias: "scoped01", LongURL: "https://example.com", CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.CreateURL(ctx, rec, domain.AliasReuseBlocked))
	require.NoError(t, repo.SoftDelete(ctx, rec.ID, time.Now().UTC()))

	_, err = repo.FindByAlias(ctx, "scoped01")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Increments still apply to deleted rows, matching the SQL backends.
	assert.NoError(t, repo.IncrementHitCount(ctx, rec.ID))

	found, err := repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, found.IsDeleted())
	assert.Equal(t, int64(1), found.HitCount)
}
