package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"shortlink/internal/domain"
	"shortlink/internal/repository"
	"shortlink/internal/repository/repotest"
	"shortlink/internal/repository/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dbSeq atomic.Int64

func newMemoryRepo(t *testing.T) *sqlite.Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:shortlink_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	repo, err := sqlite.Open(context.Background(), dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepository_Contract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.Repository {
		return newMemoryRepo(t)
	})
}

func TestRepository_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shortlink.db")
	ctx := context.Background()

	repo, err := sqlite.Open(ctx, path, nil)
	require.NoError(t, err)

	rec := &domain.URLRecord{Alias: "persist1", LongURL: "https://example.com"}
	require.NoError(t, repo.CreateURL(ctx, rec, domain.AliasReuseBlocked))
	require.NoError(t, repo.IncrementHitCount(ctx, rec.ID))
	require.NoError(t, repo.Close())

	reopened, err := sqlite.Open(ctx, path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	found, err := reopened.FindByAlias(ctx, "persist1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)
	assert.Equal(t, int64(1), found.HitCount)
}

func TestRepository_ClosedDatabaseIsStorageFailure(t *testing.T) {
	repo := newMemoryRepo(t)
	require.NoError(t, repo.Close())

	_, err := repo.FindByID(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrStorageFailure)
}

func TestDriverFor(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{dsn: "shortlink.db", want: "sqlite"},
		{dsn: "file:test?mode=memory&cache=shared", want: "sqlite"},
		{dsn: "libsql://db-org.turso.io?authToken=x", want: "libsql"},
		{dsn: "wss://db-org.turso.io", want: "libsql"},
		{dsn: "https://db-org.turso.io", want: "libsql"},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, sqlite.DriverFor(tt.dsn))
		})
	}
}
