// Package postgres stores short URLs in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shortlink/internal/domain"
	"shortlink/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Config holds connection settings.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Repository implements repository.Repository on PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open runs pending migrations and connects a pool.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	migrator, err := NewMigrator(cfg.DSN, logger)
	if err != nil {
		return nil, err
	}
	upErr := migrator.Up()
	if err := errors.Join(upErr, migrator.Close()); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	logger.Info("postgres repository ready", "max_conns", poolCfg.MaxConns)
	return &Repository{pool: pool, logger: logger}, nil
}

// Close closes the pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// CreateURL inserts the record if the alias is free under policy.
func (r *Repository) CreateURL(ctx context.Context, record *domain.URLRecord, policy domain.AliasPolicy) error {
	q := `
INSERT INTO urls (alias, long_url, hit_count, created_at)
VALUES ($1, $2, 0, $3)
RETURNING id`
	if policy == domain.AliasReuseBlocked {
		q = `
INSERT INTO urls (alias, long_url, hit_count, created_at)
SELECT $1, $2, 0, $3
WHERE NOT EXISTS (SELECT 1 FROM urls WHERE alias = $1)
RETURNING id`
	}

	err := r.pool.QueryRow(ctx, q, record.Alias, record.LongURL, record.CreatedAt).Scan(&record.ID)
	switch {
	case err == nil:
		record.HitCount = 0
		return nil
	case errors.Is(err, pgx.ErrNoRows), isUniqueViolation(err):
		return domain.ErrAliasExists
	default:
		return repository.StorageError("inserting url", err)
	}
}

const selectURL = `SELECT id, alias, long_url, hit_count, created_at, deleted_at FROM urls`

// FindByAlias returns the live record for alias.
func (r *Repository) FindByAlias(ctx context.Context, alias string) (*domain.URLRecord, error) {
	return scanURL(r.pool.QueryRow(ctx, selectURL+` WHERE alias = $1 AND deleted_at IS NULL`, alias))
}

// FindByID returns the record for id, soft-deleted or not.
func (r *Repository) FindByID(ctx context.Context, id int64) (*domain.URLRecord, error) {
	return scanURL(r.pool.QueryRow(ctx, selectURL+` WHERE id = $1`, id))
}

func scanURL(row pgx.Row) (*domain.URLRecord, error) {
	var rec domain.URLRecord
	if err := row.Scan(&rec.ID, &rec.Alias, &rec.LongURL, &rec.HitCount, &rec.CreatedAt, &rec.DeletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, repository.StorageError("reading url", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	if rec.DeletedAt != nil {
		at := rec.DeletedAt.UTC()
		rec.DeletedAt = &at
	}
	return &rec, nil
}

// IncrementHitCount bumps hit_count in a single statement.
func (r *Repository) IncrementHitCount(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE urls SET hit_count = hit_count + 1 WHERE id = $1`, id)
	if err != nil {
		return repository.StorageError("incrementing hit count", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SoftDelete sets deleted_at once; later calls keep the first value.
func (r *Repository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	var deleted bool
	err := r.pool.QueryRow(ctx, `
UPDATE urls SET deleted_at = COALESCE(deleted_at, $2)
WHERE id = $1
RETURNING deleted_at IS NOT NULL`, id, at).Scan(&deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return repository.StorageError("soft deleting url", err)
	}
	return nil
}

const insertUsage = `
INSERT INTO url_usages (url_id, ip, user_agent, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id`

// AppendUsage inserts a usage row.
func (r *Repository) AppendUsage(ctx context.Context, usage *domain.UsageRecord) error {
	err := r.pool.QueryRow(ctx, insertUsage, usage.URLID, usage.IP, usage.UserAgent, usage.Timestamp).Scan(&usage.ID)
	if err != nil {
		return repository.StorageError("inserting usage", err)
	}
	return nil
}

// RecordHit increments the counter and inserts the usage in one transaction.
func (r *Repository) RecordHit(ctx context.Context, usage *domain.UsageRecord) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE urls SET hit_count = hit_count + 1 WHERE id = $1`, usage.URLID)
		if err != nil {
			return repository.StorageError("incrementing hit count", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		if err := tx.QueryRow(ctx, insertUsage, usage.URLID, usage.IP, usage.UserAgent, usage.Timestamp).Scan(&usage.ID); err != nil {
			return repository.StorageError("inserting usage", err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrStorageFailure) {
		return repository.StorageError("hit transaction", err)
	}
	return err
}

// StatsSnapshot reads live URLs joined with grouped usage counts in one query.
func (r *Repository) StatsSnapshot(ctx context.Context) (*domain.StatsSnapshot, error) {
	const q = `
SELECT u.id, u.alias, u.long_url, u.hit_count, u.created_at, g.user_agent, g.cnt
FROM urls u
LEFT JOIN (
    SELECT url_id, user_agent, COUNT(*) AS cnt
    FROM url_usages
    GROUP BY url_id, user_agent
) g ON g.url_id = u.id
WHERE u.deleted_at IS NULL
ORDER BY u.id`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, repository.StorageError("reading stats", err)
	}
	defer rows.Close()

	snap := &domain.StatsSnapshot{}
	lastID := int64(-1)
	for rows.Next() {
		var (
			rec   domain.URLRecord
			agent *string
			count *int64
		)
		if err := rows.Scan(&rec.ID, &rec.Alias, &rec.LongURL, &rec.HitCount, &rec.CreatedAt, &agent, &count); err != nil {
			return nil, repository.StorageError("reading stats", err)
		}
		if rec.ID != lastID {
			rec.CreatedAt = rec.CreatedAt.UTC()
			snap.URLs = append(snap.URLs, rec)
			lastID = rec.ID
		}
		if count != nil {
			snap.Tallies = append(snap.Tallies, domain.UsageTally{URLID: rec.ID, UserAgent: agent, Count: *count})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, repository.StorageError("reading stats", err)
	}
	return snap, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var (
	_ repository.Repository  = (*Repository)(nil)
	_ repository.HitRecorder = (*Repository)(nil)
)
