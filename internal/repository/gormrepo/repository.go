// Package gormrepo stores short URLs in PostgreSQL through GORM, using its
// native soft-delete support.
package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shortlink/internal/domain"
	"shortlink/internal/repository"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Repository implements repository.Repository with GORM.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to PostgreSQL and auto-migrates the models.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("opening gorm postgres: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&urlModel{}, &usageModel{}); err != nil {
		return nil, fmt.Errorf("auto-migrating models: %w", err)
	}

	logger.Info("gorm repository ready")
	return &Repository{db: db, logger: logger}, nil
}

// Close closes the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateURL inserts the record if the alias is free under policy.
func (r *Repository) CreateURL(ctx context.Context, record *domain.URLRecord, policy domain.AliasPolicy) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if policy == domain.AliasReuseBlocked {
			var n int64
			if err := tx.Unscoped().Model(&urlModel{}).Where("alias = ?", record.Alias).Count(&n).Error; err != nil {
				return repository.StorageError("checking alias", err)
			}
			if n > 0 {
				return domain.ErrAliasExists
			}
		}

		m := urlModel{
			Alias:     record.Alias,
			LongURL:   record.LongURL,
			CreatedAt: record.CreatedAt,
		}
		if err := tx.Create(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrAliasExists
			}
			return repository.StorageError("inserting url", err)
		}
		record.ID = m.ID
		record.HitCount = 0
		return nil
	})
	return wrapTx(err)
}

// FindByAlias returns the live record for alias.
func (r *Repository) FindByAlias(ctx context.Context, alias string) (*domain.URLRecord, error) {
	var m urlModel
	if err := r.db.WithContext(ctx).Where("alias = ?", alias).First(&m).Error; err != nil {
		return nil, notFoundOr(err, "reading url")
	}
	return m.toDomain(), nil
}

// FindByID returns the record for id, soft-deleted or not.
func (r *Repository) FindByID(ctx context.Context, id int64) (*domain.URLRecord, error) {
	var m urlModel
	if err := r.db.WithContext(ctx).Unscoped().First(&m, id).Error; err != nil {
		return nil, notFoundOr(err, "reading url")
	}
	return m.toDomain(), nil
}

// IncrementHitCount bumps hit_count with a single UPDATE.
func (r *Repository) IncrementHitCount(ctx context.Context, id int64) error {
	return incrementHits(r.db.WithContext(ctx), id)
}

func incrementHits(db *gorm.DB, id int64) error {
	res := db.Unscoped().Model(&urlModel{}).Where("id = ?", id).
		UpdateColumn("hit_count", gorm.Expr("hit_count + ?", 1))
	if res.Error != nil {
		return repository.StorageError("incrementing hit count", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SoftDelete sets deleted_at once; later calls keep the first value.
func (r *Repository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	db := r.db.WithContext(ctx)
	res := db.Unscoped().Model(&urlModel{}).
		Where("id = ? AND deleted_at IS NULL", id).
		UpdateColumn("deleted_at", at)
	if res.Error != nil {
		return repository.StorageError("soft deleting url", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := db.Unscoped().Model(&urlModel{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return repository.StorageError("soft deleting url", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AppendUsage inserts a usage row.
func (r *Repository) AppendUsage(ctx context.Context, usage *domain.UsageRecord) error {
	return appendUsage(r.db.WithContext(ctx), usage)
}

func appendUsage(db *gorm.DB, usage *domain.UsageRecord) error {
	m := usageModel{
		URLID:     usage.URLID,
		IP:        usage.IP,
		UserAgent: usage.UserAgent,
		CreatedAt: usage.Timestamp,
	}
	if err := db.Create(&m).Error; err != nil {
		return repository.StorageError("inserting usage", err)
	}
	usage.ID = m.ID
	return nil
}

// RecordHit increments the counter and inserts the usage in one transaction.
func (r *Repository) RecordHit(ctx context.Context, usage *domain.UsageRecord) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := incrementHits(tx, usage.URLID); err != nil {
			return err
		}
		return appendUsage(tx, usage)
	})
	return wrapTx(err)
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

	var rows []statsRow
	if err := r.db.WithContext(ctx).Raw(q).Scan(&rows).Error; err != nil {
		return nil, repository.StorageError("reading stats", err)
	}

	snap := &domain.StatsSnapshot{}
	lastID := int64(-1)
	for _, row := range rows {
		if row.ID != lastID {
			snap.URLs = append(snap.URLs, domain.URLRecord{
				ID:        row.ID,
				Alias:     row.Alias,
				LongURL:   row.LongURL,
				HitCount:  row.HitCount,
				CreatedAt: row.CreatedAt.UTC(),
			})
			lastID = row.ID
		}
		if row.Cnt != nil {
			snap.Tallies = append(snap.Tallies, domain.UsageTally{URLID: row.ID, UserAgent: row.UserAgent, Count: *row.Cnt})
		}
	}
	return snap, nil
}

func notFoundOr(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return repository.StorageError(op, err)
}

// wrapTx leaves domain errors alone and wraps begin/commit failures.
func wrapTx(err error) error {
	if err == nil ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrAliasExists) ||
		errors.Is(err, domain.ErrStorageFailure) {
		return err
	}
	return repository.StorageError("transaction", err)
}

var (
	_ repository.Repository  = (*Repository)(nil)
	_ repository.HitRecorder = (*Repository)(nil)
)
