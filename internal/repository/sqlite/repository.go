// Package sqlite stores short URLs in SQLite through modernc.org/sqlite,
// or in a remote libSQL database when the DSN points at one.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"shortlink/internal/domain"
	"shortlink/internal/repository"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // remote libSQL driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Repository implements repository.Repository on SQLite.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

// DriverFor returns the database/sql driver name for dsn.
func DriverFor(dsn string) string {
	if strings.HasPrefix(dsn, "libsql://") || strings.HasPrefix(dsn, "wss://") || strings.HasPrefix(dsn, "https://") {
		return "libsql"
	}
	return "sqlite"
}

// Open opens (or creates) the database at dsn and applies the schema.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	driver := DriverFor(dsn)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// Single writer; also keeps shared-cache in-memory databases alive.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

		for _, pragma := range []string{
			"PRAGMA busy_timeout = 5000;",
			"PRAGMA journal_mode = WAL;",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				logger.Warn("sqlite pragma failed", "pragma", pragma, "error", err)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", driver, err)
	}

	if err := applySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	logger.Info("sqlite repository ready", "driver", driver)
	return &Repository{db: db, logger: logger}, nil
}

// Close releases the underlying DB.
func (r *Repository) Close() error { return r.db.Close() }

// CreateURL inserts the record if the alias is free under policy.
func (r *Repository) CreateURL(ctx context.Context, record *domain.URLRecord, policy domain.AliasPolicy) error {
	q := `
INSERT INTO urls(alias, long_url, hit_count, created_at)
VALUES (?, ?, 0, ?)
RETURNING id;`
	args := []any{record.Alias, record.LongURL, toNanos(record.CreatedAt)}

	if policy == domain.AliasReuseBlocked {
		q = `
INSERT INTO urls(alias, long_url, hit_count, created_at)
SELECT ?, ?, 0, ?
WHERE NOT EXISTS (SELECT 1 FROM urls WHERE alias = ?)
RETURNING id;`
		args = append(args, record.Alias)
	}

	err := r.db.QueryRowContext(ctx, q, args...).Scan(&record.ID)
	switch {
	case err == nil:
		record.HitCount = 0
		return nil
	case errors.Is(err, sql.ErrNoRows), isUniqueViolation(err):
		return domain.ErrAliasExists
	default:
		return repository.StorageError("inserting url", err)
	}
}

const selectURL = `SELECT id, alias, long_url, hit_count, created_at, deleted_at FROM urls`

// FindByAlias returns the live record for alias.
func (r *Repository) FindByAlias(ctx context.Context, alias string) (*domain.URLRecord, error) {
	row := r.db.QueryRowContext(ctx, selectURL+` WHERE alias = ? AND deleted_at IS NULL LIMIT 1;`, alias)
	return scanURL(row)
}

// FindByID returns the record for id, soft-deleted or not.
func (r *Repository) FindByID(ctx context.Context, id int64) (*domain.URLRecord, error) {
	row := r.db.QueryRowContext(ctx, selectURL+` WHERE id = ? LIMIT 1;`, id)
	return scanURL(row)
}

func scanURL(row *sql.Row) (*domain.URLRecord, error) {
	var (
		rec     domain.URLRecord
		created int64
		deleted sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.Alias, &rec.LongURL, &rec.HitCount, &created, &deleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, repository.StorageError("reading url", err)
	}
	rec.CreatedAt = fromNanos(created)
	if deleted.Valid {
		at := fromNanos(deleted.Int64)
		rec.DeletedAt = &at
	}
	return &rec, nil
}

// IncrementHitCount bumps hit_count in a single statement.
func (r *Repository) IncrementHitCount(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE urls SET hit_count = hit_count + 1 WHERE id = ?;`, id)
	if err != nil {
		return repository.StorageError("incrementing hit count", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return repository.StorageError("incrementing hit count", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SoftDelete sets deleted_at once; later calls keep the first value.
func (r *Repository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE urls SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL;`, toNanos(at), id)
	if err != nil {
		return repository.StorageError("soft deleting url", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return repository.StorageError("soft deleting url", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM urls WHERE id = ?;`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return repository.StorageError("soft deleting url", err)
	}
	return nil
}

const insertUsage = `
INSERT INTO url_usages(url_id, ip, user_agent, created_at)
VALUES (?, ?, ?, ?)
RETURNING id;`

// AppendUsage inserts a usage row.
func (r *Repository) AppendUsage(ctx context.Context, usage *domain.UsageRecord) error {
	err := r.db.QueryRowContext(ctx, insertUsage,
		usage.URLID, usage.IP, nullString(usage.UserAgent), toNanos(usage.Timestamp)).Scan(&usage.ID)
	if err != nil {
		return repository.StorageError("inserting usage", err)
	}
	return nil
}

// RecordHit increments the counter and inserts the usage in one transaction.
func (r *Repository) RecordHit(ctx context.Context, usage *domain.UsageRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return repository.StorageError("beginning hit transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE urls SET hit_count = hit_count + 1 WHERE id = ?;`, usage.URLID)
	if err != nil {
		return repository.StorageError("incrementing hit count", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return repository.StorageError("incrementing hit count", err)
	} else if n == 0 {
		return domain.ErrNotFound
	}

	err = tx.QueryRowContext(ctx, insertUsage,
		usage.URLID, usage.IP, nullString(usage.UserAgent), toNanos(usage.Timestamp)).Scan(&usage.ID)
	if err != nil {
		return repository.StorageError("inserting usage", err)
	}

	if err := tx.Commit(); err != nil {
		return repository.StorageError("committing hit transaction", err)
	}
	return nil
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
ORDER BY u.id;`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, repository.StorageError("reading stats", err)
	}
	defer rows.Close()

	snap := &domain.StatsSnapshot{}
	lastID := int64(-1)
	for rows.Next() {
		var (
			rec     domain.URLRecord
			created int64
			agent   sql.NullString
			count   sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.Alias, &rec.LongURL, &rec.HitCount, &created, &agent, &count); err != nil {
			return nil, repository.StorageError("reading stats", err)
		}
		if rec.ID != lastID {
			rec.CreatedAt = fromNanos(created)
			snap.URLs = append(snap.URLs, rec)
			lastID = rec.ID
		}
		if !count.Valid {
			continue
		}
		tally := domain.UsageTally{URLID: rec.ID, Count: count.Int64}
		if agent.Valid {
			ua := agent.String
			tally.UserAgent = &ua
		}
		snap.Tallies = append(snap.Tallies, tally)
	}
	if err := rows.Err(); err != nil {
		return nil, repository.StorageError("reading stats", err)
	}
	return snap, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	// libsql reports constraint failures as plain text.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

var (
	_ repository.Repository  = (*Repository)(nil)
	_ repository.HitRecorder = (*Repository)(nil)
)
