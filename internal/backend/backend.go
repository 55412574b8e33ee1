// Package backend opens the storage backend named by the configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"shortlink/internal/config"
	"shortlink/internal/repository"
	"shortlink/internal/repository/gormrepo"
	"shortlink/internal/repository/postgres"
	"shortlink/internal/repository/redisrepo"
	"shortlink/internal/repository/sqlite"
)

// Open connects to the configured driver, preparing its schema first.
func Open(ctx context.Context, cfg config.Storage, logger *slog.Logger) (repository.Repository, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("driver", cfg.Driver)

	switch cfg.Driver {
	case config.DriverMemory:
		logger.Info("using in-memory storage")
		return repository.NewMemoryRepository(), nil
	case config.DriverSQLite:
		return opened(sqlite.Open(ctx, cfg.SQLitePath, logger))
	case config.DriverPostgres:
		return opened(postgres.Open(ctx, postgres.Config{
			DSN:      cfg.DatabaseURL,
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
		}, logger))
	case config.DriverGorm:
		return opened(gormrepo.Open(ctx, cfg.DatabaseURL, logger))
	case config.DriverRedis:
		return opened(redisrepo.Open(ctx, redisrepo.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, logger))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// opened keeps a failed Open from returning a non-nil interface that holds
// a nil pointer.
func opened[R repository.Repository](repo R, err error) (repository.Repository, error) {
	if err != nil {
		return nil, err
	}
	return repo, nil
}
