package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"shortlink/internal/app"
	"shortlink/internal/backend"
	"shortlink/internal/config"
	"shortlink/internal/domain"
	"shortlink/internal/handler"
	"shortlink/internal/logging"
	"shortlink/internal/server"
)

const openTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	slog.SetDefault(logger)

	openCtx, cancel := context.WithTimeout(context.Background(), openTimeout)
	repo, err := backend.Open(openCtx, cfg.Storage, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("opening %s storage: %w", cfg.Storage.Driver, err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("closing storage", "error", err)
		}
	}()

	a := app.New(cfg, repo, domain.RealClock{}, logger)
	h := handler.New(a.Store, a.Resolver, a.Stats, cfg.Server.BaseURL, logger.With("component", "handler"))

	srv := server.New(server.Config{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          logger,
	}, h)

	logger.Info("starting server", "port", cfg.Server.Port, "driver", cfg.Storage.Driver)

	if err := srv.Run(context.Background()); err != nil {
		return err
	}

	logger.Info("server stopped gracefully")
	return nil
}
