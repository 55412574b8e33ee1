// Package app wires the core components from configuration.
package app

import (
	"log/slog"

	"shortlink/internal/config"
	"shortlink/internal/domain"
	"shortlink/internal/repository"
	"shortlink/internal/service"
	"shortlink/internal/shortcode"
)

// App holds the wired components sharing one repository.
type App struct {
	Store    *service.URLStore
	Recorder *service.UsageRecorder
	Resolver *service.RedirectResolver
	Stats    *service.StatsAggregator
}

// New builds the components on repo using cfg.
func New(cfg *config.Config, repo repository.Repository, clock domain.Clock, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	genOpts := []shortcode.Option{shortcode.WithLength(cfg.Shortcode.Length)}
	if cfg.Shortcode.Alphabet != "" {
		genOpts = append(genOpts, shortcode.WithAlphabet(cfg.Shortcode.Alphabet))
	}
	generator := shortcode.NewGenerator(genOpts...)

	policy := domain.AliasReuseBlocked
	if cfg.Aliases.ReuseDeleted {
		policy = domain.AliasReuseAllowed
	}

	store := service.NewURLStore(repo, generator, clock, logger.With("component", "url_store"),
		service.WithMaxAttempts(cfg.Shortcode.MaxAttempts),
		service.WithAliasPolicy(policy),
	)
	recorder := service.NewUsageRecorder(repo, clock, logger.With("component", "usage_recorder"))
	resolver := service.NewRedirectResolver(store, recorder, logger.With("component", "redirect_resolver"),
		service.WithAtomicTelemetry(cfg.Resolver.AtomicTelemetry),
		service.WithTelemetryTimeout(cfg.Resolver.TelemetryTimeout),
	)

	logger.Debug("components wired",
		"code_length", generator.Length(),
		"code_capacity", generator.Capacity(),
		"alias_policy", policy.String(),
		"atomic_telemetry", cfg.Resolver.AtomicTelemetry,
	)

	return &App{
		Store:    store,
		Recorder: recorder,
		Resolver: resolver,
		Stats:    service.NewStatsAggregator(repo, logger.With("component", "stats_aggregator")),
	}
}
