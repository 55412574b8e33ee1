package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"shortlink/internal/app"
	"shortlink/internal/backend"
	"shortlink/internal/config"
	"shortlink/internal/domain"
	"shortlink/internal/logging"
)

const usage = `usage: shortlink-cli <command> [flags]

commands:
  create  -url URL [-alias ALIAS]
  resolve -alias ALIAS [-ip IP] [-ua USER_AGENT]
  get     -id ID
  delete  -id ID
  stats

every command accepts -config PATH; storage.driver must persist
between runs, so the memory driver is rejected`

var errUsage = errors.New("invalid usage")

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(context.Background(), os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type options struct {
	configPath string
	url        string
	alias      string
	ip         string
	userAgent  string
	id         int64
}

func parseFlags(cmd string, args []string) (*options, error) {
	var opts options
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.configPath, "config", os.Getenv("CONFIG_PATH"), "path to YAML config file")

	switch cmd {
	case "create":
		fs.StringVar(&opts.url, "url", "", "long URL to shorten")
		fs.StringVar(&opts.alias, "alias", "", "custom alias")
	case "resolve":
		fs.StringVar(&opts.alias, "alias", "", "alias to resolve")
		fs.StringVar(&opts.ip, "ip", "127.0.0.1", "client IP to record")
		fs.StringVar(&opts.userAgent, "ua", "", "user agent to record, empty records none")
	case "get", "delete":
		fs.Int64Var(&opts.id, "id", 0, "record id")
	case "stats":
	default:
		return nil, fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}

	switch {
	case cmd == "create" && opts.url == "":
		return nil, fmt.Errorf("%w: -url is required", errUsage)
	case cmd == "resolve" && opts.alias == "":
		return nil, fmt.Errorf("%w: -alias is required", errUsage)
	case (cmd == "get" || cmd == "delete") && opts.id <= 0:
		return nil, fmt.Errorf("%w: -id must be positive", errUsage)
	}
	return &opts, nil
}

func run(ctx context.Context, cmd string, args []string, out io.Writer) error {
	opts, err := parseFlags(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver == config.DriverMemory {
		return fmt.Errorf("%w: storage.driver %q does not persist between commands", errUsage, cfg.Storage.Driver)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	repo, err := backend.Open(openCtx, cfg.Storage, logger)
	cancel()
	if err != nil {
		return err
	}
	defer closeStorage(repo, logger)

	a := app.New(cfg, repo, domain.RealClock{}, logger)

	switch cmd {
	case "create":
		record, err := a.Store.Create(ctx, opts.url, opts.alias)
		if err != nil {
			return err
		}
		return writeJSON(out, toRecordView(record))

	case "resolve":
		var ua *string
		if opts.userAgent != "" {
			ua = &opts.userAgent
		}
		record, err := a.Resolver.Resolve(ctx, opts.alias, opts.ip, ua)
		if err != nil {
			return err
		}
		return writeJSON(out, toRecordView(record))

	case "get":
		record, err := a.Store.FindByID(ctx, opts.id)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("id %d: %w", opts.id, domain.ErrNotFound)
		}
		return writeJSON(out, toRecordView(record))

	case "delete":
		if err := a.Store.SoftDelete(ctx, opts.id); err != nil {
			return err
		}
		return writeJSON(out, map[string]any{"id": opts.id, "deleted": true})

	default:
		stats, err := a.Stats.ComputeStatistics(ctx)
		if err != nil {
			return err
		}
		return writeJSON(out, toStatViews(stats))
	}
}

func closeStorage(c io.Closer, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("closing storage", "error", err)
	}
}

type recordView struct {
	ID        int64      `json:"id"`
	Alias     string     `json:"alias"`
	LongURL   string     `json:"long_url"`
	HitCount  int64      `json:"hit_count"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func toRecordView(r *domain.URLRecord) recordView {
	return recordView{
		ID:        r.ID,
		Alias:     r.Alias,
		LongURL:   r.LongURL,
		HitCount:  r.HitCount,
		CreatedAt: r.CreatedAt,
		DeletedAt: r.DeletedAt,
	}
}

type agentView struct {
	UserAgent *string `json:"user_agent"`
	Count     int64   `json:"count"`
}

type statView struct {
	ID               int64       `json:"id"`
	LongURL          string      `json:"long_url"`
	TotalAccessCount int64       `json:"total_access_count"`
	UserAgentCounts  []agentView `json:"user_agent_counts"`
}

func toStatViews(stats []domain.URLStatistic) []statView {
	views := make([]statView, 0, len(stats))
	for _, s := range stats {
		agents := make([]agentView, 0, len(s.UserAgentCounts))
		for _, c := range s.UserAgentCounts {
			agents = append(agents, agentView{UserAgent: c.UserAgent, Count: c.Count})
		}
		views = append(views, statView{
			ID:               s.ID,
			LongURL:          s.LongURL,
			TotalAccessCount: s.TotalAccessCount,
			UserAgentCounts:  agents,
		})
	}
	return views
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
