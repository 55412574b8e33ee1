// Package redisrepo stores short URLs in Redis. Atomic steps run as Lua
// scripts; the stats snapshot is read inside MULTI/EXEC.
// All keys of one repository share a prefix, so it targets a single node.
package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"shortlink/internal/domain"
	"shortlink/internal/repository"

	"github.com/redis/go-redis/v9"
)

const (
	noAgentField = "-"
	agentPrefix  = "="
)

// Config holds connection settings.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Repository implements repository.Repository on Redis.
type Repository struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

type storedUsage struct {
	ID        int64   `json:"id"`
	URLID     int64   `json:"url_id"`
	IP        string  `json:"ip"`
	UserAgent *string `json:"user_agent"`
	Timestamp int64   `json:"ts"`
}

// Open connects and pings Redis.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "shortlink:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	logger.Info("redis repository ready", "addr", cfg.Addr, "prefix", prefix)
	return &Repository{client: client, prefix: prefix, logger: logger}, nil
}

// Close closes the client.
func (r *Repository) Close() error { return r.client.Close() }

func (r *Repository) urlKey(id int64) string { return r.prefix + "url:" + strconv.FormatInt(id, 10) }
func (r *Repository) aliasKey(alias string) string { return r.prefix + "alias:" + alias }
func (r *Repository) usagesKey(urlID int64) string { return r.prefix + "usages:" + strconv.FormatInt(urlID, 10) }
func (r *Repository) agentsKey(urlID int64) string { return r.prefix + "agents:" + strconv.FormatInt(urlID, 10) }
func (r *Repository) liveKey() string { return r.prefix + "urls:live" }
func (r *Repository) retiredKey() string { return r.prefix + "aliases:retired" }
func (r *Repository) urlSeqKey() string { return r.prefix + "url:seq" }
func (r *Repository) usageSeqKey() string { return r.prefix + "usage:seq" }

// CreateURL inserts the record if the alias is free under policy.
func (r *Repository) CreateURL(ctx context.Context, record *domain.URLRecord, policy domain.AliasPolicy) error {
	blocked := "0"
	if policy == domain.AliasReuseBlocked {
		blocked = "1"
	}

	id, err := createScript.Run(ctx, r.client,
		[]string{r.aliasKey(record.Alias), r.retiredKey(), r.urlSeqKey(), r.liveKey()},
		record.Alias, record.LongURL, record.CreatedAt.UnixNano(), blocked, r.prefix+"url:",
	).Int64()
	if err != nil {
		return repository.StorageError("inserting url", err)
	}
	if id == 0 {
		return domain.ErrAliasExists
	}

	record.ID = id
	record.HitCount = 0
	return nil
}

// FindByAlias returns the live record for alias.
func (r *Repository) FindByAlias(ctx context.Context, alias string) (*domain.URLRecord, error) {
	id, err := r.client.Get(ctx, r.aliasKey(alias)).Int64()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, repository.StorageError("reading alias", err)
	}

	rec, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.IsDeleted() {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// FindByID returns the record for id, soft-deleted or not.
func (r *Repository) FindByID(ctx context.Context, id int64) (*domain.URLRecord, error) {
	fields, err := r.client.HGetAll(ctx, r.urlKey(id)).Result()
	if err != nil {
		return nil, repository.StorageError("reading url", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}
	return decodeURL(id, fields)
}

func decodeURL(id int64, fields map[string]string) (*domain.URLRecord, error) {
	hits, err := strconv.ParseInt(fields["hit_count"], 10, 64)
	if err != nil {
		return nil, repository.StorageError("decoding hit_count", err)
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, repository.StorageError("decoding created_at", err)
	}

	rec := &domain.URLRecord{
		ID:        id,
		Alias:     fields["alias"],
		LongURL:   fields["long_url"],
		HitCount:  hits,
		CreatedAt: time.Unix(0, created).UTC(),
	}
	if raw, ok := fields["deleted_at"]; ok {
		deleted, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, repository.StorageError("decoding deleted_at", err)
		}
		at := time.Unix(0, deleted).UTC()
		rec.DeletedAt = &at
	}
	return rec, nil
}

// IncrementHitCount runs HINCRBY on an existing URL hash.
func (r *Repository) IncrementHitCount(ctx context.Context, id int64) error {
	n, err := incrementScript.Run(ctx, r.client, []string{r.urlKey(id)}).Int64()
	if err != nil {
		return repository.StorageError("incrementing hit count", err)
	}
	if n < 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SoftDelete sets deleted_at once and frees the live alias key.
func (r *Repository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	n, err := deleteScript.Run(ctx, r.client,
		[]string{r.urlKey(id), r.liveKey(), r.retiredKey()},
		at.UnixNano(), id, r.prefix+"alias:",
	).Int64()
	if err != nil {
		return repository.StorageError("soft deleting url", err)
	}
	if n < 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) encodeUsage(ctx context.Context, usage *domain.UsageRecord) (string, error) {
	id, err := r.client.Incr(ctx, r.usageSeqKey()).Result()
	if err != nil {
		return "", repository.StorageError("allocating usage id", err)
	}
	payload, err := json.Marshal(storedUsage{
		ID:        id,
		URLID:     usage.URLID,
		IP:        usage.IP,
		UserAgent: usage.UserAgent,
		Timestamp: usage.Timestamp.UnixNano(),
	})
	if err != nil {
		return "", fmt.Errorf("encoding usage: %w", err)
	}
	usage.ID = id
	return string(payload), nil
}

func agentField(ua *string) string {
	if ua == nil {
		return noAgentField
	}
	return agentPrefix + *ua
}

// AppendUsage pushes the usage and bumps its agent tally inside MULTI/EXEC.
func (r *Repository) AppendUsage(ctx context.Context, usage *domain.UsageRecord) error {
	payload, err := r.encodeUsage(ctx, usage)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, r.usagesKey(usage.URLID), payload)
		pipe.HIncrBy(ctx, r.agentsKey(usage.URLID), agentField(usage.UserAgent), 1)
		return nil
	})
	if err != nil {
		return repository.StorageError("appending usage", err)
	}
	return nil
}

// RecordHit increments the counter and appends the usage in one script.
// A usage id allocated for a missing URL is skipped.
func (r *Repository) RecordHit(ctx context.Context, usage *domain.UsageRecord) error {
	payload, err := r.encodeUsage(ctx, usage)
	if err != nil {
		return err
	}

	n, err := hitScript.Run(ctx, r.client,
		[]string{r.urlKey(usage.URLID), r.usagesKey(usage.URLID), r.agentsKey(usage.URLID)},
		payload, agentField(usage.UserAgent),
	).Int64()
	if err != nil {
		return repository.StorageError("recording hit", err)
	}
	if n < 0 {
		usage.ID = 0
		return domain.ErrNotFound
	}
	return nil
}

// Usages returns the usage records stored for urlID, oldest first.
func (r *Repository) Usages(ctx context.Context, urlID int64) ([]domain.UsageRecord, error) {
	raw, err := r.client.LRange(ctx, r.usagesKey(urlID), 0, -1).Result()
	if err != nil {
		return nil, repository.StorageError("reading usages", err)
	}

	out := make([]domain.UsageRecord, 0, len(raw))
	for _, item := range raw {
		var su storedUsage
		if err := json.Unmarshal([]byte(item), &su); err != nil {
			return nil, repository.StorageError("decoding usage", err)
		}
		out = append(out, domain.UsageRecord{
			ID:        su.ID,
			URLID:     su.URLID,
			IP:        su.IP,
			UserAgent: su.UserAgent,
			Timestamp: time.Unix(0, su.Timestamp).UTC(),
		})
	}
	return out, nil
}

// StatsSnapshot lists live ids, then reads every URL hash and agent tally
// in one MULTI/EXEC so the two views agree.
func (r *Repository) StatsSnapshot(ctx context.Context) (*domain.StatsSnapshot, error) {
	members, err := r.client.SMembers(ctx, r.liveKey()).Result()
	if err != nil {
		return nil, repository.StorageError("listing live urls", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, repository.StorageError("decoding url id", err)
		}
		ids = append(ids, id)
	}

	urlCmds := make([]*redis.MapStringStringCmd, len(ids))
	agentCmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			urlCmds[i] = pipe.HGetAll(ctx, r.urlKey(id))
			agentCmds[i] = pipe.HGetAll(ctx, r.agentsKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, repository.StorageError("reading stats", err)
	}

	snap := &domain.StatsSnapshot{URLs: make([]domain.URLRecord, 0, len(ids))}
	for i, id := range ids {
		fields := urlCmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		rec, err := decodeURL(id, fields)
		if err != nil {
			return nil, err
		}
		if rec.IsDeleted() {
			continue
		}
		snap.URLs = append(snap.URLs, *rec)

		for field, raw := range agentCmds[i].Val() {
			count, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, repository.StorageError("decoding agent tally", err)
			}
			tally := domain.UsageTally{URLID: id, Count: count}
			if field != noAgentField {
				ua := field[len(agentPrefix):]
				tally.UserAgent = &ua
			}
			snap.Tallies = append(snap.Tallies, tally)
		}
	}
	return snap, nil
}

var (
	_ repository.Repository  = (*Repository)(nil)
	_ repository.HitRecorder = (*Repository)(nil)
)
