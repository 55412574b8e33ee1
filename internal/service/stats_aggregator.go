package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"shortlink/internal/domain"
	"shortlink/internal/repository"
)

// StatsAggregator computes per-URL usage statistics.
type StatsAggregator struct {
	repo   repository.Repository
	logger *slog.Logger
}

// NewStatsAggregator creates a StatsAggregator.
func NewStatsAggregator(repo repository.Repository, logger *slog.Logger) *StatsAggregator {
	return &StatsAggregator{
		repo:   repo,
		logger: orDiscard(logger),
	}
}

type agentKey struct {
	urlID    int64
	hasAgent bool
	agent    string
}

// ComputeStatistics returns one entry per live URL, ordered by id.
// Totals and per-agent counts come from the same snapshot, so each total
// equals the sum of its agent counts. URLs without usage get a zero total
// and an empty agent list.
func (a *StatsAggregator) ComputeStatistics(ctx context.Context) ([]domain.URLStatistic, error) {
	snap, err := a.repo.StatsSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading stats snapshot: %w", err)
	}

	live := make(map[int64]struct{}, len(snap.URLs))
	for _, u := range snap.URLs {
		live[u.ID] = struct{}{}
	}

	// Pass 1: totals keyed by url id.
	totals := make(map[int64]int64, len(snap.URLs))
	for _, t := range snap.Tallies {
		if _, ok := live[t.URLID]; ok {
			totals[t.URLID] += t.Count
		}
	}

	// Pass 2: counts keyed by (url id, user agent).
	byAgent := make(map[agentKey]int64)
	for _, t := range snap.Tallies {
		if _, ok := live[t.URLID]; !ok {
			continue
		}
		key := agentKey{urlID: t.URLID}
		if t.UserAgent != nil {
			key.hasAgent = true
			key.agent = *t.UserAgent
		}
		byAgent[key] += t.Count
	}

	agents := make(map[int64][]domain.UserAgentCount, len(snap.URLs))
	for key, count := range byAgent {
		uc := domain.UserAgentCount{Count: count}
		if key.hasAgent {
			ua := key.agent
			uc.UserAgent = &ua
		}
		agents[key.urlID] = append(agents[key.urlID], uc)
	}

	stats := make([]domain.URLStatistic, 0, len(snap.URLs))
	for _, u := range snap.URLs {
		counts := agents[u.ID]
		if counts == nil {
			counts = []domain.UserAgentCount{}
		}
		sortAgentCounts(counts)
		stats = append(stats, domain.URLStatistic{
			ID:               u.ID,
			LongURL:          u.LongURL,
			TotalAccessCount: totals[u.ID],
			UserAgentCounts:  counts,
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].ID < stats[j].ID })

	a.logger.DebugContext(ctx, "statistics computed", "urls", len(stats), "tallies", len(snap.Tallies))
	return stats, nil
}

// sortAgentCounts orders by count descending, then the nil agent, then name.
func sortAgentCounts(counts []domain.UserAgentCount) {
	sort.Slice(counts, func(i, j int) bool {
		a, b := counts[i], counts[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.UserAgent == nil || b.UserAgent == nil {
			return a.UserAgent == nil && b.UserAgent != nil
		}
		return *a.UserAgent < *b.UserAgent
	})
}
