package handler

import (
	"time"

	"shortlink/internal/domain"
)

// === Requests ===

type CreateRequest struct {
	URL   string `json:"url"`
	Alias string `json:"alias,omitempty"`
}

// === Responses ===

type URLResponse struct {
	ID        int64   `json:"id"`
	Alias     string  `json:"alias"`
	ShortURL  string  `json:"short_url"`
	LongURL   string  `json:"long_url"`
	HitCount  int64   `json:"hit_count"`
	CreatedAt string  `json:"created_at"`
	DeletedAt *string `json:"deleted_at,omitempty"`
}

type UserAgentCountResponse struct {
	UserAgent *string `json:"user_agent"`
	Count     int64   `json:"count"`
}

type URLStatisticResponse struct {
	ID               int64                    `json:"id"`
	LongURL          string                   `json:"long_url"`
	TotalAccessCount int64                    `json:"total_access_count"`
	UserAgentCounts  []UserAgentCountResponse `json:"user_agent_counts"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *Handler) toURLResponse(record *domain.URLRecord) URLResponse {
	resp := URLResponse{
		ID:        record.ID,
		Alias:     record.Alias,
		ShortURL:  h.baseURL + "/s/" + record.Alias,
		LongURL:   record.LongURL,
		HitCount:  record.HitCount,
		CreatedAt: record.CreatedAt.UTC().Format(time.RFC3339),
	}
	if record.DeletedAt != nil {
		formatted := record.DeletedAt.UTC().Format(time.RFC3339)
		resp.DeletedAt = &formatted
	}
	return resp
}

func toStatisticResponses(stats []domain.URLStatistic) []URLStatisticResponse {
	out := make([]URLStatisticResponse, 0, len(stats))
	for _, s := range stats {
		counts := make([]UserAgentCountResponse, 0, len(s.UserAgentCounts))
		for _, c := range s.UserAgentCounts {
			counts = append(counts, UserAgentCountResponse{UserAgent: c.UserAgent, Count: c.Count})
		}
		out = append(out, URLStatisticResponse{
			ID:               s.ID,
			LongURL:          s.LongURL,
			TotalAccessCount: s.TotalAccessCount,
			UserAgentCounts:  counts,
		})
	}
	return out
}
