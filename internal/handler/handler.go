package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"shortlink/internal/domain"
)

// URLService defines the record operations the handlers need.
// This allows testing handlers without real service implementation.
type URLService interface {
	Create(ctx context.Context, longURL, alias string) (*domain.URLRecord, error)
	FindByID(ctx context.Context, id int64) (*domain.URLRecord, error)
	SoftDelete(ctx context.Context, id int64) error
}

// Resolver turns an alias into its record and accounts the access.
type Resolver interface {
	Resolve(ctx context.Context, alias, ip string, userAgent *string) (*domain.URLRecord, error)
}

// StatsService computes per-URL usage statistics.
type StatsService interface {
	ComputeStatistics(ctx context.Context) ([]domain.URLStatistic, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	urls     URLService
	resolver Resolver
	stats    StatsService
	baseURL  string
	logger   *slog.Logger
}

// New creates a new Handler with the given dependencies.
func New(urls URLService, resolver Resolver, stats StatsService, baseURL string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		urls:     urls,
		resolver: resolver,
		stats:    stats,
		baseURL:  baseURL,
		logger:   logger,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// writeServiceError maps service errors to responses. Unknown errors are
// logged and reported as 500 with a generic message.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", "short URL not found")
	case errors.Is(err, domain.ErrAliasConflict):
		h.writeError(w, http.StatusConflict, "alias_conflict", "alias is already in use")
	case errors.Is(err, domain.ErrCapacityExhausted):
		w.Header().Set("Retry-After", retryAfterSeconds)
		h.writeError(w, http.StatusServiceUnavailable, "capacity_exhausted", "could not allocate a short code, try again")
	default:
		h.logger.ErrorContext(r.Context(), action+" failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to "+action)
	}
}

const retryAfterSeconds = "1"

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("id must be a positive integer")
	}
	return id, nil
}
