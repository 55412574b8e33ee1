package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shortlink/internal/handler"
	"shortlink/internal/middleware"
)

// Config holds server configuration. Zero timeouts use the defaults below.
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// Server represents the HTTP server.
type Server struct {
	cfg        Config
	httpServer *http.Server
	mux        *http.ServeMux
	handler    *handler.Handler
	logger     *slog.Logger
}

// New creates a new Server with the given configuration.
// Without a handler only the health endpoint is served.
func New(cfg Config, h ...*handler.Handler) *Server {
	cfg = withDefaults(cfg)
	mux := http.NewServeMux()

	s := &Server{
		cfg:    cfg,
		mux:    mux,
		logger: cfg.Logger,
		httpServer: &http.Server{
			Addr: fmt.Sprintf(":%d", cfg.Port),
			Handler: middleware.Chain(mux,
				middleware.Recover(cfg.Logger),
				middleware.RequestID,
				middleware.Logging(cfg.Logger),
				middleware.Timing,
			),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}

	if len(h) > 0 && h[0] != nil {
		s.handler = h[0]
	}

	s.registerRoutes()
	return s
}

func withDefaults(cfg Config) Config {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	if s.handler != nil {
		s.mux.HandleFunc("POST /urls", s.handler.Create)
		s.mux.HandleFunc("GET /urls/{id}", s.handler.Get)
		s.mux.HandleFunc("DELETE /urls/{id}", s.handler.Delete)
		s.mux.HandleFunc("GET /s/{alias}", s.handler.Redirect)
		s.mux.HandleFunc("GET /stats", s.handler.Stats)
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server. This method blocks until the server is stopped.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// HandleFunc registers a handler function for the given pattern.
// This is useful for testing to add custom endpoints.
func (s *Server) HandleFunc(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, handler)
}

// Run starts the server and blocks until SIGINT, SIGTERM or ctx
// cancellation, then shuts down within ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)

	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	s.logger.Info("server listening", "addr", s.httpServer.Addr)

	select {
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
