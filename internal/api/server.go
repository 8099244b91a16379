// Package api exposes the invocation queue and worker pool over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/forgehand/internal/pool"
	"github.com/mattjoyce/forgehand/internal/queue"
	"github.com/mattjoyce/forgehand/internal/toolchain"
)

// InvocationQueuer defines the queue operations the API needs.
type InvocationQueuer interface {
	Enqueue(ctx context.Context, req queue.EnqueueRequest) (string, error)
	Get(ctx context.Context, id string) (*queue.Invocation, error)
	Recent(ctx context.Context, limit int) ([]*queue.Invocation, error)
}

// WorkerPool exposes the worker operations the API needs: a read-only view
// of running workers plus the session boundary that retires session-scoped
// idle workers.
type WorkerPool interface {
	Snapshot() []pool.WorkerInfo
	EndSession()
}

// ToolchainLister lists configured toolchains.
type ToolchainLister interface {
	List() []toolchain.Toolchain
}

// Config holds API server configuration.
type Config struct {
	Listen string
	// APIKey is the bearer token protecting everything except /healthz.
	APIKey string
}

// Server is the HTTP API server.
type Server struct {
	config    Config
	queue     InvocationQueuer
	pool      WorkerPool
	registry  ToolchainLister
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance.
func New(config Config, q InvocationQueuer, p WorkerPool, reg ToolchainLister, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		queue:     q,
		pool:      p,
		registry:  reg,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	// Protected API.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/v1/invocations", s.handleSubmit)
		r.Get("/v1/invocations", s.handleListInvocations)
		r.Get("/v1/invocations/{invocationID}", s.handleGetInvocation)
		r.Get("/v1/workers", s.handleListWorkers)
		r.Post("/v1/sessions/end", s.handleEndSession)
		r.Get("/v1/toolchains", s.handleListToolchains)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
