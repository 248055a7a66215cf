package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"rfmseg/internal/config"
	apperrors "rfmseg/internal/errors"
	"rfmseg/internal/middleware"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// RouterOptions configures the observability router
type RouterOptions struct {
	Metrics   http.Handler
	Reporter  RunReporter
	Telemetry config.TelemetryConfig
	Logger    *slog.Logger
}

// NewRouter builds the chi router serving the observability endpoints.
// A nil Metrics handler leaves /metrics unrouted.
func NewRouter(opts RouterOptions) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	health := NewHealthHandler(logger)
	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		if opts.Telemetry.RateLimitRPS > 0 {
			r.Use(middleware.NewRateLimiter(opts.Telemetry.RateLimitRPS, opts.Telemetry.RateLimitBurst, logger).Handler)
		}
		r.Get("/healthz", health.HealthCheck)
		r.Get("/version", health.Version)
		r.Mount("/status", NewStatusHandler(opts.Reporter, logger).Routes())
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.New(http.StatusNotFound, "NOT_FOUND", "route not found")))
	})

	return r
}

// Server runs the observability router next to a batch run
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
	done     chan error
}

// NewServer creates a server for handler on addr
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		logger: logger,
		done:   make(chan error, 1),
	}
}

// Start binds the listen address and serves in the background
func (s *Server) Start(ctx context.Context) error {
	const op = "http.Start"

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return apperrors.NewConfigError(op, "cannot listen on "+s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		err := s.server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "Metrics server error", slog.String("error", err.Error()))
		}
		s.done <- err
	}()

	s.logger.InfoContext(ctx, "Metrics server started", slog.String("address", s.Addr()))
	return nil
}

// Addr returns the bound address, or the configured one before Start
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Shutdown stops the server, waiting up to a few seconds for open requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	err := <-s.done
	s.logger.InfoContext(ctx, "Metrics server stopped")
	return err
}
