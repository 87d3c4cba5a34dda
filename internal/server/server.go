// Package server exposes loaded sheets over a read-only HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/gosheets/internal/errors"
	"github.com/3leaps/gosheets/internal/server/handlers"
	"github.com/3leaps/gosheets/internal/server/middleware"
)

// Server is the gosheets HTTP server.
type Server struct {
	host   string
	port   int
	router chi.Router
	http   *http.Server
	logger *zap.Logger
	opener handlers.SheetOpener
}

// Option configures a Server.
type Option func(*Server)

// WithSheetOpener enables GET /v1/sheets.
func WithSheetOpener(open handlers.SheetOpener) Option {
	return func(s *Server) { s.opener = open }
}

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTimeouts sets the http.Server read, write and idle timeouts.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		s.http.ReadTimeout = read
		s.http.WriteTimeout = write
		s.http.IdleTimeout = idle
	}
}

// New creates a server listening on host:port once Start is called.
func New(host string, port int, opts ...Option) *Server {
	s := &Server{
		host:   host,
		port:   port,
		logger: zap.NewNop(),
		http: &http.Server{
			Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	s.http.Handler = s.router
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, http.StatusNotFound, apperrors.HTTPErrorBody{
			Code:      apperrors.CodeNotFound,
			Message:   fmt.Sprintf("no route for %s", req.URL.Path),
			RequestID: req.Header.Get(apperrors.RequestIDHeader),
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, http.StatusMethodNotAllowed, apperrors.HTTPErrorBody{
			Code:      apperrors.CodeMethodNotAllowed,
			Message:   fmt.Sprintf("%s not allowed on %s", req.Method, req.URL.Path),
			RequestID: req.Header.Get(apperrors.RequestIDHeader),
		})
	})

	r.Get("/health", handlers.HealthHandler)
	r.Get("/health/live", handlers.LivenessHandler)
	r.Get("/health/ready", handlers.ReadinessHandler)
	r.Get("/health/startup", handlers.StartupHandler)
	r.Get("/version", handlers.VersionHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Method(http.MethodGet, "/sheets", handlers.NewSheetsHandler(s.opener))
	})
	return r
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Port returns the configured port.
func (s *Server) Port() int { return s.port }

// Addr returns the listen address.
func (s *Server) Addr() string { return s.http.Addr }

// Start serves until Shutdown is called. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
