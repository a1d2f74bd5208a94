// Package server assembles the HTTP routes and owns the listening server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"line_subscription_bot/internal/logging"
)

const (
	readHeaderTimeout = 2 * time.Second
	readTimeout       = 10 * time.Second
	// Webhook handling waits on Mongo and the reply API for every event.
	writeTimeout = 60 * time.Second
	idleTimeout  = 60 * time.Second

	listenPrefix = ":"
)

// Routes groups the handlers mounted on the router.
type Routes struct {
	Webhook http.Handler
	Health  http.HandlerFunc
	Stats   http.HandlerFunc
}

// Server hosts the HTTP routes and owns the underlying HTTP server.
type Server struct {
	server *http.Server
	logger *logrus.Entry
}

// New builds a Server listening on port.
func New(port int, routes Routes, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf("%s%d", listenPrefix, port),
			Handler:           NewRouter(routes),
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
		logger: logger,
	}
}

// NewRouter mounts the service routes. Nil handlers are left unmounted.
func NewRouter(routes Routes) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(MetricsMiddleware())

	router.Get("/", root)
	router.Handle("/metrics", promhttp.Handler())

	if routes.Webhook != nil {
		router.Method(http.MethodPost, "/webhook", routes.Webhook)
	}
	if routes.Health != nil {
		router.Get("/healthz", routes.Health)
	}
	if routes.Stats != nil {
		router.Get("/stats", routes.Stats)
	}

	return router
}

// ListenAndServe starts the server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "http_listen",
		"addr":  s.server.Addr,
	}).Info("starting http server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server listen: %w", err)
	}

	s.logger.WithField("event", "http_stopped").Info("http server stopped")
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight deliveries.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

func root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"message":"Hello World"}`))
}
