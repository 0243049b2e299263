// Package server exposes a running scheduler over HTTP: Prometheus metrics and a health probe.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jzx17/roundrobin/internal/logging"
	"github.com/jzx17/roundrobin/pkg/scheduler"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// StatusSource reports the state of a scheduler run.
type StatusSource interface {
	Status() scheduler.Status
}

// Server serves /metrics and /healthz.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	gatherer  prom.Gatherer
	status    StatusSource
	startTime time.Time
}

// New creates a new Server with all routes registered.
// status may be nil before a scheduler exists.
func New(gatherer prom.Gatherer, status StatusSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	if gatherer == nil {
		gatherer = prom.DefaultGatherer
	}
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		gatherer:  gatherer,
		status:    status,
		startTime: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", s.handleHealth)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully.
// ready, if non-nil, receives the bound address once the listener is open.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready chan<- string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s, ReadHeaderTimeout: 5 * time.Second}
	s.logger.Info("metrics endpoint listening", "addr", ln.Addr().String())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
