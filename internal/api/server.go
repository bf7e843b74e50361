// Package api exposes the dashboard over HTTP, websocket and gRPC health.
package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/stock-insights/internal/logger"
	"github.com/yourusername/stock-insights/internal/metrics"
	"github.com/yourusername/stock-insights/internal/models"
)

// DatabaseChecker defines the interface for checking database health.
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dashboard is the service the handlers read from. service.DashboardService satisfies it.
type Dashboard interface {
	Refresh(ctx context.Context) (*models.DashboardSnapshot, error)
	Current() (*models.DashboardSnapshot, error)
	State() models.DashboardState
	History(ctx context.Context, limit int) ([]models.SnapshotSummary, error)
	Ready() bool
}

// HealthResponse represents the JSON response for health check endpoints.
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp,omitempty"`
	Version   string `json:"version,omitempty"`
	Commit    string `json:"commit,omitempty"`
}

// ReadyResponse represents the JSON response for readiness check endpoints.
type ReadyResponse struct {
	Status   string            `json:"status"`
	Service  string            `json:"service"`
	Checks   map[string]string `json:"checks,omitempty"`
	Duration string            `json:"duration,omitempty"`
}

// Config holds the configuration for the API server.
type Config struct {
	ServiceName    string
	Version        string
	Commit         string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RefreshTimeout time.Duration
	HistoryLimit   int
	MetricsEnabled bool
	MetricsPath    string
	Logger         *logrus.Logger
	DB             DatabaseChecker
	Dashboard      Dashboard
	Hub            *StreamHub
}

// Server serves the dashboard API, probes and metrics.
type Server struct {
	cfg      Config
	server   *http.Server
	listener net.Listener
	logger   *logrus.Logger
	audit    *logger.AuditLogger
	mu       sync.Mutex
}

// NewServer creates a new API server.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewDiscardLogger()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "stock-insights"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 30 * time.Second
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	return &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		audit:  logger.NewAuditLogger(cfg.Logger),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /live", s.handleLive)

	mux.HandleFunc("GET /api/v1/dashboard", s.handleDashboard)
	mux.HandleFunc("POST /api/v1/dashboard/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/v1/dashboard/history", s.handleHistory)
	if s.cfg.Hub != nil {
		mux.HandleFunc("GET /api/v1/dashboard/stream", s.cfg.Hub.Handler())
	}

	if s.cfg.MetricsEnabled {
		mux.Handle("GET "+s.cfg.MetricsPath, metrics.Handler())
	}

	return s.logRequests(mux)
}

// Start binds the listener and serves in the background until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}

	s.mu.Lock()
	s.listener = lis
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	server := s.server
	s.mu.Unlock()

	go func() {
		s.logger.WithFields(logrus.Fields{
			"addr":    lis.Addr().String(),
			"service": s.cfg.ServiceName,
		}).Info("API server starting")

		if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("API server error")
		}
	}()

	go func() {
		<-ctx.Done()
		if err := s.Shutdown(); err != nil {
			s.logger.WithError(err).Warn("API server shutdown error")
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down the server and disconnects stream subscribers.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.mu.Unlock()
	if server == nil {
		return nil
	}

	s.logger.Info("API server shutting down")
	if s.cfg.Hub != nil {
		s.cfg.Hub.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
		}).Debug("HTTP request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is required by the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}
