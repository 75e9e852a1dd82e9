// internal/api/server.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-flywheel/internal/flywheel"
	"github.com/rovshanmuradov/solana-flywheel/internal/metrics"
)

// Config - параметры HTTP API
type Config struct {
	ListenAddr      string
	AllowedPubkey   solana.PublicKey
	FrontendOrigins []string
	AdminRatePerSec float64
	AdminBurst      int
}

// Server - HTTP API управления флайвилом
type Server struct {
	cfg      Config
	state    *flywheel.StateManager
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	limiter  *RateLimiter
	logger   *zap.Logger
	http     *http.Server
}

func NewServer(cfg Config, state *flywheel.StateManager, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	logger = logger.Named("api")
	s := &Server{
		cfg:      cfg,
		state:    state,
		metrics:  m,
		gatherer: gatherer,
		limiter:  NewRateLimiter(cfg.AdminRatePerSec, cfg.AdminBurst, logger),
		logger:   logger,
	}
	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Router собирает маршруты. Пути /api/public/* и /api/admin/* сохранены
// для существующего фронтенда.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)
	r.Use(corsMiddleware(s.cfg.FrontendOrigins))

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/prometheus", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	for _, prefix := range []string{"", "/api/public"} {
		r.HandleFunc(prefix+"/metrics", s.handleMetrics).Methods(http.MethodGet, http.MethodOptions)
		r.HandleFunc(prefix+"/status", s.handleStatus).Methods(http.MethodGet, http.MethodOptions)
	}

	for _, prefix := range []string{"/admin", "/api/admin"} {
		admin := r.PathPrefix(prefix).Subrouter()
		admin.Use(s.limiter.Handler)
		admin.HandleFunc("/start", s.handleSetRunning(true)).Methods(http.MethodPost, http.MethodOptions)
		admin.HandleFunc("/stop", s.handleSetRunning(false)).Methods(http.MethodPost, http.MethodOptions)
	}

	return r
}

// ListenAndServe блокируется до остановки сервера
func (s *Server) ListenAndServe() error {
	s.logger.Info("Control API listening", zap.String("addr", s.cfg.ListenAddr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
