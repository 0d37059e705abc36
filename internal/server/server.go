// Package server exposes the game pass service over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/gamepasses-api/pkg/gamepass"
	"github.com/Sternrassler/gamepasses-api/pkg/logging"
	"github.com/Sternrassler/gamepasses-api/pkg/metrics"
	"github.com/Sternrassler/gamepasses-api/pkg/pagination"
	"github.com/Sternrassler/gamepasses-api/pkg/ratelimit"
)

// APIKeyHeader carries the shared secret on protected routes.
const APIKeyHeader = "x-api-key"

// DefaultRequestTimeout bounds the work done for one inbound request.
const DefaultRequestTimeout = 30 * time.Second

var (
	httpRequestsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "gamepasses_http_requests_total",
		Help: "Inbound HTTP requests by route and status",
	}, []string{"route", "status"})

	httpRequestDuration = promauto.With(metrics.Registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gamepasses_http_request_duration_seconds",
		Help:    "Inbound HTTP request duration in seconds by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// Pager serves paged pass lists. *gamepass.Service implements it.
type Pager interface {
	Page(ctx context.Context, userID string, offset, limit int) (pagination.Result[gamepass.Pass], error)
}

// Config holds the HTTP layer settings.
type Config struct {
	// APIKey is compared against the x-api-key header.
	APIKey string

	// RequestTimeout bounds each /gamepasses request (default DefaultRequestTimeout).
	RequestTimeout time.Duration
}

// Server routes inbound requests to the pager.
type Server struct {
	pager   Pager
	limiter ratelimit.Limiter
	config  Config
	logger  zerolog.Logger
}

// New creates a server. A nil limiter disables rate limiting.
func New(cfg Config, pager Pager, limiter ratelimit.Limiter) *Server {
	if pager == nil {
		panic("pager cannot be nil")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	return &Server{
		pager:   pager,
		limiter: limiter,
		config:  cfg,
		logger:  logging.NewLogger("http-server"),
	}
}

// Handler returns the routed handler with request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /{$}", s.instrument("root", s.rateLimit(http.HandlerFunc(s.handleRoot))))
	mux.Handle("GET /gamepasses/{userId}", s.instrument("gamepasses",
		s.rateLimit(s.requireAPIKey(http.HandlerFunc(s.handleGamePasses)))))
	mux.Handle("GET /health", s.instrument("health", http.HandlerFunc(handleHealth)))
	mux.Handle("GET /metrics", metrics.Handler())

	return s.logRequests(mux)
}
