// Package ratelimit gates inbound requests per client with a fixed budget of
// requests per window. Limits can be kept in process or shared through Redis.
package ratelimit

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/gamepasses-api/pkg/metrics"
)

// RedisKeyPrefix namespaces the per-client window counters.
const RedisKeyPrefix = "gamepasses:ratelimit:"

const (
	backendMemory = "memory"
	backendRedis  = "redis"
)

var (
	decisionsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "gamepasses_ratelimit_decisions_total",
		Help: "Rate limit decisions by backend and outcome",
	}, []string{"backend", "outcome"})

	trackedClients = promauto.With(metrics.Registry).NewGauge(prometheus.GaugeOpts{
		Name: "gamepasses_ratelimit_tracked_clients",
		Help: "Clients currently tracked by the in-memory limiter",
	})
)

// Config is a request budget: Requests per Window.
type Config struct {
	Requests int
	Window   time.Duration
}

// DefaultConfig allows 10 requests per minute.
func DefaultConfig() Config {
	return Config{
		Requests: 10,
		Window:   time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Requests <= 0 {
		c.Requests = def.Requests
	}
	if c.Window <= 0 {
		c.Window = def.Window
	}
	return c
}

// Decision is the outcome of one Allow call.
type Decision struct {
	// Allowed reports whether the request fits the budget.
	Allowed bool

	// Limit is the configured request budget per window.
	Limit int

	// Remaining is how many more requests fit right now.
	Remaining int

	// RetryAfter is how long a denied client should wait. Zero when allowed.
	RetryAfter time.Duration
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds, at least 1,
// as sent in a Retry-After header.
func (d Decision) RetryAfterSeconds() string {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// Limiter decides whether the client identified by key may make a request.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

func record(backend string, d Decision) {
	outcome := "allowed"
	if !d.Allowed {
		outcome = "denied"
	}
	decisionsTotal.WithLabelValues(backend, outcome).Inc()
}
