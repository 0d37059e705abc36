package upstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/gamepasses-api/pkg/logging"
	"github.com/Sternrassler/gamepasses-api/pkg/metrics"
)

var (
	failoverTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "gamepasses_upstream_failover_total",
		Help: "Host attempts that failed and caused the resolver to move on, by host",
	}, []string{"host"})

	resolveExhaustedTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "gamepasses_upstream_resolve_exhausted_total",
		Help: "Resolutions where every candidate host failed",
	})

	breakerStateChangesTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "gamepasses_upstream_breaker_state_changes_total",
		Help: "Circuit breaker transitions by host and new state",
	}, []string{"host", "state"})
)

// Fetcher fetches one page from one host. *Client implements it.
type Fetcher interface {
	FetchPage(ctx context.Context, host, path string) (*Page, error)
}

// Strategy executes a single host attempt on behalf of the Resolver.
type Strategy interface {
	Try(host string, fn func() (*Page, error)) (*Page, error)
}

// Linear runs every attempt as-is. Hosts are tried strictly in list order.
type Linear struct{}

// Try implements Strategy.
func (Linear) Try(_ string, fn func() (*Page, error)) (*Page, error) {
	return fn()
}

// BreakerConfig configures the per-host circuit breakers of CircuitBreaking.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens a breaker.
	FailureThreshold uint

	// Delay is how long a breaker stays open before letting a probe through.
	Delay time.Duration

	// SuccessThreshold is the number of half-open successes needed to close again.
	SuccessThreshold uint
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		Delay:            30 * time.Second,
		SuccessThreshold: 1,
	}
}

// CircuitBreaking skips hosts whose breaker is open, so a dead proxy stops
// costing a round trip on every request. Attempts abandoned because the
// caller's context ended are not counted against the host.
type CircuitBreaking struct {
	mu       sync.Mutex
	breakers map[string]circuitbreaker.CircuitBreaker[*Page]
	config   BreakerConfig
	logger   zerolog.Logger
}

// NewCircuitBreaking creates a circuit-breaking strategy.
func NewCircuitBreaking(cfg BreakerConfig) *CircuitBreaking {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 30 * time.Second
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}

	return &CircuitBreaking{
		breakers: make(map[string]circuitbreaker.CircuitBreaker[*Page]),
		config:   cfg,
		logger:   logging.NewLogger("upstream-breaker"),
	}
}

// Try implements Strategy.
func (s *CircuitBreaking) Try(host string, fn func() (*Page, error)) (*Page, error) {
	return failsafe.With(s.breaker(host)).Get(fn)
}

// IsOpen reports whether the breaker for host is currently open.
func (s *CircuitBreaking) IsOpen(host string) bool {
	return s.breaker(host).IsOpen()
}

func (s *CircuitBreaking) breaker(host string) circuitbreaker.CircuitBreaker[*Page] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[host]; ok {
		return cb
	}

	cb := circuitbreaker.NewBuilder[*Page]().
		WithFailureThreshold(s.config.FailureThreshold).
		WithDelay(s.config.Delay).
		WithSuccessThreshold(s.config.SuccessThreshold).
		HandleIf(isHostFailure).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			breakerStateChangesTotal.WithLabelValues(host, stateName(event.NewState)).Inc()
			s.logger.Warn().
				Str("host", host).
				Str("from_state", stateName(event.OldState)).
				Str("to_state", stateName(event.NewState)).
				Msg("Upstream circuit breaker state change")
		}).
		Build()
	s.breakers[host] = cb
	return cb
}

// errAbandoned marks an attempt that failed because the caller's context
// ended, not because the host did.
var errAbandoned = errors.New("attempt abandoned")

// isHostFailure reports whether an attempt outcome counts against the host.
func isHostFailure(_ *Page, err error) bool {
	return err != nil && !errors.Is(err, errAbandoned)
}

func stateName(state circuitbreaker.State) string {
	switch state {
	case circuitbreaker.ClosedState:
		return "closed"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	case circuitbreaker.OpenState:
		return "open"
	default:
		return "unknown"
	}
}

// Resolver tries an ordered list of upstream hosts until one answers.
type Resolver struct {
	fetcher  Fetcher
	hosts    []string
	strategy Strategy
	logger   zerolog.Logger
}

// NewResolver creates a resolver over hosts. A nil strategy means Linear.
// A single-element host list is the single-proxy variant.
func NewResolver(fetcher Fetcher, hosts []string, strategy Strategy) *Resolver {
	if fetcher == nil {
		panic("upstream fetcher cannot be nil")
	}
	if strategy == nil {
		strategy = Linear{}
	}

	return &Resolver{
		fetcher:  fetcher,
		hosts:    append([]string(nil), hosts...),
		strategy: strategy,
		logger:   logging.NewLogger("upstream-resolver"),
	}
}

// Hosts returns a copy of the candidate host list.
func (r *Resolver) Hosts() []string {
	return append([]string(nil), r.hosts...)
}

// Resolve returns the first usable page for path. Host failures are swallowed
// and the next host tried; when none succeeds the result wraps ErrNoUpstream.
func (r *Resolver) Resolve(ctx context.Context, path string) (*Page, error) {
	var lastErr error

	for i, host := range r.hosts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("resolve %s: %w", path, err)
		}

		page, err := r.strategy.Try(host, func() (*Page, error) {
			page, err := r.fetcher.FetchPage(ctx, host, path)
			if err != nil && ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", errAbandoned, err)
			}
			return page, err
		})
		if err == nil {
			if i > 0 {
				r.logger.Info().
					Str("host", host).
					Int("attempt", i+1).
					Msg("Upstream request succeeded after failover")
			}
			return page, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("resolve %s: %w", path, ctxErr)
		}

		lastErr = err
		failoverTotal.WithLabelValues(host).Inc()
		r.logger.Warn().
			Err(err).
			Str("host", host).
			Str("path", path).
			Msg("Upstream host failed, trying next")
	}

	resolveExhaustedTotal.Inc()
	if lastErr == nil {
		return nil, fmt.Errorf("%w: no hosts configured", ErrNoUpstream)
	}
	return nil, fmt.Errorf("%w after %d hosts: %v", ErrNoUpstream, len(r.hosts), lastErr)
}
