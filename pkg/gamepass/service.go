package gamepass

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/gamepasses-api/pkg/cache"
	"github.com/Sternrassler/gamepasses-api/pkg/logging"
	"github.com/Sternrassler/gamepasses-api/pkg/metrics"
	"github.com/Sternrassler/gamepasses-api/pkg/pagination"
)

var coalescedTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
	Name: "gamepasses_coalesced_requests_total",
	Help: "Requests that shared an aggregation run started by another request",
})

// Provider produces the full pass list for a user. *Aggregator implements it.
type Provider interface {
	Aggregate(ctx context.Context, userID string) ([]Pass, error)
}

// Service answers paged pass queries from the result cache, aggregating on a miss.
type Service struct {
	provider Provider
	cache    cache.Cache[[]Pass]
	coalesce bool
	group    singleflight.Group
	logger   zerolog.Logger
}

// NewService creates a service. With coalesce set, concurrent misses for the
// same user share a single aggregation run.
func NewService(provider Provider, store cache.Cache[[]Pass], coalesce bool) *Service {
	if provider == nil {
		panic("gamepass provider cannot be nil")
	}
	if store == nil {
		panic("gamepass cache cannot be nil")
	}

	return &Service{
		provider: provider,
		cache:    store,
		coalesce: coalesce,
		logger:   logging.NewLogger("gamepass-service"),
	}
}

// Page returns the [offset, offset+limit) window of userID's passes.
// Offset and limit are normalized as in pagination.Window.
func (s *Service) Page(ctx context.Context, userID string, offset, limit int) (pagination.Result[Pass], error) {
	passes, err := s.All(ctx, userID)
	if err != nil {
		return pagination.Result[Pass]{}, err
	}
	return pagination.Window(passes, offset, limit), nil
}

// All returns the full cached pass list of userID, aggregating it on a miss.
// The returned slice is shared with the cache and must not be modified.
func (s *Service) All(ctx context.Context, userID string) ([]Pass, error) {
	key := cache.Key(userID)

	passes, err := s.cache.Get(ctx, key)
	if err == nil {
		return passes, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed, aggregating")
	}

	if !s.coalesce {
		return s.refresh(ctx, userID, key)
	}

	// The shared run must not die with whichever caller started it.
	ch := s.group.DoChan(key, func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx), userID, key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			coalescedTotal.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Pass), nil
	}
}

// refresh aggregates and stores the result. A failed store is logged and the
// fresh result still returned. Failed runs leave the cache untouched.
func (s *Service) refresh(ctx context.Context, userID, key string) ([]Pass, error) {
	passes, err := s.provider.Aggregate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Put(ctx, key, passes); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to cache aggregation result")
	}
	return passes, nil
}
