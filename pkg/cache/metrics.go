package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/gamepasses-api/pkg/metrics"
)

var (
	// CacheHits tracks cache hits by backend
	CacheHits = promauto.With(metrics.Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamepasses_cache_hits_total",
			Help: "Total number of result cache hits",
		},
		[]string{"backend"}, // "memory", "redis"
	)

	// CacheMisses tracks cache misses, including expired entries
	CacheMisses = promauto.With(metrics.Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamepasses_cache_misses_total",
			Help: "Total number of result cache misses",
		},
		[]string{"backend"},
	)

	// CacheStores tracks successful inserts
	CacheStores = promauto.With(metrics.Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamepasses_cache_stores_total",
			Help: "Total number of result sets stored",
		},
		[]string{"backend"},
	)

	// CacheEntries tracks live entries in the memory backend
	CacheEntries = promauto.With(metrics.Registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "gamepasses_cache_memory_entries",
			Help: "Current number of entries held by the memory cache",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.With(metrics.Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "gamepasses_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"backend", "operation"}, // "get", "put"
	)
)
