// Package metrics exposes the Prometheus registry and scrape handler of the
// service. Metrics are defined with promauto.With(Registry) in the packages
// that record them (upstream, pagination, gamepass, cache, ratelimit, server).
// This package imports nothing from the module, so any package may use it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package's metrics are added to.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source scraped by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Upstream (pkg/upstream):
//   - gamepasses_upstream_requests_total{host, status} (Counter)
//   - gamepasses_upstream_request_duration_seconds{host} (Histogram)
//   - gamepasses_upstream_errors_total{class} (Counter): network, status, empty_body, oversized_body
//   - gamepasses_upstream_bad_payload_total{host} (Counter): bodies treated as an empty page
//   - gamepasses_upstream_failover_total{host} (Counter): failed attempts before moving on
//   - gamepasses_upstream_resolve_exhausted_total (Counter): every host failed
//   - gamepasses_upstream_breaker_state_changes_total{host, state} (Counter)
//
// Pagination (pkg/pagination):
//   - gamepasses_pagination_pages_fetched_total (Counter)
//   - gamepasses_pagination_items_skipped_total (Counter)
//
// Aggregation (pkg/gamepass):
//   - gamepasses_aggregations_total{outcome} (Counter): success, games_failed, passes_failed
//   - gamepasses_aggregation_duration_seconds (Histogram)
//   - gamepasses_aggregated_passes (Histogram)
//   - gamepasses_coalesced_requests_total (Counter)
//
// Cache (pkg/cache):
//   - gamepasses_cache_hits_total{backend} (Counter)
//   - gamepasses_cache_misses_total{backend} (Counter)
//   - gamepasses_cache_stores_total{backend} (Counter)
//   - gamepasses_cache_memory_entries (Gauge)
//   - gamepasses_cache_errors_total{backend, operation} (Counter)
//
// Rate limiting (pkg/ratelimit):
//   - gamepasses_ratelimit_decisions_total{backend, outcome} (Counter)
//   - gamepasses_ratelimit_tracked_clients (Gauge)
//
// HTTP (internal/server):
//   - gamepasses_http_requests_total{route, status} (Counter)
//   - gamepasses_http_request_duration_seconds{route} (Histogram)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(gamepasses_cache_hits_total[5m])) /
//   (sum(rate(gamepasses_cache_hits_total[5m])) + sum(rate(gamepasses_cache_misses_total[5m])))
//
//   # Failover Rate per Proxy
//   rate(gamepasses_upstream_failover_total[5m])
//
//   # Failed Aggregations
//   sum(rate(gamepasses_aggregations_total{outcome!="success"}[5m]))
//
//   # P95 Aggregation Latency
//   histogram_quantile(0.95, rate(gamepasses_aggregation_duration_seconds_bucket[5m]))
