// Package metrics is the reference for the Prometheus metrics exported by
// pagedlist. Collectors live in their own packages (pagination, client, cache,
// ratelimit) and register themselves with the default registry via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every pagedlist collector is registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves all registered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Paged Model Metrics (pkg/pagination):
//   - pagedlist_page_fetches_total{model, result} (Counter): Underlying page fetches (success, error, aborted)
//   - pagedlist_page_fetch_duration_seconds{model} (Histogram): Page fetch duration
//   - pagedlist_resolves_total{model, outcome} (Counter): Resolve calls (hit, fetched, coalesced, cancelled, error)
//   - pagedlist_delayed_resolves_total{outcome} (Counter): Delayed resolves (forwarded, cancelled)
//
// Request Metrics (pkg/client):
//   - pagedlist_client_requests_total{endpoint, status} (Counter): Upstream requests by endpoint and HTTP status
//   - pagedlist_client_request_duration_seconds{endpoint} (Histogram): Upstream request duration
//   - pagedlist_client_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - pagedlist_client_retries_total{error_class} (Counter): Retry attempts
//   - pagedlist_client_retry_backoff_seconds{error_class} (Histogram): Backoff before each retry
//   - pagedlist_client_retry_exhausted_total{error_class} (Counter): Requests that used up their retries
//
// Cache Metrics (pkg/cache):
//   - pagedlist_cache_hits_total (Counter)
//   - pagedlist_cache_misses_total (Counter)
//   - pagedlist_cache_stored_bytes_total (Counter): Bytes written to Redis
//   - pagedlist_cache_conditional_requests_total (Counter): Requests sent with If-None-Match / If-Modified-Since
//   - pagedlist_cache_not_modified_total (Counter): 304 responses served from cache
//   - pagedlist_cache_errors_total{operation} (Counter)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - pagedlist_ratelimit_remaining (Gauge): Errors left in the upstream window
//   - pagedlist_ratelimit_blocks_total (Counter)
//   - pagedlist_ratelimit_throttles_total (Counter)
//
// Proxy Metrics (cmd/pagedlist-proxy):
//   - pagedlist_proxy_sessions (Gauge)
//   - pagedlist_proxy_sessions_created_total (Counter)
//   - pagedlist_proxy_item_requests_total{outcome} (Counter)
//
// Example Prometheus Queries:
//
//   # Share of resolves served without a fetch
//   sum(rate(pagedlist_resolves_total{outcome=~"hit|coalesced"}[5m])) /
//   sum(rate(pagedlist_resolves_total[5m]))
//
//   # Fetches abandoned because every caller went away
//   rate(pagedlist_page_fetches_total{result="aborted"}[5m])
//
//   # P95 page fetch latency
//   histogram_quantile(0.95, rate(pagedlist_page_fetch_duration_seconds_bucket[5m]))
//
//   # Error budget status
//   pagedlist_ratelimit_remaining < 20
