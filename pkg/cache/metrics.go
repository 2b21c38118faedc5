package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Hits counts cache hits.
	Hits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagedlist_cache_hits_total",
		Help: "Total number of response cache hits",
	})

	// Misses counts cache misses, including expired entries.
	Misses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagedlist_cache_misses_total",
		Help: "Total number of response cache misses",
	})

	// StoredBytes counts bytes written to the cache.
	StoredBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagedlist_cache_stored_bytes_total",
		Help: "Total number of bytes written to the response cache",
	})

	// ConditionalRequests counts requests sent with If-None-Match or If-Modified-Since.
	ConditionalRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagedlist_cache_conditional_requests_total",
		Help: "Total number of conditional requests sent",
	})

	// NotModified counts 304 Not Modified responses served from cache.
	NotModified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagedlist_cache_not_modified_total",
		Help: "Total number of 304 Not Modified responses",
	})

	// Errors counts cache operation errors.
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagedlist_cache_errors_total",
		Help: "Total number of cache operation errors",
	}, []string{"operation"}) // "get", "set", "delete"
)
