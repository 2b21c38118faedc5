package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Remaining mirrors the last reported error budget.
	Remaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pagedlist_ratelimit_remaining",
		Help: "Errors remaining in the current upstream rate limit window",
	})

	// Blocks counts requests refused because the budget is critical.
	Blocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagedlist_ratelimit_blocks_total",
		Help: "Total number of requests blocked by the rate limiter",
	})

	// Throttles counts requests delayed because the budget is low.
	Throttles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagedlist_ratelimit_throttles_total",
		Help: "Total number of requests throttled by the rate limiter",
	})
)
