package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolve outcomes used as the "outcome" label.
const (
	outcomeHit       = "hit"
	outcomeFetched   = "fetched"
	outcomeCoalesced = "coalesced"
	outcomeCancelled = "cancelled"
	outcomeError     = "error"
)

var (
	// PageFetches counts underlying page fetches by model and result
	// ("success", "error", "aborted").
	PageFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagedlist_page_fetches_total",
			Help: "Total number of underlying page fetches",
		},
		[]string{"model", "result"},
	)

	// PageFetchDuration observes the duration of page fetches.
	PageFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagedlist_page_fetch_duration_seconds",
			Help:    "Duration of underlying page fetches in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15},
		},
		[]string{"model"},
	)

	// Resolves counts Resolve calls by model and outcome.
	Resolves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagedlist_resolves_total",
			Help: "Total number of element resolutions by outcome",
		},
		[]string{"model", "outcome"},
	)

	// DelayedResolves counts delayed resolutions that were abandoned during
	// the settle delay versus forwarded to the inner model.
	DelayedResolves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagedlist_delayed_resolves_total",
			Help: "Total number of delayed resolutions by outcome",
		},
		[]string{"outcome"}, // "forwarded", "cancelled"
	)
)
