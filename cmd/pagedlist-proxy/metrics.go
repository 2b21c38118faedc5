package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pagedlist_proxy_sessions",
		Help: "Number of live list sessions",
	})

	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagedlist_proxy_sessions_created_total",
		Help: "Total number of list sessions created",
	})

	itemRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagedlist_proxy_item_requests_total",
		Help: "Item requests by outcome",
	}, []string{"outcome"}) // "ok", "peek", "cancelled", "not_found", "error"
)
