package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zapuscina_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zapuscina_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	analyzeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zapuscina_analyze_requests_total",
		Help: "Image analysis requests by mode and outcome.",
	}, []string{"mode", "outcome"})

	itemCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zapuscina_item_cache_lookups_total",
		Help: "Item list cache lookups by result.",
	}, []string{"result"})
)
