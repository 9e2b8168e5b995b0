package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jarvis_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jarvis_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	// Relay metrics
	RelayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jarvis_relay_requests_total",
			Help: "Relay requests by outcome",
		},
		[]string{"route", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jarvis_upstream_duration_seconds",
			Help:    "Upstream LLM call duration",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"provider", "operation"},
	)

	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jarvis_upstream_errors_total",
			Help: "Failed upstream LLM calls",
		},
		[]string{"provider", "operation"},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jarvis_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
