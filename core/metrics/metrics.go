// Package metrics holds the Prometheus collectors shared by the three binaries.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebot_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moviebot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	QuotaDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebot_quota_decisions_total",
			Help: "Check-and-consume decisions by result.",
		},
		[]string{"decision"},
	)

	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebot_generation_requests_total",
			Help: "Upstream text generation calls by outcome.",
		},
		[]string{"outcome"},
	)

	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moviebot_generation_duration_seconds",
			Help:    "Upstream text generation latency in seconds.",
			Buckets: []float64{1, 5, 10, 20, 30, 45, 60, 90, 120, 180},
		},
	)

	BotUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviebot_bot_updates_total",
			Help: "Handled Telegram messages by resulting status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		QuotaDecisionsTotal,
		GenerationRequestsTotal,
		GenerationDuration,
		BotUpdatesTotal,
	)
}
