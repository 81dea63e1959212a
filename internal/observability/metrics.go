// README: Prometheus metrics for lifecycle transitions, ranking and the distance provider.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridecore", Name: "booking_transitions_total", Help: "Booking lifecycle operations by outcome"},
		[]string{"operation", "result"},
	)
	RankingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridecore", Name: "ranking_requests_total", Help: "Driver ranking requests by outcome"},
		[]string{"outcome"},
	)
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ridecore",
			Name:      "distance_provider_latency_seconds",
			Help:      "Distance provider call latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridecore", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ridecore",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// ObserveProvider records one distance provider call.
func ObserveProvider(provider string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ProviderLatency.WithLabelValues(provider, result).Observe(time.Since(started).Seconds())
}

// ObserveTransition records a lifecycle operation outcome.
func ObserveTransition(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	BookingTransitions.WithLabelValues(operation, result).Inc()
}
