// README: Prometheus metric definitions.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "unipool", Name: "matches_total", Help: "Total match queries served"})
	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "unipool", Name: "match_latency_seconds", Help: "Match query latency in seconds"})

	SeatAcceptsTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "unipool", Name: "seat_accepts_total", Help: "Seat requests accepted"})
	SeatsFullTotal    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "unipool", Name: "seats_full_total", Help: "Accepts refused because the trip filled up"})
	SeatReleasesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "unipool", Name: "seat_releases_total", Help: "Seats released by cancellation"})

	TripsCompletedTotal     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "unipool", Name: "trips_completed_total", Help: "Trips driven to completion"})
	SettlementFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "unipool", Name: "settlement_failures_total", Help: "Settlement captures that failed and need operator attention"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "unipool", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "unipool",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
