// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kenhavate_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kenhavate_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	StageTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kenhavate_idea_stage_transitions_total",
			Help: "Idea stage transitions by source and target stage.",
		},
		[]string{"from", "to"},
	)

	PointsAwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kenhavate_points_awarded_total",
			Help: "Points written to the gamification ledger, by action.",
		},
		[]string{"action"},
	)

	AppealsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kenhavate_appeals_total",
			Help: "Appeal submissions by type and result.",
		},
		[]string{"type", "result"},
	)

	OTPIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kenhavate_otp_issued_total",
			Help: "One-time codes issued, by purpose.",
		},
		[]string{"purpose"},
	)
)

// MustRegister registers every collector with the default registry. Call it
// once from main.
func MustRegister() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		StageTransitionsTotal,
		PointsAwardedTotal,
		AppealsTotal,
		OTPIssuedTotal,
	)
}
