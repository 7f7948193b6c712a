// Package metrics provides Prometheus metrics for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OTPRequestsTotal counts challenge requests by flow and outcome.
	OTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthguide",
			Name:      "otp_requests_total",
			Help:      "Total number of OTP challenge requests",
		},
		[]string{"flow", "status"},
	)

	// OTPVerificationsTotal counts code submissions by operation and outcome.
	OTPVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthguide",
			Name:      "otp_verifications_total",
			Help:      "Total number of OTP code submissions",
		},
		[]string{"operation", "status"},
	)

	// TokensIssuedTotal counts session tokens by the operation that issued them.
	TokensIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthguide",
			Name:      "tokens_issued_total",
			Help:      "Total number of session tokens issued",
		},
		[]string{"operation"},
	)

	// UpstreamDuration measures calls to the generative language API.
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "healthguide",
			Name:      "upstream_duration_seconds",
			Help:      "Duration of generative language API calls in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation", "status"},
	)

	// ChatSessionsEvicted counts conversation sessions leaving the registry.
	ChatSessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "healthguide",
			Name:      "chat_sessions_evicted_total",
			Help:      "Total number of chat sessions removed from the registry",
		},
	)
)

func RecordOTPRequest(flow, status string) {
	OTPRequestsTotal.WithLabelValues(flow, status).Inc()
}

func RecordVerification(operation, status string) {
	OTPVerificationsTotal.WithLabelValues(operation, status).Inc()
}

func RecordTokenIssued(operation string) {
	TokensIssuedTotal.WithLabelValues(operation).Inc()
}

func RecordUpstream(operation, status string, seconds float64) {
	UpstreamDuration.WithLabelValues(operation, status).Observe(seconds)
}
