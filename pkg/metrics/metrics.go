// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks backend request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_client_request_duration_seconds",
			Help:    "Backend request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestsTotal tracks total backend requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_requests_total",
			Help: "Total backend requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestErrorsTotal tracks requests that ended in a normalized API error.
	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_request_errors_total",
			Help: "Total backend requests that failed",
		},
		[]string{"endpoint", "status"},
	)

	// CredentialInvalidations counts credentials dropped after a 401 response.
	CredentialInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_credential_invalidations_total",
			Help: "Stored credentials cleared after an unauthorized response",
		},
	)

	// MessagesSent counts user messages dispatched to the backend.
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_messages_sent_total",
			Help: "User messages sent to the backend",
		},
	)
)

// RecordRequest records metrics for a backend request.
func RecordRequest(method, endpoint, status string, duration float64) {
	RequestDuration.WithLabelValues(method, endpoint, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}

// RecordError records a normalized API error for an endpoint.
func RecordError(endpoint, status string) {
	RequestErrorsTotal.WithLabelValues(endpoint, status).Inc()
}
