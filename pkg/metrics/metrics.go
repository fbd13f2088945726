// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// SSEConnectionsActive tracks open sync stream connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// SubscribersActive tracks sinks currently held by the subscriber registry.
	SubscribersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_subscribers_active",
			Help: "Number of sinks registered for sync notifications",
		},
	)

	// SubscribedUsers tracks users with at least one registered sink.
	SubscribedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_subscribed_users",
			Help: "Number of users with at least one live sync connection",
		},
	)

	// DeliveriesTotal tracks sync event deliveries by event type and outcome.
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_deliveries_total",
			Help: "Sync events pushed to subscriber sinks",
		},
		[]string{"type", "outcome"},
	)

	// DocumentWritesTotal tracks Document Store writes by source and outcome.
	DocumentWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_writes_total",
			Help: "Document writes by mutation source",
		},
		[]string{"source", "outcome"},
	)

	// DocumentBytes tracks encoded document size on write.
	DocumentBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "document_bytes",
			Help:    "Encoded size of written documents",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)

	// LLMStreamDuration tracks LLM streaming response duration.
	LLMStreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_stream_duration_seconds",
			Help:    "LLM streaming response duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMStream records metrics for an LLM streaming response.
func RecordLLMStream(model, status string, duration float64, tokensIn, tokensOut int) {
	LLMStreamDuration.WithLabelValues(model, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordDelivery records one push attempt to a subscriber sink.
func RecordDelivery(eventType string, ok bool) {
	outcome := "delivered"
	if !ok {
		outcome = "failed"
	}
	DeliveriesTotal.WithLabelValues(eventType, outcome).Inc()
}

// RecordDocumentWrite records a Document Store write.
func RecordDocumentWrite(source string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	DocumentWritesTotal.WithLabelValues(source, outcome).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
