// Package metrics provides Prometheus metrics for the Data Hub core: a
// fixed namespace and a set of promauto-registered counters/histograms/
// gauges covering the push engine, handler fan-out, observation buffers
// and the HTTP/WebSocket transports.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "datahub"

var (
	// PushesTotal counts push_* wire calls by data type and outcome.
	PushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pushes_total",
			Help:      "Total number of pushes into the resource tree, by data type and outcome.",
		},
		[]string{"data_type", "outcome"}, // outcome: delivered, killed
	)

	// PushFanoutDurationSeconds is the handler fan-out latency for a single
	// push, including any downstream observation recursion.
	PushFanoutDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "push_fanout_duration_seconds",
			Help:      "Duration of push handler fan-out, including observation recursion.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		},
	)

	// HandlersRegistered is the current number of registered push handlers.
	HandlersRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "handlers_registered",
			Help:      "Number of push handlers currently registered across all resources.",
		},
	)

	// SessionsActive is the current number of live client sessions.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of active client sessions.",
		},
	)

	// ObservationAppendsTotal counts samples appended into observation ring
	// buffers.
	ObservationAppendsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observation_appends_total",
			Help:      "Total number of samples appended to observation buffers.",
		},
	)

	// SessionsKilledTotal counts sessions terminated for a protocol
	// violation.
	SessionsKilledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_killed_total",
			Help:      "Total number of sessions terminated for a protocol violation.",
		},
	)

	// HTTPRequestTotal counts REST admin/query requests by method, path and
	// status (RED: rate).
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is REST request latency (RED: duration).
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10),
		},
		[]string{"method", "path"},
	)

	// WebSocketConnectionsActive is the current number of subscribed
	// WebSocket push-delivery clients.
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Number of active WebSocket push-delivery connections.",
		},
	)

	// WebSocketMessagesSentTotal counts push notifications delivered over
	// WebSocket.
	WebSocketMessagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_messages_sent_total",
			Help:      "Total number of push notifications delivered over WebSocket.",
		},
	)
)
