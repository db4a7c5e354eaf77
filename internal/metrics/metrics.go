// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared between the realtime package and the metrics it records.
const (
	ResultAccepted    = "accepted"
	ResultDropped     = "dropped"
	ResultRateLimited = "rate_limited"
	ResultOversized   = "oversized"

	// EventOther labels publishes of producer-defined event names so the
	// events_published series stay bounded.
	EventOther = "other"
)

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Realtime Connection Metrics
	RealtimeConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtime_connections",
			Help: "Current number of admitted realtime subscribers",
		},
		[]string{"transport"}, // "sse", "websocket"
	)

	RealtimeAdmissionRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_admission_rejections_total",
			Help: "Total number of connections rejected for capacity",
		},
		[]string{"dimension"}, // "scenario", "ip", "user"
	)

	RealtimeHandshakeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_handshake_failures_total",
			Help: "Total number of realtime connections rejected before admission",
		},
		[]string{"transport", "reason"}, // "missing_params", "unauthorized", "error"
	)

	// Fan-out Metrics
	RealtimeEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_published_total",
			Help: "Total number of events published to a scenario",
		},
		[]string{"event"},
	)

	RealtimeDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_deliveries_total",
			Help: "Total number of events handed to a subscriber",
		},
		[]string{"transport"},
	)

	RealtimeSendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_send_failures_total",
			Help: "Total number of sends that failed and removed the subscriber",
		},
		[]string{"transport"},
	)

	RealtimeFanoutSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtime_fanout_subscribers",
			Help:    "Number of subscribers targeted by a single publish",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 200, 500},
		},
	)

	// Inbound Metrics
	RealtimeInboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_inbound_messages_total",
			Help: "Total number of inbound WebSocket frames by gate result",
		},
		[]string{"result"}, // "accepted", "dropped", "rate_limited", "oversized"
	)

	// Liveness Metrics
	RealtimeHeartbeatTerminations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_heartbeat_terminations_total",
			Help: "Total number of WebSocket subscribers terminated for a missed pong",
		},
	)

	RealtimeHeartbeatSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtime_heartbeat_sweep_duration_seconds",
			Help:    "Duration of a heartbeat sweep",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	// Membership Metrics
	MembershipOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_operations_total",
			Help: "Total number of membership store operations",
		},
		[]string{"operation", "status"}, // operation: "grant", "revoke", "lookup"
	)

	// Application Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

//nolint:gochecknoinits // export zero-valued series before the first connection
func init() {
	for _, transport := range []string{"sse", "websocket"} {
		RealtimeConnections.WithLabelValues(transport)
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRateLimitHit records a handshake or API request rejected by httprate
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordConnectionOpened increments the live connection gauge for a transport
func RecordConnectionOpened(transport string) {
	RealtimeConnections.WithLabelValues(transport).Inc()
}

// RecordConnectionClosed decrements the live connection gauge for a transport
func RecordConnectionClosed(transport string) {
	RealtimeConnections.WithLabelValues(transport).Dec()
}

// RecordAdmissionRejected records a capacity rejection for the exhausted dimension
func RecordAdmissionRejected(dimension string) {
	RealtimeAdmissionRejections.WithLabelValues(dimension).Inc()
}

// RecordHandshakeFailure records a connection closed before admission
func RecordHandshakeFailure(transport, reason string) {
	RealtimeHandshakeFailures.WithLabelValues(transport, reason).Inc()
}

// RecordPublish records one Publish call and the number of subscribers it targeted
func RecordPublish(event string, subscribers int) {
	RealtimeEventsPublished.WithLabelValues(event).Inc()
	RealtimeFanoutSize.Observe(float64(subscribers))
}

// RecordDelivery records a successful hand-off to a subscriber
func RecordDelivery(transport string) {
	RealtimeDeliveries.WithLabelValues(transport).Inc()
}

// RecordSendFailure records a failed send that evicted a subscriber
func RecordSendFailure(transport string) {
	RealtimeSendFailures.WithLabelValues(transport).Inc()
}

// RecordInbound records the gate's verdict for one inbound frame
func RecordInbound(result string) {
	RealtimeInboundMessages.WithLabelValues(result).Inc()
}

// RecordHeartbeatSweep records a sweep's duration and how many subscribers it terminated
func RecordHeartbeatSweep(duration time.Duration, terminated int) {
	RealtimeHeartbeatSweepDuration.Observe(duration.Seconds())
	if terminated > 0 {
		RealtimeHeartbeatTerminations.Add(float64(terminated))
	}
}

// RecordMembershipOperation records a membership store operation
func RecordMembershipOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	MembershipOperations.WithLabelValues(operation, status).Inc()
}

// RecordAppInfo publishes the build version once at startup
func RecordAppInfo(version, goVersion string) {
	AppInfo.WithLabelValues(version, goVersion).Set(1)
}

// RecordUptime sets the uptime gauge
func RecordUptime(uptime time.Duration) {
	AppUptime.Set(uptime.Seconds())
}
