// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered on the default registry through promauto and
exposed at /metrics by the API router.

# Available Metrics

API Metrics:
  - api_requests_total: Total API requests (counter). Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram). Labels: method, endpoint
  - api_active_requests: In-flight requests (gauge)
  - api_rate_limit_hits_total: httprate rejections (counter). Labels: endpoint

Realtime Metrics:
  - realtime_connections: Admitted subscribers (gauge). Labels: transport
  - realtime_admission_rejections_total: Capacity rejections (counter). Labels: dimension
  - realtime_handshake_failures_total: Pre-admission rejections (counter). Labels: transport, reason
  - realtime_events_published_total: Publish calls (counter). Labels: event
  - realtime_fanout_subscribers: Subscribers per publish (histogram)
  - realtime_deliveries_total: Successful hand-offs (counter). Labels: transport
  - realtime_send_failures_total: Failed sends that evicted a subscriber (counter). Labels: transport
  - realtime_inbound_messages_total: Inbound frames by gate result (counter). Labels: result
  - realtime_heartbeat_terminations_total: Subscribers reaped for a missed pong (counter)
  - realtime_heartbeat_sweep_duration_seconds: Sweep latency (histogram)

Membership Metrics:
  - membership_operations_total: Store operations (counter). Labels: operation, status

# Usage

	metrics.RecordPublish(metrics.EventOther, len(subs))
	metrics.RecordAdmissionRejected(string(capErr.Dimension))
*/
package metrics
