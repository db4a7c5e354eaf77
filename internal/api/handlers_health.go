// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/rolestage/internal/metrics"
	"github.com/tomtom215/rolestage/internal/realtime"
)

// LivenessStatus is returned by /health/live.
type LivenessStatus struct {
	Status  string  `json:"status"`
	Version string  `json:"version,omitempty"`
	Uptime  float64 `json:"uptime_seconds"`
}

// ReadinessStatus is returned by /health/ready.
type ReadinessStatus struct {
	Status   string         `json:"status"`
	Realtime realtime.Stats `json:"realtime"`
}

// HealthLive reports that the process is up. It never touches dependencies so
// orchestrators do not restart a pod that is merely draining.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	metrics.RecordUptime(uptime)
	NewResponseWriter(w, r).Success(LivenessStatus{
		Status:  "alive",
		Version: h.version,
		Uptime:  uptime.Seconds(),
	})
}

// HealthReady reports whether new realtime connections are accepted. Once the
// registry has been closed for shutdown the endpoint returns 503.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	stats := h.registry.Stats()
	if stats.Closed {
		NewResponseWriter(w, r).ErrorWithDetails(http.StatusServiceUnavailable,
			ErrCodeServiceUnavailable, "shutting down", ReadinessStatus{Status: "draining", Realtime: stats})
		return
	}
	NewResponseWriter(w, r).Success(ReadinessStatus{Status: "ready", Realtime: stats})
}
