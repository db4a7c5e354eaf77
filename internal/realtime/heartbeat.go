// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package realtime

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/rolestage/internal/logging"
	"github.com/tomtom215/rolestage/internal/metrics"
)

// Heartbeat reaps half-open WebSocket connections with a two-tick protocol:
// each sweep terminates subscribers that have not answered since the previous
// sweep and pings the rest. A connection that never answers is gone within two
// intervals; one that answers every ping is never terminated.
//
// SSE subscribers do not take part; their liveness comes from the HTTP
// request context.
type Heartbeat struct {
	registry *Registry
	interval time.Duration
	logger   zerolog.Logger
}

// NewHeartbeat creates a monitor sweeping registry every interval.
func NewHeartbeat(registry *Registry, interval time.Duration) *Heartbeat {
	return &Heartbeat{
		registry: registry,
		interval: interval,
		logger:   logging.WithComponent("heartbeat"),
	}
}

// Serve runs the sweep loop until ctx is canceled. It implements suture.Service.
func (h *Heartbeat) Serve(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Info().Dur("interval", h.interval).Msg("heartbeat monitor started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Msg("heartbeat monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			h.Sweep()
		}
	}
}

// Sweep runs one heartbeat pass and returns how many subscribers it terminated.
func (h *Heartbeat) Sweep() int {
	start := time.Now()
	terminated, pinged := 0, 0

	for _, sub := range h.registry.Heartbeaters() {
		if !sub.ResetAlive() {
			h.registry.Terminate(sub, CloseGoingAway, "heartbeat timeout")
			terminated++
			continue
		}
		if err := sub.Ping(); err != nil {
			// The next sweep terminates it if no pong arrives.
			h.logger.Debug().Err(err).Str("conn_id", sub.ID()).Msg("ping failed")
			continue
		}
		pinged++
	}

	metrics.RecordHeartbeatSweep(time.Since(start), terminated)
	if terminated > 0 {
		h.logger.Info().Int("terminated", terminated).Int("pinged", pinged).Msg("heartbeat sweep reaped connections")
	}
	return terminated
}

// String returns the service name for supervisor logs.
func (h *Heartbeat) String() string {
	return "heartbeat-monitor"
}
