// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/rolestage/internal/logging"
	"github.com/tomtom215/rolestage/internal/realtime"
)

// Registry is the part of *realtime.Registry the lifecycle service needs.
type Registry interface {
	Stats() realtime.Stats
	CloseAll(code int, reason string) int
}

// RegistryService owns the registry's lifetime inside the supervisor tree.
// While running it logs a stats line every interval; when the tree stops it
// closes every subscriber with 1001 and refuses further admissions.
type RegistryService struct {
	registry Registry
	interval time.Duration
	logger   zerolog.Logger
	name     string
}

// NewRegistryService creates the registry lifecycle service. A non-positive
// interval disables the periodic stats line.
func NewRegistryService(registry Registry, interval time.Duration) *RegistryService {
	return &RegistryService{
		registry: registry,
		interval: interval,
		logger:   logging.WithComponent("registry"),
		name:     "realtime-registry",
	}
}

// Serve implements suture.Service. It returns ctx.Err() after closing the
// registry.
func (s *RegistryService) Serve(ctx context.Context) error {
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			closed := s.registry.CloseAll(realtime.CloseGoingAway, "server shutting down")
			s.logger.Info().Int("closed", closed).Msg("registry closed")
			return ctx.Err()
		case <-tick:
			stats := s.registry.Stats()
			s.logger.Debug().
				Int("connections", stats.Connections).
				Int("scenarios", stats.Scenarios).
				Int("users", stats.Users).
				Int("client_ips", stats.ClientIPs).
				Interface("by_transport", stats.ByTransport).
				Msg("registry stats")
		}
	}
}

// String implements fmt.Stringer for logging.
func (s *RegistryService) String() string {
	return s.name
}
