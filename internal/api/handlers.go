// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package api

import (
	"context"
	"time"

	"github.com/tomtom215/rolestage/internal/membership"
	"github.com/tomtom215/rolestage/internal/realtime"
)

// MembershipManager is the membership surface the internal API writes through.
// *membership.Store satisfies it.
type MembershipManager interface {
	Grant(ctx context.Context, scenarioID, userID string, role membership.Role) error
	Revoke(ctx context.Context, scenarioID, userID string) (bool, error)
	Members(ctx context.Context, scenarioID string) ([]membership.Record, error)
}

// Handler holds the dependencies of the JSON endpoints. The realtime stream
// endpoints are separate http.Handlers owned by the realtime package.
type Handler struct {
	registry  *realtime.Registry
	bus       *realtime.Bus
	members   MembershipManager
	version   string
	startTime time.Time
}

// NewHandler creates the JSON endpoint handler.
func NewHandler(registry *realtime.Registry, bus *realtime.Bus, members MembershipManager, version string) *Handler {
	return &Handler{
		registry:  registry,
		bus:       bus,
		members:   members,
		version:   version,
		startTime: time.Now(),
	}
}
