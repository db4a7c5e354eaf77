// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/rolestage/internal/logging"
	"github.com/tomtom215/rolestage/internal/membership"
)

// MembershipReader looks up a user's role in a scenario.
type MembershipReader interface {
	Role(ctx context.Context, scenarioID, userID string) (membership.Role, error)
}

// RoleAuthorizer decides whether a role may open a realtime stream.
type RoleAuthorizer interface {
	CanSubscribe(role string) (bool, error)
}

// Handshake verifies realtime connection attempts: a valid token, membership
// of the scenario, and a role the policy allows to subscribe.
type Handshake struct {
	tokens  *JWTManager
	members MembershipReader
	authz   RoleAuthorizer
}

// NewHandshake composes token validation, membership and authorization.
func NewHandshake(tokens *JWTManager, members MembershipReader, authz RoleAuthorizer) *Handshake {
	return &Handshake{tokens: tokens, members: members, authz: authz}
}

// Verify returns the token's user and whether it may subscribe to scenarioID.
// Rejected credentials are reported with ok=false and a nil error; err is
// only set when a check could not be performed.
func (h *Handshake) Verify(ctx context.Context, token, scenarioID string) (string, bool, error) {
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("realtime token rejected")
		return "", false, nil
	}

	userID := claims.UserID()
	ok, err := h.Authorize(ctx, userID, scenarioID)
	if err != nil {
		return "", false, err
	}
	return userID, ok, nil
}

// Authorize reports whether an already authenticated user may subscribe to
// scenarioID.
func (h *Handshake) Authorize(ctx context.Context, userID, scenarioID string) (bool, error) {
	role, err := h.members.Role(ctx, scenarioID, userID)
	if errors.Is(err, membership.ErrNotMember) || errors.Is(err, membership.ErrInvalidID) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("membership lookup: %w", err)
	}

	allowed, err := h.authz.CanSubscribe(string(role))
	if err != nil {
		return false, fmt.Errorf("authorize %s: %w", role, err)
	}
	return allowed, nil
}
