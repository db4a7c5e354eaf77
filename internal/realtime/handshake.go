// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package realtime

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// Handshake verifies a bearer token and scenario membership before a
// connection is admitted. ok is true iff the token is valid and the user is
// an owner, GM or player of the scenario. err is reserved for failures of the
// check itself (store unavailable), not for rejected credentials.
type Handshake interface {
	Verify(ctx context.Context, token, scenarioID string) (userID string, ok bool, err error)
}

// HandshakeFunc adapts a function to Handshake.
type HandshakeFunc func(ctx context.Context, token, scenarioID string) (string, bool, error)

// Verify calls f.
func (f HandshakeFunc) Verify(ctx context.Context, token, scenarioID string) (string, bool, error) {
	return f(ctx, token, scenarioID)
}

// BearerToken extracts a token from "Authorization: Bearer <token>", falling
// back to the "token" query parameter used by browser WebSocket clients.
func BearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if scheme, token, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	return r.URL.Query().Get("token")
}

// ClientIP returns the request's client address without the port. Behind a
// trusted proxy, the RealIP middleware has already rewritten RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
