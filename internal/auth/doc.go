// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

/*
Package auth authenticates realtime clients.

Key Components:

  - JWTManager: HMAC-SHA256 token issue and validation. The subject claim is
    the user ID; tokens without one are rejected.
  - Middleware: HTTP middleware for the SSE route. The token is read from the
    Authorization header, then the "token" cookie, then the "token" query
    parameter, because browser EventSource cannot set headers.
  - Handshake: the WebSocket handshake check. It validates the token, looks up
    the user's role in the scenario and asks the authorization policy whether
    that role may subscribe.

Handshake outcomes:

	token invalid or expired      -> ok=false, err=nil  (close 1008)
	not a member of the scenario  -> ok=false, err=nil  (close 1008)
	membership store failure      -> ok=false, err!=nil (close 1011)

Example:

	tokens, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
	    return err
	}
	handshake := auth.NewHandshake(tokens, store, enforcer)
	userID, ok, err := handshake.Verify(ctx, token, scenarioID)
*/
package auth
