// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

/*
Package realtime fans scenario events out to live SSE and WebSocket clients.

# Components

  - Registry: the single owner of connection state. It indexes subscribers by
    scenario, user and client IP, enforces per-dimension admission limits and
    is the one place a connection is removed (Terminate).
  - Bus: encodes an event once and delivers it best-effort to every subscriber
    of a scenario. A failed send terminates that subscriber only.
  - Gate: rate-limits and validates inbound WebSocket frames and re-broadcasts
    typing indicators stamped with the authenticated user.
  - Heartbeat: a suture service reaping WebSocket connections that stop
    answering pings (two-tick protocol).
  - WSHandler / SSEHandler: the transport adapters.

# Delivery Model

Delivery is at most once. There is no acknowledgement, replay or backlog; an
event published while a client is disconnected is lost for that client. A
client connected over both transports receives every event on each of them.

# Close Codes

	1001  server shutdown, heartbeat timeout
	1008  missing scenarioId/token, invalid token, not a member
	1009  inbound frame larger than the payload limit
	1011  send failure or handshake error
	1013  capacity exhausted or inbound rate limit exceeded

# Example

	registry := realtime.NewRegistry(realtime.Limits{PerScenario: 200, PerIP: 50, PerUser: 10})
	bus := realtime.NewBus(registry)
	gate := realtime.NewGate(bus, 30)

	r.Handle("/api/v1/realtime", realtime.NewWSHandler(registry, gate, handshake, realtime.WSOptions{
		MaxPayloadBytes: 16 * 1024,
	}))

	bus.Publish("scn-1", realtime.PostCreated{PostID: "p-1", ScenarioID: "scn-1", ProfileID: "pr-1"})
*/
package realtime
