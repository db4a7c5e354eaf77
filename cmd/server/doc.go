// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

/*
Package main is the entry point for the rolestage realtime server.

The server pushes scenario events (posts, messages, conversations, mentions,
typing indicators) to connected clients over WebSocket and server-sent events.
The CRUD layer publishes events and keeps scenario memberships in sync through
a token-protected internal API.

# Application Architecture

	RootSupervisor ("rolestage")
	├── RealtimeSupervisor ("realtime-layer")
	│   ├── Heartbeat monitor (WebSocket ping/pong sweep)
	│   └── Registry lifecycle (closes every connection on shutdown)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (chi router)

Component initialization order:

 1. Configuration: koanf v2 with defaults, optional YAML file, environment
 2. Logging: zerolog with JSON/console output modes
 3. Membership store: BadgerDB (on disk, or in memory for development)
 4. Authorization: Casbin with the embedded RBAC model
 5. Realtime core: registry, bus, inbound gate, handshake
 6. Supervisor tree and HTTP server

# Configuration

Required:
  - JWT_SECRET: 32+ character secret for token signing
  - INTERNAL_API_TOKEN: shared secret for /internal routes (16+ characters)

Realtime limits:
  - MAX_CONNECTIONS_PER_SCENARIO (default 200)
  - MAX_CONNECTIONS_PER_IP (default 50)
  - MAX_CONNECTIONS_PER_USER (default 10)
  - MAX_PAYLOAD_BYTES (default 16384)
  - HEARTBEAT_INTERVAL_MS (default 30000)
  - MAX_MESSAGES_PER_10S (default 30)

# Signal Handling

SIGINT and SIGTERM cancel the root context. Every realtime connection is
closed with 1001 (going away), the heartbeat stops, and the HTTP server drains
within SHUTDOWN_TIMEOUT.

# Example Usage

Development with an in-memory membership store:

	export JWT_SECRET=$(openssl rand -base64 32)
	export INTERNAL_API_TOKEN=$(openssl rand -hex 16)
	export MEMBERSHIP_IN_MEMORY=true
	./rolestage

Issue a token for local testing and exit:

	./rolestage -issue-token user-123
*/
package main
