// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

/*
Package config provides layered configuration loading for Rolestage.

Configuration is assembled with Koanf v2 from three layers, later layers
overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: CONFIG_PATH, ./config.yaml, /etc/rolestage/config.yaml
 3. Environment variables, mapped explicitly in envMappings

Realtime knobs:

	MAX_CONNECTIONS_PER_SCENARIO  default 200 (0 = unlimited)
	MAX_CONNECTIONS_PER_IP        default 50
	MAX_CONNECTIONS_PER_USER      default 10
	MAX_PAYLOAD_BYTES             default 16384
	HEARTBEAT_INTERVAL_MS         default 30000
	MAX_MESSAGES_PER_10S          default 30
	SSE_KEEPALIVE_MS              default 25000 (0 = disabled)
	WS_SEND_BUFFER                default 256 queued events per connection

JWT_SECRET and INTERNAL_API_TOKEN have no defaults and must be set.
*/
package config
