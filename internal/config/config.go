// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from defaults, an optional
// config file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in values for every setting
//  2. Config File: Optional YAML config file (config.yaml or CONFIG_PATH)
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//   - Server: HTTP listener and shutdown behaviour
//   - Security: bearer tokens, internal producer token, CORS, handshake throttling
//   - Realtime: admission limits, heartbeat, inbound rate limit, payload size
//   - Membership: BadgerDB store backing the scenario membership handshake
//   - Logging: level, format, caller info
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	heartbeat := realtime.NewHeartbeat(registry, cfg.Realtime.HeartbeatInterval())
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Security   SecurityConfig   `koanf:"security"`
	Realtime   RealtimeConfig   `koanf:"realtime"`
	Membership MembershipConfig `koanf:"membership"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // "development", "staging", "production"
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds authentication and request throttling settings.
//
// JWTSecret signs and verifies the bearer tokens clients present on the
// SSE and WebSocket handshakes. InternalAPIToken guards the producer API
// that the CRUD backend uses to publish events and sync memberships.
// TrustedProxies lists the reverse proxies (addresses or CIDR ranges) whose
// X-Forwarded-For and X-Real-IP headers are believed; empty means none.
type SecurityConfig struct {
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	InternalAPIToken  string        `koanf:"internal_api_token"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	TrustedProxies    []string      `koanf:"trusted_proxies"`
}

// RealtimeConfig holds the fan-out limits. Millisecond fields keep the
// names operators already use (HEARTBEAT_INTERVAL_MS); use the Duration
// accessors in code.
type RealtimeConfig struct {
	MaxConnectionsPerScenario int `koanf:"max_connections_per_scenario"`
	MaxConnectionsPerIP       int `koanf:"max_connections_per_ip"`
	MaxConnectionsPerUser     int `koanf:"max_connections_per_user"`
	MaxPayloadBytes           int `koanf:"max_payload_bytes"`
	HeartbeatIntervalMS       int `koanf:"heartbeat_interval_ms"`
	MaxMessagesPer10s         int `koanf:"max_messages_per_10s"`
	SSEKeepAliveMS            int `koanf:"sse_keepalive_ms"`
	SendBuffer                int `koanf:"send_buffer"`
}

// HeartbeatInterval returns the WebSocket heartbeat sweep interval.
func (r RealtimeConfig) HeartbeatInterval() time.Duration {
	return time.Duration(r.HeartbeatIntervalMS) * time.Millisecond
}

// SSEKeepAlive returns the interval between SSE keep-alive comments.
// Zero disables keep-alive comments.
func (r RealtimeConfig) SSEKeepAlive() time.Duration {
	return time.Duration(r.SSEKeepAliveMS) * time.Millisecond
}

// MembershipConfig holds the BadgerDB membership store settings.
type MembershipConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, the optional config file and
// environment variables, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
