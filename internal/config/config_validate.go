// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	if err := c.validateRealtime(); err != nil {
		return err
	}

	if err := c.validateMembership(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must not be negative")
	}
	return nil
}

// validateSecurity validates security configuration
func (c *Config) validateSecurity() error {
	if err := c.validateJWTSecret(); err != nil {
		return err
	}

	if err := c.validateInternalAPIToken(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	if err := c.validateTrustedProxies(); err != nil {
		return err
	}

	return c.validateRateLimits()
}

// validateJWTSecret validates the JWT secret configuration
func (c *Config) validateJWTSecret() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters for security")
	}
	if containsPlaceholder(c.Security.JWTSecret) {
		return fmt.Errorf("JWT_SECRET contains a placeholder value - generate a secure secret with: openssl rand -base64 32")
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive")
	}
	return nil
}

// validateInternalAPIToken validates the token that guards the producer API
func (c *Config) validateInternalAPIToken() error {
	if c.Security.InternalAPIToken == "" {
		return fmt.Errorf("INTERNAL_API_TOKEN is required")
	}
	if len(c.Security.InternalAPIToken) < 16 {
		return fmt.Errorf("INTERNAL_API_TOKEN must be at least 16 characters")
	}
	if containsPlaceholder(c.Security.InternalAPIToken) {
		return fmt.Errorf("INTERNAL_API_TOKEN contains a placeholder value")
	}
	return nil
}

// validateCORS rejects wildcard CORS in production. Browsers send the bearer
// token on SSE requests, so any origin could subscribe with a stolen token.
func (c *Config) validateCORS() error {
	if c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production. " +
			"Set specific origins: CORS_ORIGINS=https://yourdomain.com,https://app.yourdomain.com " +
			"or use ENVIRONMENT=development for testing purposes")
	}
	return nil
}

// validateTrustedProxies requires every entry to be an IP address or CIDR range.
func (c *Config) validateTrustedProxies() error {
	for _, entry := range c.Security.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if _, err := netip.ParsePrefix(entry); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(entry); err != nil {
			return fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP address or CIDR range", entry)
		}
	}
	return nil
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if CORS configuration has security concerns
// that should be logged at startup
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS()
}

// Rate limit constants
const (
	minRateLimitRequests = 1           // Minimum 1 request allowed
	maxRateLimitRequests = 100000      // Maximum 100K requests per window
	minRateLimitWindow   = time.Second // Minimum 1 second window
	maxRateLimitWindow   = time.Hour   // Maximum 1 hour window
)

// validateRateLimits validates handshake rate limiting bounds.
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}

	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// Realtime bounds
const (
	minHeartbeatIntervalMS = 1000
	maxHeartbeatIntervalMS = 10 * 60 * 1000
	minPayloadBytes        = 256
	maxPayloadBytes        = 1 << 20
	maxSendBuffer          = 65536
)

// validateRealtime validates admission limits and timers. Zero connection
// limits mean unlimited; negative values are rejected.
func (c *Config) validateRealtime() error {
	r := c.Realtime

	limits := []struct {
		env   string
		value int
	}{
		{"MAX_CONNECTIONS_PER_SCENARIO", r.MaxConnectionsPerScenario},
		{"MAX_CONNECTIONS_PER_IP", r.MaxConnectionsPerIP},
		{"MAX_CONNECTIONS_PER_USER", r.MaxConnectionsPerUser},
	}
	for _, l := range limits {
		if l.value < 0 {
			return fmt.Errorf("%s must not be negative (0 = unlimited)", l.env)
		}
	}

	if r.MaxPayloadBytes < minPayloadBytes || r.MaxPayloadBytes > maxPayloadBytes {
		return fmt.Errorf("MAX_PAYLOAD_BYTES must be between %d and %d", minPayloadBytes, maxPayloadBytes)
	}
	if r.HeartbeatIntervalMS < minHeartbeatIntervalMS || r.HeartbeatIntervalMS > maxHeartbeatIntervalMS {
		return fmt.Errorf("HEARTBEAT_INTERVAL_MS must be between %d and %d", minHeartbeatIntervalMS, maxHeartbeatIntervalMS)
	}
	if r.MaxMessagesPer10s < 1 {
		return fmt.Errorf("MAX_MESSAGES_PER_10S must be at least 1")
	}
	if r.SSEKeepAliveMS < 0 {
		return fmt.Errorf("SSE_KEEPALIVE_MS must not be negative (0 = disabled)")
	}
	if r.SendBuffer < 1 || r.SendBuffer > maxSendBuffer {
		return fmt.Errorf("WS_SEND_BUFFER must be between 1 and %d", maxSendBuffer)
	}
	return nil
}

// validateMembership validates the membership store configuration
func (c *Config) validateMembership() error {
	if !c.Membership.InMemory && c.Membership.Path == "" {
		return fmt.Errorf("MEMBERSHIP_PATH is required unless MEMBERSHIP_IN_MEMORY=true")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// IsDevelopment returns true if the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "" || env == "development" || env == "dev"
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// placeholderPatterns defines common placeholder patterns that indicate
// the operator forgot to set a real value.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_SECRET",
	"PLACEHOLDER",
	"TODO",
	"FIXME",
	"XXX",
	"EXAMPLE",
}

// containsPlaceholder checks if a value contains common placeholder patterns
func containsPlaceholder(value string) bool {
	upper := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}
