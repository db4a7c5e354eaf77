// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package logging

import (
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// HandshakeEvent describes one realtime connection attempt for the security log.
type HandshakeEvent struct {
	// Transport is "sse" or "websocket".
	Transport string
	// ScenarioID is the scenario the client asked for (may be empty).
	ScenarioID string
	// UserID is the authenticated user, if the token was valid.
	UserID string
	// IPAddress is the client IP after RealIP rewriting.
	IPAddress string
	// Accepted reports whether the connection was admitted.
	Accepted bool
	// Reason is a short machine reason for rejections
	// (missing_params, unauthorized, forbidden, capacity_scenario, ...).
	Reason string
	// CloseCode is the WebSocket close code sent on rejection, or the HTTP status for SSE.
	CloseCode int
}

// SecurityLogger writes realtime admission decisions with identifiers masked.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger on the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{
		logger: With().Str("component", "realtime-security").Logger(),
	}
}

// NewSecurityLoggerWithLogger creates a security logger writing to logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With().Str("component", "realtime-security").Logger(),
	}
}

// LogHandshake records an admission decision. Accepted handshakes log at
// debug, rejections at info so abuse is visible at the default level.
func (l *SecurityLogger) LogHandshake(ev *HandshakeEvent) {
	e := l.logger.Info()
	status := "rejected"
	if ev.Accepted {
		e = l.logger.Debug()
		status = "accepted"
	}

	e = e.Str("event", "realtime_handshake").
		Str("status", status).
		Str("transport", ev.Transport)

	if ev.ScenarioID != "" {
		e = e.Str("scenario_id", truncateString(ev.ScenarioID, 128))
	}
	if ev.UserID != "" {
		e = e.Str("user_id", SanitizeUserID(ev.UserID))
	}
	if ev.IPAddress != "" {
		e = e.Str("ip", ev.IPAddress)
	}
	if ev.Reason != "" {
		e = e.Str("reason", ev.Reason)
	}
	if ev.CloseCode != 0 {
		e = e.Int("code", ev.CloseCode)
	}

	e.Msg("realtime handshake")
}

// ============================================================
// Sanitization Functions
// ============================================================

// SanitizeToken masks a token, showing only the first and last 4 characters.
// Example: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9" -> "eyJh...VCJ9"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeUserID masks a user ID.
// Example: "user-12345678" -> "user...5678"
func SanitizeUserID(userID string) string {
	if userID == "" {
		return ""
	}
	if len(userID) <= 8 {
		return "***"
	}
	return userID[:4] + "..." + userID[len(userID)-4:]
}

// sensitiveQueryKeys are query parameters whose values never reach the log.
var sensitiveQueryKeys = map[string]bool{
	"token":         true,
	"access_token":  true,
	"authorization": true,
	"api_key":       true,
}

// SanitizeQuery masks credential parameters in a raw query string. Browser
// WebSocket and EventSource clients pass the bearer token as ?token=, so
// request URLs must go through here before being logged.
func SanitizeQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "***"
	}
	for key, vals := range values {
		if !sensitiveQueryKeys[strings.ToLower(key)] {
			continue
		}
		for i := range vals {
			vals[i] = SanitizeToken(vals[i])
		}
	}
	return values.Encode()
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
