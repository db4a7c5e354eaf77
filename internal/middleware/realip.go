// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/tomtom215/rolestage/internal/logging"
)

// RealIP resolves the client address behind reverse proxies. Forwarding
// headers are honoured only when the direct peer is a trusted proxy, so a
// client connecting directly cannot choose the address that per-IP limits
// and rate limiting see. The zero value trusts nobody.
type RealIP struct {
	trusted []netip.Prefix
}

// NewRealIP creates a RealIP trusting the given proxies. Entries are single
// addresses ("10.0.0.5") or CIDR ranges ("10.0.0.0/8").
func NewRealIP(trustedProxies []string) (*RealIP, error) {
	m := &RealIP{}
	for _, entry := range trustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		prefix, err := parseTrustedProxy(entry)
		if err != nil {
			return nil, err
		}
		m.trusted = append(m.trusted, prefix)
	}
	return m, nil
}

// parseTrustedProxy parses a trusted proxy entry as a CIDR range or a single address.
func parseTrustedProxy(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Handler rewrites r.RemoteAddr to the resolved client address and adds it
// to the request logger.
func (m *RealIP) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := m.ClientIP(r)
		if host, port, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != ip {
			r.RemoteAddr = net.JoinHostPort(ip, port)
		}

		ctx := r.Context()
		logger := logging.LoggerFromContext(ctx).With().Str("client_ip", ip).Logger()
		next.ServeHTTP(w, r.WithContext(logging.ContextWithLogger(ctx, logger)))
	})
}

// ClientIP returns the client address for r. X-Forwarded-For is walked from
// the right, skipping trusted hops, so entries a client prepended itself are
// never used. X-Real-IP is the fallback.
func (m *RealIP) ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !m.isTrusted(peer) {
		return host
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			if !m.isTrusted(addr) || i == 0 {
				return addr.Unmap().String()
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.Unmap().String()
		}
	}

	return host
}

func (m *RealIP) isTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range m.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
