// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

/*
Package middleware provides infrastructure HTTP middleware for the router.

Key Components:

  - RequestID: UUID-based request tracking, feeding logging.Ctx
  - PrometheusMetrics: request count and latency keyed by chi route pattern

Both are plain func(http.Handler) http.Handler values and plug into chi:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

The metrics wrapper forwards http.Flusher and http.Hijacker, so it can sit in
front of the SSE stream and the WebSocket upgrade.
*/
package middleware
