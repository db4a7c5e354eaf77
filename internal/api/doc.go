// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

/*
Package api provides the HTTP layer of the realtime service.

It mounts the two realtime stream endpoints owned by the realtime package and
adds the JSON endpoints around them:

 1. Health and metrics:
    - GET /api/v1/health/live
    - GET /api/v1/health/ready (503 once shutdown has begun)
    - GET /metrics (Prometheus)

 2. Realtime streams (rate limited per client IP):
    - GET /api/v1/realtime?scenarioId=…&token=… (WebSocket)
    - GET /api/v1/scenarios/{scenarioId}/events (SSE, bearer/cookie/query token)

 3. Internal API for the CRUD layer (X-Internal-Token required):
    - POST   /internal/v1/scenarios/{scenarioId}/events
    - GET    /internal/v1/scenarios/{scenarioId}/members
    - PUT    /internal/v1/scenarios/{scenarioId}/members/{userId}
    - DELETE /internal/v1/scenarios/{scenarioId}/members/{userId}

Response Format:

All JSON endpoints use the APIResponse envelope:

	{
	  "success": true,
	  "data": {...},
	  "meta": {"request_id": "…", "timestamp": "…"}
	}

Errors carry a machine-readable code (BAD_REQUEST, UNAUTHORIZED,
VALIDATION_ERROR, …) in "error". Stream endpoints do not use the envelope once
the stream has started.

Middleware Stack:

Global: request ID, chi RealIP, chi Recoverer, go-chi/cors. Route groups add
Prometheus request metrics, go-chi/httprate limits and authentication.
*/
package api
