// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

/*
Package services provides suture.Service wrappers for the service's long-lived
components.

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Runs a drain hook before Shutdown so SSE requests end promptly
  - Configurable shutdown timeout

Registry (RegistryService):
  - Logs registry stats periodically
  - Closes every subscriber with 1001 when the tree stops

The heartbeat monitor (*realtime.Heartbeat) implements suture.Service itself
and needs no wrapper.

# Shutdown

On context cancellation each wrapper stops its component and returns
ctx.Err(), which suture treats as a normal stop rather than a failure.
*/
package services
