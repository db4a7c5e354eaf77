// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

/*
Package supervisor provides suture-based process supervision.

The tree has two layers under one root:

	rolestage (root)
	├── realtime-layer
	│   ├── heartbeat         (*realtime.Heartbeat)
	│   └── realtime-registry (services.RegistryService)
	└── api-layer
	    └── http-server       (services.HTTPServerService)

A service that returns an error is restarted with suture's backoff. A
service returning ctx.Err() after cancellation is treated as stopped.

Supervisor events are logged through sutureslog on top of the zerolog-backed
slog handler from the logging package.

Example:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddRealtimeService(realtime.NewHeartbeat(registry, cfg.Realtime.HeartbeatInterval()))
	tree.AddRealtimeService(services.NewRegistryService(registry, time.Minute))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout, drain))
	err = tree.Serve(ctx)
*/
package supervisor
