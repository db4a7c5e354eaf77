// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/rolestage/internal/api"
	"github.com/tomtom215/rolestage/internal/auth"
	"github.com/tomtom215/rolestage/internal/authz"
	"github.com/tomtom215/rolestage/internal/config"
	"github.com/tomtom215/rolestage/internal/logging"
	"github.com/tomtom215/rolestage/internal/membership"
	"github.com/tomtom215/rolestage/internal/metrics"
	"github.com/tomtom215/rolestage/internal/middleware"
	"github.com/tomtom215/rolestage/internal/realtime"
	"github.com/tomtom215/rolestage/internal/supervisor"
	"github.com/tomtom215/rolestage/internal/supervisor/services"
)

// version is overridden at build time with -ldflags "-X main.version=…".
var version = "dev"

// registryStatsInterval is how often the registry logs its stats line.
const registryStatsInterval = time.Minute

func main() {
	issueToken := flag.String("issue-token", "", "print a signed token for the given user ID and exit")
	flag.Parse()

	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	if *issueToken != "" {
		token, err := jwtManager.GenerateToken(*issueToken)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to issue token")
		}
		fmt.Println(token)
		return
	}

	if err := run(cfg, jwtManager); err != nil {
		logging.Fatal().Err(err).Msg("Server stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config, jwtManager *auth.JWTManager) error {
	logging.Info().
		Str("version", version).
		Str("addr", cfg.Server.Addr()).
		Str("environment", cfg.Server.Environment).
		Msg("Starting rolestage with supervisor tree")
	metrics.RecordAppInfo(version, runtime.Version())

	if cfg.ShouldWarnAboutCORS() && !cfg.IsDevelopment() {
		logging.Warn().
			Str("environment", cfg.Server.Environment).
			Msg("CORS_ORIGINS=* accepts any browser origin; set explicit origins before going to production")
	}
	if len(cfg.Security.TrustedProxies) == 0 {
		logging.Info().Msg("TRUSTED_PROXIES not set: forwarded headers are ignored and per-IP limits use the peer address")
	}

	store, err := membership.Open(cfg.Membership)
	if err != nil {
		return fmt.Errorf("open membership store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing membership store")
		}
	}()

	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{})
	if err != nil {
		return fmt.Errorf("create authorization enforcer: %w", err)
	}
	defer enforcer.Close()

	registry := realtime.NewRegistry(realtime.Limits{
		PerScenario: cfg.Realtime.MaxConnectionsPerScenario,
		PerIP:       cfg.Realtime.MaxConnectionsPerIP,
		PerUser:     cfg.Realtime.MaxConnectionsPerUser,
	})
	bus := realtime.NewBus(registry)
	gate := realtime.NewGate(bus, cfg.Realtime.MaxMessagesPer10s)
	handshake := auth.NewHandshake(jwtManager, store, enforcer)

	chiMw := api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(cfg.Security))
	realIP, err := middleware.NewRealIP(cfg.Security.TrustedProxies)
	if err != nil {
		return fmt.Errorf("configure trusted proxies: %w", err)
	}

	router := api.NewRouter(api.RouterConfig{
		Handler:    api.NewHandler(registry, bus, store, version),
		Auth:       auth.NewMiddleware(jwtManager),
		Middleware: chiMw,
		WebSocket: realtime.NewWSHandler(registry, gate, handshake, realtime.WSOptions{
			MaxPayloadBytes: int64(cfg.Realtime.MaxPayloadBytes),
			SendBuffer:      cfg.Realtime.SendBuffer,
			CheckOrigin:     chiMw.CheckOrigin(),
		}),
		Events: realtime.NewSSEHandler(registry, realtime.SSEOptions{
			KeepAlive:  cfg.Realtime.SSEKeepAlive(),
			SendBuffer: cfg.Realtime.SendBuffer,
			Principal:  auth.UserIDFromRequest,
			ScenarioID: func(r *http.Request) string { return chi.URLParam(r, "scenarioId") },
			Member: func(r *http.Request, userID, scenarioID string) (bool, error) {
				return handshake.Authorize(r.Context(), userID, scenarioID)
			},
		}),
		RealIP:        realIP,
		InternalToken: cfg.Security.InternalAPIToken,
	})

	// No WriteTimeout or ReadTimeout: both would cut long-lived SSE streams.
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	// Realtime layer
	tree.AddRealtimeService(realtime.NewHeartbeat(registry, cfg.Realtime.HeartbeatInterval()))
	tree.AddRealtimeService(services.NewRegistryService(registry, registryStatsInterval))

	// API layer
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout, func() {
		registry.CloseAll(realtime.CloseGoingAway, "server shutting down")
	}))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Received shutdown signal, waiting for supervisor to finish...")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		return treeErr
	}
	return nil
}
