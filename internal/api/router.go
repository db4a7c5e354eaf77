// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/rolestage/internal/logging"
	"github.com/tomtom215/rolestage/internal/middleware"
)

// Router wires the JSON handlers, the realtime stream endpoints and the
// middleware stack into one chi router.
type Router struct {
	handler       *Handler
	auth          Authenticator
	chiMiddleware *ChiMiddleware
	websocket     http.Handler
	events        http.Handler
	realIP        *middleware.RealIP
	internalToken string
}

// Authenticator guards user-facing routes. *auth.Middleware satisfies it.
type Authenticator interface {
	Authenticate(next http.Handler) http.Handler
}

// RouterConfig holds the dependencies of NewRouter.
type RouterConfig struct {
	Handler       *Handler
	Auth          Authenticator
	Middleware    *ChiMiddleware
	WebSocket     http.Handler // GET /api/v1/realtime
	Events        http.Handler // GET /api/v1/scenarios/{scenarioId}/events
	RealIP        *middleware.RealIP
	InternalToken string
}

// NewRouter creates a router from cfg.
func NewRouter(cfg RouterConfig) *Router {
	mw := cfg.Middleware
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	realIP := cfg.RealIP
	if realIP == nil {
		realIP = &middleware.RealIP{}
	}
	return &Router{
		handler:       cfg.Handler,
		auth:          cfg.Auth,
		chiMiddleware: mw,
		websocket:     cfg.WebSocket,
		events:        cfg.Events,
		realIP:        realIP,
		internalToken: cfg.InternalToken,
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)        // X-Request-ID header and logging context
	r.Use(router.realIP.Handler)       // Client IP, forwarded headers only from trusted proxies
	r.Use(chimiddleware.Recoverer)     // Recover from panics
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight

	// ========================
	// Health and Metrics
	// ========================
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})
	r.Handle("/metrics", promhttp.Handler())

	// ========================
	// Realtime Streams
	// ========================
	// The WebSocket handshake authenticates itself so rejections can be
	// delivered as close codes; SSE relies on the auth middleware.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)

		r.With(router.chiMiddleware.RateLimit("/api/v1/realtime")).
			Get("/realtime", router.websocket.ServeHTTP)

		r.With(router.chiMiddleware.RateLimit("/api/v1/scenarios/{scenarioId}/events"), router.auth.Authenticate).
			Get("/scenarios/{scenarioId}/events", router.events.ServeHTTP)
	})

	// ========================
	// Internal API (CRUD layer)
	// ========================
	r.Route("/internal/v1", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.requireInternalToken)

		r.Route("/scenarios/{scenarioId}", func(r chi.Router) {
			r.Post("/events", router.handler.PublishEvent)
			r.Get("/members", router.handler.ListMembers)
			r.Put("/members/{userId}", router.handler.GrantMember)
			r.Delete("/members/{userId}", router.handler.RevokeMember)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	return r
}

// requireInternalToken admits only callers presenting the shared internal
// token. An unset token locks the routes with 503.
func (router *Router) requireInternalToken(next http.Handler) http.Handler {
	expected := []byte(router.internalToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(expected) == 0 {
			logging.Ctx(r.Context()).Error().Msg("internal API called but INTERNAL_API_TOKEN is not configured")
			NewResponseWriter(w, r).ServiceUnavailable("internal API is not configured")
			return
		}
		given := []byte(r.Header.Get(InternalTokenHeader))
		if subtle.ConstantTimeCompare(given, expected) != 1 {
			logging.Ctx(r.Context()).Warn().Str("remote_addr", r.RemoteAddr).Msg("internal API call with invalid token")
			NewResponseWriter(w, r).Unauthorized("invalid internal token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
