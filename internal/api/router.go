// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aklyne/reelhouse/internal/middleware"
)

// Router builds the HTTP handler tree.
type Router struct {
	handler *Handler
	mw      *ChiMiddleware
}

// NewRouter creates a router around the given handlers and middleware.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	return &Router{handler: handler, mw: mw}
}

// Setup wires all routes.
//
// The asset route sits outside the JWT middleware: players authenticate each
// fetch with the signed token in the URL, never with a header.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.mw.CORS())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.mw.RateLimitHealth())
		r.Use(SecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(router.mw.RateLimitAuth())
		r.Use(SecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Post("/register", router.handler.Register)
		r.Post("/login", router.handler.Login)
	})

	// Token-authorized asset delivery.
	r.Route("/api/v1/playback/{sessionID}/asset", func(r chi.Router) {
		r.Use(router.mw.RateLimitAssets())
		r.Use(SecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Get("/*", router.handler.PlaybackAsset)
	})

	// JWT-authenticated API.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.mw.RateLimitAPI())
		r.Use(SecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.handler.jwt.Middleware)

		r.Get("/library", router.handler.ListMedia)
		r.Get("/library/{mediaID}", router.handler.GetMedia)
		r.Post("/library/scan", router.handler.ScanLibrary)

		r.Post("/playback/sessions", router.handler.CreatePlaybackSession)

		r.Post("/watch/sessions", router.handler.CreateWatchSession)
		r.Post("/watch/sessions/join", router.handler.JoinWatchSession)
		r.Get("/watch/{sessionID}/state", router.handler.WatchSessionState)
		r.Post("/watch/{sessionID}/end", router.handler.EndWatchSession)
		r.Get("/watch/{sessionID}/ws", router.handler.WatchWebSocket)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
