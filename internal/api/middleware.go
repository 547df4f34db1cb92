// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// RateLimitConfig defines rate limit parameters for a route group.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Per-group rate limits. Auth endpoints are strict against credential
// stuffing; asset delivery is permissive because a single player fetches a
// segment every few seconds plus playlist refreshes.
var (
	rateLimitAuth   = RateLimitConfig{Requests: 10, Window: time.Minute}
	rateLimitAPI    = RateLimitConfig{Requests: 100, Window: time.Minute}
	rateLimitAssets = RateLimitConfig{Requests: 600, Window: time.Minute}
	rateLimitHealth = RateLimitConfig{Requests: 1000, Window: time.Minute}
)

// ChiMiddleware builds the shared middleware for the router from config.
type ChiMiddleware struct {
	cors      func(http.Handler) http.Handler
	disabled  bool
	overrides *RateLimitConfig
}

// NewChiMiddleware creates the middleware factory. A zero rate limit request
// count in the override disables limiting, which tests rely on.
func NewChiMiddleware(corsOrigins []string, override *RateLimitConfig) *ChiMiddleware {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           86400,
	})

	m := &ChiMiddleware{cors: corsHandler, overrides: override}
	if override != nil && override.Requests == 0 {
		m.disabled = true
	}
	return m
}

// CORS returns the configured CORS handler.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

func (m *ChiMiddleware) rateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if m.disabled {
		return func(next http.Handler) http.Handler { return next }
	}
	if m.overrides != nil {
		cfg = *m.overrides
	}
	return httprate.LimitByIP(cfg.Requests, cfg.Window)
}

// RateLimitAuth limits register/login attempts.
func (m *ChiMiddleware) RateLimitAuth() func(http.Handler) http.Handler {
	return m.rateLimit(rateLimitAuth)
}

// RateLimitAPI is the default API limit.
func (m *ChiMiddleware) RateLimitAPI() func(http.Handler) http.Handler {
	return m.rateLimit(rateLimitAPI)
}

// RateLimitAssets limits segment and playlist fetches.
func (m *ChiMiddleware) RateLimitAssets() func(http.Handler) http.Handler {
	return m.rateLimit(rateLimitAssets)
}

// RateLimitHealth limits health probes.
func (m *ChiMiddleware) RateLimitHealth() func(http.Handler) http.Handler {
	return m.rateLimit(rateLimitHealth)
}

// SecurityHeaders adds the standard hardening headers to API responses.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
