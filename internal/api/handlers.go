// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

// Package api provides the HTTP surface: chi routing, request handlers, and
// the websocket upgrade path for watch sessions.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aklyne/reelhouse/internal/auth"
	"github.com/aklyne/reelhouse/internal/config"
	"github.com/aklyne/reelhouse/internal/logging"
	"github.com/aklyne/reelhouse/internal/playback"
	"github.com/aklyne/reelhouse/internal/scanner"
	"github.com/aklyne/reelhouse/internal/store"
	"github.com/aklyne/reelhouse/internal/watch"
)

// Handler carries the dependencies for all API handlers.
//
// Handler methods are split across files:
//   - handlers.go: struct, constructor, websocket upgrader (this file)
//   - helpers.go: respondJSON/respondError and request decoding
//   - handlers_auth.go: register and login
//   - handlers_library.go: media listing and scan trigger
//   - handlers_playback.go: playback sessions and signed asset delivery
//   - handlers_watch.go: watch sessions and the websocket endpoint
//   - handlers_health.go: liveness and readiness
type Handler struct {
	config    *config.Config
	store     *store.Store
	authsvc   *auth.Service
	jwt       *auth.JWTManager
	playback  *playback.Service
	preparer  *playback.Preparer
	tokens    *playback.TokenService
	rewriter  *playback.Rewriter
	watch     *watch.Service
	hub       *watch.Hub
	scanner   *scanner.Scanner
	startTime time.Time
}

// NewHandler wires the API handlers.
func NewHandler(
	cfg *config.Config,
	st *store.Store,
	authsvc *auth.Service,
	jwt *auth.JWTManager,
	playbackSvc *playback.Service,
	preparer *playback.Preparer,
	tokens *playback.TokenService,
	rewriter *playback.Rewriter,
	watchSvc *watch.Service,
	hub *watch.Hub,
	sc *scanner.Scanner,
) *Handler {
	return &Handler{
		config:    cfg,
		store:     st,
		authsvc:   authsvc,
		jwt:       jwt,
		playback:  playbackSvc,
		preparer:  preparer,
		tokens:    tokens,
		rewriter:  rewriter,
		watch:     watchSvc,
		hub:       hub,
		scanner:   sc,
		startTime: time.Now(),
	}
}

// getUpgrader builds the websocket upgrader with origin checking and a
// handshake timeout so slow clients cannot hold sockets open.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates upgrade origins against the configured CORS
// list. Requests without an Origin header come from non-browser clients and
// are allowed; a browser always sends one.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("websocket upgrade rejected from unauthorized origin")
	return false
}
