// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aklyne/reelhouse/internal/logging"
	"github.com/aklyne/reelhouse/internal/metrics"
	"github.com/aklyne/reelhouse/internal/models"
	"github.com/aklyne/reelhouse/internal/watch"
)

// CreateWatchSession handles POST /api/v1/watch/sessions.
func (h *Handler) CreateWatchSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}

	var req models.CreateWatchSessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ws, err := h.watch.CreateSession(claims.UserID, req.MediaID)
	if err != nil {
		if errors.Is(err, watch.ErrMediaNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "media file not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create watch session", err)
		return
	}

	respondSuccess(w, http.StatusCreated, models.CreateWatchSessionResponse{
		SessionID: ws.ID,
		JoinCode:  ws.JoinCode,
		JoinURL:   fmt.Sprintf("%s/watch/join/%s", strings.TrimRight(h.config.Server.BaseURL, "/"), ws.JoinCode),
	})
}

// JoinWatchSession handles POST /api/v1/watch/sessions/join.
func (h *Handler) JoinWatchSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}

	var req models.JoinWatchSessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ws, state, err := h.watch.Join(strings.ToUpper(strings.TrimSpace(req.JoinCode)), claims.UserID)
	if err != nil {
		if errors.Is(err, watch.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "no active session for that join code", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to join watch session", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"session": ws,
		"state":   state,
	})
}

// WatchSessionState handles GET /api/v1/watch/{sessionID}/state. The
// position in the response is extrapolated to now, never the raw stored
// value.
func (h *Handler) WatchSessionState(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}
	sessionID, ok := watchSessionID(w, r)
	if !ok {
		return
	}

	if !h.requireParticipant(w, sessionID, claims.UserID) {
		return
	}

	state, err := h.watch.ReadState(sessionID)
	if err != nil {
		if errors.Is(err, watch.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "watch session not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read session state", err)
		return
	}
	respondSuccess(w, http.StatusOK, state)
}

// EndWatchSession handles POST /api/v1/watch/{sessionID}/end.
func (h *Handler) EndWatchSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}
	sessionID, ok := watchSessionID(w, r)
	if !ok {
		return
	}

	if err := h.watch.End(sessionID, claims.UserID); err != nil {
		switch {
		case errors.Is(err, watch.ErrSessionNotFound):
			respondError(w, http.StatusNotFound, "NOT_FOUND", "watch session not found", nil)
		case errors.Is(err, watch.ErrSessionEnded):
			respondError(w, http.StatusConflict, "CONFLICT", "session has already ended", nil)
		case errors.Is(err, watch.ErrNotParticipant):
			respondError(w, http.StatusForbidden, "FORBIDDEN", "not a participant of this session", nil)
		default:
			respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to end watch session", err)
		}
		return
	}
	metrics.RecordWatchCommand("end")
	respondSuccess(w, http.StatusOK, map[string]interface{}{"ended": true})
}

// WatchWebSocket handles GET /api/v1/watch/{sessionID}/ws. The caller must
// already be a participant (joined over HTTP) before upgrading.
func (h *Handler) WatchWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}
	sessionID, ok := watchSessionID(w, r)
	if !ok {
		return
	}

	if !h.requireParticipant(w, sessionID, claims.UserID) {
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Warn().Err(err).Int64("watch_session_id", sessionID).Msg("websocket upgrade failed")
		return
	}

	metrics.WSConnections.Inc()
	conn.SetCloseHandler(func(code int, text string) error {
		metrics.WSConnections.Dec()
		return nil
	})

	client := watch.NewClient(h.hub, h.watch, conn, sessionID, claims.UserID)
	client.Start()

	// Send the current snapshot so a joining client can sync immediately
	// without waiting for the next drift tick.
	if state, err := h.watch.ReadState(sessionID); err == nil {
		h.hub.BroadcastState(sessionID, state)
	}
}

func (h *Handler) requireParticipant(w http.ResponseWriter, sessionID, userID int64) bool {
	ok, err := h.watch.IsParticipant(sessionID, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to check session membership", err)
		return false
	}
	if !ok {
		respondError(w, http.StatusForbidden, "FORBIDDEN", "join the session before connecting", nil)
		return false
	}
	return true
}

func watchSessionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "sessionID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "sessionID must be an integer", nil)
		return 0, false
	}
	return id, true
}
