// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aklyne/reelhouse/internal/metrics"
	"github.com/aklyne/reelhouse/internal/models"
	"github.com/aklyne/reelhouse/internal/playback"
)

// CreatePlaybackSession handles POST /api/v1/playback/sessions. It decides
// the playback mode, prepares the HLS artifacts, and returns a tokened
// master playlist URL.
func (h *Handler) CreatePlaybackSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}

	var req models.CreatePlaybackSessionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	start := time.Now()
	session, prep, err := h.playback.CreateSession(r.Context(), req.MediaID, strconv.FormatInt(claims.UserID, 10))
	if err != nil {
		if errors.Is(err, playback.ErrMediaNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "media file not found", nil)
			return
		}
		metrics.RecordPlaybackPreparation("", 0, err)
		respondError(w, http.StatusInternalServerError, "PREPARATION_FAILED", "failed to prepare playback artifacts", err)
		return
	}
	metrics.RecordPlaybackPreparation(string(session.PlaybackMode), time.Since(start), nil)

	masterURL, err := h.rewriter.AssetURL(session.ID, playback.MasterPlaylistName)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to sign master playlist URL", err)
		return
	}

	respondSuccess(w, http.StatusCreated, models.CreatePlaybackSessionResponse{
		SessionID:       session.ID,
		Mode:            string(session.PlaybackMode),
		Profile:         prep.Profile,
		MasterURL:       masterURL,
		TokenTTLSeconds: int(h.config.Playback.TokenTTL.Seconds()),
	})
}

// PlaybackAsset handles GET /api/v1/playback/{sessionID}/asset/*. Access is
// authorized solely by the signed token; the handler is mounted outside the
// JWT middleware so players can fetch segments with plain GETs.
func (h *Handler) PlaybackAsset(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	rel := chi.URLParam(r, "*")
	token := r.URL.Query().Get("token")

	if token == "" {
		metrics.RecordAssetRequest("rejected")
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing asset token", nil)
		return
	}
	if !h.tokens.Verify(token, h.config.Playback.TokenTTL, sessionID, rel) {
		metrics.RecordAssetRequest("rejected")
		respondError(w, http.StatusForbidden, "FORBIDDEN", "invalid or expired asset token", nil)
		return
	}

	// The token binds the exact path, but resolution still sandboxes it so a
	// signing bug can never become a directory traversal. Rejections read as
	// not-found so the response never reveals what exists outside the sandbox.
	fullPath, ok := h.preparer.ResolveOutputPath(sessionID, rel)
	if !ok {
		metrics.RecordAssetRequest("rejected")
		respondError(w, http.StatusNotFound, "NOT_FOUND", "asset not found", nil)
		return
	}

	switch {
	case strings.HasSuffix(rel, ".m3u8"):
		h.servePlaylist(w, r, sessionID, rel, fullPath)
	case strings.HasSuffix(rel, ".ts"):
		w.Header().Set("Content-Type", "video/mp2t")
		h.serveFile(w, r, fullPath)
	default:
		h.serveFile(w, r, fullPath)
	}
}

// servePlaylist rewrites every media reference in a playlist into a signed
// asset URL before serving it.
func (h *Handler) servePlaylist(w http.ResponseWriter, r *http.Request, sessionID, rel, fullPath string) {
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			metrics.RecordAssetRequest("not_found")
			respondError(w, http.StatusNotFound, "NOT_FOUND", "asset not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to read playlist", err)
		return
	}

	rewritten, err := h.rewriter.Rewrite(sessionID, string(data), rel)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to rewrite playlist", err)
		return
	}

	metrics.RecordAssetRequest("served")
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(rewritten))
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, fullPath string) {
	if _, err := os.Stat(fullPath); err != nil {
		metrics.RecordAssetRequest("not_found")
		respondError(w, http.StatusNotFound, "NOT_FOUND", "asset not found", nil)
		return
	}
	metrics.RecordAssetRequest("served")
	http.ServeFile(w, r, fullPath)
}
