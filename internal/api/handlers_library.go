// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aklyne/reelhouse/internal/models"
	"github.com/aklyne/reelhouse/internal/store"
)

// ListMedia handles GET /api/v1/library.
func (h *Handler) ListMedia(w http.ResponseWriter, r *http.Request) {
	files, err := h.store.ListMediaFiles()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list media", err)
		return
	}
	respondSuccess(w, http.StatusOK, models.ListResponse{Items: files, Total: len(files)})
}

// GetMedia handles GET /api/v1/library/{mediaID}.
func (h *Handler) GetMedia(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "mediaID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "mediaID must be an integer", nil)
		return
	}

	media, err := h.store.GetMediaFile(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "media file not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load media", err)
		return
	}
	respondSuccess(w, http.StatusOK, media)
}

// ScanLibrary handles POST /api/v1/library/scan. The scan runs inline; for
// a self-hosted library this is seconds, not minutes.
func (h *Handler) ScanLibrary(w http.ResponseWriter, r *http.Request) {
	result, err := h.scanner.Scan(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "library scan failed", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"files_seen":    result.FilesSeen,
		"files_indexed": result.FilesAdded,
		"probe_errors":  result.ProbeErrors,
		"duration_ms":   result.Duration.Milliseconds(),
	})
}
