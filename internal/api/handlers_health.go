// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package api

import (
	"net/http"
	"time"
)

// HealthLive handles GET /api/v1/health/live. Always 200 while the process
// can serve requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{"status": "alive"})
}

// HealthReady handles GET /api/v1/health/ready. Ready means the database
// answers.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "INTERNAL_ERROR", "database not reachable", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{"status": "ready"})
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbOK := h.store.Ping(r.Context()) == nil
	status := "healthy"
	code := http.StatusOK
	if !dbOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	respondSuccess(w, code, map[string]interface{}{
		"status":         status,
		"database":       dbOK,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}
