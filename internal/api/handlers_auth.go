// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package api

import (
	"errors"
	"net/http"

	"github.com/aklyne/reelhouse/internal/auth"
	"github.com/aklyne/reelhouse/internal/models"
)

// Register handles POST /api/v1/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, token, err := h.authsvc.Register(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) {
			respondError(w, http.StatusConflict, "CONFLICT", "username already taken", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to register user", err)
		return
	}

	respondSuccess(w, http.StatusCreated, models.AuthResponse{
		Token:     token,
		Username:  user.Username,
		ExpiresIn: int(h.config.Security.SessionTimeout.Seconds()),
	})
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, token, err := h.authsvc.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid username or password", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "login failed", err)
		return
	}

	respondSuccess(w, http.StatusOK, models.AuthResponse{
		Token:     token,
		Username:  user.Username,
		ExpiresIn: int(h.config.Security.SessionTimeout.Seconds()),
	})
}
