// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package models

import "time"

// APIResponse is the uniform JSON envelope returned by every API endpoint.
//
// Success:
//
//	{"status": "success", "data": {...}, "metadata": {"timestamp": "..."}}
//
// Error:
//
//	{"status": "error", "data": null, "error": {"code": "NOT_FOUND", "message": "..."}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response metadata.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError is a structured error payload with a machine-readable code.
//
// Codes in use: VALIDATION_ERROR, NOT_FOUND, UNAUTHORIZED, FORBIDDEN,
// CONFLICT, PREPARATION_FAILED, INTERNAL_ERROR.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ListResponse wraps library listings.
type ListResponse struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
}

// CreatePlaybackSessionRequest starts playback for a media file.
type CreatePlaybackSessionRequest struct {
	MediaID int64 `json:"media_id" validate:"required,min=1"`
}

// CreatePlaybackSessionResponse describes the prepared playback session.
type CreatePlaybackSessionResponse struct {
	SessionID       string `json:"session_id"`
	Mode            string `json:"mode"`
	Profile         string `json:"profile"`
	MasterURL       string `json:"master_url"`
	TokenTTLSeconds int    `json:"token_ttl_seconds"`
}

// CreateWatchSessionRequest starts a shared watch session.
type CreateWatchSessionRequest struct {
	MediaID int64 `json:"media_id" validate:"required,min=1"`
}

// CreateWatchSessionResponse carries the shareable join information.
type CreateWatchSessionResponse struct {
	SessionID int64  `json:"session_id"`
	JoinCode  string `json:"join_code"`
	JoinURL   string `json:"join_url"`
}

// JoinWatchSessionRequest joins an active session by code.
type JoinWatchSessionRequest struct {
	JoinCode string `json:"join_code" validate:"required,min=4,max=16"`
}

// RegisterRequest creates a user account.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest authenticates a user.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse carries a session token after register/login.
type AuthResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresIn int    `json:"expires_in_seconds"`
}
