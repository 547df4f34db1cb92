// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

// Package models defines the domain entities shared across the application.
package models

import "time"

// PlaybackMode is how a media file is delivered to a player.
type PlaybackMode string

const (
	// ModeDirectPlay serves a source's existing segmented stream without re-encoding.
	ModeDirectPlay PlaybackMode = "direct-play"
	// ModeTranscode re-encodes a source into a new segmented rendition.
	ModeTranscode PlaybackMode = "transcode"
)

// User is an account that can host and join watch sessions.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// MediaFile is a scanned library entry. The technical fields (container,
// codecs, resolution) come from the scanner's ffprobe pass and drive the
// playback mode decision.
type MediaFile struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	FilePath      string     `json:"file_path"`
	FileSize      int64      `json:"file_size,omitempty"`
	Duration      float64    `json:"duration_seconds,omitempty"`
	LastModified  *time.Time `json:"last_modified,omitempty"`
	MediaType     string     `json:"media_type,omitempty"`
	ThumbnailPath string     `json:"thumbnail_path,omitempty"`
	Container     string     `json:"container,omitempty"`
	Bitrate       int64      `json:"bitrate,omitempty"`
	Width         int        `json:"width,omitempty"`
	Height        int        `json:"height,omitempty"`
	FPS           float64    `json:"fps,omitempty"`
	VideoCodec    string     `json:"video_codec,omitempty"`
	AudioCodec    string     `json:"audio_codec,omitempty"`
	Channels      int        `json:"channels,omitempty"`
	SampleRate    int        `json:"sample_rate,omitempty"`
	SubtitleCount int        `json:"subtitle_count,omitempty"`
}

// MediaStream is one elementary stream inside a media file.
type MediaStream struct {
	ID          int64   `json:"id"`
	MediaFileID int64   `json:"media_file_id"`
	StreamIndex int     `json:"stream_index"`
	CodecType   string  `json:"codec_type,omitempty"`
	CodecName   string  `json:"codec_name,omitempty"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	Channels    int     `json:"channels,omitempty"`
	SampleRate  int     `json:"sample_rate,omitempty"`
	Bitrate     int64   `json:"bitrate,omitempty"`
	FPS         float64 `json:"fps,omitempty"`
	Language    string  `json:"language,omitempty"`
	Title       string  `json:"title,omitempty"`
}

// PlaybackSession records one playback request and the artifact directory
// that belongs to it. The record is deleted if artifact preparation fails so
// no session ever points at a half-built directory.
type PlaybackSession struct {
	ID            string       `json:"id"`
	MediaFileID   int64        `json:"media_file_id"`
	UserSessionID string       `json:"user_session_id"`
	StartedAt     time.Time    `json:"started_at"`
	PlaybackMode  PlaybackMode `json:"playback_mode"`
	ChosenProfile string       `json:"chosen_profile"`
}

// WatchSession is shared, group-scoped playback state. The stored position is
// only directly trustworthy at LastStateUpdatedAt; any later read must
// extrapolate by elapsed wall-clock time while playing.
type WatchSession struct {
	ID                 int64     `json:"id"`
	JoinCode           string    `json:"join_code"`
	HostUserID         int64     `json:"host_user_id"`
	MediaFileID        int64     `json:"media_file_id"`
	CreatedAt          time.Time `json:"created_at"`
	IsActive           bool      `json:"is_active"`
	IsPlaying          bool      `json:"is_playing"`
	PositionSeconds    float64   `json:"current_position_seconds"`
	LastStateUpdatedAt time.Time `json:"last_state_updated_at"`
}

// WatchSessionParticipant binds a user to a watch session. LastSeenAt is
// refreshed on every join and accepted command; the drift-correction loop
// uses it to decide which sessions are still live.
type WatchSessionParticipant struct {
	ID             int64     `json:"id"`
	WatchSessionID int64     `json:"watch_session_id"`
	UserID         int64     `json:"user_id"`
	JoinedAt       time.Time `json:"joined_at"`
	LastSeenAt     time.Time `json:"last_seen_at"`
}

// WatchState is the authoritative state snapshot sent to participants.
type WatchState struct {
	SessionID       int64   `json:"session_id"`
	MediaFileID     int64   `json:"media_file_id"`
	IsPlaying       bool    `json:"is_playing"`
	PositionSeconds float64 `json:"position_seconds"`
	ServerTime      string  `json:"server_time"`
}
