// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

// Package config loads and validates application configuration.
//
// Configuration is layered with koanf: struct defaults, then an optional
// YAML config file, then environment variables. Environment variables win.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the server binary.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Media    MediaConfig    `koanf:"media"`
	Playback PlaybackConfig `koanf:"playback"`
	Watch    WatchConfig    `koanf:"watch"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	// BaseURL is the externally reachable URL prefix used when building
	// signed asset URLs and shareable watch-session join links.
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// MediaConfig holds library scanner settings.
type MediaConfig struct {
	// LibraryRoot is the directory tree scanned for media files.
	LibraryRoot string `koanf:"library_root"`
	// ScanOnStartup triggers a library scan when the process starts.
	ScanOnStartup bool `koanf:"scan_on_startup"`
	// FFprobePath is the ffprobe binary used for technical metadata.
	FFprobePath string `koanf:"ffprobe_path"`
}

// ProfileConfig describes one output rendition.
type ProfileConfig struct {
	Name         string `koanf:"name"`
	MaxHeight    int    `koanf:"max_height"`
	VideoBitrate string `koanf:"video_bitrate"`
	AudioBitrate string `koanf:"audio_bitrate"`
}

// PlaybackConfig holds artifact preparation and asset token settings.
type PlaybackConfig struct {
	// OutputRoot is where per-session artifact directories are created.
	OutputRoot string `koanf:"output_root"`
	// FFmpegPath is the transcoder binary.
	FFmpegPath string `koanf:"ffmpeg_path"`
	// SegmentSeconds is the fixed HLS segment duration.
	SegmentSeconds int `koanf:"segment_seconds"`
	// TokenSecret signs asset tokens. Required, minimum 32 characters.
	TokenSecret string `koanf:"token_secret"`
	// TokenTTL is how long a signed asset token stays valid. Tokens are
	// stateless and cannot be revoked, so keep this short.
	TokenTTL time.Duration `koanf:"token_ttl"`
	Profile  ProfileConfig `koanf:"profile"`
}

// WatchConfig holds watch-session state machine and drift loop settings.
type WatchConfig struct {
	// DriftInterval is how often authoritative state is rebroadcast to
	// live sessions with no user-initiated commands.
	DriftInterval time.Duration `koanf:"drift_interval"`
	// ReconcileTolerance is the maximum client/server position divergence
	// accepted before the server forces a correcting seek.
	ReconcileTolerance time.Duration `koanf:"reconcile_tolerance"`
	// PresenceWindow bounds how recently a participant must have been seen
	// for its session to receive drift corrections.
	PresenceWindow time.Duration `koanf:"presence_window"`
	// JoinCodeLength is the length of generated human-shareable join codes.
	JoinCodeLength int `koanf:"join_code_length"`
}

// SecurityConfig holds authentication and rate limiting settings.
type SecurityConfig struct {
	// JWTSecret signs user session tokens. Required, minimum 32 characters.
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
	RateLimitReqs  int           `koanf:"rate_limit_reqs"`
	RateLimitWin   time.Duration `koanf:"rate_limit_window"`
	CORSOrigins    []string      `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// minSecretLength is the minimum accepted length for signing secrets.
const minSecretLength = 32

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Playback.OutputRoot == "" {
		return fmt.Errorf("playback.output_root is required")
	}
	if len(c.Playback.TokenSecret) < minSecretLength {
		return fmt.Errorf("playback.token_secret must be at least %d characters", minSecretLength)
	}
	if c.Playback.TokenTTL <= 0 {
		return fmt.Errorf("playback.token_ttl must be positive")
	}
	if c.Playback.SegmentSeconds <= 0 {
		return fmt.Errorf("playback.segment_seconds must be positive")
	}
	if p := c.Playback.Profile; p.Name == "" || p.MaxHeight <= 0 || p.VideoBitrate == "" || p.AudioBitrate == "" {
		return fmt.Errorf("playback.profile is incomplete")
	}
	if len(c.Security.JWTSecret) < minSecretLength {
		return fmt.Errorf("security.jwt_secret must be at least %d characters", minSecretLength)
	}
	if c.Watch.DriftInterval <= 0 {
		return fmt.Errorf("watch.drift_interval must be positive")
	}
	if c.Watch.ReconcileTolerance <= 0 {
		return fmt.Errorf("watch.reconcile_tolerance must be positive")
	}
	if c.Watch.PresenceWindow < c.Watch.DriftInterval {
		return fmt.Errorf("watch.presence_window must be at least watch.drift_interval")
	}
	if c.Watch.JoinCodeLength < 4 {
		return fmt.Errorf("watch.join_code_length must be at least 4")
	}
	return nil
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
