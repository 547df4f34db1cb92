// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// setRequiredSecrets fills the two secrets that have no defaults so Load
// passes validation.
func setRequiredSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("PLAYBACK_TOKEN_SECRET", testSecret)
	t.Setenv("JWT_SECRET", testSecret)
}

func TestLoadDefaults(t *testing.T) {
	setRequiredSecrets(t)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 8320, cfg.Server.Port)
	require.Equal(t, "0.0.0.0:8320", cfg.ListenAddr())
	require.Equal(t, "/data/reelhouse.db", cfg.Database.Path)
	require.Equal(t, 6, cfg.Playback.SegmentSeconds)
	require.Equal(t, 10*time.Minute, cfg.Playback.TokenTTL)
	require.Equal(t, "hls-720p", cfg.Playback.Profile.Name)
	require.Equal(t, 2*time.Second, cfg.Watch.DriftInterval)
	require.Equal(t, time.Second, cfg.Watch.ReconcileTolerance)
	require.Equal(t, 30*time.Second, cfg.Watch.PresenceWindow)
	require.Equal(t, 6, cfg.Watch.JoinCodeLength)
	require.Equal(t, []string{"*"}, cfg.Security.CORSOrigins)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	setRequiredSecrets(t)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("MEDIA_LIBRARY_ROOT", "/srv/media")
	t.Setenv("WATCH_DRIFT_INTERVAL", "5s")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, "/srv/media", cfg.Media.LibraryRoot)
	require.Equal(t, 5*time.Second, cfg.Watch.DriftInterval)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Security.CORSOrigins)
}

func TestLoadConfigFile(t *testing.T) {
	setRequiredSecrets(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8443\nlogging:\n  level: debug\n"), 0o644))
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8443, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	setRequiredSecrets(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8443\n"), 0o644))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9001")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9001, cfg.Server.Port)
}

func TestLoadRejectsMissingSecrets(t *testing.T) {
	t.Setenv("PLAYBACK_TOKEN_SECRET", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestUnmappedEnvVarsAreDropped(t *testing.T) {
	setRequiredSecrets(t)
	t.Setenv("PATH_INFO", "noise")
	t.Setenv("SERVER_SOFTWARE", "noise")

	_, err := Load()
	require.NoError(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		cfg := defaultConfig()
		cfg.Playback.TokenSecret = testSecret
		cfg.Security.JWTSecret = testSecret
		return cfg
	}

	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 0 }},
		{"missing database path", func(c *Config) { c.Database.Path = "" }},
		{"missing output root", func(c *Config) { c.Playback.OutputRoot = "" }},
		{"short token secret", func(c *Config) { c.Playback.TokenSecret = "short" }},
		{"non-positive token ttl", func(c *Config) { c.Playback.TokenTTL = 0 }},
		{"non-positive segment seconds", func(c *Config) { c.Playback.SegmentSeconds = 0 }},
		{"incomplete profile", func(c *Config) { c.Playback.Profile.VideoBitrate = "" }},
		{"short jwt secret", func(c *Config) { c.Security.JWTSecret = "short" }},
		{"non-positive drift interval", func(c *Config) { c.Watch.DriftInterval = 0 }},
		{"non-positive tolerance", func(c *Config) { c.Watch.ReconcileTolerance = 0 }},
		{"presence window below drift interval", func(c *Config) { c.Watch.PresenceWindow = time.Second }},
		{"join code too short", func(c *Config) { c.Watch.JoinCodeLength = 3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
