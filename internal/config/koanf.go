// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/reelhouse/config.yaml",
	"/etc/reelhouse/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns built-in defaults, overridden by file and env layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8320,
			BaseURL: "http://localhost:8320",
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "/data/reelhouse.db",
		},
		Media: MediaConfig{
			LibraryRoot:   "/media",
			ScanOnStartup: false,
			FFprobePath:   "ffprobe",
		},
		Playback: PlaybackConfig{
			OutputRoot:     "/data/playback",
			FFmpegPath:     "ffmpeg",
			SegmentSeconds: 6,
			TokenSecret:    "",
			TokenTTL:       10 * time.Minute,
			Profile: ProfileConfig{
				Name:         "hls-720p",
				MaxHeight:    720,
				VideoBitrate: "2800k",
				AudioBitrate: "128k",
			},
		},
		Watch: WatchConfig{
			DriftInterval:      2 * time.Second,
			ReconcileTolerance: time.Second,
			PresenceWindow:     30 * time.Second,
			JoinCodeLength:     6,
		},
		Security: SecurityConfig{
			JWTSecret:      "",
			SessionTimeout: 24 * time.Hour,
			RateLimitReqs:  100,
			RateLimitWin:   time.Minute,
			CORSOrigins:    []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds configuration from layered sources: defaults, then an optional
// YAML config file, then environment variables. The result is validated.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are config paths parsed as comma-separated slices when
// supplied through a single environment variable.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are dropped so random environment noise cannot leak
// into the configuration.
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		"http_host":     "server.host",
		"http_port":     "server.port",
		"http_timeout":  "server.timeout",
		"base_url":      "server.base_url",
		"database_path": "database.path",

		"media_library_root": "media.library_root",
		"scan_on_startup":    "media.scan_on_startup",
		"ffprobe_path":       "media.ffprobe_path",

		"playback_output_root":    "playback.output_root",
		"ffmpeg_path":             "playback.ffmpeg_path",
		"playback_segment_secs":   "playback.segment_seconds",
		"playback_token_secret":   "playback.token_secret",
		"playback_token_ttl":      "playback.token_ttl",
		"profile_name":            "playback.profile.name",
		"profile_max_height":      "playback.profile.max_height",
		"profile_video_bitrate":   "playback.profile.video_bitrate",
		"profile_audio_bitrate":   "playback.profile.audio_bitrate",

		"watch_drift_interval":      "watch.drift_interval",
		"watch_reconcile_tolerance": "watch.reconcile_tolerance",
		"watch_presence_window":     "watch.presence_window",
		"watch_join_code_length":    "watch.join_code_length",

		"jwt_secret":          "security.jwt_secret",
		"session_timeout":     "security.session_timeout",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"cors_origins":        "security.cors_origins",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
