// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

// Package metrics registers the Prometheus instruments for playback
// preparation, asset delivery, watch-session activity, and the API surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Playback preparation metrics
	PlaybackSessionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playback_sessions_created_total",
			Help: "Total number of playback sessions created",
		},
		[]string{"mode"}, // "direct-play", "transcode"
	)

	PlaybackPreparationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "playback_preparation_duration_seconds",
			Help:    "Duration of HLS artifact preparation in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"mode"},
	)

	PlaybackPreparationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playback_preparation_errors_total",
			Help: "Total number of failed playback preparations",
		},
	)

	// Asset delivery metrics
	AssetRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playback_asset_requests_total",
			Help: "Total number of playback asset requests",
		},
		[]string{"result"}, // "served", "rejected", "not_found"
	)

	AssetTokenRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playback_token_rejections_total",
			Help: "Total number of asset requests rejected for an invalid or expired token",
		},
	)

	// Watch session metrics
	WatchSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watch_sessions_active",
			Help: "Current number of active watch sessions",
		},
	)

	WatchCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watch_commands_total",
			Help: "Total number of watch session commands applied",
		},
		[]string{"command"}, // "play", "pause", "seek", "state_sync", "end"
	)

	WatchDriftCorrections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watch_drift_corrections_total",
			Help: "Total number of implicit seeks issued to drifting clients",
		},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	// Database metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlite_query_duration_seconds",
			Help:    "Duration of SQLite queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	// Library scanner metrics
	ScannerFilesSeen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scanner_files_seen_total",
			Help: "Total number of media files visited by library scans",
		},
	)

	ScannerFilesProbed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanner_files_probed_total",
			Help: "Total number of ffprobe runs by outcome",
		},
		[]string{"result"}, // "ok", "error"
	)

	ScannerLastRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scanner_last_run_timestamp",
			Help: "Unix timestamp of the last completed library scan",
		},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordPlaybackPreparation records one preparation attempt.
func RecordPlaybackPreparation(mode string, duration time.Duration, err error) {
	if err != nil {
		PlaybackPreparationErrors.Inc()
		return
	}
	PlaybackSessionsCreated.WithLabelValues(mode).Inc()
	PlaybackPreparationDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordAssetRequest records one asset fetch by outcome.
func RecordAssetRequest(result string) {
	AssetRequestsTotal.WithLabelValues(result).Inc()
	if result == "rejected" {
		AssetTokenRejections.Inc()
	}
}

// RecordWatchCommand records one applied watch command.
func RecordWatchCommand(command string) {
	WatchCommandsTotal.WithLabelValues(command).Inc()
}

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
