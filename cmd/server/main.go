// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

// Package main is the entry point for the Reelhouse server.
//
// Reelhouse is a self-hosted media server: it indexes a local media library,
// prepares HLS artifacts through an external transcoder, protects every
// streaming asset with signed expiring tokens, and synchronizes group
// playback through watch sessions over websockets.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered koanf sources (defaults, YAML file, environment)
//  2. Logging: zerolog, configured from the loaded settings
//  3. Store: SQLite database with schema migration on open
//  4. Library scanner: optional startup scan of the media root via ffprobe
//  5. Auth: bcrypt credential store plus JWT session tokens
//  6. Playback: mode selection, ffmpeg preparation, asset token signing
//  7. Watch: session state machine, websocket hub, drift-correction loop
//  8. Supervisor tree: messaging layer (hub, drift loop) and api layer (HTTP)
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP server
// stops accepting connections and drains in-flight requests, the hub closes
// all websocket clients, and the database connection is closed last.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aklyne/reelhouse/internal/api"
	"github.com/aklyne/reelhouse/internal/auth"
	"github.com/aklyne/reelhouse/internal/config"
	"github.com/aklyne/reelhouse/internal/logging"
	"github.com/aklyne/reelhouse/internal/playback"
	"github.com/aklyne/reelhouse/internal/scanner"
	"github.com/aklyne/reelhouse/internal/store"
	"github.com/aklyne/reelhouse/internal/supervisor"
	"github.com/aklyne/reelhouse/internal/watch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("library_root", cfg.Media.LibraryRoot).
		Str("output_root", cfg.Playback.OutputRoot).
		Msg("Configuration loaded")

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Library scanner. The API can trigger rescans at any time; the startup
	// scan just makes a fresh install usable immediately.
	sc := scanner.New(cfg.Media.LibraryRoot, st, scanner.ExecProber{Binary: cfg.Media.FFprobePath}, logging.Logger())
	if cfg.Media.ScanOnStartup {
		result, err := sc.Scan(ctx)
		if err != nil {
			logging.Warn().Err(err).Msg("Startup library scan failed")
		} else {
			logging.Info().
				Int("files_seen", result.FilesSeen).
				Int("files_indexed", result.FilesAdded).
				Int("probe_errors", result.ProbeErrors).
				Dur("duration", result.Duration).
				Msg("Startup library scan complete")
		}
	}

	// Authentication.
	jwtManager, err := auth.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.SessionTimeout)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	authService := auth.NewService(st, jwtManager, store.ErrNotFound, store.ErrUsernameTaken)

	// Playback pipeline.
	tokens, err := playback.NewTokenService(cfg.Playback.TokenSecret)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize asset token service")
	}
	profile := playback.Profile{
		Name:         cfg.Playback.Profile.Name,
		MaxHeight:    cfg.Playback.Profile.MaxHeight,
		VideoBitrate: cfg.Playback.Profile.VideoBitrate,
		AudioBitrate: cfg.Playback.Profile.AudioBitrate,
	}
	selector := playback.NewSelector(profile)
	preparer := playback.NewPreparer(
		cfg.Playback.OutputRoot,
		cfg.Playback.FFmpegPath,
		cfg.Playback.SegmentSeconds,
		selector,
		playback.ExecRunner{},
		logging.Logger(),
	)
	rewriter := playback.NewRewriter(cfg.Server.BaseURL, tokens)
	playbackService := playback.NewService(st, st, preparer, store.ErrNotFound, logging.Logger())

	// Watch sessions.
	watchService := watch.NewService(
		st, st, store.ErrNotFound,
		cfg.Watch.ReconcileTolerance,
		cfg.Watch.JoinCodeLength,
		logging.Logger(),
	)
	hub := watch.NewHub()
	watchService.SetBroadcaster(hub)
	drift := watch.NewDriftCorrector(
		watchService, hub,
		cfg.Watch.DriftInterval,
		cfg.Watch.PresenceWindow,
		logging.Logger(),
	)

	// HTTP surface.
	var rateLimit *api.RateLimitConfig
	if cfg.Security.RateLimitReqs > 0 {
		rateLimit = &api.RateLimitConfig{
			Requests: cfg.Security.RateLimitReqs,
			Window:   cfg.Security.RateLimitWin,
		}
	}
	mw := api.NewChiMiddleware(cfg.Security.CORSOrigins, rateLimit)
	handler := api.NewHandler(cfg, st, authService, jwtManager, playbackService, preparer, tokens, rewriter, watchService, hub, sc)
	router := api.NewRouter(handler, mw)

	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Supervisor tree.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMessagingService(supervisor.NewHubService(hub))
	tree.AddMessagingService(drift)
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor has fully stopped.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Reelhouse stopped gracefully")
}
