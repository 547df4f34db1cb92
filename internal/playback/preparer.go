// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package playback

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aklyne/reelhouse/internal/models"
)

// MasterPlaylistName is the entry playlist inside every session directory.
const MasterPlaylistName = "master.m3u8"

// PrepareResult describes the artifacts produced for a playback session.
type PrepareResult struct {
	Mode               models.PlaybackMode
	Profile            string
	MasterPlaylistPath string
}

// Preparer materializes the artifact directory for a playback session.
//
// Preparation may take seconds to minutes: it runs to completion (or fails)
// before the session is published, and it holds no locks while the external
// transcoder runs, so concurrent sessions proceed independently. Directory
// exclusivity relies on session ids being allocated uniquely per request.
type Preparer struct {
	outputRoot     string
	ffmpegPath     string
	segmentSeconds int
	selector       *Selector
	runner         Runner
	log            zerolog.Logger
}

// NewPreparer creates a Preparer writing under outputRoot.
func NewPreparer(outputRoot, ffmpegPath string, segmentSeconds int, selector *Selector, runner Runner, log zerolog.Logger) *Preparer {
	return &Preparer{
		outputRoot:     outputRoot,
		ffmpegPath:     ffmpegPath,
		segmentSeconds: segmentSeconds,
		selector:       selector,
		runner:         runner,
		log:            log,
	}
}

// SessionDir returns the artifact directory for a session id.
func (p *Preparer) SessionDir(sessionID string) string {
	return filepath.Join(p.outputRoot, sessionID)
}

// ResolveOutputPath normalizes a requested relative path inside a session's
// directory. It returns ok=false for any path that would resolve outside the
// session sandbox, the mandatory defense against traversal via ".." or
// absolute-looking segments.
func (p *Preparer) ResolveOutputPath(sessionID, relativePath string) (string, bool) {
	sep := string(filepath.Separator)
	clean := strings.TrimLeft(filepath.Clean(filepath.FromSlash(relativePath)), sep)
	base := p.SessionDir(sessionID)
	candidate := filepath.Join(base, clean)
	if candidate != base && !strings.HasPrefix(candidate, base+sep) {
		return "", false
	}
	return candidate, true
}

// PrepareSession wipes and recreates the session directory, then either
// copies through an already-segmented source or invokes the transcoder to
// produce a segmented rendition plus a synthesized master playlist.
func (p *Preparer) PrepareSession(ctx context.Context, media *models.MediaFile, sessionID string) (*PrepareResult, error) {
	mode := p.selector.ChooseMode(media)
	profile := p.selector.ChooseProfile(media)

	sessionDir := p.SessionDir(sessionID)
	// A retried attempt with the same id must never see stale segments.
	if err := os.RemoveAll(sessionDir); err != nil {
		return nil, fmt.Errorf("wipe session dir: %w", err)
	}
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	masterPath := filepath.Join(sessionDir, MasterPlaylistName)

	if mode == models.ModeDirectPlay && IsPlaylistSource(media.FilePath) {
		if err := copyFile(media.FilePath, masterPath); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrSourceMissing, media.FilePath)
			}
			return nil, fmt.Errorf("copy source playlist: %w", err)
		}
		p.log.Info().
			Str("session_id", sessionID).
			Str("mode", string(mode)).
			Msg("prepared direct-play session")
		return &PrepareResult{Mode: mode, Profile: profile.Name, MasterPlaylistPath: masterPath}, nil
	}

	profileDir := filepath.Join(sessionDir, profile.Name)
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}

	args := buildHLSArgs(media.FilePath, profile, p.segmentSeconds, profileDir)
	p.log.Info().
		Str("session_id", sessionID).
		Str("profile", profile.Name).
		Str("input", media.FilePath).
		Msg("starting transcode")

	if err := p.runner.Run(ctx, p.ffmpegPath, args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}

	if err := writeMasterPlaylist(masterPath, profile); err != nil {
		return nil, fmt.Errorf("write master playlist: %w", err)
	}

	p.log.Info().
		Str("session_id", sessionID).
		Str("mode", string(mode)).
		Str("profile", profile.Name).
		Msg("prepared transcoded session")
	return &PrepareResult{Mode: mode, Profile: profile.Name, MasterPlaylistPath: masterPath}, nil
}

// writeMasterPlaylist synthesizes a single-variant master playlist so the
// artifact is consumable by standard adaptive-streaming players.
func writeMasterPlaylist(path string, profile Profile) error {
	content := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-VERSION:3",
		fmt.Sprintf("#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=1280x%d", profile.Bandwidth(), profile.MaxHeight),
		profile.Name + "/index.m3u8",
		"",
	}, "\n")
	return os.WriteFile(path, []byte(content), 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
