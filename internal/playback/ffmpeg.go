// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package playback

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Runner executes the external transcoder. Abstracted so artifact
// preparation is testable without a real ffmpeg binary.
type Runner interface {
	Run(ctx context.Context, name string, args []string) error
}

// ExecRunner runs the transcoder as a subprocess.
type ExecRunner struct{}

// Run executes the command and waits for completion. A non-zero exit is
// returned as an error carrying the tail of the combined output.
func (ExecRunner) Run(ctx context.Context, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (output: %s)", name, err, tail(output, 2048))
	}
	return nil
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}

// buildHLSArgs constructs the transcoder invocation that scales to the
// profile's height preserving aspect ratio, encodes at the profile's
// bitrates, and segments into fixed-duration chunks tagged as VOD.
func buildHLSArgs(inputPath string, profile Profile, segmentSeconds int, outputDir string) []string {
	mediaPlaylist := filepath.Join(outputDir, "index.m3u8")
	segmentPattern := filepath.Join(outputDir, "segment_%03d.ts")

	return []string{
		"-y",
		"-nostdin",
		"-hide_banner",
		"-i", inputPath,
		"-vf", fmt.Sprintf("scale=-2:%d", profile.MaxHeight),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-b:v", profile.VideoBitrate,
		"-maxrate", profile.VideoBitrate,
		"-bufsize", "2M",
		"-c:a", "aac",
		"-b:a", profile.AudioBitrate,
		"-ac", "2",
		"-f", "hls",
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", segmentPattern,
		mediaPlaylist,
	}
}
