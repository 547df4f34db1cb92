// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

// Package playback turns local media files into protected streaming artifacts.
//
// It decides the delivery mode per file, materializes HLS artifacts through
// an external transcoder, signs every artifact URL with an expiring token,
// and rewrites playlists so the token is the only access path to any asset.
package playback

import (
	"strconv"
	"strings"
)

// Profile is an immutable description of one output rendition.
type Profile struct {
	Name         string
	MaxHeight    int
	VideoBitrate string
	AudioBitrate string
}

// Baseline720p is the default rendition. It must always be selectable.
var Baseline720p = Profile{
	Name:         "hls-720p",
	MaxHeight:    720,
	VideoBitrate: "2800k",
	AudioBitrate: "128k",
}

// Bandwidth returns the profile's approximate combined bandwidth in bits per
// second, the value declared in the master playlist's STREAM-INF tag.
func (p Profile) Bandwidth() int {
	return bitrateToBits(p.VideoBitrate) + bitrateToBits(p.AudioBitrate)
}

// bitrateToBits parses ffmpeg-style bitrate strings ("2800k", "2M", "64000")
// into bits per second. Unparseable values count as zero.
func bitrateToBits(v string) int {
	v = strings.ToLower(strings.TrimSpace(v))
	mult := 1
	switch {
	case strings.HasSuffix(v, "k"):
		mult = 1_000
		v = strings.TrimSuffix(v, "k")
	case strings.HasSuffix(v, "m"):
		mult = 1_000_000
		v = strings.TrimSuffix(v, "m")
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n * mult
}
