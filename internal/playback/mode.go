// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package playback

import (
	"strings"

	"github.com/aklyne/reelhouse/internal/models"
)

// Containers and codecs a stock HLS player consumes without re-encoding.
var (
	directPlayContainers = map[string]bool{"mp4": true, "mov": true}
	directPlayCodecs     = map[string]bool{"h264": true, "hevc": true}
)

// Selector decides how a media file is delivered. Both methods are pure
// functions of the file's technical metadata.
type Selector struct {
	profile Profile
}

// NewSelector creates a Selector for the given baseline profile.
func NewSelector(profile Profile) *Selector {
	return &Selector{profile: profile}
}

// ChooseMode returns direct-play for sources that are already segmented
// playlists, or that fit inside the baseline profile with an accepted
// container and video codec. Everything else is transcoded.
func (s *Selector) ChooseMode(media *models.MediaFile) models.PlaybackMode {
	if IsPlaylistSource(media.FilePath) {
		return models.ModeDirectPlay
	}
	if media.Height > 0 && media.Height <= s.profile.MaxHeight &&
		directPlayContainers[strings.ToLower(media.Container)] &&
		directPlayCodecs[strings.ToLower(media.VideoCodec)] {
		return models.ModeDirectPlay
	}
	return models.ModeTranscode
}

// ChooseProfile returns the rendition to prepare for the file. A single
// baseline rung today; the extension point for multi-rung ladders.
func (s *Selector) ChooseProfile(_ *models.MediaFile) Profile {
	return s.profile
}

// IsPlaylistSource reports whether the source is already a segmented playlist.
func IsPlaylistSource(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".m3u8")
}
