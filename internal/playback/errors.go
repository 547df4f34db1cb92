// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package playback

import "errors"

var (
	// ErrSourceMissing indicates the media file no longer exists on disk.
	ErrSourceMissing = errors.New("playback: media source does not exist")

	// ErrTranscodeFailed indicates the external transcoder exited non-zero.
	// Fatal for the session; the caller must roll back the session record.
	ErrTranscodeFailed = errors.New("playback: transcode failed")
)
