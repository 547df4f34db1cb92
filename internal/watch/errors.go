// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package watch

import "errors"

var (
	// ErrSessionNotFound indicates an unknown or inactive watch session.
	ErrSessionNotFound = errors.New("watch: session not found")

	// ErrMediaNotFound indicates the target media id has no library record.
	ErrMediaNotFound = errors.New("watch: media not found")

	// ErrNotParticipant indicates the caller has no active join record for
	// the session. Commands from non-participants mutate nothing.
	ErrNotParticipant = errors.New("watch: caller is not a participant")

	// ErrSessionEnded indicates a command against a deactivated session.
	ErrSessionEnded = errors.New("watch: session has ended")
)
