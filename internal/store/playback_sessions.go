// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/aklyne/reelhouse/internal/models"
)

// CreatePlaybackSession inserts a playback session record.
func (s *Store) CreatePlaybackSession(ps *models.PlaybackSession) error {
	defer timed("insert", "playback_sessions")()

	_, err := s.db.Exec(`
		INSERT INTO playback_sessions (id, media_file_id, user_session_id, started_at, playback_mode, chosen_profile)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ps.ID, ps.MediaFileID, ps.UserSessionID, timeToMillis(ps.StartedAt),
		string(ps.PlaybackMode), ps.ChosenProfile)
	if err != nil {
		return fmt.Errorf("create playback session: %w", err)
	}
	return nil
}

// GetPlaybackSession returns the playback session with the given id, or ErrNotFound.
func (s *Store) GetPlaybackSession(id string) (*models.PlaybackSession, error) {
	defer timed("select", "playback_sessions")()

	var (
		ps        models.PlaybackSession
		startedAt int64
		mode      string
	)
	err := s.db.QueryRow(`
		SELECT id, media_file_id, user_session_id, started_at, playback_mode, chosen_profile
		FROM playback_sessions WHERE id = ?`, id).
		Scan(&ps.ID, &ps.MediaFileID, &ps.UserSessionID, &startedAt, &mode, &ps.ChosenProfile)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get playback session: %w", err)
	}
	ps.StartedAt = millisToTime(startedAt)
	ps.PlaybackMode = models.PlaybackMode(mode)
	return &ps, nil
}

// DeletePlaybackSession removes a playback session record. Used to roll back
// the session when artifact preparation fails.
func (s *Store) DeletePlaybackSession(id string) error {
	defer timed("delete", "playback_sessions")()

	if _, err := s.db.Exec(`DELETE FROM playback_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete playback session: %w", err)
	}
	return nil
}
