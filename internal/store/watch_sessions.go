// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aklyne/reelhouse/internal/models"
)

// ErrJoinCodeTaken is returned when a generated join code collides with an
// existing session. Callers regenerate and retry.
var ErrJoinCodeTaken = errors.New("store: join code already taken")

const watchSessionColumns = `id, join_code, host_user_id, media_file_id, created_at,
	is_active, is_playing, current_position_seconds, last_state_updated_at`

// CreateWatchSession inserts a watch session and returns it with its id.
func (s *Store) CreateWatchSession(ws *models.WatchSession) (*models.WatchSession, error) {
	defer timed("insert", "watch_sessions")()

	res, err := s.db.Exec(`
		INSERT INTO watch_sessions (join_code, host_user_id, media_file_id, created_at,
			is_active, is_playing, current_position_seconds, last_state_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ws.JoinCode, ws.HostUserID, ws.MediaFileID, timeToMillis(ws.CreatedAt),
		boolToInt(ws.IsActive), boolToInt(ws.IsPlaying), ws.PositionSeconds,
		timeToMillis(ws.LastStateUpdatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrJoinCodeTaken
		}
		return nil, fmt.Errorf("create watch session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create watch session id: %w", err)
	}
	out := *ws
	out.ID = id
	return &out, nil
}

// GetWatchSession returns the watch session with the given id, or ErrNotFound.
func (s *Store) GetWatchSession(id int64) (*models.WatchSession, error) {
	defer timed("select", "watch_sessions")()

	row := s.db.QueryRow(`SELECT `+watchSessionColumns+` FROM watch_sessions WHERE id = ?`, id)
	return scanWatchSession(row)
}

// GetWatchSessionByJoinCode returns the active session with the given code,
// or ErrNotFound. Inactive sessions are not joinable.
func (s *Store) GetWatchSessionByJoinCode(code string) (*models.WatchSession, error) {
	defer timed("select", "watch_sessions")()

	row := s.db.QueryRow(`SELECT `+watchSessionColumns+` FROM watch_sessions WHERE join_code = ? AND is_active = 1`, code)
	return scanWatchSession(row)
}

// ListActiveWatchSessions returns all active sessions.
func (s *Store) ListActiveWatchSessions() ([]models.WatchSession, error) {
	defer timed("select", "watch_sessions")()

	rows, err := s.db.Query(`SELECT ` + watchSessionColumns + ` FROM watch_sessions WHERE is_active = 1`)
	if err != nil {
		return nil, fmt.Errorf("list active watch sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.WatchSession
	for rows.Next() {
		ws, err := scanWatchSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *ws)
	}
	return sessions, rows.Err()
}

// UpdateWatchSessionState writes the authoritative play state back. Only the
// state machine's command handler calls this.
func (s *Store) UpdateWatchSessionState(id int64, isPlaying bool, position float64, updatedAt time.Time) error {
	defer timed("update", "watch_sessions")()

	res, err := s.db.Exec(`
		UPDATE watch_sessions
		SET is_playing = ?, current_position_seconds = ?, last_state_updated_at = ?
		WHERE id = ?`,
		boolToInt(isPlaying), position, timeToMillis(updatedAt), id)
	if err != nil {
		return fmt.Errorf("update watch session state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateWatchSession ends a session and deactivates its participants.
// Records are retained for lookup; nothing is hard-deleted.
func (s *Store) DeactivateWatchSession(id int64) error {
	defer timed("update", "watch_sessions")()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`UPDATE watch_sessions SET is_active = 0 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deactivate watch session: %w", err)
	}
	if _, err := tx.Exec(`UPDATE watch_session_participants SET active = 0 WHERE watch_session_id = ?`, id); err != nil {
		return fmt.Errorf("deactivate participants: %w", err)
	}
	return tx.Commit()
}

// UpsertParticipant records a join, refreshing last-seen if already joined.
func (s *Store) UpsertParticipant(sessionID, userID int64, now time.Time) error {
	defer timed("upsert", "watch_session_participants")()

	_, err := s.db.Exec(`
		INSERT INTO watch_session_participants (watch_session_id, user_id, joined_at, last_seen_at, active)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(watch_session_id, user_id) DO UPDATE SET
			last_seen_at=excluded.last_seen_at,
			active=1`,
		sessionID, userID, timeToMillis(now), timeToMillis(now))
	if err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}
	return nil
}

// TouchParticipant refreshes a participant's last-seen timestamp. Returns
// ErrNotFound if the user has no active join record for the session.
func (s *Store) TouchParticipant(sessionID, userID int64, now time.Time) error {
	defer timed("update", "watch_session_participants")()

	res, err := s.db.Exec(`
		UPDATE watch_session_participants SET last_seen_at = ?
		WHERE watch_session_id = ? AND user_id = ? AND active = 1`,
		timeToMillis(now), sessionID, userID)
	if err != nil {
		return fmt.Errorf("touch participant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsParticipant reports whether the user has an active join record.
func (s *Store) IsParticipant(sessionID, userID int64) (bool, error) {
	defer timed("select", "watch_session_participants")()

	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM watch_session_participants
		WHERE watch_session_id = ? AND user_id = ? AND active = 1`,
		sessionID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("participant lookup: %w", err)
	}
	return true, nil
}

// LastSeenWithin reports whether any participant of the session was seen
// after the cutoff. The drift loop uses this to skip dead sessions.
func (s *Store) LastSeenWithin(sessionID int64, cutoff time.Time) (bool, error) {
	defer timed("select", "watch_session_participants")()

	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM watch_session_participants
		WHERE watch_session_id = ? AND active = 1 AND last_seen_at >= ?
		LIMIT 1`,
		sessionID, timeToMillis(cutoff)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("last seen lookup: %w", err)
	}
	return true, nil
}

func scanWatchSession(row rowScanner) (*models.WatchSession, error) {
	var (
		ws        models.WatchSession
		createdAt int64
		updatedAt int64
		isActive  int
		isPlaying int
	)
	err := row.Scan(&ws.ID, &ws.JoinCode, &ws.HostUserID, &ws.MediaFileID, &createdAt,
		&isActive, &isPlaying, &ws.PositionSeconds, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan watch session: %w", err)
	}
	ws.CreatedAt = millisToTime(createdAt)
	ws.LastStateUpdatedAt = millisToTime(updatedAt)
	ws.IsActive = isActive != 0
	ws.IsPlaying = isPlaying != 0
	return &ws, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
