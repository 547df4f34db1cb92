// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aklyne/reelhouse/internal/models"
)

// ErrMediaNotFound indicates the requested media id has no library record.
var ErrMediaNotFound = errors.New("playback: media not found")

// MediaStore is the slice of persistence the playback engine reads from.
type MediaStore interface {
	GetMediaFile(id int64) (*models.MediaFile, error)
}

// SessionStore persists playback session records.
type SessionStore interface {
	CreatePlaybackSession(ps *models.PlaybackSession) error
	GetPlaybackSession(id string) (*models.PlaybackSession, error)
	DeletePlaybackSession(id string) error
}

// Service orchestrates playback session creation: id allocation, record
// persistence, artifact preparation, and rollback when preparation fails.
type Service struct {
	media    MediaStore
	sessions SessionStore
	preparer *Preparer
	notFound error
	log      zerolog.Logger
}

// NewService creates the playback service. notFound is the store's sentinel
// for missing records, mapped to ErrMediaNotFound at this boundary.
func NewService(media MediaStore, sessions SessionStore, preparer *Preparer, notFound error, log zerolog.Logger) *Service {
	return &Service{media: media, sessions: sessions, preparer: preparer, notFound: notFound, log: log}
}

// CreateSession prepares playback for a media file. The session record is
// created first so the artifact directory has an owner, and deleted again if
// preparation fails so no orphaned records survive.
func (svc *Service) CreateSession(ctx context.Context, mediaID int64, userSessionID string) (*models.PlaybackSession, *PrepareResult, error) {
	media, err := svc.media.GetMediaFile(mediaID)
	if err != nil {
		if errors.Is(err, svc.notFound) {
			return nil, nil, fmt.Errorf("%w: id %d", ErrMediaNotFound, mediaID)
		}
		return nil, nil, err
	}

	// Ids must be unique before preparation: two sessions sharing an id
	// would wipe each other's artifact directory.
	session := &models.PlaybackSession{
		ID:            uuid.NewString(),
		MediaFileID:   media.ID,
		UserSessionID: userSessionID,
		StartedAt:     time.Now().UTC(),
	}

	profile := svc.preparer.selector.ChooseProfile(media)
	session.PlaybackMode = svc.preparer.selector.ChooseMode(media)
	session.ChosenProfile = profile.Name

	if err := svc.sessions.CreatePlaybackSession(session); err != nil {
		return nil, nil, err
	}

	result, err := svc.preparer.PrepareSession(ctx, media, session.ID)
	if err != nil {
		svc.rollback(session.ID)
		return nil, nil, err
	}

	return session, result, nil
}

// GetSession returns a previously created playback session.
func (svc *Service) GetSession(id string) (*models.PlaybackSession, error) {
	return svc.sessions.GetPlaybackSession(id)
}

// rollback removes the session record and any partial artifacts so a failed
// preparation leaves nothing behind.
func (svc *Service) rollback(sessionID string) {
	if err := svc.sessions.DeletePlaybackSession(sessionID); err != nil {
		svc.log.Error().Err(err).Str("session_id", sessionID).Msg("playback session rollback failed")
	}
	if err := os.RemoveAll(svc.preparer.SessionDir(sessionID)); err != nil {
		svc.log.Error().Err(err).Str("session_id", sessionID).Msg("artifact cleanup failed")
	}
}
