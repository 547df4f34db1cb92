// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package playback

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aklyne/reelhouse/internal/logging"
	"github.com/aklyne/reelhouse/internal/models"
)

var errNotFoundForTest = errors.New("record not found")

type fakeMediaStore struct {
	files map[int64]*models.MediaFile
}

func (s *fakeMediaStore) GetMediaFile(id int64) (*models.MediaFile, error) {
	mf, ok := s.files[id]
	if !ok {
		return nil, errNotFoundForTest
	}
	return mf, nil
}

type fakeSessionStore struct {
	sessions  map[string]*models.PlaybackSession
	createErr error
	deleted   []string
}

func (s *fakeSessionStore) CreatePlaybackSession(ps *models.PlaybackSession) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.sessions[ps.ID] = ps
	return nil
}

func (s *fakeSessionStore) GetPlaybackSession(id string) (*models.PlaybackSession, error) {
	ps, ok := s.sessions[id]
	if !ok {
		return nil, errNotFoundForTest
	}
	return ps, nil
}

func (s *fakeSessionStore) DeletePlaybackSession(id string) error {
	s.deleted = append(s.deleted, id)
	delete(s.sessions, id)
	return nil
}

func newTestPlaybackService(t *testing.T, runner Runner) (*Service, *fakeMediaStore, *fakeSessionStore) {
	t.Helper()

	media := &fakeMediaStore{files: map[int64]*models.MediaFile{
		1: {ID: 1, FilePath: "/media/movie.mkv", Container: "matroska", VideoCodec: "h264", Height: 1080},
	}}
	sessions := &fakeSessionStore{sessions: make(map[string]*models.PlaybackSession)}
	preparer := newTestPreparer(t, runner)
	svc := NewService(media, sessions, preparer, errNotFoundForTest, logging.NewTestLogger(os.Stderr))
	return svc, media, sessions
}

func TestCreateSessionPersistsAndPrepares(t *testing.T) {
	t.Parallel()

	svc, _, sessions := newTestPlaybackService(t, &fakeRunner{})

	session, result, err := svc.CreateSession(context.Background(), 1, "user-7")
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	require.Equal(t, int64(1), session.MediaFileID)
	require.Equal(t, "user-7", session.UserSessionID)
	require.Equal(t, models.ModeTranscode, session.PlaybackMode)
	require.Equal(t, "hls-720p", session.ChosenProfile)

	require.Equal(t, models.ModeTranscode, result.Mode)
	require.FileExists(t, result.MasterPlaylistPath)

	stored, err := svc.GetSession(session.ID)
	require.NoError(t, err)
	require.Equal(t, session.ID, stored.ID)
	require.Contains(t, sessions.sessions, session.ID)
}

func TestCreateSessionUnknownMedia(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestPlaybackService(t, &fakeRunner{})
	_, _, err := svc.CreateSession(context.Background(), 999, "user-7")
	require.ErrorIs(t, err, ErrMediaNotFound)
}

func TestCreateSessionRollsBackOnPrepareFailure(t *testing.T) {
	t.Parallel()

	svc, _, sessions := newTestPlaybackService(t, &fakeRunner{err: errors.New("boom")})

	_, _, err := svc.CreateSession(context.Background(), 1, "user-7")
	require.ErrorIs(t, err, ErrTranscodeFailed)

	// The session record created before preparation must not survive.
	require.Len(t, sessions.deleted, 1)
	require.Empty(t, sessions.sessions)
}

func TestCreateSessionUniqueIDs(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestPlaybackService(t, &fakeRunner{})

	a, _, err := svc.CreateSession(context.Background(), 1, "user-7")
	require.NoError(t, err)
	b, _, err := svc.CreateSession(context.Background(), 1, "user-7")
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
}
