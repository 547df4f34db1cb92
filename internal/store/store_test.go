// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/aklyne/reelhouse/internal/metrics"
	"github.com/aklyne/reelhouse/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "reelhouse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reelhouse.db")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	// Reopening applies the schema again without error.
	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Ping(context.Background()))
	require.NoError(t, s2.Close())
}

func TestUserLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

	u, err := s.CreateUser("alice", "hash-1", now)
	require.NoError(t, err)
	require.NotZero(t, u.ID)
	require.Equal(t, "alice", u.Username)
	require.Equal(t, now, u.CreatedAt)

	got, err := s.GetUserByUsername("alice")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, "hash-1", got.PasswordHash)

	byID, err := s.GetUser(u.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)

	_, err = s.CreateUser("alice", "hash-2", now)
	require.ErrorIs(t, err, ErrUsernameTaken)

	_, err = s.GetUserByUsername("nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMediaFileUpsert(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	modified := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := s.UpsertMediaFile(&models.MediaFile{
		Title:        "Big Buck Bunny",
		FilePath:     "/media/bbb.mp4",
		FileSize:     1 << 20,
		Duration:     596.5,
		LastModified: &modified,
		MediaType:    "video",
		Container:    "mp4",
		VideoCodec:   "h264",
		Width:        1280,
		Height:       720,
		FPS:          24,
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	// Same path updates in place and keeps the id.
	id2, err := s.UpsertMediaFile(&models.MediaFile{
		Title:     "Big Buck Bunny (remastered)",
		FilePath:  "/media/bbb.mp4",
		MediaType: "video",
		Height:    1080,
	})
	require.NoError(t, err)
	require.Equal(t, id, id2)

	got, err := s.GetMediaFile(id)
	require.NoError(t, err)
	require.Equal(t, "Big Buck Bunny (remastered)", got.Title)
	require.Equal(t, 1080, got.Height)

	files, err := s.ListMediaFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)

	_, err = s.GetMediaFile(9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReplaceMediaStreams(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	id, err := s.UpsertMediaFile(&models.MediaFile{Title: "a", FilePath: "/media/a.mkv"})
	require.NoError(t, err)

	err = s.ReplaceMediaStreams(id, []models.MediaStream{
		{StreamIndex: 0, CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080, FPS: 23.976},
		{StreamIndex: 1, CodecType: "audio", CodecName: "aac", Channels: 2, SampleRate: 48000},
	})
	require.NoError(t, err)

	// Replacing again must not accumulate rows.
	err = s.ReplaceMediaStreams(id, []models.MediaStream{
		{StreamIndex: 0, CodecType: "video", CodecName: "hevc"},
	})
	require.NoError(t, err)
}

func TestPlaybackSessionLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	mediaID, err := s.UpsertMediaFile(&models.MediaFile{Title: "a", FilePath: "/media/a.mp4"})
	require.NoError(t, err)

	ps := &models.PlaybackSession{
		ID:            "9f1c9f2e-0000-4000-8000-000000000001",
		MediaFileID:   mediaID,
		UserSessionID: "42",
		StartedAt:     time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC),
		PlaybackMode:  models.ModeTranscode,
		ChosenProfile: "hls-720p",
	}
	require.NoError(t, s.CreatePlaybackSession(ps))

	got, err := s.GetPlaybackSession(ps.ID)
	require.NoError(t, err)
	require.Equal(t, ps.MediaFileID, got.MediaFileID)
	require.Equal(t, models.ModeTranscode, got.PlaybackMode)
	require.Equal(t, "hls-720p", got.ChosenProfile)
	require.Equal(t, ps.StartedAt, got.StartedAt)

	require.NoError(t, s.DeletePlaybackSession(ps.ID))
	_, err = s.GetPlaybackSession(ps.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWatchSessionLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	host, err := s.CreateUser("host", "hash", time.Now().UTC())
	require.NoError(t, err)
	mediaID, err := s.UpsertMediaFile(&models.MediaFile{Title: "a", FilePath: "/media/a.mp4"})
	require.NoError(t, err)

	start := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	ws, err := s.CreateWatchSession(&models.WatchSession{
		JoinCode:           "AB12CD",
		HostUserID:         host.ID,
		MediaFileID:        mediaID,
		CreatedAt:          start,
		IsActive:           true,
		IsPlaying:          false,
		PositionSeconds:    0,
		LastStateUpdatedAt: start,
	})
	require.NoError(t, err)
	require.NotZero(t, ws.ID)

	// Join-code uniqueness maps to the dedicated sentinel.
	_, err = s.CreateWatchSession(&models.WatchSession{
		JoinCode: "AB12CD", HostUserID: host.ID, MediaFileID: mediaID,
		CreatedAt: start, IsActive: true, LastStateUpdatedAt: start,
	})
	require.ErrorIs(t, err, ErrJoinCodeTaken)

	byCode, err := s.GetWatchSessionByJoinCode("AB12CD")
	require.NoError(t, err)
	require.Equal(t, ws.ID, byCode.ID)

	later := start.Add(12500 * time.Millisecond)
	require.NoError(t, s.UpdateWatchSessionState(ws.ID, true, 33.25, later))

	got, err := s.GetWatchSession(ws.ID)
	require.NoError(t, err)
	require.True(t, got.IsPlaying)
	require.Equal(t, 33.25, got.PositionSeconds)
	require.Equal(t, later, got.LastStateUpdatedAt, "millisecond precision must survive the round trip")

	active, err := s.ListActiveWatchSessions()
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, s.DeactivateWatchSession(ws.ID))

	// Deactivated sessions are not joinable but remain readable by id.
	_, err = s.GetWatchSessionByJoinCode("AB12CD")
	require.ErrorIs(t, err, ErrNotFound)
	kept, err := s.GetWatchSession(ws.ID)
	require.NoError(t, err)
	require.False(t, kept.IsActive)

	active, err = s.ListActiveWatchSessions()
	require.NoError(t, err)
	require.Empty(t, active)

	require.ErrorIs(t, s.UpdateWatchSessionState(9999, true, 0, later), ErrNotFound)
}

func TestParticipants(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	host, err := s.CreateUser("host", "hash", time.Now().UTC())
	require.NoError(t, err)
	guest, err := s.CreateUser("guest", "hash", time.Now().UTC())
	require.NoError(t, err)
	mediaID, err := s.UpsertMediaFile(&models.MediaFile{Title: "a", FilePath: "/media/a.mp4"})
	require.NoError(t, err)

	start := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	ws, err := s.CreateWatchSession(&models.WatchSession{
		JoinCode: "XY34ZW", HostUserID: host.ID, MediaFileID: mediaID,
		CreatedAt: start, IsActive: true, LastStateUpdatedAt: start,
	})
	require.NoError(t, err)

	require.NoError(t, s.UpsertParticipant(ws.ID, host.ID, start))
	require.NoError(t, s.UpsertParticipant(ws.ID, guest.ID, start.Add(time.Minute)))
	// Rejoin is idempotent.
	require.NoError(t, s.UpsertParticipant(ws.ID, guest.ID, start.Add(2*time.Minute)))

	ok, err := s.IsParticipant(ws.ID, guest.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.IsParticipant(ws.ID, 9999)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.TouchParticipant(ws.ID, guest.ID, start.Add(10*time.Minute)))

	seen, err := s.LastSeenWithin(ws.ID, start.Add(5*time.Minute))
	require.NoError(t, err)
	require.True(t, seen)

	seen, err = s.LastSeenWithin(ws.ID, start.Add(15*time.Minute))
	require.NoError(t, err)
	require.False(t, seen)

	// Deactivating the session deactivates its participants.
	require.NoError(t, s.DeactivateWatchSession(ws.ID))
	ok, err = s.IsParticipant(ws.ID, guest.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestQueriesObserveDurationMetric(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

	_, err := s.CreateUser("histogram-user", "hash", now)
	require.NoError(t, err)

	// One series per (operation, table) pair appears once a query has run.
	require.Greater(t, testutil.CollectAndCount(metrics.DBQueryDuration, "sqlite_query_duration_seconds"), 0)
}
