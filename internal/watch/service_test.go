// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package watch

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aklyne/reelhouse/internal/logging"
	"github.com/aklyne/reelhouse/internal/metrics"
	"github.com/aklyne/reelhouse/internal/models"
	"github.com/aklyne/reelhouse/internal/store"
)

var errFakeNotFound = errors.New("not found")

// fakeStore is an in-memory Store for exercising the state machine without
// SQLite.
type fakeStore struct {
	nextID       int64
	sessions     map[int64]*models.WatchSession
	byCode       map[string]int64
	participants map[int64]map[int64]time.Time
	media        map[int64]*models.MediaFile

	createErrs []error // consumed by CreateWatchSession, front first
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:       1,
		sessions:     make(map[int64]*models.WatchSession),
		byCode:       make(map[string]int64),
		participants: make(map[int64]map[int64]time.Time),
		media: map[int64]*models.MediaFile{
			1: {ID: 1, FilePath: "/media/movie.mkv"},
		},
	}
}

func (f *fakeStore) GetMediaFile(id int64) (*models.MediaFile, error) {
	m, ok := f.media[id]
	if !ok {
		return nil, errFakeNotFound
	}
	return m, nil
}

func (f *fakeStore) CreateWatchSession(ws *models.WatchSession) (*models.WatchSession, error) {
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	cp := *ws
	cp.ID = f.nextID
	f.nextID++
	f.sessions[cp.ID] = &cp
	f.byCode[cp.JoinCode] = cp.ID
	out := cp
	return &out, nil
}

func (f *fakeStore) GetWatchSession(id int64) (*models.WatchSession, error) {
	ws, ok := f.sessions[id]
	if !ok {
		return nil, errFakeNotFound
	}
	cp := *ws
	return &cp, nil
}

func (f *fakeStore) GetWatchSessionByJoinCode(code string) (*models.WatchSession, error) {
	id, ok := f.byCode[code]
	if !ok {
		return nil, errFakeNotFound
	}
	ws := f.sessions[id]
	if !ws.IsActive {
		return nil, errFakeNotFound
	}
	cp := *ws
	return &cp, nil
}

func (f *fakeStore) ListActiveWatchSessions() ([]models.WatchSession, error) {
	var out []models.WatchSession
	for _, ws := range f.sessions {
		if ws.IsActive {
			out = append(out, *ws)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateWatchSessionState(id int64, isPlaying bool, position float64, updatedAt time.Time) error {
	ws, ok := f.sessions[id]
	if !ok {
		return errFakeNotFound
	}
	ws.IsPlaying = isPlaying
	ws.PositionSeconds = position
	ws.LastStateUpdatedAt = updatedAt
	return nil
}

func (f *fakeStore) DeactivateWatchSession(id int64) error {
	ws, ok := f.sessions[id]
	if !ok {
		return errFakeNotFound
	}
	ws.IsActive = false
	return nil
}

func (f *fakeStore) UpsertParticipant(sessionID, userID int64, now time.Time) error {
	room, ok := f.participants[sessionID]
	if !ok {
		room = make(map[int64]time.Time)
		f.participants[sessionID] = room
	}
	room[userID] = now
	return nil
}

func (f *fakeStore) TouchParticipant(sessionID, userID int64, now time.Time) error {
	room, ok := f.participants[sessionID]
	if !ok {
		return errFakeNotFound
	}
	if _, present := room[userID]; !present {
		return errFakeNotFound
	}
	room[userID] = now
	return nil
}

func (f *fakeStore) IsParticipant(sessionID, userID int64) (bool, error) {
	room, ok := f.participants[sessionID]
	if !ok {
		return false, nil
	}
	_, present := room[userID]
	return present, nil
}

func (f *fakeStore) LastSeenWithin(sessionID int64, cutoff time.Time) (bool, error) {
	for _, seen := range f.participants[sessionID] {
		if seen.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

// recordingBroadcaster captures broadcasts for assertions.
type recordingBroadcaster struct {
	states []models.WatchState
}

func (r *recordingBroadcaster) BroadcastState(_ int64, state models.WatchState) {
	r.states = append(r.states, state)
}

func newTestService(t *testing.T) (*Service, *fakeStore, *recordingBroadcaster, *time.Time) {
	t.Helper()
	fs := newFakeStore()
	svc := NewService(fs, fs, errFakeNotFound, time.Second, 6, logging.NewTestLogger(io.Discard))
	bc := &recordingBroadcaster{}
	svc.SetBroadcaster(bc)

	clock := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return clock })
	return svc, fs, bc, &clock
}

func TestCreateSession(t *testing.T) {
	svc, fs, _, _ := newTestService(t)

	ws, err := svc.CreateSession(7, 1)
	require.NoError(t, err)
	assert.Len(t, ws.JoinCode, 6)
	assert.True(t, ws.IsActive)
	assert.False(t, ws.IsPlaying)
	assert.Zero(t, ws.PositionSeconds)

	// Host is a participant immediately.
	ok, err := fs.IsParticipant(ws.ID, 7)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateSessionUnknownMedia(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.CreateSession(7, 999)
	assert.ErrorIs(t, err, ErrMediaNotFound)
}

func TestCreateSessionRetriesJoinCodeConflict(t *testing.T) {
	svc, fs, _, _ := newTestService(t)
	fs.createErrs = []error{store.ErrJoinCodeTaken, store.ErrJoinCodeTaken}

	ws, err := svc.CreateSession(7, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, ws.JoinCode)
}

func TestJoinByCode(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	created, err := svc.CreateSession(7, 1)
	require.NoError(t, err)

	joined, state, err := svc.Join(created.JoinCode, 8)
	require.NoError(t, err)
	assert.Equal(t, created.ID, joined.ID)
	assert.False(t, state.IsPlaying)
	assert.Zero(t, state.PositionSeconds)

	ok, err := svc.IsParticipant(created.ID, 8)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestJoinUnknownCode(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, _, err := svc.Join("NOPE99", 8)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestExtrapolationWhilePlaying(t *testing.T) {
	svc, _, _, clock := newTestService(t)

	ws, err := svc.CreateSession(7, 1)
	require.NoError(t, err)

	state, err := svc.Play(ws.ID, 7)
	require.NoError(t, err)
	assert.True(t, state.IsPlaying)
	assert.Zero(t, state.PositionSeconds)

	*clock = clock.Add(12500 * time.Millisecond)

	state, err = svc.ReadState(ws.ID)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, state.PositionSeconds, 0.001)
}

func TestExtrapolationFrozenWhilePaused(t *testing.T) {
	svc, _, _, clock := newTestService(t)

	ws, err := svc.CreateSession(7, 1)
	require.NoError(t, err)

	_, err = svc.Play(ws.ID, 7)
	require.NoError(t, err)
	*clock = clock.Add(30 * time.Second)

	state, err := svc.Pause(ws.ID, 7)
	require.NoError(t, err)
	assert.False(t, state.IsPlaying)
	assert.InDelta(t, 30.0, state.PositionSeconds, 0.001)

	// Paused position does not advance.
	*clock = clock.Add(time.Hour)
	state, err = svc.ReadState(ws.ID)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, state.PositionSeconds, 0.001)
}

func TestRedundantPlayDoesNotRewind(t *testing.T) {
	svc, _, _, clock := newTestService(t)

	ws, err := svc.CreateSession(7, 1)
	require.NoError(t, err)

	_, err = svc.Play(ws.ID, 7)
	require.NoError(t, err)
	*clock = clock.Add(20 * time.Second)

	state, err := svc.Play(ws.ID, 7)
	require.NoError(t, err)
	assert.True(t, state.IsPlaying)
	assert.InDelta(t, 20.0, state.PositionSeconds, 0.001)
}

func TestSeekClampsNegative(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	ws, err := svc.CreateSession(7, 1)
	require.NoError(t, err)

	state, err := svc.Seek(ws.ID, 7, -15)
	require.NoError(t, err)
	assert.Zero(t, state.PositionSeconds)
}

func TestSeekResetsExtrapolationBase(t *testing.T) {
	svc, _, _, clock := newTestService(t)

	ws, err := svc.CreateSession(7, 1)
	require.NoError(t, err)
	_, err = svc.Play(ws.ID, 7)
	require.NoError(t, err)

	*clock = clock.Add(100 * time.Second)
	state, err := svc.Seek(ws.ID, 7, 42)
	require.NoError(t, err)
	assert.True(t, state.IsPlaying)
	assert.InDelta(t, 42.0, state.PositionSeconds, 0.001)

	*clock = clock.Add(3 * time.Second)
	state, err = svc.ReadState(ws.ID)
	require.NoError(t, err)
	assert.InDelta(t, 45.0, state.PositionSeconds, 0.001)
}

func TestCommandsRequireParticipant(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	ws, err := svc.CreateSession(7, 1)
	require.NoError(t, err)

	_, err = svc.Play(ws.ID, 99)
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = svc.Seek(ws.ID, 99, 10)
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, _, err = svc.Reconcile(ws.ID, 99, 10)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestCommandsBroadcast(t *testing.T) {
	svc, _, bc, _ := newTestService(t)

	ws, err := svc.CreateSession(7, 1)
	require.NoError(t, err)

	_, err = svc.Play(ws.ID, 7)
	require.NoError(t, err)
	_, err = svc.Pause(ws.ID, 7)
	require.NoError(t, err)
	_, err = svc.Seek(ws.ID, 7, 5)
	require.NoError(t, err)

	require.Len(t, bc.states, 3)
	assert.True(t, bc.states[0].IsPlaying)
	assert.False(t, bc.states[1].IsPlaying)
	assert.InDelta(t, 5.0, bc.states[2].PositionSeconds, 0.001)
}

func TestReconcileWithinTolerance(t *testing.T) {
	svc, _, bc, clock := newTestService(t)

	ws, err := svc.CreateSession(7, 1)
	require.NoError(t, err)
	_, err = svc.Play(ws.ID, 7)
	require.NoError(t, err)
	bc.states = nil

	*clock = clock.Add(10 * time.Second)

	// Reported 10.4s against authoritative 10.0s: inside the 1s tolerance,
	// the client keeps playing untouched.
	state, corrected, err := svc.Reconcile(ws.ID, 7, 10.4)
	require.NoError(t, err)
	assert.False(t, corrected)
	assert.InDelta(t, 10.0, state.PositionSeconds, 0.001)
	assert.Empty(t, bc.states)
}

func TestReconcileCorrectsDrift(t *testing.T) {
	svc, _, bc, clock := newTestService(t)

	ws, err := svc.CreateSession(7, 1)
	require.NoError(t, err)
	_, err = svc.Play(ws.ID, 7)
	require.NoError(t, err)
	bc.states = nil

	*clock = clock.Add(10 * time.Second)

	// Reported 14s against authoritative 10s: the server wins and the
	// corrected state is broadcast to the whole room.
	state, corrected, err := svc.Reconcile(ws.ID, 7, 14)
	require.NoError(t, err)
	assert.True(t, corrected)
	assert.InDelta(t, 10.0, state.PositionSeconds, 0.001)
	require.Len(t, bc.states, 1)
	assert.InDelta(t, 10.0, bc.states[0].PositionSeconds, 0.001)
}

func TestEndDeactivatesSession(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	ws, err := svc.CreateSession(7, 1)
	require.NoError(t, err)
	require.NoError(t, svc.End(ws.ID, 7))

	_, err = svc.Play(ws.ID, 7)
	assert.ErrorIs(t, err, ErrSessionEnded)

	// The ended session's join code no longer resolves.
	_, _, err = svc.Join(ws.JoinCode, 8)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestActiveSessionsGaugeTracksLifecycle(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	// Metrics are process-global, so assert on deltas.
	before := testutil.ToFloat64(metrics.WatchSessionsActive)

	ws, err := svc.CreateSession(7, 1)
	require.NoError(t, err)
	assert.InDelta(t, before+1, testutil.ToFloat64(metrics.WatchSessionsActive), 0.001)

	require.NoError(t, svc.End(ws.ID, 7))
	assert.InDelta(t, before, testutil.ToFloat64(metrics.WatchSessionsActive), 0.001)
}

func TestReconcileCorrectionCountsAsDriftCorrection(t *testing.T) {
	svc, _, _, clock := newTestService(t)

	ws, err := svc.CreateSession(7, 1)
	require.NoError(t, err)
	_, err = svc.Play(ws.ID, 7)
	require.NoError(t, err)
	*clock = clock.Add(10 * time.Second)

	before := testutil.ToFloat64(metrics.WatchDriftCorrections)

	// In-tolerance report: no correction counted.
	_, corrected, err := svc.Reconcile(ws.ID, 7, 10.4)
	require.NoError(t, err)
	require.False(t, corrected)
	assert.InDelta(t, before, testutil.ToFloat64(metrics.WatchDriftCorrections), 0.001)

	// Drifted report: the implicit seek is counted.
	_, corrected, err = svc.Reconcile(ws.ID, 7, 25)
	require.NoError(t, err)
	require.True(t, corrected)
	assert.InDelta(t, before+1, testutil.ToFloat64(metrics.WatchDriftCorrections), 0.001)
}

func TestGenerateJoinCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateJoinCode(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			assert.Contains(t, joinCodeAlphabet, string(r))
		}
		seen[code] = true
	}
	// Collisions across 50 draws from a 36^6 space would indicate a broken
	// generator.
	assert.Len(t, seen, 50)
}
