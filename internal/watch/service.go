// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

// Package watch keeps the players of a shared session in lock-step.
//
// A watch session's stored position is only trustworthy at the instant it was
// last written; every read extrapolates by elapsed wall-clock time while
// playing. All mutations flow through the Service's command handlers, which
// serialize per session, so commands apply in arrival order.
package watch

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aklyne/reelhouse/internal/metrics"
	"github.com/aklyne/reelhouse/internal/models"
)

// Store is the slice of persistence the watch engine depends on.
type Store interface {
	CreateWatchSession(ws *models.WatchSession) (*models.WatchSession, error)
	GetWatchSession(id int64) (*models.WatchSession, error)
	GetWatchSessionByJoinCode(code string) (*models.WatchSession, error)
	ListActiveWatchSessions() ([]models.WatchSession, error)
	UpdateWatchSessionState(id int64, isPlaying bool, position float64, updatedAt time.Time) error
	DeactivateWatchSession(id int64) error
	UpsertParticipant(sessionID, userID int64, now time.Time) error
	TouchParticipant(sessionID, userID int64, now time.Time) error
	IsParticipant(sessionID, userID int64) (bool, error)
	LastSeenWithin(sessionID int64, cutoff time.Time) (bool, error)
}

// MediaStore resolves target media for new sessions.
type MediaStore interface {
	GetMediaFile(id int64) (*models.MediaFile, error)
}

// Broadcaster pushes authoritative state to every participant of a session.
// Implemented by the websocket hub.
type Broadcaster interface {
	BroadcastState(sessionID int64, state models.WatchState)
}

// Service is the watch-session state machine and command handler.
type Service struct {
	store     Store
	media     MediaStore
	notFound  error
	tolerance time.Duration
	codeLen   int
	now       func() time.Time
	log       zerolog.Logger

	broadcaster Broadcaster

	// locks serializes read-extrapolate-mutate-commit per session id.
	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// NewService creates the watch service. notFound is the store's sentinel for
// missing records.
func NewService(store Store, media MediaStore, notFound error, tolerance time.Duration, codeLen int, log zerolog.Logger) *Service {
	return &Service{
		store:     store,
		media:     media,
		notFound:  notFound,
		tolerance: tolerance,
		codeLen:   codeLen,
		now:       time.Now,
		log:       log,
		locks:     make(map[int64]*sync.Mutex),
	}
}

// SetBroadcaster wires the hub in after construction. Must be called before
// the service handles commands.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetClock replaces the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// sessionLock returns the mutex serializing commands for one session id.
func (s *Service) sessionLock(id int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	return mu
}

// CreateSession starts a shared session for a media file, hosted by the
// given user. The host becomes the first participant. New sessions start
// active and paused at position zero.
func (s *Service) CreateSession(hostUserID, mediaID int64) (*models.WatchSession, error) {
	media, err := s.media.GetMediaFile(mediaID)
	if err != nil {
		if errors.Is(err, s.notFound) {
			return nil, fmt.Errorf("%w: id %d", ErrMediaNotFound, mediaID)
		}
		return nil, err
	}

	now := s.now().UTC()
	var created *models.WatchSession
	for attempt := 0; attempt < joinCodeRetries; attempt++ {
		code, err := generateJoinCode(s.codeLen)
		if err != nil {
			return nil, err
		}
		created, err = s.store.CreateWatchSession(&models.WatchSession{
			JoinCode:           code,
			HostUserID:         hostUserID,
			MediaFileID:        media.ID,
			CreatedAt:          now,
			IsActive:           true,
			IsPlaying:          false,
			PositionSeconds:    0,
			LastStateUpdatedAt: now,
		})
		if err == nil {
			break
		}
		if !isJoinCodeConflict(err) {
			return nil, err
		}
		created = nil
	}
	if created == nil {
		return nil, fmt.Errorf("watch: could not allocate a unique join code")
	}

	if err := s.store.UpsertParticipant(created.ID, hostUserID, now); err != nil {
		return nil, err
	}
	metrics.WatchSessionsActive.Inc()
	return created, nil
}

// Join adds a user to the session behind a join code and returns the current
// authoritative state snapshot.
func (s *Service) Join(joinCode string, userID int64) (*models.WatchSession, models.WatchState, error) {
	ws, err := s.store.GetWatchSessionByJoinCode(joinCode)
	if err != nil {
		if errors.Is(err, s.notFound) {
			return nil, models.WatchState{}, fmt.Errorf("%w: code %q", ErrSessionNotFound, joinCode)
		}
		return nil, models.WatchState{}, err
	}

	if err := s.store.UpsertParticipant(ws.ID, userID, s.now().UTC()); err != nil {
		return nil, models.WatchState{}, err
	}
	return ws, s.extrapolate(ws), nil
}

// ReadState returns the session's authoritative state. The position is always
// computed through the extrapolation rule, never returned stale.
func (s *Service) ReadState(sessionID int64) (models.WatchState, error) {
	ws, err := s.store.GetWatchSession(sessionID)
	if err != nil {
		if errors.Is(err, s.notFound) {
			return models.WatchState{}, fmt.Errorf("%w: id %d", ErrSessionNotFound, sessionID)
		}
		return models.WatchState{}, err
	}
	return s.extrapolate(ws), nil
}

// IsParticipant reports whether the user holds an active join record.
func (s *Service) IsParticipant(sessionID, userID int64) (bool, error) {
	return s.store.IsParticipant(sessionID, userID)
}

// Play transitions the session to playing. The checkpoint is the position
// extrapolated to now, so a redundant play on an already-playing session
// never rewinds it.
func (s *Service) Play(sessionID, userID int64) (models.WatchState, error) {
	return s.applyCommand(sessionID, userID, func(ws *models.WatchSession, now time.Time) (bool, float64) {
		return true, s.positionAt(ws, now)
	})
}

// Pause transitions the session to paused, capturing the extrapolated
// position at the moment of pause as the new stored position.
func (s *Service) Pause(sessionID, userID int64) (models.WatchState, error) {
	return s.applyCommand(sessionID, userID, func(ws *models.WatchSession, now time.Time) (bool, float64) {
		return false, s.positionAt(ws, now)
	})
}

// Seek overwrites the stored position (clamped to non-negative) and resets
// the authoritative timestamp. The play/pause state is unchanged.
func (s *Service) Seek(sessionID, userID int64, position float64) (models.WatchState, error) {
	return s.applyCommand(sessionID, userID, func(ws *models.WatchSession, now time.Time) (bool, float64) {
		return ws.IsPlaying, math.Max(0, position)
	})
}

// End deactivates the session and its participant records. The record is
// retained; only broadcasting treats the session as terminal.
func (s *Service) End(sessionID, userID int64) error {
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	ws, err := s.activeSession(sessionID)
	if err != nil {
		return err
	}
	if err := s.requireParticipant(ws.ID, userID); err != nil {
		return err
	}
	if err := s.store.DeactivateWatchSession(ws.ID); err != nil {
		return err
	}
	metrics.WatchSessionsActive.Dec()
	return nil
}

// Reconcile handles a passive state-sync ping. If the client-reported
// position diverges from the authoritative extrapolated position by more
// than the tolerance, the server treats it as an implicit seek to its own
// value and rebroadcasts; clients never win a disagreement.
func (s *Service) Reconcile(sessionID, userID int64, reportedPosition float64) (models.WatchState, bool, error) {
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	ws, err := s.activeSession(sessionID)
	if err != nil {
		return models.WatchState{}, false, err
	}
	if err := s.requireParticipant(ws.ID, userID); err != nil {
		return models.WatchState{}, false, err
	}

	now := s.now().UTC()
	if err := s.store.TouchParticipant(ws.ID, userID, now); err != nil && !errors.Is(err, s.notFound) {
		return models.WatchState{}, false, err
	}

	authoritative := s.positionAt(ws, now)
	if math.Abs(reportedPosition-authoritative) <= s.tolerance.Seconds() {
		return s.stateAt(ws, now, ws.IsPlaying, authoritative), false, nil
	}

	if err := s.store.UpdateWatchSessionState(ws.ID, ws.IsPlaying, authoritative, now); err != nil {
		return models.WatchState{}, false, err
	}
	state := s.stateAt(ws, now, ws.IsPlaying, authoritative)
	metrics.WatchDriftCorrections.Inc()
	s.broadcast(ws.ID, state)
	return state, true, nil
}

// applyCommand runs one mutation under the session's lock: verify the caller
// is a participant, refresh last-seen, compute the new state, commit, and
// broadcast.
func (s *Service) applyCommand(sessionID, userID int64, next func(ws *models.WatchSession, now time.Time) (bool, float64)) (models.WatchState, error) {
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	ws, err := s.activeSession(sessionID)
	if err != nil {
		return models.WatchState{}, err
	}
	if err := s.requireParticipant(ws.ID, userID); err != nil {
		return models.WatchState{}, err
	}

	now := s.now().UTC()
	if err := s.store.TouchParticipant(ws.ID, userID, now); err != nil && !errors.Is(err, s.notFound) {
		return models.WatchState{}, err
	}

	playing, position := next(ws, now)
	if err := s.store.UpdateWatchSessionState(ws.ID, playing, position, now); err != nil {
		return models.WatchState{}, err
	}

	state := s.stateAt(ws, now, playing, position)
	s.broadcast(ws.ID, state)
	return state, nil
}

func (s *Service) activeSession(sessionID int64) (*models.WatchSession, error) {
	ws, err := s.store.GetWatchSession(sessionID)
	if err != nil {
		if errors.Is(err, s.notFound) {
			return nil, fmt.Errorf("%w: id %d", ErrSessionNotFound, sessionID)
		}
		return nil, err
	}
	if !ws.IsActive {
		return nil, fmt.Errorf("%w: id %d", ErrSessionEnded, sessionID)
	}
	return ws, nil
}

func (s *Service) requireParticipant(sessionID, userID int64) error {
	ok, err := s.store.IsParticipant(sessionID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: user %d, session %d", ErrNotParticipant, userID, sessionID)
	}
	return nil
}

// positionAt applies the extrapolation rule: while playing, the true
// position is the stored position plus elapsed wall-clock time; while
// paused, it is exactly the stored position.
func (s *Service) positionAt(ws *models.WatchSession, now time.Time) float64 {
	if !ws.IsPlaying {
		return ws.PositionSeconds
	}
	elapsed := now.Sub(ws.LastStateUpdatedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return ws.PositionSeconds + elapsed
}

func (s *Service) extrapolate(ws *models.WatchSession) models.WatchState {
	now := s.now().UTC()
	return s.stateAt(ws, now, ws.IsPlaying, s.positionAt(ws, now))
}

func (s *Service) stateAt(ws *models.WatchSession, now time.Time, playing bool, position float64) models.WatchState {
	return models.WatchState{
		SessionID:       ws.ID,
		MediaFileID:     ws.MediaFileID,
		IsPlaying:       playing,
		PositionSeconds: position,
		ServerTime:      now.Format(time.RFC3339Nano),
	}
}

func (s *Service) broadcast(sessionID int64, state models.WatchState) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastState(sessionID, state)
	}
}
