// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package watch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aklyne/reelhouse/internal/metrics"
)

// DriftCorrector periodically rebroadcasts authoritative state to every
// active session so clients whose playback has drifted converge without
// waiting for the next command. It also reaps sessions abandoned by all
// participants.
//
// Implements suture.Service via Serve.
type DriftCorrector struct {
	service        *Service
	hub            *Hub
	interval       time.Duration
	presenceWindow time.Duration
	log            zerolog.Logger
}

// NewDriftCorrector creates the corrector. interval controls the broadcast
// cadence; presenceWindow is how long a session may go with no participant
// activity before it is reaped.
func NewDriftCorrector(service *Service, hub *Hub, interval, presenceWindow time.Duration, log zerolog.Logger) *DriftCorrector {
	return &DriftCorrector{
		service:        service,
		hub:            hub,
		interval:       interval,
		presenceWindow: presenceWindow,
		log:            log,
	}
}

// Serve runs the corrector until the context is canceled.
func (d *DriftCorrector) Serve(ctx context.Context) error {
	d.log.Info().
		Dur("interval", d.interval).
		Dur("presence_window", d.presenceWindow).
		Msg("drift corrector started")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("drift corrector stopped")
			return ctx.Err()
		case <-ticker.C:
			d.tick()
		}
	}
}

// String implements fmt.Stringer for supervisor log messages.
func (d *DriftCorrector) String() string {
	return "drift-corrector"
}

// tick sweeps every active session once. A failure on one session is logged
// and never stops the sweep.
func (d *DriftCorrector) tick() {
	sessions, err := d.service.store.ListActiveWatchSessions()
	if err != nil {
		d.log.Error().Err(err).Msg("drift sweep: list active sessions")
		return
	}

	now := d.service.now().UTC()
	cutoff := now.Add(-d.presenceWindow)

	for i := range sessions {
		ws := &sessions[i]

		// Reap sessions nobody is watching anymore: no open connection
		// and no participant heard from within the presence window.
		if d.hub.RoomSize(ws.ID) == 0 {
			seen, err := d.service.store.LastSeenWithin(ws.ID, cutoff)
			if err != nil {
				d.log.Error().Err(err).Int64("watch_session_id", ws.ID).Msg("drift sweep: presence check")
				continue
			}
			if !seen {
				if err := d.service.store.DeactivateWatchSession(ws.ID); err != nil {
					d.log.Error().Err(err).Int64("watch_session_id", ws.ID).Msg("drift sweep: deactivate abandoned session")
				} else {
					metrics.WatchSessionsActive.Dec()
					d.log.Info().Int64("watch_session_id", ws.ID).Msg("deactivated abandoned watch session")
				}
			}
			continue
		}

		state, err := d.service.ReadState(ws.ID)
		if err != nil {
			d.log.Error().Err(err).Int64("watch_session_id", ws.ID).Msg("drift sweep: read state")
			continue
		}
		d.hub.BroadcastState(ws.ID, state)
	}
}
