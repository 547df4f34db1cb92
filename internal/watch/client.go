// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package watch

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/aklyne/reelhouse/internal/logging"
	"github.com/aklyne/reelhouse/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // 64 KB, commands are tiny
)

// clientIDCounter hands out monotonically increasing ids so broadcast and
// shutdown order is deterministic.
var clientIDCounter atomic.Uint64

// positionPayload carries the position for seek and state_sync commands.
type positionPayload struct {
	PositionSeconds float64 `json:"position_seconds"`
}

// Client binds one websocket connection to a watch session. Inbound frames
// are session commands routed to the Service; outbound frames arrive from
// the hub on the send channel.
type Client struct {
	id        uint64
	hub       *Hub
	service   *Service
	conn      *websocket.Conn
	send      chan Message
	sessionID int64
	userID    int64
}

// NewClient creates a client for an already-authorized participant.
func NewClient(hub *Hub, service *Service, conn *websocket.Conn, sessionID, userID int64) *Client {
	return &Client{
		id:        clientIDCounter.Add(1),
		hub:       hub,
		service:   service,
		conn:      conn,
		send:      make(chan Message, 256),
		sessionID: sessionID,
		userID:    userID,
	}
}

// Start registers the client with the hub and begins both pumps.
func (c *Client) Start() {
	c.hub.Register <- c
	go c.writePump()
	go c.readPump()
}

// readPump reads command frames until the connection drops, dispatching each
// to the service. Command failures are reported back to this client only;
// successful commands reach the whole room through the service's broadcast.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Error().Err(err).Int64("watch_session_id", c.sessionID).Msg("unexpected websocket close")
			}
			break
		}

		var envelope struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			c.sendError("malformed message")
			continue
		}
		c.dispatch(envelope.Type, envelope.Data)
	}
}

// dispatch applies one inbound command.
func (c *Client) dispatch(msgType string, data json.RawMessage) {
	switch msgType {
	case MessageTypePing:
		select {
		case c.send <- Message{Type: MessageTypePong}:
		default:
		}

	// Membership is established over HTTP before the upgrade, so join is an
	// acknowledgement: answer it with a fresh snapshot.
	case MessageTypeJoin:
		state, err := c.service.ReadState(c.sessionID)
		if err != nil {
			c.commandFailed(msgType, err)
			return
		}
		select {
		case c.send <- Message{Type: MessageTypeStateSync, Data: state}:
		default:
		}

	// Leave closes the connection gracefully; readPump's teardown then
	// removes the client from its room.
	case MessageTypeLeave:
		deadline := time.Now().Add(writeWait)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "left session"), deadline)
		_ = c.conn.Close()

	case MessageTypePlay:
		if _, err := c.service.Play(c.sessionID, c.userID); err != nil {
			c.commandFailed(msgType, err)
			return
		}
		metrics.RecordWatchCommand(msgType)

	case MessageTypePause:
		if _, err := c.service.Pause(c.sessionID, c.userID); err != nil {
			c.commandFailed(msgType, err)
			return
		}
		metrics.RecordWatchCommand(msgType)

	case MessageTypeSeek:
		var payload positionPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			c.sendError("seek requires position_seconds")
			return
		}
		if _, err := c.service.Seek(c.sessionID, c.userID, payload.PositionSeconds); err != nil {
			c.commandFailed(msgType, err)
			return
		}
		metrics.RecordWatchCommand(msgType)

	case MessageTypeStateSync:
		var payload positionPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			c.sendError("state_sync requires position_seconds")
			return
		}
		state, corrected, err := c.service.Reconcile(c.sessionID, c.userID, payload.PositionSeconds)
		if err != nil {
			c.commandFailed(msgType, err)
			return
		}
		metrics.RecordWatchCommand(msgType)
		// An in-tolerance report gets its snapshot back directly; a
		// correction was already broadcast to the whole room.
		if !corrected {
			select {
			case c.send <- Message{Type: MessageTypeStateSync, Data: state}:
			default:
			}
		}

	default:
		c.sendError("unknown message type")
	}
}

func (c *Client) commandFailed(msgType string, err error) {
	switch {
	case errors.Is(err, ErrSessionEnded):
		c.sendError("session has ended")
	case errors.Is(err, ErrNotParticipant):
		c.sendError("not a participant of this session")
	case errors.Is(err, ErrSessionNotFound):
		c.sendError("session not found")
	default:
		logging.Error().Err(err).
			Str("command", msgType).
			Int64("watch_session_id", c.sessionID).
			Msg("watch command failed")
		c.sendError("command failed")
	}
}

func (c *Client) sendError(msg string) {
	select {
	case c.send <- Message{Type: MessageTypeError, Data: ErrorData{Message: msg}}:
	default:
	}
}

// writePump flushes outbound messages and keeps the connection alive with
// periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := json.Marshal(message)
			if err != nil {
				logging.Error().Err(err).Msg("failed to marshal websocket message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
