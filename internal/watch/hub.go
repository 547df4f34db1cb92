// Reelhouse - Self-Hosted Media Server with Synchronized Watch Sessions
// Copyright 2026 Reelhouse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aklyne/reelhouse

package watch

import (
	"context"
	"sort"
	"sync"

	"github.com/aklyne/reelhouse/internal/logging"
	"github.com/aklyne/reelhouse/internal/models"
)

// Message types exchanged over a watch-session websocket.
const (
	MessageTypeJoin      = "join"
	MessageTypeLeave     = "leave"
	MessageTypePlay      = "play"
	MessageTypePause     = "pause"
	MessageTypeSeek      = "seek"
	MessageTypeStateSync = "state_sync"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"
)

// Message is the envelope for every websocket frame, inbound and outbound.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ErrorData is the payload of an error message sent to a single client.
type ErrorData struct {
	Message string `json:"message"`
}

// roomMessage targets a broadcast at one session's participants.
type roomMessage struct {
	sessionID int64
	message   Message
}

// Hub tracks connected clients per watch session and fans state broadcasts
// out to the session's room. It implements Broadcaster for the Service.
type Hub struct {
	rooms      map[int64]map[*Client]bool
	broadcast  chan roomMessage
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub with no rooms.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[int64]map[*Client]bool),
		broadcast:  make(chan roomMessage, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// RunWithContext runs the hub event loop until the context is canceled,
// then closes every connected client and returns ctx.Err(). Designed for
// suture supervision.
//
// Selection is priority ordered so behavior stays predictable when several
// channels are ready: shutdown first, then client lifecycle, then broadcasts.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case rm := <-h.broadcast:
			h.broadcastToRoom(rm.sessionID, rm.message)
		}
	}
}

// BroadcastState queues an authoritative state snapshot for every client in
// the session's room. Non-blocking: if the hub is saturated the frame is
// dropped and the drift loop's next tick covers the gap.
func (h *Hub) BroadcastState(sessionID int64, state models.WatchState) {
	rm := roomMessage{
		sessionID: sessionID,
		message:   Message{Type: MessageTypeStateSync, Data: state},
	}
	select {
	case h.broadcast <- rm:
	default:
		logging.Warn().Int64("watch_session_id", sessionID).Msg("broadcast channel full, dropping state_sync")
	}
}

// RoomSize returns the number of connected clients in a session's room.
func (h *Hub) RoomSize(sessionID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.sessionID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[client.sessionID] = room
	}
	room[client] = true
	size := len(room)
	h.mu.Unlock()
	logging.Info().
		Int64("watch_session_id", client.sessionID).
		Int64("user_id", client.userID).
		Int("room_size", size).
		Msg("watch client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.sessionID]
	if ok {
		if _, present := room[client]; present {
			delete(room, client)
			close(client.send)
		}
		if len(room) == 0 {
			delete(h.rooms, client.sessionID)
		}
	}
	size := len(room)
	h.mu.Unlock()
	logging.Info().
		Int64("watch_session_id", client.sessionID).
		Int64("user_id", client.userID).
		Int("room_size", size).
		Msg("watch client disconnected")
}

// broadcastToRoom delivers a message to every client of one room in client-id
// order. Clients whose send buffer is full are disconnected rather than
// allowed to stall the room.
func (h *Hub) broadcastToRoom(sessionID int64, message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[sessionID]
	if len(room) == 0 {
		return
	}

	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(room, client)
		logging.Warn().
			Int64("watch_session_id", sessionID).
			Int64("user_id", client.userID).
			Msg("dropping slow watch client")
	}
	if len(room) == 0 {
		delete(h.rooms, sessionID)
	}
}

// shutdown closes every client in every room in deterministic order.
func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()

	var clients []*Client
	for _, room := range h.rooms {
		for client := range room {
			clients = append(clients, client)
		}
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		close(client.send)
	}
	closed := len(clients)
	h.rooms = make(map[int64]map[*Client]bool)
	h.mu.Unlock()

	logging.Info().
		Str("component", "watch-hub").
		Str("reason", shutdownReason(ctx)).
		Int("clients_closed", closed).
		Msg("watch hub stopped")
}

func shutdownReason(ctx context.Context) string {
	if ctx.Err() == context.DeadlineExceeded {
		return "context_deadline"
	}
	return "context_canceled"
}
