// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

// Package websocket streams room events (match, status changes) to
// connected members. Clients subscribe to exactly one room; the hub
// fans each event out to that room's connections only.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/reelswipe/reelswipe/internal/logging"
	"github.com/reelswipe/reelswipe/internal/models"
)

// Message frame types sent over the wire.
const (
	MessageTypeEvent = "event"
	MessageTypePing  = "ping"
	MessageTypePong  = "pong"
)

// Message is one WebSocket frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Hub tracks connected clients per room and broadcasts room events.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool

	events     chan models.RoomEvent
	Register   chan *Client
	Unregister chan *Client
}

// NewHub creates an empty hub. Run it under supervision before
// registering clients.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		events:     make(chan models.RoomEvent, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Notify queues a room event for broadcast. Implements the consensus
// notifier contract; when the queue is full the event is dropped, since
// the durable record is already written and clients can re-fetch.
func (h *Hub) Notify(_ context.Context, event models.RoomEvent) error {
	select {
	case h.events <- event:
	default:
		logging.Warn().Str("room_id", event.RoomID).Msg("Event queue full, dropping broadcast")
	}
	return nil
}

// RunWithContext pumps lifecycle and event channels until ctx is
// cancelled. Lifecycle events take priority over broadcasts so client
// state is settled before messages are routed.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
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
			h.closeAll()
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case event := <-h.events:
			h.broadcast(event)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room := h.rooms[client.roomID]
	if room == nil {
		room = make(map[*Client]bool)
		h.rooms[client.roomID] = room
	}
	room[client] = true
	total := len(room)
	h.mu.Unlock()
	logging.Info().Str("room_id", client.roomID).Int("room_clients", total).Msg("WebSocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if room, ok := h.rooms[client.roomID]; ok && room[client] {
		delete(room, client)
		close(client.send)
		if len(room) == 0 {
			delete(h.rooms, client.roomID)
		}
	}
	h.mu.Unlock()
	logging.Info().Str("room_id", client.roomID).Msg("WebSocket client disconnected")
}

// broadcast delivers one event to its room's clients in ID order, so
// delivery order is reproducible in tests. Clients with a full send
// buffer are disconnected rather than blocking the hub.
func (h *Hub) broadcast(event models.RoomEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[event.RoomID]
	if len(room) == 0 {
		return
	}
	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	msg := Message{Type: MessageTypeEvent, Data: event}
	for _, client := range clients {
		select {
		case client.send <- msg:
		default:
			close(client.send)
			delete(room, client)
		}
	}
	if len(room) == 0 {
		delete(h.rooms, event.RoomID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	closed := 0
	for roomID, room := range h.rooms {
		for client := range room {
			close(client.send)
			closed++
		}
		delete(h.rooms, roomID)
	}
	logging.Info().Int("clients_closed", closed).Msg("WebSocket hub stopped")
}

// ClientCount returns the number of clients connected to the room.
func (h *Hub) ClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
