// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package api

import (
	"net/http"

	gorilla "github.com/gorilla/websocket"

	"github.com/reelswipe/reelswipe/internal/auth"
	"github.com/reelswipe/reelswipe/internal/logging"
	"github.com/reelswipe/reelswipe/internal/websocket"
)

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin enforcement happens in the CORS layer; the upgrade itself
	// is authenticated and membership-checked.
	CheckOrigin: func(*http.Request) bool { return true },
}

// subscribeEvents upgrades the connection and registers the member for
// the room's event stream. Non-members are rejected before upgrade.
func (h *Handlers) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	room, err := h.memberRoom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logger := logging.Ctx(r.Context())
		logger.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	client := websocket.NewClient(h.hub, conn, room.ID, auth.UserID(r.Context()))
	h.hub.Register <- client
	client.Start()
}
