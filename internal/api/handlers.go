// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reelswipe/reelswipe/internal/auth"
	"github.com/reelswipe/reelswipe/internal/catalog"
	"github.com/reelswipe/reelswipe/internal/domain"
	"github.com/reelswipe/reelswipe/internal/models"
	"github.com/reelswipe/reelswipe/internal/rooms"
	"github.com/reelswipe/reelswipe/internal/tmdb"
	"github.com/reelswipe/reelswipe/internal/validation"
	"github.com/reelswipe/reelswipe/internal/websocket"
)

var errNotMember = domain.E(domain.KindNotMember, "not a member of this room")

// Handlers carries the service dependencies of the HTTP surface.
type Handlers struct {
	rooms    *rooms.Service
	catalog  *catalog.Service
	metadata tmdb.MetadataClient
	hub      *websocket.Hub
	ready    func() error
}

// NewHandlers wires the handler set. ready reports whether the process
// can serve traffic (store reachable).
func NewHandlers(roomSvc *rooms.Service, cat *catalog.Service, metadata tmdb.MetadataClient, hub *websocket.Hub, ready func() error) *Handlers {
	return &Handlers{rooms: roomSvc, catalog: cat, metadata: metadata, hub: hub, ready: ready}
}

// CreateRoomRequest is the POST /rooms payload.
type CreateRoomRequest struct {
	Name      string `json:"name" validate:"required,max=80"`
	MediaType string `json:"media_type" validate:"required,oneof=MOVIE TV"`
	Genres    []int  `json:"genres" validate:"max=2,dive,gt=0"`
	Capacity  int    `json:"capacity" validate:"required,min=1,max=16"`
}

// JoinRoomRequest is the POST /rooms/join payload. The room is addressed
// by invite code or by ID; the service rejects requests carrying both or
// neither.
type JoinRoomRequest struct {
	InviteCode string `json:"invite_code" validate:"omitempty,len=6,alphanum"`
	RoomID     string `json:"room_id" validate:"omitempty,uuid4"`
}

// VoteRequest is the POST /rooms/{roomID}/votes payload.
type VoteRequest struct {
	ItemID   int64  `json:"item_id" validate:"required,gt=0"`
	Decision string `json:"decision" validate:"required,oneof=YES NO"`
}

func (h *Handlers) createRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(w, r, err)
		return
	}
	room, err := h.rooms.Create(r.Context(), rooms.CreateParams{
		Name:      req.Name,
		MediaType: models.MediaType(req.MediaType),
		Genres:    req.Genres,
		Capacity:  req.Capacity,
		HostID:    auth.UserID(r.Context()),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, room)
}

func (h *Handlers) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req JoinRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(w, r, err)
		return
	}
	room, err := h.rooms.Join(r.Context(), req.InviteCode, req.RoomID, auth.UserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, room)
}

func (h *Handlers) getRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.memberRoom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, room)
}

func (h *Handlers) leaveRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if err := h.rooms.Leave(r.Context(), roomID, auth.UserID(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"room_id": roomID})
}

// nextResponse pairs the entry to show with the member's progress.
type nextResponse struct {
	Entry     *models.CatalogEntry `json:"entry,omitempty"`
	Progress  *models.Progress     `json:"progress"`
	Exhausted bool                 `json:"exhausted"`
}

func (h *Handlers) nextEntry(w http.ResponseWriter, r *http.Request) {
	room, err := h.memberRoom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	entry, progress, err := h.catalog.NextFor(r.Context(), room.ID, auth.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, catalog.ErrExhausted) {
			respondJSON(w, r, http.StatusOK, nextResponse{Progress: progress, Exhausted: true})
			return
		}
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, nextResponse{Entry: entry, Progress: progress})
}

func (h *Handlers) progress(w http.ResponseWriter, r *http.Request) {
	room, err := h.memberRoom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	progress, err := h.catalog.Progress(r.Context(), room.ID, auth.UserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, progress)
}

func (h *Handlers) castVote(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(w, r, err)
		return
	}
	vote, err := h.rooms.Vote(r.Context(), chi.URLParam(r, "roomID"), auth.UserID(r.Context()), req.ItemID, models.Decision(req.Decision))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, vote)
}

func (h *Handlers) getMatch(w http.ResponseWriter, r *http.Request) {
	room, err := h.memberRoom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	match, err := h.rooms.Match(r.Context(), room.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, match)
}

func (h *Handlers) listGenres(w http.ResponseWriter, r *http.Request) {
	mediaType := models.MediaType(r.URL.Query().Get("media_type"))
	if mediaType == "" {
		mediaType = models.MediaMovie
	}
	genres, err := h.metadata.GenresFor(r.Context(), mediaType)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, models.GenreList{Genres: genres})
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.ready(); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// memberRoom loads the room from the URL and verifies the caller is a
// member. Room detail is member-only.
func (h *Handlers) memberRoom(r *http.Request) (*models.Room, error) {
	roomID := chi.URLParam(r, "roomID")
	room, err := h.rooms.Get(r.Context(), roomID)
	if err != nil {
		return nil, err
	}
	member, err := h.rooms.IsMember(r.Context(), roomID, auth.UserID(r.Context()))
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, errNotMember
	}
	return room, nil
}
