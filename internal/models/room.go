// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

// Package models defines the persisted entities and wire DTOs.
package models

import "time"

// MediaType selects one of the two exclusive discovery endpoints.
type MediaType string

const (
	MediaMovie MediaType = "MOVIE"
	MediaTV    MediaType = "TV"
)

// Valid reports whether the media type is one of the two known values.
func (m MediaType) Valid() bool {
	return m == MediaMovie || m == MediaTV
}

// RoomStatus is the room lifecycle state.
type RoomStatus string

const (
	RoomWaiting RoomStatus = "WAITING"
	RoomVoting  RoomStatus = "VOTING"
	RoomMatched RoomStatus = "MATCHED"
	RoomExpired RoomStatus = "EXPIRED"
)

// Terminal reports whether no further transition is permitted.
func (s RoomStatus) Terminal() bool {
	return s == RoomMatched || s == RoomExpired
}

// Room is the unit of shared voting. Capacity and genres are immutable
// after creation; once status reaches MATCHED, status and MatchedItemID
// are immutable as well.
type Room struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	InviteCode    string     `json:"invite_code"`
	MediaType     MediaType  `json:"media_type"`
	Genres        []int      `json:"genres"`
	Capacity      int        `json:"capacity"`
	Status        RoomStatus `json:"status"`
	MemberCount   int        `json:"member_count"`
	MatchedItemID *int64     `json:"matched_item_id,omitempty"`
	MatchedAt     *time.Time `json:"matched_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
}

// RoomMember records a user's membership in a room.
type RoomMember struct {
	RoomID   string    `json:"room_id"`
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
	Active   bool      `json:"active"`
}

// Vote is one user's decision on one catalog entry. At most one Vote
// exists per (room, user, item); votes are never amended or deleted.
type Vote struct {
	RoomID   string    `json:"room_id"`
	UserID   string    `json:"user_id"`
	ItemID   int64     `json:"item_id"`
	Decision Decision  `json:"decision"`
	VotedAt  time.Time `json:"voted_at"`
}

// Decision is a swipe direction.
type Decision string

const (
	DecisionYes Decision = "YES"
	DecisionNo  Decision = "NO"
)

// Valid reports whether the decision is YES or NO.
func (d Decision) Valid() bool {
	return d == DecisionYes || d == DecisionNo
}

// VoteTally holds the running YES count for one (room, item).
type VoteTally struct {
	RoomID   string `json:"room_id"`
	ItemID   int64  `json:"item_id"`
	YesCount int    `json:"yes_count"`
}

// MatchEvent is the single per-room record of a unanimous YES.
type MatchEvent struct {
	RoomID    string    `json:"room_id"`
	ItemID    int64     `json:"item_id"`
	MatchedAt time.Time `json:"matched_at"`
	Capacity  int       `json:"capacity"`
}

// RoomEvent is the frame streamed to subscribeRoomEvents clients.
type RoomEvent struct {
	Type       string      `json:"type"` // "match" or "status_change"
	RoomID     string      `json:"room_id"`
	Status     RoomStatus  `json:"status,omitempty"`
	Match      *MatchEvent `json:"match,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Event type discriminators for RoomEvent.
const (
	EventMatch        = "match"
	EventStatusChange = "status_change"
)
