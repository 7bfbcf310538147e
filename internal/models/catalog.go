// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package models

// CatalogEntry is one validated title in a room's fixed fifty-entry
// sequence. Entries are immutable once written; SequenceIndex runs
// 0..49 contiguously and ItemIDs are unique within a room.
type CatalogEntry struct {
	RoomID           string  `json:"room_id"`
	SequenceIndex    int     `json:"sequence_index"`
	ItemID           int64   `json:"item_id"`
	Title            string  `json:"title"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	ReleaseDate      string  `json:"release_date"`
	OriginalLanguage string  `json:"original_language"`
	GenreIDs         []int   `json:"genre_ids"`
	VoteAverage      float64 `json:"vote_average"`
	Priority         int     `json:"priority"` // 1=strict, 2=permissive, 3=popular
}

// Priority tiers assigned by the pool builder.
const (
	PriorityStrict     = 1
	PriorityPermissive = 2
	PriorityPopular    = 3
)

// Progress reports how far a user is through a room's catalog.
type Progress struct {
	RoomID     string `json:"room_id"`
	UserID     string `json:"user_id"`
	VotedCount int    `json:"voted_count"`
	Total      int    `json:"total"`
	Remaining  int    `json:"remaining"`
}
