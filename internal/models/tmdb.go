// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package models

// DiscoverItem is one raw candidate record as returned by the metadata
// provider. Movie and TV responses share this shape: movies populate
// Title/ReleaseDate, TV populates Name/FirstAirDate. The pool builder
// rejects any item carrying fields of the other shape.
type DiscoverItem struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title,omitempty"`
	ReleaseDate      string  `json:"release_date,omitempty"`
	Name             string  `json:"name,omitempty"`
	FirstAirDate     string  `json:"first_air_date,omitempty"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	OriginalLanguage string  `json:"original_language"`
	GenreIDs         []int   `json:"genre_ids"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Adult            bool    `json:"adult"`
}

// DiscoverPage is one page of the provider's discover response.
type DiscoverPage struct {
	Page         int            `json:"page"`
	Results      []DiscoverItem `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

// Genre is one entry of the provider's authoritative genre list.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// GenreList is the provider's genre list response.
type GenreList struct {
	Genres []Genre `json:"genres"`
}
