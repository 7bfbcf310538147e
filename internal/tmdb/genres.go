// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package tmdb

import "github.com/reelswipe/reelswipe/internal/models"

// movieToTVGenre maps movie genre IDs onto their TV counterparts. The
// provider keeps two disjoint taxonomies: movies have Action (28),
// Adventure (12) and War (10752) while TV collapses them into
// Action & Adventure (10759) and War & Politics (10768). Room genre
// preferences are stored in movie terms; TV discovery translates them.
var movieToTVGenre = map[int]int{
	28:    10759, // Action -> Action & Adventure
	12:    10759, // Adventure -> Action & Adventure
	14:    10765, // Fantasy -> Sci-Fi & Fantasy
	878:   10765, // Science Fiction -> Sci-Fi & Fantasy
	10752: 10768, // War -> War & Politics
}

// NormalizeGenres translates genre IDs into the taxonomy of the target
// media type, deduplicating collisions (Action and Adventure both land
// on Action & Adventure) while preserving first-seen order. IDs with no
// mapping pass through unchanged since most genres are shared.
func NormalizeGenres(mediaType models.MediaType, genres []int) []int {
	if mediaType != models.MediaTV || len(genres) == 0 {
		return genres
	}
	out := make([]int, 0, len(genres))
	seen := make(map[int]bool, len(genres))
	for _, id := range genres {
		if mapped, ok := movieToTVGenre[id]; ok {
			id = mapped
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
