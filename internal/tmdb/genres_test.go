// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package tmdb

import (
	"testing"

	"github.com/reelswipe/reelswipe/internal/models"
)

func TestNormalizeGenresTranslatesMovieIDs(t *testing.T) {
	cases := []struct {
		name string
		in   []int
		want []int
	}{
		{"action to action-adventure", []int{28}, []int{10759}},
		{"scifi and fantasy collapse", []int{878, 14}, []int{10765}},
		{"war to war-politics", []int{10752}, []int{10768}},
		{"shared ids pass through", []int{35, 18}, []int{35, 18}},
		{"mixed translated and shared", []int{28, 35}, []int{10759, 35}},
		{"adventure dedupes with action", []int{28, 12}, []int{10759}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeGenres(models.MediaTV, tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("NormalizeGenres(%v) = %v, want %v", tc.in, got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Fatalf("NormalizeGenres(%v) = %v, want %v", tc.in, got, tc.want)
				}
			}
		})
	}
}

func TestNormalizeGenresLeavesMoviesAlone(t *testing.T) {
	in := []int{28, 12, 878}
	got := NormalizeGenres(models.MediaMovie, in)
	if len(got) != 3 || got[0] != 28 || got[1] != 12 || got[2] != 878 {
		t.Fatalf("NormalizeGenres(movie, %v) = %v", in, got)
	}
}

func TestNormalizeGenresEmpty(t *testing.T) {
	if got := NormalizeGenres(models.MediaTV, nil); len(got) != 0 {
		t.Fatalf("NormalizeGenres(tv, nil) = %v", got)
	}
}
