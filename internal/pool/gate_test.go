// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package pool

import (
	"strings"
	"testing"

	"github.com/reelswipe/reelswipe/internal/config"
	"github.com/reelswipe/reelswipe/internal/models"
)

func gateConfig() config.PoolConfig {
	return config.PoolConfig{
		MoviesPerRoom:              50,
		WesternLanguages:           []string{"en", "es", "fr"},
		MinOverviewLength:          20,
		PlaceholderOverviewPhrases: []string{"no description available", "overview coming soon"},
		InappropriateKeywords:      []string{"xxx", "erotic"},
		MinVoteCount:               50,
	}
}

func goodMovie() models.DiscoverItem {
	return models.DiscoverItem{
		ID:               603692,
		Title:            "John Wick: Chapter 4",
		ReleaseDate:      "2023-03-22",
		Overview:         "With the price on his head ever increasing, John Wick takes his fight global.",
		PosterPath:       "/vZloFAK7NmvMGKE7VkF5UHaz0I.jpg",
		OriginalLanguage: "en",
		GenreIDs:         []int{28, 80},
		VoteAverage:      7.8,
		VoteCount:        6043,
	}
}

func goodShow() models.DiscoverItem {
	item := goodMovie()
	item.Name = item.Title
	item.FirstAirDate = item.ReleaseDate
	item.Title = ""
	item.ReleaseDate = ""
	return item
}

func TestGateAcceptsQualifyingItem(t *testing.T) {
	g := NewGate(gateConfig())
	if reason, ok := g.Check(models.MediaMovie, goodMovie()); !ok {
		t.Fatalf("rejected: %s", reason)
	}
	if reason, ok := g.Check(models.MediaTV, goodShow()); !ok {
		t.Fatalf("rejected show: %s", reason)
	}
}

func TestGateRejections(t *testing.T) {
	cases := []struct {
		reason string
		mutate func(*models.DiscoverItem)
	}{
		{RejectShape, func(i *models.DiscoverItem) { i.Title = "" }},
		{RejectShape, func(i *models.DiscoverItem) { i.Name = "Leaked Show Name" }},
		{RejectAdult, func(i *models.DiscoverItem) { i.Adult = true }},
		{RejectPoster, func(i *models.DiscoverItem) { i.PosterPath = "" }},
		{RejectLanguage, func(i *models.DiscoverItem) { i.OriginalLanguage = "ja" }},
		{RejectGenres, func(i *models.DiscoverItem) { i.GenreIDs = nil }},
		{RejectRating, func(i *models.DiscoverItem) { i.VoteAverage = 10.5 }},
		{RejectRating, func(i *models.DiscoverItem) { i.VoteAverage = -1 }},
		{RejectVoteCount, func(i *models.DiscoverItem) { i.VoteCount = 49 }},
		{RejectOverview, func(i *models.DiscoverItem) { i.Overview = "Too short." }},
		{RejectOverview, func(i *models.DiscoverItem) { i.Overview = strings.Repeat(" ", 40) + "padded" }},
		{RejectPlaceholder, func(i *models.DiscoverItem) {
			i.Overview = "No description available for this title yet, check back."
		}},
		{RejectKeyword, func(i *models.DiscoverItem) {
			i.Overview = "An EROTIC thriller that runs far past the minimum length."
		}},
		{RejectKeyword, func(i *models.DiscoverItem) { i.Title = "Triple XXX Returns" }},
	}
	for _, tc := range cases {
		t.Run(tc.reason, func(t *testing.T) {
			g := NewGate(gateConfig())
			item := goodMovie()
			tc.mutate(&item)
			reason, ok := g.Check(models.MediaMovie, item)
			if ok {
				t.Fatal("item accepted")
			}
			if reason != tc.reason {
				t.Fatalf("reason = %q, want %q", reason, tc.reason)
			}
		})
	}
}

func TestGateLanguageCaseInsensitive(t *testing.T) {
	g := NewGate(gateConfig())
	item := goodMovie()
	item.OriginalLanguage = "EN"
	if reason, ok := g.Check(models.MediaMovie, item); !ok {
		t.Fatalf("uppercase language rejected: %s", reason)
	}
}

func TestGateOverviewBoundary(t *testing.T) {
	g := NewGate(gateConfig())
	item := goodMovie()

	item.Overview = strings.Repeat("a", 20) // equal to minimum rejects
	if reason, ok := g.Check(models.MediaMovie, item); ok || reason != RejectOverview {
		t.Fatalf("boundary overview = (%q, %v)", reason, ok)
	}
	item.Overview = strings.Repeat("a", 21)
	if reason, ok := g.Check(models.MediaMovie, item); !ok {
		t.Fatalf("21-char overview rejected: %s", reason)
	}
}

func TestToCatalogEntry(t *testing.T) {
	item := goodMovie()
	item.Overview = "  " + item.Overview + "  "
	entry := toCatalogEntry("room-1", models.MediaMovie, item, 7, models.PriorityPermissive)
	if entry.RoomID != "room-1" || entry.SequenceIndex != 7 || entry.ItemID != item.ID {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.Title != item.Title || entry.ReleaseDate != item.ReleaseDate {
		t.Fatalf("title fields = %q / %q", entry.Title, entry.ReleaseDate)
	}
	if strings.HasPrefix(entry.Overview, " ") {
		t.Fatal("overview not trimmed")
	}
	if entry.Priority != models.PriorityPermissive {
		t.Fatalf("priority = %d", entry.Priority)
	}

	show := goodShow()
	entry = toCatalogEntry("room-1", models.MediaTV, show, 0, models.PriorityStrict)
	if entry.Title != show.Name || entry.ReleaseDate != show.FirstAirDate {
		t.Fatalf("tv entry = %+v", entry)
	}
}
