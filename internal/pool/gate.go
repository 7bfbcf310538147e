// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

// Package pool assembles the fixed fifty-entry catalog a room swipes
// through. The builder walks three progressively looser discovery tiers
// and runs every candidate through a zero-tolerance quality gate.
package pool

import (
	"strings"

	"github.com/reelswipe/reelswipe/internal/cache"
	"github.com/reelswipe/reelswipe/internal/config"
	"github.com/reelswipe/reelswipe/internal/metrics"
	"github.com/reelswipe/reelswipe/internal/models"
)

// Rejection reasons reported by the gate. Exported for tests and
// metrics; one label value per reason.
const (
	RejectShape       = "shape_mismatch"
	RejectAdult       = "adult"
	RejectOverview    = "overview_too_short"
	RejectPlaceholder = "overview_placeholder"
	RejectPoster      = "missing_poster"
	RejectLanguage    = "language"
	RejectGenres      = "no_genres"
	RejectRating      = "invalid_rating"
	RejectVoteCount   = "low_vote_count"
	RejectKeyword     = "inappropriate_keyword"
)

// Gate applies the quality rules to raw discovery candidates. A single
// failed rule rejects the candidate; there is no scoring or tolerance.
// Provider-side filters are treated as advisory, so the gate re-checks
// everything locally.
type Gate struct {
	cfg          config.PoolConfig
	languages    map[string]bool
	placeholders *cache.PhraseSet
	keywords     *cache.PhraseSet
}

// NewGate compiles the phrase automatons and language set once.
func NewGate(cfg config.PoolConfig) *Gate {
	langs := make(map[string]bool, len(cfg.WesternLanguages))
	for _, l := range cfg.WesternLanguages {
		langs[strings.ToLower(l)] = true
	}
	return &Gate{
		cfg:          cfg,
		languages:    langs,
		placeholders: cache.NewPhraseSet(cfg.PlaceholderOverviewPhrases),
		keywords:     cache.NewPhraseSet(cfg.InappropriateKeywords),
	}
}

// Check runs every rule against the candidate, returning the first
// rejection reason or ok=true. Rule order is cheapest-first.
func (g *Gate) Check(mediaType models.MediaType, item models.DiscoverItem) (reason string, ok bool) {
	if !shapeMatches(mediaType, item) {
		return RejectShape, false
	}
	if item.Adult {
		return RejectAdult, false
	}
	if item.PosterPath == "" {
		return RejectPoster, false
	}
	if !g.languages[strings.ToLower(item.OriginalLanguage)] {
		return RejectLanguage, false
	}
	if len(item.GenreIDs) == 0 {
		return RejectGenres, false
	}
	if item.VoteAverage < 0 || item.VoteAverage > 10 {
		return RejectRating, false
	}
	if item.VoteCount < g.cfg.MinVoteCount {
		return RejectVoteCount, false
	}

	overview := strings.TrimSpace(item.Overview)
	if len(overview) <= g.cfg.MinOverviewLength {
		return RejectOverview, false
	}
	if g.placeholders.Contains(overview) {
		return RejectPlaceholder, false
	}
	if g.keywords.Contains(titleOf(mediaType, item)) || g.keywords.Contains(overview) {
		return RejectKeyword, false
	}
	return "", true
}

// shapeMatches enforces that a candidate carries exactly the fields of
// the requested media type. Items leaking the other shape indicate a
// provider mixup and are rejected outright.
func shapeMatches(mediaType models.MediaType, item models.DiscoverItem) bool {
	if mediaType == models.MediaTV {
		return item.Name != "" && item.FirstAirDate != "" &&
			item.Title == "" && item.ReleaseDate == ""
	}
	return item.Title != "" && item.ReleaseDate != "" &&
		item.Name == "" && item.FirstAirDate == ""
}

func titleOf(mediaType models.MediaType, item models.DiscoverItem) string {
	if mediaType == models.MediaTV {
		return item.Name
	}
	return item.Title
}

func releaseDateOf(mediaType models.MediaType, item models.DiscoverItem) string {
	if mediaType == models.MediaTV {
		return item.FirstAirDate
	}
	return item.ReleaseDate
}

// toCatalogEntry converts an accepted candidate into a catalog entry at
// the given sequence slot and priority tier.
func toCatalogEntry(roomID string, mediaType models.MediaType, item models.DiscoverItem, seq, priority int) models.CatalogEntry {
	return models.CatalogEntry{
		RoomID:           roomID,
		SequenceIndex:    seq,
		ItemID:           item.ID,
		Title:            titleOf(mediaType, item),
		Overview:         strings.TrimSpace(item.Overview),
		PosterPath:       item.PosterPath,
		ReleaseDate:      releaseDateOf(mediaType, item),
		OriginalLanguage: item.OriginalLanguage,
		GenreIDs:         item.GenreIDs,
		VoteAverage:      item.VoteAverage,
		Priority:         priority,
	}
}

// observeRejection records a gate rejection in metrics.
func observeRejection(reason string) {
	metrics.PoolItemsRejected.WithLabelValues(reason).Inc()
}
