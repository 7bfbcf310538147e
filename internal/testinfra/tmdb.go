// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package testinfra

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/reelswipe/reelswipe/internal/models"
)

// Discovery tiers as they appear on the wire: the strict tier joins
// genres with commas, the permissive tier with pipes and the popular
// tier sends no genre expression at all.
const (
	TierStrict     = "strict"
	TierPermissive = "permissive"
	TierPopular    = "popular"
)

// ProviderCapture records one request the fake provider served.
type ProviderCapture struct {
	Path   string
	Params url.Values
}

// FakeProvider is an in-process stand-in for the metadata provider API.
// It serves canned discovery pages keyed by tier and genre lists keyed
// by media type, and captures every request for verification.
type FakeProvider struct {
	Server *httptest.Server

	mu       sync.Mutex
	captures []ProviderCapture
	pages    map[string][]models.DiscoverPage
	genres   map[models.MediaType][]models.Genre

	// ResponseStatus, when non-zero, short-circuits every request with
	// that status code.
	ResponseStatus int

	// ResponseFunc, when set, handles every request instead of the
	// canned data.
	ResponseFunc http.HandlerFunc
}

// NewFakeProvider starts the fake and registers its shutdown with t.
// Genre lists for both media types come pre-seeded; discovery pages
// start empty.
func NewFakeProvider(t *testing.T) *FakeProvider {
	t.Helper()

	f := &FakeProvider{
		pages: make(map[string][]models.DiscoverPage),
		genres: map[models.MediaType][]models.Genre{
			models.MediaMovie: {
				{ID: 28, Name: "Action"},
				{ID: 35, Name: "Comedy"},
				{ID: 80, Name: "Crime"},
			},
			models.MediaTV: {
				{ID: 10759, Name: "Action & Adventure"},
				{ID: 35, Name: "Comedy"},
				{ID: 80, Name: "Crime"},
			},
		},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the fake's base URL for client configuration.
func (f *FakeProvider) URL() string {
	return f.Server.URL
}

// SetPages installs the discovery pages served for one tier, replacing
// any previous set.
func (f *FakeProvider) SetPages(tier string, pages ...models.DiscoverPage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[tier] = pages
}

// SetGenres replaces the genre list for a media type.
func (f *FakeProvider) SetGenres(mediaType models.MediaType, genres []models.Genre) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genres[mediaType] = genres
}

// Captures returns a copy of all requests served so far.
func (f *FakeProvider) Captures() []ProviderCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ProviderCapture, len(f.captures))
	copy(out, f.captures)
	return out
}

// CaptureCount returns the number of requests served so far.
func (f *FakeProvider) CaptureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.captures)
}

// Reset clears captured requests.
func (f *FakeProvider) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures = f.captures[:0]
}

func (f *FakeProvider) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.captures = append(f.captures, ProviderCapture{Path: r.URL.Path, Params: r.URL.Query()})
	status := f.ResponseStatus
	custom := f.ResponseFunc
	f.mu.Unlock()

	if custom != nil {
		custom(w, r)
		return
	}
	if status != 0 {
		w.WriteHeader(status)
		return
	}

	switch r.URL.Path {
	case "/discover/movie", "/discover/tv":
		f.serveDiscover(w, r)
	case "/genre/movie/list":
		f.serveGenres(w, models.MediaMovie)
	case "/genre/tv/list":
		f.serveGenres(w, models.MediaTV)
	default:
		http.NotFound(w, r)
	}
}

func (f *FakeProvider) serveDiscover(w http.ResponseWriter, r *http.Request) {
	tier := tierOf(r.URL.Query().Get("with_genres"))
	pageNum, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if pageNum < 1 {
		pageNum = 1
	}

	f.mu.Lock()
	pages := f.pages[tier]
	f.mu.Unlock()

	if pageNum > len(pages) {
		writeJSON(w, models.DiscoverPage{Page: pageNum, TotalPages: len(pages)})
		return
	}
	writeJSON(w, pages[pageNum-1])
}

func (f *FakeProvider) serveGenres(w http.ResponseWriter, mediaType models.MediaType) {
	f.mu.Lock()
	genres := f.genres[mediaType]
	f.mu.Unlock()
	writeJSON(w, models.GenreList{Genres: genres})
}

// tierOf recovers the tier from the genre expression separator.
func tierOf(expr string) string {
	switch {
	case expr == "":
		return TierPopular
	case strings.Contains(expr, "|"):
		return TierPermissive
	default:
		return TierStrict
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write(data) //nolint:errcheck
}

// Movies fabricates n movie candidates with sequential IDs that pass
// the default quality gate.
func Movies(startID int64, n int) []models.DiscoverItem {
	out := make([]models.DiscoverItem, n)
	for i := range out {
		id := startID + int64(i)
		out[i] = models.DiscoverItem{
			ID:               id,
			Title:            fmt.Sprintf("Movie %d", id),
			ReleaseDate:      "2021-06-04",
			Overview:         "A retired heist crew regroups for one last score across three countries.",
			PosterPath:       fmt.Sprintf("/poster%d.jpg", id),
			OriginalLanguage: "en",
			GenreIDs:         []int{28, 80},
			VoteAverage:      7.2,
			VoteCount:        840,
		}
	}
	return out
}

// Shows fabricates n TV candidates with sequential IDs that pass the
// default quality gate.
func Shows(startID int64, n int) []models.DiscoverItem {
	out := Movies(startID, n)
	for i := range out {
		out[i].Name = out[i].Title
		out[i].FirstAirDate = out[i].ReleaseDate
		out[i].Title = ""
		out[i].ReleaseDate = ""
	}
	return out
}

// Page wraps items into one discovery page.
func Page(items []models.DiscoverItem, pageNum, totalPages int) models.DiscoverPage {
	return models.DiscoverPage{
		Page:         pageNum,
		Results:      items,
		TotalPages:   totalPages,
		TotalResults: len(items) * totalPages,
	}
}
