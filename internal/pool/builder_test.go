// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package pool

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/reelswipe/reelswipe/internal/config"
	"github.com/reelswipe/reelswipe/internal/domain"
	"github.com/reelswipe/reelswipe/internal/models"
	"github.com/reelswipe/reelswipe/internal/storage"
	"github.com/reelswipe/reelswipe/internal/tmdb"
)

// fakeMetadata serves canned discover pages keyed by genre mode.
type fakeMetadata struct {
	pages map[tmdb.GenreMode][]*models.DiscoverPage
	err   error
}

func (f *fakeMetadata) Discover(_ context.Context, q tmdb.DiscoverQuery) (*models.DiscoverPage, error) {
	if f.err != nil {
		return nil, f.err
	}
	pages := f.pages[q.Mode]
	if q.Page > len(pages) {
		return &models.DiscoverPage{Page: q.Page, TotalPages: len(pages)}, nil
	}
	return pages[q.Page-1], nil
}

func (f *fakeMetadata) GenresFor(context.Context, models.MediaType) ([]models.Genre, error) {
	return nil, nil
}

func movies(startID int64, n int) []models.DiscoverItem {
	out := make([]models.DiscoverItem, n)
	for i := range out {
		item := goodMovie()
		item.ID = startID + int64(i)
		item.Title = fmt.Sprintf("Movie %d", item.ID)
		out[i] = item
	}
	return out
}

func page(items []models.DiscoverItem, pageNum, totalPages int) *models.DiscoverPage {
	return &models.DiscoverPage{Page: pageNum, Results: items, TotalPages: totalPages, TotalResults: len(items) * totalPages}
}

func builderConfig() config.PoolConfig {
	cfg := gateConfig()
	cfg.MaxPagesPerTier = 5
	cfg.MinReleaseYear = 1990
	cfg.BuildTimeout = 5 * time.Second
	return cfg
}

func testRoom() *models.Room {
	return &models.Room{
		ID:         "room-build",
		Name:       "Friday night",
		InviteCode: "ABC234",
		MediaType:  models.MediaMovie,
		Genres:     []int{28, 80},
		Capacity:   3,
		Status:     models.RoomWaiting,
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  time.Now().UTC().Add(24 * time.Hour),
	}
}

func TestBuildFillsCatalogAcrossTiers(t *testing.T) {
	// Strict yields 30, permissive another 30 with 10 duplicates of the
	// strict set; the popular tier must not be needed.
	strictItems := movies(1000, 30)
	permissive := append(movies(1000, 10), movies(2000, 20)...)
	meta := &fakeMetadata{pages: map[tmdb.GenreMode][]*models.DiscoverPage{
		tmdb.GenreAll: {page(strictItems, 1, 1)},
		tmdb.GenreAny: {page(permissive, 1, 1)},
	}}
	store := storage.NewMemoryStore(nil)
	b := NewBuilder(store, meta, builderConfig())
	room := testRoom()

	entries, err := b.Build(context.Background(), room)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(entries) != 50 {
		t.Fatalf("entries = %d, want 50", len(entries))
	}
	for i, e := range entries {
		if e.SequenceIndex != i {
			t.Fatalf("entry %d has sequence %d", i, e.SequenceIndex)
		}
	}
	for i := 0; i < 30; i++ {
		if entries[i].Priority != models.PriorityStrict {
			t.Fatalf("entry %d priority = %d", i, entries[i].Priority)
		}
	}
	for i := 30; i < 50; i++ {
		if entries[i].Priority != models.PriorityPermissive {
			t.Fatalf("entry %d priority = %d", i, entries[i].Priority)
		}
	}
	seen := make(map[int64]bool)
	for _, e := range entries {
		if seen[e.ItemID] {
			t.Fatalf("duplicate item %d", e.ItemID)
		}
		seen[e.ItemID] = true
	}

	// Room record persisted with the invite index, entries readable.
	data, err := store.Get(context.Background(), storage.RoomKey(room.ID))
	if err != nil {
		t.Fatalf("room not persisted: %v", err)
	}
	var stored models.Room
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("unmarshal room: %v", err)
	}
	if stored.InviteCode != room.InviteCode {
		t.Fatalf("stored invite = %q", stored.InviteCode)
	}
	kvs, err := store.IndexQuery(context.Background(), storage.IndexRoomByInvite, room.InviteCode)
	if err != nil || len(kvs) != 1 {
		t.Fatalf("invite index = (%v, %v)", kvs, err)
	}
	if _, err := store.Get(context.Background(), storage.CatalogKey(room.ID, 49)); err != nil {
		t.Fatalf("last catalog entry missing: %v", err)
	}
}

func TestBuildSkipsPermissiveTierForSingleGenre(t *testing.T) {
	meta := &fakeMetadata{pages: map[tmdb.GenreMode][]*models.DiscoverPage{
		tmdb.GenreAll:  {page(movies(1000, 20), 1, 1)},
		tmdb.GenreAny:  {page(movies(5000, 50), 1, 1)},
		tmdb.GenreNone: {page(movies(3000, 40), 1, 1)},
	}}
	store := storage.NewMemoryStore(nil)
	b := NewBuilder(store, meta, builderConfig())
	room := testRoom()
	room.Genres = []int{28}

	entries, err := b.Build(context.Background(), room)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, e := range entries {
		if e.Priority == models.PriorityPermissive {
			t.Fatalf("permissive tier ran for a single-genre room: %+v", e)
		}
	}
}

func TestBuildNoGenresGoesStraightToPopular(t *testing.T) {
	meta := &fakeMetadata{pages: map[tmdb.GenreMode][]*models.DiscoverPage{
		tmdb.GenreNone: {page(movies(3000, 60), 1, 1)},
	}}
	store := storage.NewMemoryStore(nil)
	b := NewBuilder(store, meta, builderConfig())
	room := testRoom()
	room.Genres = nil

	entries, err := b.Build(context.Background(), room)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, e := range entries {
		if e.Priority != models.PriorityPopular {
			t.Fatalf("priority = %d, want popular", e.Priority)
		}
	}
}

func TestBuildInsufficientContentPersistsNothing(t *testing.T) {
	meta := &fakeMetadata{pages: map[tmdb.GenreMode][]*models.DiscoverPage{
		tmdb.GenreAll:  {page(movies(1000, 10), 1, 1)},
		tmdb.GenreAny:  {page(movies(2000, 10), 1, 1)},
		tmdb.GenreNone: {page(movies(3000, 10), 1, 1)},
	}}
	store := storage.NewMemoryStore(nil)
	b := NewBuilder(store, meta, builderConfig())

	_, err := b.Build(context.Background(), testRoom())
	if domain.KindOf(err) != domain.KindInsufficientContent {
		t.Fatalf("kind = %q", domain.KindOf(err))
	}
	if store.Len() != 0 {
		t.Fatalf("store holds %d records after failed build", store.Len())
	}
}

func TestBuildPropagatesDiscoveryError(t *testing.T) {
	meta := &fakeMetadata{err: domain.E(domain.KindUpstreamUnavailable, "circuit open")}
	store := storage.NewMemoryStore(nil)
	b := NewBuilder(store, meta, builderConfig())

	_, err := b.Build(context.Background(), testRoom())
	if domain.KindOf(err) != domain.KindUpstreamUnavailable {
		t.Fatalf("kind = %q", domain.KindOf(err))
	}
	if store.Len() != 0 {
		t.Fatalf("store holds %d records after failed build", store.Len())
	}
}

func TestBuildRollsBackEntriesWhenRoomWriteFails(t *testing.T) {
	meta := &fakeMetadata{pages: map[tmdb.GenreMode][]*models.DiscoverPage{
		tmdb.GenreAll: {page(movies(1000, 60), 1, 1)},
	}}
	store := storage.NewMemoryStore(nil)
	room := testRoom()

	// Occupy the room key so the final conditional write loses.
	if err := store.PutConditional(context.Background(), storage.RoomKey(room.ID), []byte(`{}`), storage.Absent()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	b := NewBuilder(store, meta, builderConfig())
	_, err := b.Build(context.Background(), room)
	if !errors.Is(err, domain.ErrConditionFailed) {
		t.Fatalf("err = %v, want CONDITION_FAILED", err)
	}
	if store.Len() != 1 {
		t.Fatalf("catalog entries not rolled back: %d records", store.Len())
	}
}

func TestBuildRejectedItemsDoNotCount(t *testing.T) {
	items := movies(1000, 60)
	for i := 0; i < 20; i++ {
		items[i].PosterPath = ""
	}
	meta := &fakeMetadata{pages: map[tmdb.GenreMode][]*models.DiscoverPage{
		tmdb.GenreAll: {page(items, 1, 1)},
	}}
	store := storage.NewMemoryStore(nil)
	b := NewBuilder(store, meta, builderConfig())

	entries, err := b.Build(context.Background(), testRoom())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(entries) != 50 {
		t.Fatalf("entries = %d", len(entries))
	}
	for _, e := range entries {
		if e.ItemID < 1020 {
			t.Fatalf("posterless item %d admitted", e.ItemID)
		}
	}
}
