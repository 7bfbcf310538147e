// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

// Package catalog serves a room's fixed title sequence to its members.
//
// There is no stored per-user cursor: a member's position is derived
// from their vote count, so the read path is idempotent and survives
// client retries and reconnects without coordination.
package catalog

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/reelswipe/reelswipe/internal/cache"
	"github.com/reelswipe/reelswipe/internal/domain"
	"github.com/reelswipe/reelswipe/internal/logging"
	"github.com/reelswipe/reelswipe/internal/metrics"
	"github.com/reelswipe/reelswipe/internal/models"
	"github.com/reelswipe/reelswipe/internal/storage"
)

// ErrExhausted is returned when a member has voted on every entry.
var ErrExhausted = domain.E(domain.KindNotFound, "catalog exhausted")

// Service reads catalog entries through a batch-window cache. Windows
// are immutable once the catalog is built, so cached windows never go
// stale; the TTL only bounds memory held for dormant rooms.
type Service struct {
	store       storage.Store
	windows     *cache.LRU[[]models.CatalogEntry]
	items       *cache.LRU[map[int64]bool]
	windowSize  int
	catalogSize int
}

// NewService builds a catalog reader. windowSize is the number of
// entries fetched per storage scan; catalogSize is the fixed sequence
// length of every room.
func NewService(store storage.Store, windowSize, catalogSize int) *Service {
	if windowSize <= 0 {
		windowSize = 10
	}
	return &Service{
		store:       store,
		windows:     cache.NewLRU[[]models.CatalogEntry](4096, 30*time.Minute),
		items:       cache.NewLRU[map[int64]bool](4096, 30*time.Minute),
		windowSize:  windowSize,
		catalogSize: catalogSize,
	}
}

// NextFor returns the entry the member should see next along with their
// progress. The position is their vote count, so calling NextFor twice
// without voting returns the same entry.
func (s *Service) NextFor(ctx context.Context, roomID, userID string) (*models.CatalogEntry, *models.Progress, error) {
	voted, err := s.votedCount(ctx, roomID, userID)
	if err != nil {
		return nil, nil, err
	}
	progress := &models.Progress{
		RoomID:     roomID,
		UserID:     userID,
		VotedCount: voted,
		Total:      s.catalogSize,
		Remaining:  s.catalogSize - voted,
	}
	if voted >= s.catalogSize {
		progress.Remaining = 0
		return nil, progress, ErrExhausted
	}

	entry, err := s.entryAt(ctx, roomID, voted)
	if err != nil {
		return nil, nil, err
	}
	s.maybePreload(ctx, roomID, voted)
	return entry, progress, nil
}

// Progress reports a member's position without fetching an entry.
func (s *Service) Progress(ctx context.Context, roomID, userID string) (*models.Progress, error) {
	voted, err := s.votedCount(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	remaining := s.catalogSize - voted
	if remaining < 0 {
		remaining = 0
	}
	return &models.Progress{
		RoomID:     roomID,
		UserID:     userID,
		VotedCount: voted,
		Total:      s.catalogSize,
		Remaining:  remaining,
	}, nil
}

// votedCount counts the member's votes in the room. Vote sort segments
// are "<userId>#<itemId>"; '$' is the byte after '#', so the range
// covers exactly this user's votes.
func (s *Service) votedCount(ctx context.Context, roomID, userID string) (int, error) {
	kvs, err := s.store.RangeGet(ctx, storage.VotePartition(roomID), userID+"#", userID+"$", s.catalogSize+1)
	if err != nil {
		return 0, err
	}
	return len(kvs), nil
}

// entryAt resolves one sequence index through the window cache.
func (s *Service) entryAt(ctx context.Context, roomID string, index int) (*models.CatalogEntry, error) {
	window, err := s.window(ctx, roomID, index/s.windowSize)
	if err != nil {
		return nil, err
	}
	offset := index % s.windowSize
	if offset >= len(window) {
		// The vote count exceeds the stored catalog tail. Votes are only
		// accepted for catalog items, so this indicates a truncated
		// catalog rather than a client error.
		return nil, domain.E(domain.KindTransient, fmt.Sprintf("catalog %s missing index %d", roomID, index))
	}
	entry := window[offset]
	return &entry, nil
}

func (s *Service) window(ctx context.Context, roomID string, batch int) ([]models.CatalogEntry, error) {
	key := windowKey(roomID, batch)
	if cached, ok := s.windows.Get(key); ok {
		metrics.CatalogWindowHits.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.CatalogWindowHits.WithLabelValues("miss").Inc()

	from := fmt.Sprintf("%03d", batch*s.windowSize)
	to := fmt.Sprintf("%03d", (batch+1)*s.windowSize-1)
	kvs, err := s.store.RangeGet(ctx, storage.CatalogPartition(roomID), from, to, s.windowSize)
	if err != nil {
		return nil, err
	}
	if len(kvs) == 0 {
		return nil, domain.Wrap(domain.KindNotFound, "room "+roomID+" has no catalog", domain.ErrNotFound)
	}

	window := make([]models.CatalogEntry, 0, len(kvs))
	for _, kv := range kvs {
		var entry models.CatalogEntry
		if err := json.Unmarshal(kv.Value, &entry); err != nil {
			return nil, domain.Wrap(domain.KindTransient, "decode catalog entry "+kv.Key, err)
		}
		window = append(window, entry)
	}
	s.windows.Add(key, window)
	return window, nil
}

// Contains reports whether itemID is part of the room's catalog. The
// item set is immutable, so it is cached alongside the windows.
func (s *Service) Contains(ctx context.Context, roomID string, itemID int64) (bool, error) {
	items, err := s.itemSet(ctx, roomID)
	if err != nil {
		return false, err
	}
	return items[itemID], nil
}

func (s *Service) itemSet(ctx context.Context, roomID string) (map[int64]bool, error) {
	if cached, ok := s.items.Get(roomID); ok {
		return cached, nil
	}
	kvs, err := s.store.RangeGet(ctx, storage.CatalogPartition(roomID), "", "", s.catalogSize)
	if err != nil {
		return nil, err
	}
	if len(kvs) == 0 {
		return nil, domain.Wrap(domain.KindNotFound, "room "+roomID+" has no catalog", domain.ErrNotFound)
	}
	items := make(map[int64]bool, len(kvs))
	for _, kv := range kvs {
		var entry models.CatalogEntry
		if err := json.Unmarshal(kv.Value, &entry); err != nil {
			return nil, domain.Wrap(domain.KindTransient, "decode catalog entry "+kv.Key, err)
		}
		items[entry.ItemID] = true
	}
	s.items.Add(roomID, items)
	return items, nil
}

// maybePreload warms the next window once the member is 80% of the way
// through the current one, hiding the scan latency of the boundary.
func (s *Service) maybePreload(ctx context.Context, roomID string, index int) {
	offset := index % s.windowSize
	if (offset+1)*5 < s.windowSize*4 {
		return
	}
	next := index/s.windowSize + 1
	if next*s.windowSize >= s.catalogSize {
		return
	}
	if _, ok := s.windows.Get(windowKey(roomID, next)); ok {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, err := s.window(ctx, roomID, next); err != nil {
			logging.Debug().Err(err).Str("room_id", roomID).Int("batch", next).Msg("Window preload failed")
		}
	}()
}

func windowKey(roomID string, batch int) string {
	return roomID + ":" + strconv.Itoa(batch)
}
