// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/reelswipe/reelswipe/internal/domain"
	"github.com/reelswipe/reelswipe/internal/models"
	"github.com/reelswipe/reelswipe/internal/storage"
)

const (
	testCatalogSize = 50
	testWindowSize  = 10
)

// seedCatalog writes a contiguous catalog with item IDs 1000+seq.
func seedCatalog(t *testing.T, store storage.Store, roomID string) {
	t.Helper()
	for seq := 0; seq < testCatalogSize; seq++ {
		entry := models.CatalogEntry{
			RoomID:        roomID,
			SequenceIndex: seq,
			ItemID:        int64(1000 + seq),
			Title:         fmt.Sprintf("Movie %d", seq),
			Overview:      "A perfectly serviceable synopsis for testing.",
			PosterPath:    "/p.jpg",
			VoteAverage:   7.0,
			Priority:      models.PriorityStrict,
		}
		data, err := json.Marshal(entry)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if err := store.PutConditional(context.Background(), storage.CatalogKey(roomID, seq), data, storage.Absent()); err != nil {
			t.Fatalf("seed entry %d: %v", seq, err)
		}
	}
}

func seedVotes(t *testing.T, store storage.Store, roomID, userID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		vote := models.Vote{
			RoomID:   roomID,
			UserID:   userID,
			ItemID:   int64(1000 + i),
			Decision: models.DecisionNo,
			VotedAt:  time.Now().UTC(),
		}
		data, _ := json.Marshal(vote)
		key := storage.VoteKey(roomID, userID, vote.ItemID)
		if err := store.PutConditional(context.Background(), key, data, storage.Absent()); err != nil {
			t.Fatalf("seed vote %d: %v", i, err)
		}
	}
}

func TestNextForStartsAtZero(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	seedCatalog(t, store, "r1")
	svc := NewService(store, testWindowSize, testCatalogSize)

	entry, progress, err := svc.NextFor(context.Background(), "r1", "alice")
	if err != nil {
		t.Fatalf("NextFor: %v", err)
	}
	if entry.SequenceIndex != 0 || entry.ItemID != 1000 {
		t.Fatalf("entry = %+v", entry)
	}
	if progress.VotedCount != 0 || progress.Total != testCatalogSize || progress.Remaining != testCatalogSize {
		t.Fatalf("progress = %+v", progress)
	}
}

func TestNextForIsIdempotentWithoutVotes(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	seedCatalog(t, store, "r1")
	seedVotes(t, store, "r1", "alice", 3)
	svc := NewService(store, testWindowSize, testCatalogSize)

	first, _, err := svc.NextFor(context.Background(), "r1", "alice")
	if err != nil {
		t.Fatalf("NextFor: %v", err)
	}
	second, _, err := svc.NextFor(context.Background(), "r1", "alice")
	if err != nil {
		t.Fatalf("NextFor again: %v", err)
	}
	if first.SequenceIndex != 3 || second.SequenceIndex != 3 {
		t.Fatalf("positions = %d, %d", first.SequenceIndex, second.SequenceIndex)
	}
}

func TestNextForAdvancesWithVotes(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	seedCatalog(t, store, "r1")
	svc := NewService(store, testWindowSize, testCatalogSize)

	// Positions are derived from votes, including across window
	// boundaries.
	for _, voted := range []int{0, 9, 10, 25, 49} {
		seedVotes(t, store, "r1", fmt.Sprintf("user-%d", voted), voted)
		entry, progress, err := svc.NextFor(context.Background(), "r1", fmt.Sprintf("user-%d", voted))
		if err != nil {
			t.Fatalf("NextFor at %d: %v", voted, err)
		}
		if entry.SequenceIndex != voted {
			t.Fatalf("position after %d votes = %d", voted, entry.SequenceIndex)
		}
		if progress.Remaining != testCatalogSize-voted {
			t.Fatalf("remaining after %d votes = %d", voted, progress.Remaining)
		}
	}
}

func TestNextForExhausted(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	seedCatalog(t, store, "r1")
	seedVotes(t, store, "r1", "alice", testCatalogSize)
	svc := NewService(store, testWindowSize, testCatalogSize)

	entry, progress, err := svc.NextFor(context.Background(), "r1", "alice")
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if entry != nil {
		t.Fatalf("entry = %+v, want nil", entry)
	}
	if progress == nil || progress.Remaining != 0 || progress.VotedCount != testCatalogSize {
		t.Fatalf("progress = %+v", progress)
	}
}

func TestNextForMissingCatalog(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	svc := NewService(store, testWindowSize, testCatalogSize)
	_, _, err := svc.NextFor(context.Background(), "ghost", "alice")
	if domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("kind = %q", domain.KindOf(err))
	}
}

func TestVotesFromOtherUsersDoNotAdvance(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	seedCatalog(t, store, "r1")
	seedVotes(t, store, "r1", "bob", 20)
	svc := NewService(store, testWindowSize, testCatalogSize)

	entry, _, err := svc.NextFor(context.Background(), "r1", "alice")
	if err != nil {
		t.Fatalf("NextFor: %v", err)
	}
	if entry.SequenceIndex != 0 {
		t.Fatalf("alice advanced by bob's votes: %d", entry.SequenceIndex)
	}
}

func TestProgress(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	seedCatalog(t, store, "r1")
	seedVotes(t, store, "r1", "alice", 12)
	svc := NewService(store, testWindowSize, testCatalogSize)

	p, err := svc.Progress(context.Background(), "r1", "alice")
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.VotedCount != 12 || p.Remaining != 38 || p.Total != testCatalogSize {
		t.Fatalf("progress = %+v", p)
	}
}

func TestContains(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	seedCatalog(t, store, "r1")
	svc := NewService(store, testWindowSize, testCatalogSize)
	ctx := context.Background()

	ok, err := svc.Contains(ctx, "r1", 1000)
	if err != nil || !ok {
		t.Fatalf("Contains(1000) = (%v, %v)", ok, err)
	}
	ok, err = svc.Contains(ctx, "r1", 1049)
	if err != nil || !ok {
		t.Fatalf("Contains(1049) = (%v, %v)", ok, err)
	}
	ok, err = svc.Contains(ctx, "r1", 99)
	if err != nil || ok {
		t.Fatalf("Contains(99) = (%v, %v)", ok, err)
	}
	if _, err := svc.Contains(ctx, "ghost", 1000); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("kind = %q", domain.KindOf(err))
	}
}

func TestWindowCacheServesRepeatedReads(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	seedCatalog(t, store, "r1")
	svc := NewService(store, testWindowSize, testCatalogSize)
	ctx := context.Background()

	if _, _, err := svc.NextFor(ctx, "r1", "alice"); err != nil {
		t.Fatalf("warm read: %v", err)
	}
	// Remove the backing entries; a cached window must still answer.
	for seq := 0; seq < testWindowSize; seq++ {
		if err := store.Delete(ctx, storage.CatalogKey("r1", seq)); err != nil {
			t.Fatalf("delete: %v", err)
		}
	}
	entry, _, err := svc.NextFor(ctx, "r1", "alice")
	if err != nil {
		t.Fatalf("cached read: %v", err)
	}
	if entry.SequenceIndex != 0 {
		t.Fatalf("entry = %+v", entry)
	}
}
