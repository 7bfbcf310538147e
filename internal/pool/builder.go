// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package pool

import (
	"context"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/reelswipe/reelswipe/internal/config"
	"github.com/reelswipe/reelswipe/internal/domain"
	"github.com/reelswipe/reelswipe/internal/logging"
	"github.com/reelswipe/reelswipe/internal/metrics"
	"github.com/reelswipe/reelswipe/internal/models"
	"github.com/reelswipe/reelswipe/internal/storage"
	"github.com/reelswipe/reelswipe/internal/tmdb"
)

// tier is one pass of the fallback ladder.
type tier struct {
	name     string
	mode     tmdb.GenreMode
	priority int
}

// Builder fills a new room's catalog. Build is the only entry point; it
// either persists the room plus a complete catalog or persists nothing.
type Builder struct {
	store  storage.Store
	client tmdb.MetadataClient
	cfg    config.PoolConfig
	gate   *Gate
}

// NewBuilder wires a builder over the store and metadata client.
func NewBuilder(store storage.Store, client tmdb.MetadataClient, cfg config.PoolConfig) *Builder {
	return &Builder{store: store, client: client, cfg: cfg, gate: NewGate(cfg)}
}

// Build assembles the catalog for room and persists the room record and
// all entries. The room record is written last and conditionally on
// absence, so a half-written catalog is never reachable: readers resolve
// catalogs through the room. Returns INSUFFICIENT_CONTENT when the
// ladder cannot fill the target size.
func (b *Builder) Build(ctx context.Context, room *models.Room) ([]models.CatalogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.BuildTimeout)
	defer cancel()

	entries, err := b.collect(ctx, room)
	if err != nil {
		metrics.PoolBuildsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(entries) < b.cfg.MoviesPerRoom {
		metrics.PoolBuildsTotal.WithLabelValues("insufficient_content").Inc()
		logging.Warn().
			Str("room_id", room.ID).
			Int("collected", len(entries)).
			Int("target", b.cfg.MoviesPerRoom).
			Msg("Pool build fell short of catalog size")
		return nil, domain.E(domain.KindInsufficientContent, "not enough qualifying titles for this room")
	}
	entries = entries[:b.cfg.MoviesPerRoom]

	if err := b.persist(ctx, room, entries); err != nil {
		metrics.PoolBuildsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.PoolBuildsTotal.WithLabelValues("success").Inc()
	logging.Info().
		Str("room_id", room.ID).
		Str("media_type", string(room.MediaType)).
		Int("entries", len(entries)).
		Msg("Catalog built")
	return entries, nil
}

// collect walks the tier ladder, deduplicating by item ID across tiers.
// Within a tier results arrive popularity-descending; tiers are visited
// strict first, so the concatenation is already ordered by (priority,
// popularity) and no re-sort is needed.
func (b *Builder) collect(ctx context.Context, room *models.Room) ([]models.CatalogEntry, error) {
	tiers := []tier{
		{name: "strict", mode: tmdb.GenreAll, priority: models.PriorityStrict},
		{name: "permissive", mode: tmdb.GenreAny, priority: models.PriorityPermissive},
		{name: "popular", mode: tmdb.GenreNone, priority: models.PriorityPopular},
	}

	entries := make([]models.CatalogEntry, 0, b.cfg.MoviesPerRoom)
	seen := make(map[int64]bool, b.cfg.MoviesPerRoom*2)

	for _, t := range tiers {
		if t.mode != tmdb.GenreNone && len(room.Genres) == 0 {
			continue
		}
		// ANY over a single genre is the same query as ALL.
		if t.mode == tmdb.GenreAny && len(room.Genres) < 2 {
			continue
		}
		if err := b.collectTier(ctx, room, t, seen, &entries); err != nil {
			return nil, err
		}
		if len(entries) >= b.cfg.MoviesPerRoom {
			break
		}
	}
	return entries, nil
}

func (b *Builder) collectTier(ctx context.Context, room *models.Room, t tier, seen map[int64]bool, entries *[]models.CatalogEntry) error {
	for page := 1; page <= b.cfg.MaxPagesPerTier; page++ {
		result, err := b.client.Discover(ctx, tmdb.DiscoverQuery{
			MediaType:      room.MediaType,
			Genres:         room.Genres,
			Mode:           t.mode,
			Page:           page,
			Languages:      b.cfg.WesternLanguages,
			MinVoteCount:   b.cfg.MinVoteCount,
			MinReleaseDate: b.cfg.MinReleaseDate(),
		})
		if err != nil {
			return domain.Wrap(domain.KindOf(err), "discover tier "+t.name, err)
		}
		for _, item := range result.Results {
			if seen[item.ID] {
				continue
			}
			reason, ok := b.gate.Check(room.MediaType, item)
			if !ok {
				observeRejection(reason)
				continue
			}
			seen[item.ID] = true
			metrics.PoolItemsAccepted.WithLabelValues(t.name).Inc()
			*entries = append(*entries, toCatalogEntry(room.ID, room.MediaType, item, len(*entries), t.priority))
			if len(*entries) >= b.cfg.MoviesPerRoom {
				return nil
			}
		}
		if page >= result.TotalPages || len(result.Results) == 0 {
			return nil
		}
	}
	return nil
}

// persist writes all catalog entries, then the room record guarded on
// absence with its invite-code index. On any failure the entries written
// so far are removed best-effort; without a room record they were
// unreachable anyway.
func (b *Builder) persist(ctx context.Context, room *models.Room, entries []models.CatalogEntry) error {
	written := make([]string, 0, len(entries))
	fail := func(err error) error {
		for _, key := range written {
			if derr := b.store.Delete(context.WithoutCancel(ctx), key); derr != nil {
				logging.Warn().Err(derr).Str("key", key).Msg("Failed to roll back catalog entry")
			}
		}
		return err
	}

	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fail(domain.Wrap(domain.KindTransient, "marshal catalog entry", err))
		}
		key := storage.CatalogKey(room.ID, entry.SequenceIndex)
		if err := b.store.PutConditional(ctx, key, data, storage.Absent()); err != nil {
			return fail(domain.Wrap(domain.KindOf(err), "write catalog entry "+strconv.Itoa(entry.SequenceIndex), err))
		}
		written = append(written, key)
	}

	data, err := json.Marshal(room)
	if err != nil {
		return fail(domain.Wrap(domain.KindTransient, "marshal room", err))
	}
	err = b.store.PutConditional(ctx, storage.RoomKey(room.ID), data, storage.Absent(), storage.IndexEntry{
		Index:     storage.IndexRoomByInvite,
		Partition: room.InviteCode,
		Sort:      room.ID,
	})
	if err != nil {
		return fail(domain.Wrap(domain.KindOf(err), "write room record", err))
	}
	return nil
}
