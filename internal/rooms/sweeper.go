// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package rooms

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/reelswipe/reelswipe/internal/domain"
	"github.com/reelswipe/reelswipe/internal/logging"
	"github.com/reelswipe/reelswipe/internal/metrics"
	"github.com/reelswipe/reelswipe/internal/models"
	"github.com/reelswipe/reelswipe/internal/storage"
)

// sweepBatch bounds one scan pass; rooms beyond the batch are picked up
// on the next tick.
const sweepBatch = 1024

// Sweeper expires rooms past their TTL. Expiry is a guarded write on
// the room's current status, so a room matching concurrently with the
// sweep keeps its MATCHED state.
type Sweeper struct {
	service  *Service
	interval time.Duration
}

// NewSweeper builds a sweeper over the room service.
func NewSweeper(service *Service, interval time.Duration) *Sweeper {
	return &Sweeper{service: service, interval: interval}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				logging.Error().Err(err).Msg("Room sweep failed")
			}
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) error {
	kvs, err := s.service.store.RangeGet(ctx, storage.RoomPrefix, "", "", sweepBatch)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, kv := range kvs {
		var room models.Room
		if err := json.Unmarshal(kv.Value, &room); err != nil {
			logging.Warn().Err(err).Str("key", kv.Key).Msg("Skipping undecodable room record")
			continue
		}
		if room.Status.Terminal() || now.Before(room.ExpiresAt) {
			continue
		}
		if err := s.expire(ctx, &room); err != nil {
			logging.Warn().Err(err).Str("room_id", room.ID).Msg("Room expiry failed")
		}
	}
	return nil
}

func (s *Sweeper) expire(ctx context.Context, room *models.Room) error {
	prior := room.Status
	room.Status = models.RoomExpired
	data, err := json.Marshal(room)
	if err != nil {
		return domain.Wrap(domain.KindTransient, "marshal room", err)
	}
	err = s.service.store.PutConditional(ctx, storage.RoomKey(room.ID), data,
		storage.AttrEquals(map[string]interface{}{"status": string(prior)}))
	if err != nil {
		if domain.KindOf(err) == domain.KindConditionFailed {
			// Status moved under us; the next sweep re-evaluates.
			return nil
		}
		return err
	}
	metrics.RoomsExpiredTotal.Inc()
	logging.Info().Str("room_id", room.ID).Str("prior_status", string(prior)).Msg("Room expired")
	s.service.broadcastStatus(ctx, room.ID, models.RoomExpired)
	return nil
}
