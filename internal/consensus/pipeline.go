// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

// Package consensus detects unanimous YES votes. It consumes the vote
// change feed rather than hooking the write path, so vote acceptance
// stays fast and match detection survives process restarts by resuming
// from the persisted feed cursor.
//
// The feed is at-least-once, so every step tolerates redelivery: a
// replayed vote can overcount the tally, but unanimity is re-checked
// against the vote records before the room transitions, the MATCHED
// transition is a conditional write that only one delivery can win, and
// the match record and notification are deduplicated behind it.
package consensus

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/reelswipe/reelswipe/internal/cache"
	"github.com/reelswipe/reelswipe/internal/domain"
	"github.com/reelswipe/reelswipe/internal/logging"
	"github.com/reelswipe/reelswipe/internal/metrics"
	"github.com/reelswipe/reelswipe/internal/models"
	"github.com/reelswipe/reelswipe/internal/storage"
)

// consumerName keys the persisted feed cursor.
const consumerName = "consensus"

// Notifier delivers a room event to one sink (broker topic, websocket
// hub). Errors are logged, never retried; delivery is best-effort by
// design since the match record is already durable.
type Notifier interface {
	Notify(ctx context.Context, event models.RoomEvent) error
}

// Pipeline is the vote-feed consumer.
type Pipeline struct {
	store     storage.Store
	feed      storage.ChangeFeed
	notifiers []Notifier
	dedup     *cache.LRU[struct{}]
}

// NewPipeline wires the consumer. Notifiers are invoked in order for
// every match exactly once per process (the dedup cache absorbs feed
// redelivery).
func NewPipeline(store storage.Store, feed storage.ChangeFeed, notifiers ...Notifier) *Pipeline {
	return &Pipeline{
		store:     store,
		feed:      feed,
		notifiers: notifiers,
		dedup:     cache.NewLRU[struct{}](8192, time.Hour),
	}
}

// Run consumes the vote feed until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	return p.feed.Subscribe(ctx, consumerName, storage.VotePrefix, p.handle)
}

// handle processes one vote mutation. Returning TRANSIENT or TIMEOUT
// triggers redelivery; any other error drops the mutation after the
// feed logs it.
func (p *Pipeline) handle(ctx context.Context, m storage.Mutation) error {
	// Votes are insert-only; anything else on this prefix is noise.
	if m.Op != storage.OpInsert {
		return nil
	}
	var vote models.Vote
	if err := json.Unmarshal(m.New, &vote); err != nil {
		return domain.Wrap(domain.KindValidation, "decode vote "+m.Key, err)
	}
	metrics.VotesProcessedTotal.WithLabelValues(string(vote.Decision)).Inc()
	if vote.Decision != models.DecisionYes {
		return nil
	}

	room, err := p.loadRoom(ctx, vote.RoomID)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			logging.Warn().Str("room_id", vote.RoomID).Msg("Vote for unknown room, dropping")
			return nil
		}
		return err
	}
	// A vote that raced the MATCHED transition or landed in an expired
	// room cannot produce a second match.
	if room.Status != models.RoomVoting {
		return nil
	}

	yes, err := p.store.IncrementCounter(ctx, storage.TallyKey(vote.RoomID, vote.ItemID), "yes_count", 1)
	if err != nil {
		return err
	}
	if yes < int64(room.Capacity) {
		return nil
	}

	// The counter is only the trigger. A redelivered mutation increments
	// it twice, so unanimity is confirmed against the vote records before
	// the room transitions; a short count here means the genuine final
	// vote has not arrived yet and will re-trigger.
	unanimous, err := p.votedYesByAll(ctx, room, vote.ItemID)
	if err != nil {
		return err
	}
	if !unanimous {
		return nil
	}

	return p.declareMatch(ctx, room, vote.ItemID)
}

// votedYesByAll reports whether every member of the room has a YES vote
// on the item. Vote records are write-once with one key per (user, item),
// so counting records counts distinct voters.
func (p *Pipeline) votedYesByAll(ctx context.Context, room *models.Room, itemID int64) (bool, error) {
	kvs, err := p.store.RangeGet(ctx, storage.VotePartition(room.ID), "", "", 0)
	if err != nil {
		return false, err
	}
	voters := 0
	for _, kv := range kvs {
		var v models.Vote
		if err := json.Unmarshal(kv.Value, &v); err != nil {
			logging.Warn().Str("key", kv.Key).Msg("Unreadable vote record, skipping")
			continue
		}
		if v.ItemID == itemID && v.Decision == models.DecisionYes {
			voters++
		}
	}
	return voters >= room.Capacity, nil
}

// declareMatch performs the VOTING to MATCHED transition. The guarded
// write makes it single-winner: concurrent unanimity on two items (or a
// replayed delivery) loses the condition and backs off silently.
func (p *Pipeline) declareMatch(ctx context.Context, room *models.Room, itemID int64) error {
	now := time.Now().UTC()
	matched := *room
	matched.Status = models.RoomMatched
	matched.MatchedItemID = &itemID
	matched.MatchedAt = &now

	data, err := json.Marshal(&matched)
	if err != nil {
		return domain.Wrap(domain.KindTransient, "marshal matched room", err)
	}
	err = p.store.PutConditional(ctx, storage.RoomKey(room.ID), data,
		storage.AttrEquals(map[string]interface{}{"status": string(models.RoomVoting)}))
	if err != nil {
		if domain.KindOf(err) == domain.KindConditionFailed {
			logging.Debug().Str("room_id", room.ID).Msg("Room already left VOTING, match transition skipped")
			return nil
		}
		return err
	}
	metrics.MatchesTotal.Inc()
	logging.Info().
		Str("room_id", room.ID).
		Int64("item_id", itemID).
		Int("capacity", room.Capacity).
		Msg("Unanimous match")

	event := models.MatchEvent{
		RoomID:    room.ID,
		ItemID:    itemID,
		MatchedAt: now,
		Capacity:  room.Capacity,
	}
	if err := p.recordMatch(ctx, event); err != nil {
		return err
	}
	p.notify(ctx, event)
	return nil
}

// recordMatch writes the room's unique MatchEvent. An existing record
// means a previous delivery got here first.
func (p *Pipeline) recordMatch(ctx context.Context, event models.MatchEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return domain.Wrap(domain.KindTransient, "marshal match event", err)
	}
	err = p.store.PutConditional(ctx, storage.MatchKey(event.RoomID), data, storage.Absent())
	if err != nil && domain.KindOf(err) != domain.KindConditionFailed {
		return err
	}
	return nil
}

func (p *Pipeline) notify(ctx context.Context, match models.MatchEvent) {
	if p.dedup.Seen("match:" + match.RoomID) {
		return
	}
	event := models.RoomEvent{
		Type:       models.EventMatch,
		RoomID:     match.RoomID,
		Status:     models.RoomMatched,
		Match:      &match,
		OccurredAt: match.MatchedAt,
	}
	for _, n := range p.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			logging.Error().Err(err).Str("room_id", match.RoomID).Msg("Match notification failed")
			continue
		}
		metrics.NotificationsPublishedTotal.Inc()
	}
}

func (p *Pipeline) loadRoom(ctx context.Context, roomID string) (*models.Room, error) {
	data, err := p.store.Get(ctx, storage.RoomKey(roomID))
	if err != nil {
		return nil, err
	}
	var room models.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, domain.Wrap(domain.KindTransient, "decode room "+roomID, err)
	}
	return &room, nil
}
