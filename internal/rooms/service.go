// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

// Package rooms implements the room lifecycle: creation with catalog
// build, invite-code joins, vote acceptance and TTL expiry.
//
// The store exposes no transactions, so the two multi-record updates
// (join against capacity, the WAITING to VOTING transition) are built
// from a conditional create plus an atomic counter, with best-effort
// compensation when the capacity check loses a race.
package rooms

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/reelswipe/reelswipe/internal/catalog"
	"github.com/reelswipe/reelswipe/internal/config"
	"github.com/reelswipe/reelswipe/internal/consensus"
	"github.com/reelswipe/reelswipe/internal/domain"
	"github.com/reelswipe/reelswipe/internal/logging"
	"github.com/reelswipe/reelswipe/internal/models"
	"github.com/reelswipe/reelswipe/internal/pool"
	"github.com/reelswipe/reelswipe/internal/storage"
)

// maxCapacity bounds room size; unanimity over more voters than this is
// not a realistic session.
const maxCapacity = 16

// CreateParams are the caller-supplied room attributes.
type CreateParams struct {
	Name      string
	MediaType models.MediaType
	Genres    []int
	Capacity  int
	HostID    string
}

// Service coordinates room operations over the store.
type Service struct {
	store     storage.Store
	builder   *pool.Builder
	catalog   *catalog.Service
	cfg       config.RoomsConfig
	maxGenres int
	notifiers []consensus.Notifier
}

// NewService wires the room service. Notifiers receive status_change
// events (room opening for votes, expiry).
func NewService(store storage.Store, builder *pool.Builder, cat *catalog.Service, cfg config.RoomsConfig, maxGenres int, notifiers ...consensus.Notifier) *Service {
	return &Service{
		store:     store,
		builder:   builder,
		catalog:   cat,
		cfg:       cfg,
		maxGenres: maxGenres,
		notifiers: notifiers,
	}
}

// Create builds a room's catalog, persists the room and joins the host
// as its first member. Nothing is persisted when the catalog cannot be
// filled.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Room, error) {
	if !p.MediaType.Valid() {
		return nil, domain.E(domain.KindValidation, "media_type must be MOVIE or TV")
	}
	if p.Capacity < 1 || p.Capacity > maxCapacity {
		return nil, domain.E(domain.KindValidation, "capacity out of range")
	}
	if len(p.Genres) > s.maxGenres {
		return nil, domain.E(domain.KindValidation, "too many genres")
	}
	if p.HostID == "" {
		return nil, domain.E(domain.KindValidation, "host user required")
	}

	now := time.Now().UTC()
	room := &models.Room{
		ID:          uuid.New().String(),
		Name:        p.Name,
		InviteCode:  newInviteCode(),
		MediaType:   p.MediaType,
		Genres:      p.Genres,
		Capacity:    p.Capacity,
		Status:      models.RoomWaiting,
		MemberCount: 0,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.TTL),
	}

	if _, err := s.builder.Build(ctx, room); err != nil {
		return nil, err
	}
	logging.Info().
		Str("room_id", room.ID).
		Str("invite_code", room.InviteCode).
		Int("capacity", room.Capacity).
		Msg("Room created")

	joined, err := s.join(ctx, room, p.HostID)
	if err != nil {
		// The room exists with a full catalog; the host can retry the
		// join through the invite code.
		logging.Error().Err(err).Str("room_id", room.ID).Msg("Host join after create failed")
		return room, nil
	}
	return joined, nil
}

// Join adds the user to the room referenced by invite code or room ID.
// Exactly one reference must be supplied.
func (s *Service) Join(ctx context.Context, inviteCode, roomID, userID string) (*models.Room, error) {
	if userID == "" {
		return nil, domain.E(domain.KindValidation, "user required")
	}
	var room *models.Room
	var err error
	switch {
	case inviteCode != "" && roomID != "":
		return nil, domain.E(domain.KindValidation, "invite_code and room_id are mutually exclusive")
	case inviteCode != "":
		room, err = s.byInvite(ctx, inviteCode)
	case roomID != "":
		room, err = s.Get(ctx, roomID)
	default:
		return nil, domain.E(domain.KindValidation, "invite_code or room_id required")
	}
	if err != nil {
		return nil, err
	}
	return s.join(ctx, room, userID)
}

func (s *Service) join(ctx context.Context, room *models.Room, userID string) (*models.Room, error) {
	if _, err := s.store.Get(ctx, storage.MemberKey(room.ID, userID)); err == nil {
		return nil, domain.E(domain.KindAlreadyMember, "already a member of this room")
	} else if domain.KindOf(err) != domain.KindNotFound {
		return nil, err
	}
	if room.Status != models.RoomWaiting {
		return nil, domain.E(domain.KindRoomClosed, "room is no longer accepting members")
	}

	member := models.RoomMember{
		RoomID:   room.ID,
		UserID:   userID,
		JoinedAt: time.Now().UTC(),
		Active:   true,
	}
	data, err := json.Marshal(member)
	if err != nil {
		return nil, domain.Wrap(domain.KindTransient, "marshal member", err)
	}
	if err := s.store.PutConditional(ctx, storage.MemberKey(room.ID, userID), data, storage.Absent()); err != nil {
		if domain.KindOf(err) == domain.KindConditionFailed {
			return nil, domain.E(domain.KindAlreadyMember, "already a member of this room")
		}
		return nil, err
	}

	count, err := s.store.IncrementCounter(ctx, storage.RoomKey(room.ID), "member_count", 1)
	if err != nil {
		s.compensateJoin(ctx, room.ID, userID, false)
		return nil, err
	}
	if count > int64(room.Capacity) {
		s.compensateJoin(ctx, room.ID, userID, true)
		return nil, domain.E(domain.KindRoomFull, "room is full")
	}

	if count == int64(room.Capacity) {
		if err := s.openVoting(ctx, room.ID); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, room.ID)
}

// compensateJoin undoes a member insert whose capacity check failed.
// Best-effort: a leaked decrement is caught by the next join attempt.
func (s *Service) compensateJoin(ctx context.Context, roomID, userID string, decrement bool) {
	ctx = context.WithoutCancel(ctx)
	if err := s.store.Delete(ctx, storage.MemberKey(roomID, userID)); err != nil {
		logging.Warn().Err(err).Str("room_id", roomID).Str("user_id", userID).Msg("Join compensation: member delete failed")
	}
	if decrement {
		if _, err := s.store.IncrementCounter(ctx, storage.RoomKey(roomID), "member_count", -1); err != nil {
			logging.Warn().Err(err).Str("room_id", roomID).Msg("Join compensation: decrement failed")
		}
	}
}

// openVoting transitions WAITING to VOTING. Only one joiner can win the
// guarded write; the losers see the room already open, which is fine.
func (s *Service) openVoting(ctx context.Context, roomID string) error {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Status != models.RoomWaiting {
		return nil
	}
	room.Status = models.RoomVoting
	data, err := json.Marshal(room)
	if err != nil {
		return domain.Wrap(domain.KindTransient, "marshal room", err)
	}
	err = s.store.PutConditional(ctx, storage.RoomKey(roomID), data,
		storage.AttrEquals(map[string]interface{}{"status": string(models.RoomWaiting)}))
	if err != nil {
		if domain.KindOf(err) == domain.KindConditionFailed {
			return nil
		}
		return err
	}
	logging.Info().Str("room_id", roomID).Msg("Room reached capacity, voting open")
	s.broadcastStatus(ctx, roomID, models.RoomVoting)
	return nil
}

// Vote records the member's decision on a catalog item. Retrying the
// same decision is idempotent; a conflicting decision for the same item
// is ALREADY_VOTED.
func (s *Service) Vote(ctx context.Context, roomID, userID string, itemID int64, decision models.Decision) (*models.Vote, error) {
	if !decision.Valid() {
		return nil, domain.E(domain.KindValidation, "decision must be YES or NO")
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.VoteTimeout)
	defer cancel()

	room, err := s.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomVoting {
		return nil, domain.E(domain.KindRoomClosed, "room is not accepting votes")
	}
	if _, err := s.store.Get(ctx, storage.MemberKey(roomID, userID)); err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, domain.E(domain.KindNotMember, "not a member of this room")
		}
		return nil, err
	}
	inCatalog, err := s.catalog.Contains(ctx, roomID, itemID)
	if err != nil {
		return nil, err
	}
	if !inCatalog {
		return nil, domain.E(domain.KindItemNotInRoom, "item is not in this room's catalog")
	}

	vote := &models.Vote{
		RoomID:   roomID,
		UserID:   userID,
		ItemID:   itemID,
		Decision: decision,
		VotedAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(vote)
	if err != nil {
		return nil, domain.Wrap(domain.KindTransient, "marshal vote", err)
	}
	key := storage.VoteKey(roomID, userID, itemID)
	err = s.store.PutConditional(ctx, key, data, storage.Absent(), storage.IndexEntry{
		Index:     storage.IndexVotesByRoom,
		Partition: roomID,
		Sort:      storage.VoteSort(userID, itemID),
	})
	if err == nil {
		return vote, nil
	}
	if domain.KindOf(err) != domain.KindConditionFailed {
		return nil, err
	}

	existing, getErr := s.store.Get(ctx, key)
	if getErr != nil {
		return nil, domain.E(domain.KindAlreadyVoted, "already voted on this item")
	}
	var prior models.Vote
	if uerr := json.Unmarshal(existing, &prior); uerr == nil && prior.Decision == decision {
		return &prior, nil
	}
	return nil, domain.E(domain.KindAlreadyVoted, "already voted on this item")
}

// Leave removes the user from a WAITING room. Once voting starts the
// membership is fixed; unanimity over a shrinking set is undefined.
func (s *Service) Leave(ctx context.Context, roomID, userID string) error {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Status != models.RoomWaiting {
		return domain.E(domain.KindRoomClosed, "cannot leave after voting starts")
	}
	if _, err := s.store.Get(ctx, storage.MemberKey(roomID, userID)); err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return domain.E(domain.KindNotMember, "not a member of this room")
		}
		return err
	}
	if err := s.store.Delete(ctx, storage.MemberKey(roomID, userID)); err != nil {
		return err
	}
	if _, err := s.store.IncrementCounter(ctx, storage.RoomKey(roomID), "member_count", -1); err != nil {
		logging.Warn().Err(err).Str("room_id", roomID).Msg("Leave: decrement failed")
	}
	return nil
}

// Get loads a room by ID.
func (s *Service) Get(ctx context.Context, roomID string) (*models.Room, error) {
	data, err := s.store.Get(ctx, storage.RoomKey(roomID))
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, domain.Wrap(domain.KindNotFound, "room "+roomID, err)
		}
		return nil, err
	}
	var room models.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, domain.Wrap(domain.KindTransient, "decode room "+roomID, err)
	}
	return &room, nil
}

// Match returns the room's match record, or NOT_FOUND before a match.
func (s *Service) Match(ctx context.Context, roomID string) (*models.MatchEvent, error) {
	data, err := s.store.Get(ctx, storage.MatchKey(roomID))
	if err != nil {
		return nil, err
	}
	var event models.MatchEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, domain.Wrap(domain.KindTransient, "decode match "+roomID, err)
	}
	return &event, nil
}

// IsMember reports whether the user belongs to the room.
func (s *Service) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	_, err := s.store.Get(ctx, storage.MemberKey(roomID, userID))
	if err == nil {
		return true, nil
	}
	if domain.KindOf(err) == domain.KindNotFound {
		return false, nil
	}
	return false, err
}

func (s *Service) byInvite(ctx context.Context, inviteCode string) (*models.Room, error) {
	if inviteCode == "" {
		return nil, domain.E(domain.KindValidation, "invite code required")
	}
	kvs, err := s.store.IndexQuery(ctx, storage.IndexRoomByInvite, normalizeInvite(inviteCode))
	if err != nil {
		return nil, err
	}
	if len(kvs) == 0 {
		return nil, domain.E(domain.KindNotFound, "no room for invite code")
	}
	var room models.Room
	if err := json.Unmarshal(kvs[0].Value, &room); err != nil {
		return nil, domain.Wrap(domain.KindTransient, "decode room", err)
	}
	return &room, nil
}

func (s *Service) broadcastStatus(ctx context.Context, roomID string, status models.RoomStatus) {
	event := models.RoomEvent{
		Type:       models.EventStatusChange,
		RoomID:     roomID,
		Status:     status,
		OccurredAt: time.Now().UTC(),
	}
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			logging.Error().Err(err).Str("room_id", roomID).Msg("Status broadcast failed")
		}
	}
}

// inviteAlphabet avoids ambiguous characters (0/O, 1/I/L).
const inviteAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const inviteLength = 6

// newInviteCode draws a random code. 31^6 values make accidental
// collisions negligible for the room TTL horizon; a collision surfaces
// as two rooms behind one code and the older one expiring out.
func newInviteCode() string {
	buf := make([]byte, inviteLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure means the process has bigger problems.
		panic(err)
	}
	for i, b := range buf {
		buf[i] = inviteAlphabet[int(b)%len(inviteAlphabet)]
	}
	return string(buf)
}

func normalizeInvite(code string) string {
	out := make([]byte, 0, len(code))
	for i := 0; i < len(code); i++ {
		c := code[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
