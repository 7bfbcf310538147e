// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// Key prefixes. Every persisted record type gets its own prefix so the
// change feed can be filtered per record type and RangeGet can scan one
// partition.
const (
	RoomPrefix    = "room:"
	CatalogPrefix = "catalog:"
	MemberPrefix  = "member:"
	VotePrefix    = "vote:"
	TallyPrefix   = "tally:"
	MatchPrefix   = "match:"
	CursorPrefix  = "feedcursor:"
)

// Secondary index names.
const (
	IndexRoomByInvite = "room_by_invite"
	IndexVotesByRoom  = "votes_by_room"
)

// RoomKey returns the primary key of a room record.
func RoomKey(roomID string) string { return RoomPrefix + roomID }

// CatalogKey encodes (roomId, sequenceIndex) with the index zero-padded
// to width 3 so lexicographic order equals numeric order.
func CatalogKey(roomID string, seq int) string {
	return fmt.Sprintf("%s%s:%03d", CatalogPrefix, roomID, seq)
}

// CatalogPartition is the RangeGet partition for one room's catalog.
func CatalogPartition(roomID string) string { return CatalogPrefix + roomID + ":" }

// MemberKey returns the primary key of a membership record.
func MemberKey(roomID, userID string) string { return MemberPrefix + roomID + ":" + userID }

// MemberPartition is the RangeGet partition for one room's members.
func MemberPartition(roomID string) string { return MemberPrefix + roomID + ":" }

// VoteKey encodes (roomId, userId, itemId). The userId+"#"+itemId sort
// segment keeps one user's votes adjacent within the room partition.
func VoteKey(roomID, userID string, itemID int64) string {
	return VotePrefix + roomID + ":" + userID + "#" + strconv.FormatInt(itemID, 10)
}

// VotePartition is the RangeGet partition for one room's votes.
func VotePartition(roomID string) string { return VotePrefix + roomID + ":" }

// VoteSort is the sort segment of a vote key.
func VoteSort(userID string, itemID int64) string {
	return userID + "#" + strconv.FormatInt(itemID, 10)
}

// TallyKey returns the key of the YES counter for (room, item).
func TallyKey(roomID string, itemID int64) string {
	return TallyPrefix + roomID + ":" + strconv.FormatInt(itemID, 10)
}

// MatchKey returns the key of a room's unique MatchEvent.
func MatchKey(roomID string) string { return MatchPrefix + roomID }

// CursorKey returns the key a change-feed consumer persists its cursor
// under.
func CursorKey(consumer string) string { return CursorPrefix + consumer }

// KeyPrefix returns the record-type prefix of a key ("vote:", "room:", ...).
func KeyPrefix(key string) string {
	i := strings.IndexByte(key, ':')
	if i < 0 {
		return key
	}
	return key[:i+1]
}

// ParseVoteKey decomposes a vote key into (roomId, userId, itemId).
func ParseVoteKey(key string) (roomID, userID string, itemID int64, err error) {
	rest, ok := strings.CutPrefix(key, VotePrefix)
	if !ok {
		return "", "", 0, fmt.Errorf("not a vote key: %q", key)
	}
	hash := strings.LastIndexByte(rest, '#')
	if hash < 0 {
		return "", "", 0, fmt.Errorf("malformed vote key: %q", key)
	}
	item, err := strconv.ParseInt(rest[hash+1:], 10, 64)
	if err != nil {
		return "", "", 0, fmt.Errorf("malformed item id in vote key %q: %w", key, err)
	}
	head := rest[:hash]
	colon := strings.IndexByte(head, ':')
	if colon < 0 {
		return "", "", 0, fmt.Errorf("malformed vote key: %q", key)
	}
	return head[:colon], head[colon+1:], item, nil
}
