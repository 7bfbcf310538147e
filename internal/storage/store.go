// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

// Package storage mediates all durable state behind a small key/value
// contract: point get, conditional put, atomic counter increment, ordered
// range scan, secondary-index query, and a per-key ordered at-least-once
// change feed. The production implementation is BadgerDB; tests use the
// in-memory implementation in memory.go.
//
// The contract deliberately exposes no transactions. The two places where
// atomicity matters (member join against capacity, MATCHED transition)
// are built on PutConditional plus IncrementCounter.
package storage

import "context"

// KV is one key/value pair returned by scans and index queries.
type KV struct {
	Key   string
	Value []byte
}

// Precondition guards a PutConditional write.
//
// Exactly one of Absent or AttrEquals should be set. Absent succeeds only
// when the key does not exist. AttrEquals succeeds only when the key
// exists and every named attribute of the stored JSON record equals the
// given value.
type Precondition struct {
	Absent     bool
	AttrEquals map[string]interface{}
}

// Absent is the create-if-missing precondition.
func Absent() Precondition { return Precondition{Absent: true} }

// AttrEquals preconditions the write on stored attribute equality.
func AttrEquals(attrs map[string]interface{}) Precondition {
	return Precondition{AttrEquals: attrs}
}

// Unconditional performs no check.
func Unconditional() Precondition { return Precondition{} }

// IndexEntry is a secondary-index row maintained atomically with the
// primary write. The index maps (Index, Partition, Sort) to the primary
// key; IndexQuery resolves primary keys back to current values.
type IndexEntry struct {
	Index     string
	Partition string
	Sort      string
}

// MutationOp discriminates change-feed records.
type MutationOp string

const (
	OpInsert MutationOp = "INSERT"
	OpModify MutationOp = "MODIFY"
	OpDelete MutationOp = "DELETE"
)

// Mutation is one change-feed record: the key plus its OLD and NEW
// images. Delivery is per-key ordered and at-least-once; consumers must
// tolerate redelivery.
type Mutation struct {
	Op  MutationOp `json:"op"`
	Key string     `json:"key"`
	Old []byte     `json:"old,omitempty"`
	New []byte     `json:"new,omitempty"`
	Seq uint64     `json:"seq"`
}

// Store is the durable state contract.
type Store interface {
	// Get returns the most recent committed value for key, or
	// domain.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// PutConditional writes value under key if pre holds, maintaining any
	// index entries in the same commit. Fails with domain.ErrConditionFailed
	// otherwise. Idempotent under retry when the precondition references a
	// state not yet set.
	PutConditional(ctx context.Context, key string, value []byte, pre Precondition, indexes ...IndexEntry) error

	// IncrementCounter atomically adds delta to a numeric attribute of the
	// JSON record under key (creating record and attribute as needed) and
	// returns the post-increment value.
	IncrementCounter(ctx context.Context, key, attribute string, delta int64) (int64, error)

	// Delete removes key and any index entries passed. Missing keys are
	// not an error.
	Delete(ctx context.Context, key string, indexes ...IndexEntry) error

	// RangeGet returns up to limit pairs whose key begins with partition,
	// whose sort segment lies in [fromSort, toSort] (empty bounds are
	// open), ordered lexicographically by key.
	RangeGet(ctx context.Context, partition, fromSort, toSort string, limit int) ([]KV, error)

	// IndexQuery returns the current values of all records indexed under
	// (index, partition). Eventually consistent: callers must not rely on
	// read-your-write through an index.
	IndexQuery(ctx context.Context, index, partition string) ([]KV, error)
}

// FeedHandler processes one change-feed mutation. Returning an error
// leaves the cursor unadvanced; the mutation is redelivered.
type FeedHandler func(ctx context.Context, m Mutation) error

// ChangeFeed is the mutation stream surface of the store.
type ChangeFeed interface {
	// Subscribe delivers mutations for keys matching prefix to handler,
	// starting after the persisted cursor for consumer. Blocks until ctx
	// is cancelled.
	Subscribe(ctx context.Context, consumer, prefix string, handler FeedHandler) error
}
