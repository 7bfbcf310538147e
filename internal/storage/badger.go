// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/reelswipe/reelswipe/internal/domain"
	"github.com/reelswipe/reelswipe/internal/logging"
)

// idxPrefix namespaces secondary-index rows away from primary records.
const idxPrefix = "idx:"

// MutationTopic maps a key prefix to the change-feed topic its mutations
// are published on ("vote:" -> "storage.mutations.vote").
func MutationTopic(prefix string) string {
	p := prefix
	if n := len(p); n > 0 && p[n-1] == ':' {
		p = p[:n-1]
	}
	return "storage.mutations." + p
}

// BadgerStore implements Store on BadgerDB and publishes every committed
// mutation to a Watermill publisher. Records live with an optional TTL so
// per-room state self-deletes after the room deadline passes.
type BadgerStore struct {
	db  *badger.DB
	pub message.Publisher
	ttl time.Duration

	pubMu sync.Mutex // orders sequence assignment with publication
	seq   uint64
}

// NewBadgerStore wraps an open Badger database. pub may be nil when no
// change feed is needed (tooling, tests). ttl applies to every record
// written; zero disables expiry.
func NewBadgerStore(db *badger.DB, pub message.Publisher, ttl time.Duration) *BadgerStore {
	// Sequence numbers seed from the wall clock so cursors persisted by a
	// previous process stay behind every mutation this one publishes.
	return &BadgerStore{db: db, pub: pub, ttl: ttl, seq: uint64(time.Now().UnixNano())}
}

// OpenBadger opens the database at path with the options the store needs.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's logger is noisy; the store logs its own errors
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return db, nil
}

func (s *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Wrap(domain.KindTimeout, "get "+key, err)
	}
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.Wrap(domain.KindNotFound, key, err)
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, classify(err, "get "+key)
	}
	return out, nil
}

func (s *BadgerStore) PutConditional(ctx context.Context, key string, value []byte, pre Precondition, indexes ...IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return domain.Wrap(domain.KindTimeout, "put "+key, err)
	}
	var old []byte
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		exists := err == nil
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if exists {
			old, err = item.ValueCopy(nil)
			if err != nil {
				return err
			}
		}
		if err := checkPrecondition(pre, exists, old); err != nil {
			return err
		}
		entry := badger.NewEntry([]byte(key), value)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		if err := txn.SetEntry(entry); err != nil {
			return err
		}
		for _, ix := range indexes {
			ie := badger.NewEntry([]byte(indexKey(ix)), []byte(key))
			if s.ttl > 0 {
				ie = ie.WithTTL(s.ttl)
			}
			if err := txn.SetEntry(ie); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return classify(err, "put "+key)
	}
	op := OpInsert
	if old != nil {
		op = OpModify
	}
	s.publish(Mutation{Op: op, Key: key, Old: old, New: value})
	return nil
}

func (s *BadgerStore) IncrementCounter(ctx context.Context, key, attribute string, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.Wrap(domain.KindTimeout, "increment "+key, err)
	}
	var newVal int64
	var old, updated []byte
	err := s.db.Update(func(txn *badger.Txn) error {
		record := map[string]interface{}{}
		item, err := txn.Get([]byte(key))
		if err == nil {
			old, err = item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(old, &record); err != nil {
				return fmt.Errorf("counter record %s is not JSON: %w", key, err)
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		newVal = numericAttr(record, attribute) + delta
		record[attribute] = newVal
		updated, err = json.Marshal(record)
		if err != nil {
			return err
		}
		entry := badger.NewEntry([]byte(key), updated)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return 0, classify(err, "increment "+key)
	}
	op := OpInsert
	if old != nil {
		op = OpModify
	}
	s.publish(Mutation{Op: op, Key: key, Old: old, New: updated})
	return newVal, nil
}

func (s *BadgerStore) Delete(ctx context.Context, key string, indexes ...IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return domain.Wrap(domain.KindTimeout, "delete "+key, err)
	}
	var old []byte
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		old, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Delete([]byte(key)); err != nil {
			return err
		}
		for _, ix := range indexes {
			if err := txn.Delete([]byte(indexKey(ix))); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return classify(err, "delete "+key)
	}
	if old != nil {
		s.publish(Mutation{Op: OpDelete, Key: key, Old: old})
	}
	return nil
}

func (s *BadgerStore) RangeGet(ctx context.Context, partition, fromSort, toSort string, limit int) ([]KV, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Wrap(domain.KindTimeout, "range "+partition, err)
	}
	var out []KV
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(partition)
		seek := prefix
		if fromSort != "" {
			seek = []byte(partition + fromSort)
		}
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())
			sort := key[len(partition):]
			if toSort != "" && sort > toSort {
				break
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, KV{Key: key, Value: val})
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify(err, "range "+partition)
	}
	return out, nil
}

func (s *BadgerStore) IndexQuery(ctx context.Context, index, partition string) ([]KV, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Wrap(domain.KindTimeout, "index "+index, err)
	}
	var out []KV
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(idxPrefix + index + ":" + partition + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var primary []byte
			err := it.Item().Value(func(val []byte) error {
				primary = append([]byte(nil), val...)
				return nil
			})
			if err != nil {
				return err
			}
			item, err := txn.Get(primary)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue // index row outlived its record
			}
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, KV{Key: string(primary), Value: val})
		}
		return nil
	})
	if err != nil {
		return nil, classify(err, "index "+index)
	}
	return out, nil
}

// publish emits a mutation record after commit, assigning the feed
// sequence in publication order so a consumer cursor never skips a
// mutation published after it was saved. Publish failures are logged,
// not surfaced: the write is durable and feed consumers handle gaps by
// replaying from their cursor.
func (s *BadgerStore) publish(m Mutation) {
	if s.pub == nil {
		return
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.seq++
	m.Seq = s.seq
	data, err := json.Marshal(m)
	if err != nil {
		logging.Error().Err(err).Str("key", m.Key).Msg("Marshal mutation")
		return
	}
	msg := message.NewMessage(uuid.New().String(), data)
	msg.Metadata.Set("key", m.Key)
	if err := s.pub.Publish(MutationTopic(KeyPrefix(m.Key)), msg); err != nil {
		logging.Error().Err(err).Str("key", m.Key).Msg("Publish mutation")
	}
}

func indexKey(ix IndexEntry) string {
	return idxPrefix + ix.Index + ":" + ix.Partition + ":" + ix.Sort
}

// checkPrecondition evaluates pre against the current record image.
func checkPrecondition(pre Precondition, exists bool, current []byte) error {
	if pre.Absent {
		if exists {
			return domain.E(domain.KindConditionFailed, "key exists")
		}
		return nil
	}
	if len(pre.AttrEquals) == 0 {
		return nil
	}
	if !exists {
		return domain.E(domain.KindConditionFailed, "key absent")
	}
	var record map[string]interface{}
	if err := json.Unmarshal(current, &record); err != nil {
		return fmt.Errorf("stored record is not JSON: %w", err)
	}
	for attr, want := range pre.AttrEquals {
		if !attrEqual(record[attr], want) {
			return domain.E(domain.KindConditionFailed, "attribute "+attr+" mismatch")
		}
	}
	return nil
}

// attrEqual compares a stored JSON attribute with an expected value,
// normalizing numbers (JSON numbers decode as float64).
func attrEqual(got, want interface{}) bool {
	gf, gok := asFloat(got)
	wf, wok := asFloat(want)
	if gok && wok {
		return gf == wf
	}
	gb, _ := json.Marshal(got)
	wb, _ := json.Marshal(want)
	return bytes.Equal(gb, wb)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func numericAttr(record map[string]interface{}, attr string) int64 {
	if v, ok := asFloat(record[attr]); ok {
		return int64(v)
	}
	return 0
}

// classify maps implementation errors to the domain taxonomy. Badger
// transaction conflicts are retryable.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, badger.ErrConflict) {
		return domain.Wrap(domain.KindTransient, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.Wrap(domain.KindTimeout, op, err)
	}
	return domain.Wrap(domain.KindTransient, op, err)
}
