// Reelswipe - Social Movie Match Engine
// Copyright 2026 Reelswipe contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelswipe/reelswipe

package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/reelswipe/reelswipe/internal/domain"
)

// MemoryStore is an in-memory Store with the same contract semantics as
// BadgerStore, including change-feed publication. Used by tests and by
// callers that need a throwaway store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]byte
	indexes map[string]string // index row -> primary key
	pub     message.Publisher

	pubMu sync.Mutex // orders sequence assignment with publication
	seq   uint64
}

// NewMemoryStore builds an empty store. pub may be nil.
func NewMemoryStore(pub message.Publisher) *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]byte),
		indexes: make(map[string]string),
		pub:     pub,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Wrap(domain.KindTimeout, "get "+key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.records[key]
	if !ok {
		return nil, domain.E(domain.KindNotFound, key)
	}
	return append([]byte(nil), val...), nil
}

func (s *MemoryStore) PutConditional(ctx context.Context, key string, value []byte, pre Precondition, indexes ...IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return domain.Wrap(domain.KindTimeout, "put "+key, err)
	}
	s.mu.Lock()
	old, exists := s.records[key]
	if err := checkPrecondition(pre, exists, old); err != nil {
		s.mu.Unlock()
		return err
	}
	s.records[key] = append([]byte(nil), value...)
	for _, ix := range indexes {
		s.indexes[indexKey(ix)] = key
	}
	s.mu.Unlock()

	op := OpInsert
	if exists {
		op = OpModify
	}
	s.emit(Mutation{Op: op, Key: key, Old: old, New: value})
	return nil
}

func (s *MemoryStore) IncrementCounter(ctx context.Context, key, attribute string, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.Wrap(domain.KindTimeout, "increment "+key, err)
	}
	s.mu.Lock()
	record := map[string]interface{}{}
	old, exists := s.records[key]
	if exists {
		if err := json.Unmarshal(old, &record); err != nil {
			s.mu.Unlock()
			return 0, domain.Wrap(domain.KindTransient, "counter record not JSON", err)
		}
	}
	newVal := numericAttr(record, attribute) + delta
	record[attribute] = newVal
	updated, err := json.Marshal(record)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	s.records[key] = updated
	s.mu.Unlock()

	op := OpInsert
	if exists {
		op = OpModify
	}
	s.emit(Mutation{Op: op, Key: key, Old: old, New: updated})
	return newVal, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string, indexes ...IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return domain.Wrap(domain.KindTimeout, "delete "+key, err)
	}
	s.mu.Lock()
	old, exists := s.records[key]
	if !exists {
		s.mu.Unlock()
		return nil
	}
	delete(s.records, key)
	for _, ix := range indexes {
		delete(s.indexes, indexKey(ix))
	}
	s.mu.Unlock()

	s.emit(Mutation{Op: OpDelete, Key: key, Old: old})
	return nil
}

func (s *MemoryStore) RangeGet(ctx context.Context, partition, fromSort, toSort string, limit int) ([]KV, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Wrap(domain.KindTimeout, "range "+partition, err)
	}
	s.mu.Lock()
	var out []KV
	for key, val := range s.records {
		if !strings.HasPrefix(key, partition) {
			continue
		}
		sortPart := key[len(partition):]
		if fromSort != "" && sortPart < fromSort {
			continue
		}
		if toSort != "" && sortPart > toSort {
			continue
		}
		out = append(out, KV{Key: key, Value: append([]byte(nil), val...)})
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) IndexQuery(ctx context.Context, index, partition string) ([]KV, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Wrap(domain.KindTimeout, "index "+index, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := idxPrefix + index + ":" + partition + ":"
	var rows []string
	for row := range s.indexes {
		if strings.HasPrefix(row, prefix) {
			rows = append(rows, row)
		}
	}
	sort.Strings(rows)
	var out []KV
	for _, row := range rows {
		primary := s.indexes[row]
		if val, ok := s.records[primary]; ok {
			out = append(out, KV{Key: primary, Value: append([]byte(nil), val...)})
		}
	}
	return out, nil
}

// emit assigns the feed sequence in publication order, mirroring
// BadgerStore.publish.
func (s *MemoryStore) emit(m Mutation) {
	if s.pub == nil {
		return
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.seq++
	m.Seq = s.seq
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	msg := message.NewMessage(uuid.New().String(), data)
	msg.Metadata.Set("key", m.Key)
	//nolint:errcheck // in-memory publisher does not fail under test conditions
	s.pub.Publish(MutationTopic(KeyPrefix(m.Key)), msg)
}

// Len returns the number of primary records, for test assertions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
