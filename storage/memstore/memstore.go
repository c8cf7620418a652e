// Copyright 2025 The kvmux Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package memstore is the in-memory storage.Store backend: a mapping
// from table name to a mapping from key to value, both guarded against
// data races. The table registry is split across a fixed number of
// independently-locked shards (picked by internal/shardkey) so creating
// unrelated tables concurrently doesn't serialize on one lock; within a
// table, readers proceed in parallel and a single writer excludes them.
package memstore

import (
	"context"
	"sync"

	"github.com/kvmux/kvmux/internal/shardkey"
	"github.com/kvmux/kvmux/message"
	"github.com/kvmux/kvmux/storage"
)

const shardCount = 32

type table struct {
	mu   sync.RWMutex
	rows map[string]message.Value
}

func newTable() *table {
	return &table{rows: make(map[string]message.Value)}
}

type shard struct {
	mu     sync.RWMutex
	tables map[string]*table
}

// Store is the in-memory backend.
type Store struct {
	shards [shardCount]*shard
}

// New returns an empty in-memory Store.
func New() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &shard{tables: make(map[string]*table)}
	}
	return s
}

func (s *Store) shardFor(name string) *shard {
	return s.shards[shardkey.Index(name, shardCount)]
}

// tableOrNil returns the table for name without creating it.
func (s *Store) tableOrNil(name string) *table {
	sh := s.shardFor(name)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.tables[name]
}

// tableOrCreate returns the table for name, creating it under the
// shard's write lock if it doesn't exist yet.
func (s *Store) tableOrCreate(name string) *table {
	sh := s.shardFor(name)

	sh.mu.RLock()
	t := sh.tables[name]
	sh.mu.RUnlock()
	if t != nil {
		return t
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if t = sh.tables[name]; t != nil {
		return t
	}
	t = newTable()
	sh.tables[name] = t
	return t
}

func (s *Store) Get(_ context.Context, tableName, key string) (message.Value, bool, error) {
	t := s.tableOrNil(tableName)
	if t == nil {
		return message.Value{}, false, nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.rows[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, tableName, key string, value message.Value) (message.Value, bool, error) {
	t := s.tableOrCreate(tableName)
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, had := t.rows[key]
	t.rows[key] = value
	return prev, had, nil
}

func (s *Store) Contains(_ context.Context, tableName, key string) (bool, error) {
	t := s.tableOrNil(tableName)
	if t == nil {
		return false, nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rows[key]
	return ok, nil
}

func (s *Store) Del(_ context.Context, tableName, key string) (message.Value, bool, error) {
	t := s.tableOrNil(tableName)
	if t == nil {
		return message.Value{}, false, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, had := t.rows[key]
	delete(t.rows, key)
	return prev, had, nil
}

func (s *Store) GetAll(_ context.Context, tableName string) ([]message.KvPair, error) {
	t := s.tableOrNil(tableName)
	if t == nil {
		return nil, nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	pairs := make([]message.KvPair, 0, len(t.rows))
	for k, v := range t.rows {
		pairs = append(pairs, message.KvPair{Key: k, Value: v})
	}
	return pairs, nil
}

// Iter takes a consistent snapshot of the table at call time (a plain
// copy made under the table's read lock) and returns a lazy iterator
// over it — later writes to the table are not observed by this scan.
func (s *Store) Iter(ctx context.Context, tableName string) (storage.Iterator, error) {
	pairs, err := s.GetAll(ctx, tableName)
	if err != nil {
		return nil, err
	}
	return storage.NewSliceIterator(pairs), nil
}

func (s *Store) Close() error {
	return nil
}
