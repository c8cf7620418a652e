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

// Package storage defines the table-scoped key-value contract shared by
// every backend (in-memory, embedded-tree). Tables are created lazily on
// first write and are never explicitly dropped.
package storage

import (
	"context"

	"github.com/kvmux/kvmux/message"
)

// Iterator is a finite, single-pass, lazy sequence of KvPair taken as a
// snapshot at the moment the scan began.
type Iterator interface {
	// Next advances the iterator; ok is false once exhausted.
	Next() (pair message.KvPair, ok bool)
	// Close releases any resources (cursor, snapshot) held by the
	// iterator. Safe to call multiple times and after exhaustion.
	Close()
}

// Store is the table-scoped key-value contract. get of an unknown table
// yields (Value{}, false, nil) — not an error.
type Store interface {
	// Get returns the value for (table, key), or ok=false if absent.
	Get(ctx context.Context, table, key string) (value message.Value, ok bool, err error)

	// Set stores value under (table, key), creating table if missing,
	// and returns the previous value if any.
	Set(ctx context.Context, table, key string, value message.Value) (previous message.Value, had bool, err error)

	// Contains reports whether (table, key) exists.
	Contains(ctx context.Context, table, key string) (bool, error)

	// Del removes (table, key) and returns the removed value if any.
	Del(ctx context.Context, table, key string) (previous message.Value, had bool, err error)

	// GetAll returns every pair in table, unordered.
	GetAll(ctx context.Context, table string) ([]message.KvPair, error)

	// Iter returns a lazy, single-pass snapshot iterator over table.
	Iter(ctx context.Context, table string) (Iterator, error)

	// Close releases backend resources (files, handles).
	Close() error
}

// sliceIterator adapts an already-materialized slice (the in-memory
// backend's natural shape) to the Iterator contract.
type sliceIterator struct {
	pairs []message.KvPair
	pos   int
}

// NewSliceIterator builds an Iterator over an already-collected snapshot.
func NewSliceIterator(pairs []message.KvPair) Iterator {
	return &sliceIterator{pairs: pairs}
}

func (it *sliceIterator) Next() (message.KvPair, bool) {
	if it.pos >= len(it.pairs) {
		return message.KvPair{}, false
	}
	p := it.pairs[it.pos]
	it.pos++
	return p, true
}

func (it *sliceIterator) Close() {
	it.pos = len(it.pairs)
}
