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

// Package boltstore is the embedded, disk-persistent storage.Store
// backend. Every table shares one bbolt bucket; keys are namespaced
// "<table>:<key>" so a table's rows sit in one contiguous cursor range,
// letting GetAll/Iter prefix-scan instead of touching the whole bucket.
package boltstore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/kvmux/kvmux/errs"
	"github.com/kvmux/kvmux/message"
	"github.com/kvmux/kvmux/storage"
)

var bucketName = []byte("kv")

// Store is the bbolt-backed backend.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if absent) the database file at path and ensures
// the root bucket exists.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errs.Storage(fmt.Errorf("boltstore: open %q: %w", path, err))
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errs.Storage(errors.Wrap(err, "boltstore: create bucket"))
	}
	return &Store{db: db}, nil
}

func rowKey(table, key string) []byte {
	b := make([]byte, 0, len(table)+1+len(key))
	b = append(b, table...)
	b = append(b, ':')
	b = append(b, key...)
	return b
}

func rowPrefix(table string) []byte {
	b := make([]byte, 0, len(table)+1)
	b = append(b, table...)
	b = append(b, ':')
	return b
}

func decodeValue(raw []byte) (message.Value, error) {
	var v message.Value
	if err := v.Unmarshal(raw); err != nil {
		return message.Value{}, errs.Decode("boltstore: decode value: %v", err)
	}
	return v, nil
}

func (s *Store) Get(_ context.Context, table, key string) (message.Value, bool, error) {
	var v message.Value
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketName).Get(rowKey(table, key))
		if raw == nil {
			return nil
		}
		var err error
		v, err = decodeValue(raw)
		ok = err == nil
		return err
	})
	if err != nil {
		return message.Value{}, false, err
	}
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, table, key string, value message.Value) (message.Value, bool, error) {
	var prev message.Value
	var had bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		k := rowKey(table, key)
		if raw := b.Get(k); raw != nil {
			v, err := decodeValue(raw)
			if err != nil {
				return err
			}
			prev, had = v, true
		}
		enc, err := value.Marshal()
		if err != nil {
			return errs.Internal("boltstore: marshal value: %v", err)
		}
		return b.Put(k, enc)
	})
	if err != nil {
		return message.Value{}, false, err
	}
	return prev, had, nil
}

func (s *Store) Contains(_ context.Context, table, key string) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok = tx.Bucket(bucketName).Get(rowKey(table, key)) != nil
		return nil
	})
	return ok, err
}

func (s *Store) Del(_ context.Context, table, key string) (message.Value, bool, error) {
	var prev message.Value
	var had bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		k := rowKey(table, key)
		raw := b.Get(k)
		if raw == nil {
			return nil
		}
		v, err := decodeValue(raw)
		if err != nil {
			return err
		}
		prev, had = v, true
		return b.Delete(k)
	})
	if err != nil {
		return message.Value{}, false, err
	}
	return prev, had, nil
}

func (s *Store) GetAll(_ context.Context, table string) ([]message.KvPair, error) {
	var pairs []message.KvPair
	prefix := rowPrefix(table)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, raw := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, raw = c.Next() {
			v, err := decodeValue(raw)
			if err != nil {
				return err
			}
			pairs = append(pairs, message.KvPair{Key: string(k[len(prefix):]), Value: v})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

// Iter takes a snapshot of table via a single read transaction (bbolt
// cursors are only valid for the lifetime of their transaction) and
// hands it off as a slice iterator, consistent at the moment the scan
// began just like the in-memory backend's.
func (s *Store) Iter(ctx context.Context, table string) (storage.Iterator, error) {
	pairs, err := s.GetAll(ctx, table)
	if err != nil {
		return nil, err
	}
	return storage.NewSliceIterator(pairs), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
