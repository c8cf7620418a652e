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

package boltstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvmux/kvmux/message"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoltSetGetDel(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "t", "k")
	require.NoError(t, err)
	assert.False(t, ok)

	prev, had, err := s.Set(ctx, "t", "k", message.NewString("v1"))
	require.NoError(t, err)
	assert.False(t, had)
	assert.True(t, prev.IsNone())

	prev, had, err = s.Set(ctx, "t", "k", message.NewString("v2"))
	require.NoError(t, err)
	require.True(t, had)
	assert.Equal(t, "v1", prev.String())

	got, ok, err := s.Get(ctx, "t", "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", got.String())

	ok, err = s.Contains(ctx, "t", "k")
	require.NoError(t, err)
	assert.True(t, ok)

	removed, had, err := s.Del(ctx, "t", "k")
	require.NoError(t, err)
	require.True(t, had)
	assert.Equal(t, "v2", removed.String())

	ok, err = s.Contains(ctx, "t", "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBoltTablePrefixIsolation(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	_, _, err := s.Set(ctx, "tableA", "x", message.NewInt64(1))
	require.NoError(t, err)
	_, _, err = s.Set(ctx, "tableAB", "y", message.NewInt64(2))
	require.NoError(t, err)

	pairs, err := s.GetAll(ctx, "tableA")
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "x", pairs[0].Key)
}

func TestBoltIterSnapshot(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		_, _, err := s.Set(ctx, "t", k, message.NewString(k))
		require.NoError(t, err)
	}

	it, err := s.Iter(ctx, "t")
	require.NoError(t, err)
	defer it.Close()

	count := 0
	seen := make(map[string]bool)
	for {
		p, ok := it.Next()
		if !ok {
			break
		}
		seen[p.Key] = true
		count++
	}
	assert.Equal(t, 3, count)
	assert.True(t, seen["a"] && seen["b"] && seen["c"])
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kv.db")

	s1, err := Open(path)
	require.NoError(t, err)
	_, _, err = s1.Set(context.Background(), "t", "k", message.NewInt64(42))
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	v, ok, err := s2.Get(context.Background(), "t", "k")
	require.NoError(t, err)
	require.True(t, ok)
	n, err := v.Int64E()
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}
