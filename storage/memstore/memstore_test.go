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

package memstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvmux/kvmux/message"
)

func TestGetMissing(t *testing.T) {
	s := New()
	_, ok, err := s.Get(context.Background(), "t", "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetOverwriteReturnsPrevious(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, had, err := s.Set(ctx, "t", "k", message.NewInt64(1))
	require.NoError(t, err)
	assert.False(t, had)

	prev, had, err := s.Set(ctx, "t", "k", message.NewInt64(2))
	require.NoError(t, err)
	require.True(t, had)
	prevInt, err := prev.Int64E()
	require.NoError(t, err)
	assert.Equal(t, int64(1), prevInt)

	got, ok, err := s.Get(ctx, "t", "k")
	require.NoError(t, err)
	require.True(t, ok)
	gotInt, err := got.Int64E()
	require.NoError(t, err)
	assert.Equal(t, int64(2), gotInt)
}

func TestContainsAndDel(t *testing.T) {
	s := New()
	ctx := context.Background()

	ok, err := s.Contains(ctx, "t", "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = s.Set(ctx, "t", "k", message.NewBool(true))
	require.NoError(t, err)

	ok, err = s.Contains(ctx, "t", "k")
	require.NoError(t, err)
	assert.True(t, ok)

	prev, had, err := s.Del(ctx, "t", "k")
	require.NoError(t, err)
	require.True(t, had)
	prevBool, err := prev.BoolE()
	require.NoError(t, err)
	assert.Equal(t, true, prevBool)

	_, had, err = s.Del(ctx, "t", "k")
	require.NoError(t, err)
	assert.False(t, had)
}

func TestGetAllAndIterCompleteness(t *testing.T) {
	s := New()
	ctx := context.Background()

	want := map[string]int64{"a": 1, "b": 2, "c": 3}
	for k, v := range want {
		_, _, err := s.Set(ctx, "t", k, message.NewInt64(v))
		require.NoError(t, err)
	}

	all, err := s.GetAll(ctx, "t")
	require.NoError(t, err)
	require.Len(t, all, len(want))

	it, err := s.Iter(ctx, "t")
	require.NoError(t, err)
	defer it.Close()

	got := make(map[string]int64)
	for {
		pair, ok := it.Next()
		if !ok {
			break
		}
		v, err := pair.Value.Int64E()
		require.NoError(t, err)
		got[pair.Key] = v
	}
	assert.Equal(t, want, got)
}

func TestIterSnapshotIgnoresLaterWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _, err := s.Set(ctx, "t", "a", message.NewInt64(1))
	require.NoError(t, err)

	it, err := s.Iter(ctx, "t")
	require.NoError(t, err)
	defer it.Close()

	_, _, err = s.Set(ctx, "t", "b", message.NewInt64(2))
	require.NoError(t, err)

	count := 0
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 1, count)
}

func TestConcurrentTableCreation(t *testing.T) {
	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := s.Set(ctx, "shared", "k", message.NewInt64(int64(i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	_, ok, err := s.Get(ctx, "shared", "k")
	require.NoError(t, err)
	assert.True(t, ok)
}
