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

// Package shardkey hashes a table name to a shard index, letting the
// in-memory store spread its table registry across several
// independently-locked buckets instead of one contended map.
package shardkey

import (
	"github.com/cespare/xxhash/v2"
	"github.com/valyala/bytebufferpool"
)

// Hash returns a hash value for name, suitable for `% shardCount`
// selection. Grounded on the same xxhash-over-a-pooled-buffer idiom used
// elsewhere in this dependency graph for label-set hashing.
func Hash(name string) uint64 {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteString(name)
	return xxhash.Sum64(buf.Bytes())
}

// Index maps name onto [0, shardCount).
func Index(name string, shardCount int) int {
	if shardCount <= 1 {
		return 0
	}
	return int(Hash(name) % uint64(shardCount))
}
