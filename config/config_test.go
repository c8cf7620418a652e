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

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvmux/kvmux/storage/boltstore"
	"github.com/kvmux/kvmux/storage/memstore"
)

func TestOpenStorageDefaultsToMemory(t *testing.T) {
	s, err := OpenStorage(StorageConfig{})
	require.NoError(t, err)
	_, ok := s.(*memstore.Store)
	assert.True(t, ok)
}

func TestOpenStorageBolt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	s, err := OpenStorage(StorageConfig{
		Backend:  BackendBolt,
		Settings: map[string]any{"path": path},
	})
	require.NoError(t, err)
	defer s.Close()
	_, ok := s.(*boltstore.Store)
	assert.True(t, ok)
}

func TestOpenStorageBoltRequiresPath(t *testing.T) {
	_, err := OpenStorage(StorageConfig{Backend: BackendBolt})
	assert.Error(t, err)
}

func TestOpenStorageUnknownBackend(t *testing.T) {
	_, err := OpenStorage(StorageConfig{Backend: "postgres"})
	assert.Error(t, err)
}
