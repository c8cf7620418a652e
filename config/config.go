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

// Package config holds the on-disk YAML shape for both the server and
// client binaries, decoded through confengine (go-ucfg). The storage
// backend is a tagged union ("memory" | "bolt") whose backend-specific
// settings arrive as a raw map and are decoded with mapstructure, since
// go-ucfg's struct tags can't express "one of several shapes depending
// on a sibling field".
package config

import (
	"github.com/mitchellh/mapstructure"

	"github.com/kvmux/kvmux/errs"
	"github.com/kvmux/kvmux/logger"
	"github.com/kvmux/kvmux/storage"
	"github.com/kvmux/kvmux/storage/boltstore"
	"github.com/kvmux/kvmux/storage/memstore"
)

// TLSConfig names the PEM files used to build a tlsconn config.
type TLSConfig struct {
	CertFile string `config:"certFile"`
	KeyFile  string `config:"keyFile"`
	CAFile   string `config:"caFile"` // optional; enables mTLS (server) or pinning (client)
}

const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
)

// StorageConfig is the tagged-union backend selector.
type StorageConfig struct {
	Backend  string         `config:"backend"`
	Settings map[string]any `config:"settings"`
}

// BoltSettings is StorageConfig.Settings decoded when Backend == "bolt".
type BoltSettings struct {
	Path string `mapstructure:"path"`
}

// DecodeBoltSettings decodes the backend-specific settings map for the
// "bolt" backend.
func (s StorageConfig) DecodeBoltSettings() (BoltSettings, error) {
	var out BoltSettings
	if err := mapstructure.Decode(s.Settings, &out); err != nil {
		return BoltSettings{}, errs.InvalidCommand("config: decode bolt settings: %v", err)
	}
	return out, nil
}

// OpenStorage builds the storage.Store named by cfg.Backend.
func OpenStorage(cfg StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return memstore.New(), nil
	case BackendBolt:
		settings, err := cfg.DecodeBoltSettings()
		if err != nil {
			return nil, err
		}
		if settings.Path == "" {
			return nil, errs.InvalidCommand("config: bolt backend requires settings.path")
		}
		return boltstore.Open(settings.Path)
	default:
		return nil, errs.InvalidCommand("config: unknown storage backend %q", cfg.Backend)
	}
}

// ServerConfig is the kvmux server binary's top-level configuration.
// The admin HTTP surface (server.Config) is intentionally not embedded
// here: server.New reads its own "server" child directly off the raw
// confengine.Config tree, independent of this struct's decoding.
type ServerConfig struct {
	Listen  string         `config:"listen"`
	TLS     TLSConfig      `config:"tls"`
	Storage StorageConfig  `config:"storage"`
	Logger  logger.Options `config:"logger"`
}

// ClientConfig is the kvmux CLI client binary's top-level configuration.
type ClientConfig struct {
	Address    string    `config:"address"`
	ServerName string    `config:"serverName"`
	TLS        TLSConfig `config:"tls"`
}
