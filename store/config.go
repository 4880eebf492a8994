// Copyright 2024 The Ustore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store implements the chunk-store boundary, the per-operation
// chunk loader cache, and the concrete backends (in-memory and
// BoltDB-backed) the core's narrow Put/Exists/Get/GetInfo interface is
// exercised through.
package store

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"github.com/pkg/errors"

	"github.com/nusdbsystem/ustore/rollinghash"
	"github.com/nusdbsystem/ustore/ustoreerr"
)

// Config is the global rolling-hash configuration a store fixes once, at
// creation time, and records in its metadata. Changing any field for an
// existing store re-hashes the world — LoadConfig/WriteConfig exist
// precisely to catch that mistake on re-open.
type Config struct {
	Window       uint32 `toml:"window" default:"64"`
	Pattern      uint32 `toml:"pattern" default:"4095"`
	MaxChunkSize uint32 `toml:"max_chunk_size" default:"65536"`
}

// NewDefaultConfig returns a Config with the documented defaults
// (W=64, P=0xFFF, M=64KiB) applied via struct tags.
func NewDefaultConfig() Config {
	c := Config{}
	defaults.MustSet(&c)
	return c
}

// Params converts c to the rollinghash.Params the Splitter family
// consumes.
func (c Config) Params() rollinghash.Params {
	return rollinghash.Params{Window: c.Window, Pattern: c.Pattern, MaxChunkSize: c.MaxChunkSize}
}

// WriteConfig writes c as TOML to path, creating or truncating it.
func WriteConfig(path string, c Config) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(ustoreerr.StoreError.New(err.Error()), "store.WriteConfig")
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return errors.Wrap(ustoreerr.StoreError.New(err.Error()), "store.WriteConfig")
	}
	return nil
}

// LoadConfig reads a Config from path. Missing fields take the documented
// defaults, matching the behavior of a config file written by an older
// version of the store that predates a newly added field.
func LoadConfig(path string) (Config, error) {
	c := NewDefaultConfig()
	if _, _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, errors.Wrap(ustoreerr.StoreError.New(err.Error()), "store.LoadConfig")
	}
	return c, nil
}

// EnsureCompatible returns a StoreError if existing does not equal
// candidate: per the store's contract, the rolling-hash parameters of an
// existing store may never change underneath it.
func EnsureCompatible(existing, candidate Config) error {
	if existing != candidate {
		return ustoreerr.StoreError.New("store config mismatch: rolling-hash parameters may not change for an existing store")
	}
	return nil
}
