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

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigMatchesDocumentedDefaults(t *testing.T) {
	c := NewDefaultConfig()
	assert.Equal(t, uint32(64), c.Window)
	assert.Equal(t, uint32(4095), c.Pattern)
	assert.Equal(t, uint32(65536), c.MaxChunkSize)
}

func TestConfigRoundTripsThroughTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ustore.toml")
	want := Config{Window: 32, Pattern: 255, MaxChunkSize: 4096}

	require.NoError(t, WriteConfig(path, want))
	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEnsureCompatibleRejectsMismatch(t *testing.T) {
	a := NewDefaultConfig()
	b := a
	b.Window = 128
	assert.Error(t, EnsureCompatible(a, b))
	assert.NoError(t, EnsureCompatible(a, a))
}
