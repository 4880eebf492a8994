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
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nusdbsystem/ustore/chunk"
	"github.com/nusdbsystem/ustore/ustoreerr"
)

func TestMemStorePutGetExists(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	c := chunk.New(chunk.TypeBlob, []byte("hello"))

	ok, err := s.Exists(ctx, c.Hash())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, c))

	ok, err = s.Exists(ctx, c.Hash())
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Get(ctx, c.Hash())
	require.NoError(t, err)
	assert.Equal(t, c.Payload(), got.Payload())

	info, err := s.GetInfo(ctx, c.Hash())
	require.NoError(t, err)
	assert.Equal(t, chunk.TypeBlob, info.Kind)
}

func TestMemStoreGetMissingIsHashNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	_, err := s.Get(ctx, chunk.New(chunk.TypeBlob, []byte("x")).Hash())
	assert.True(t, ustoreerr.HashNotFound.Is(err))
}

func TestMemStoreScanByType(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.Put(ctx, chunk.New(chunk.TypeBlob, []byte("a"))))
	require.NoError(t, s.Put(ctx, chunk.New(chunk.TypeBlob, []byte("bb"))))
	require.NoError(t, s.Put(ctx, chunk.New(chunk.TypeMap, []byte("ccc"))))

	totals, err := s.ScanByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, totals[chunk.TypeBlob].Count)
	assert.Equal(t, 1, totals[chunk.TypeMap].Count)
	assert.Zero(t, totals[chunk.TypeSet].Count)
}

func TestBoltStoreScanByType(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chunks.db")
	s, err := OpenBoltStore(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ctx, chunk.New(chunk.TypeBlob, []byte("a"))))
	require.NoError(t, s.Put(ctx, chunk.New(chunk.TypeSet, []byte("bb"))))

	totals, err := s.ScanByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, totals[chunk.TypeBlob].Count)
	assert.Equal(t, 1, totals[chunk.TypeSet].Count)
	assert.Equal(t, int64(chunk.New(chunk.TypeBlob, []byte("a")).NumBytes()), totals[chunk.TypeBlob].Bytes)
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "chunks.db")

	c := chunk.New(chunk.TypeBlob, []byte("persisted"))

	s1, err := OpenBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Put(ctx, c))
	require.NoError(t, s1.Close())

	s2, err := OpenBoltStore(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, c.Hash())
	require.NoError(t, err)
	assert.Equal(t, c.Payload(), got.Payload())
}
