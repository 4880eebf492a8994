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

package branch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nusdbsystem/ustore/hash"
	"github.com/nusdbsystem/ustore/ustoreerr"
)

func TestSetAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemBranchStore()

	_, ok, err := s.Get(ctx, "main")
	require.NoError(t, err)
	assert.False(t, ok)

	root := hash.Of([]byte("commit-1"))
	require.NoError(t, s.Set(ctx, "main", root))

	got, ok, err := s.Get(ctx, "main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, root, got)
}

func TestForkCopiesCurrentPointer(t *testing.T) {
	ctx := context.Background()
	s := NewMemBranchStore()
	root := hash.Of([]byte("commit-1"))
	require.NoError(t, s.Set(ctx, "main", root))

	require.NoError(t, s.Fork(ctx, "main", "feature"))

	got, ok, err := s.Get(ctx, "feature")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, root, got)

	// Subsequent moves of main do not move feature.
	require.NoError(t, s.Set(ctx, "main", hash.Of([]byte("commit-2"))))
	got, _, _ = s.Get(ctx, "feature")
	assert.Equal(t, root, got)
}

func TestForkFromMissingBranchFails(t *testing.T) {
	ctx := context.Background()
	s := NewMemBranchStore()
	err := s.Fork(ctx, "missing", "feature")
	assert.True(t, ustoreerr.KeyNotFound.Is(err))
}

func TestForkOntoExistingBranchFails(t *testing.T) {
	ctx := context.Background()
	s := NewMemBranchStore()
	require.NoError(t, s.Set(ctx, "main", hash.Of([]byte("c1"))))
	require.NoError(t, s.Set(ctx, "feature", hash.Of([]byte("c2"))))
	err := s.Fork(ctx, "main", "feature")
	assert.Error(t, err)
}

func TestDeleteAndList(t *testing.T) {
	ctx := context.Background()
	s := NewMemBranchStore()
	require.NoError(t, s.Set(ctx, "main", hash.Of([]byte("c1"))))
	require.NoError(t, s.Set(ctx, "dev", hash.Of([]byte("c2"))))

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "main"}, names)

	require.NoError(t, s.Delete(ctx, "dev"))
	names, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, names)

	err = s.Delete(ctx, "dev")
	assert.True(t, ustoreerr.KeyNotFound.Is(err))
}
