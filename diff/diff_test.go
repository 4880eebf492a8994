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

package diff

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nusdbsystem/ustore/hash"
	"github.com/nusdbsystem/ustore/key"
	"github.com/nusdbsystem/ustore/store"
	"github.com/nusdbsystem/ustore/tree"
)

func buildMap(t *testing.T, ns tree.NodeStore, root hash.Hash, kvs map[string]string) hash.Hash {
	t.Helper()
	var muts []tree.Mutation
	for k, v := range kvs {
		muts = append(muts, tree.Mutation{Key: key.OfBytes([]byte(k)), Value: []byte(v)})
	}
	newRoot, err := tree.BuildMap(context.Background(), ns, root, muts)
	require.NoError(t, err)
	return newRoot
}

func TestDiffsIdenticalRootsIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := store.OpenMem(store.NewDefaultConfig(), nil)
	defer s.Close()

	root := buildMap(t, s.NodeStore(), hash.Hash{}, map[string]string{"a": "1", "b": "2"})
	got, err := Diffs(ctx, s.NodeStore(), root, root)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDiffsDetectsAddModifyRemove(t *testing.T) {
	ctx := context.Background()
	s := store.OpenMem(store.NewDefaultConfig(), nil)
	defer s.Close()
	ns := s.NodeStore()

	base := buildMap(t, ns, hash.Hash{}, map[string]string{"a": "1", "b": "2", "c": "3"})

	next, err := tree.BuildMap(ctx, ns, base, []tree.Mutation{
		{Key: key.OfBytes([]byte("b")), Value: []byte("20")}, // modify
		{Key: key.OfBytes([]byte("c")), Value: nil},          // remove
		{Key: key.OfBytes([]byte("d")), Value: []byte("4")},  // add
	})
	require.NoError(t, err)

	diffs, err := Diffs(ctx, ns, base, next)
	require.NoError(t, err)

	byKey := map[string]Diff{}
	for _, d := range diffs {
		byKey[string(d.Key.Bytes())] = d
	}
	require.Len(t, diffs, 3)

	assert.Equal(t, []byte("2"), byKey["b"].OldValue)
	assert.Equal(t, []byte("20"), byKey["b"].NewValue)

	assert.Equal(t, []byte("3"), byKey["c"].OldValue)
	assert.Nil(t, byKey["c"].NewValue)

	assert.Nil(t, byKey["d"].OldValue)
	assert.Equal(t, []byte("4"), byKey["d"].NewValue)
}

func TestDiffsAgainstEmptyTreeIsAllAdditions(t *testing.T) {
	ctx := context.Background()
	s := store.OpenMem(store.NewDefaultConfig(), nil)
	defer s.Close()
	ns := s.NodeStore()

	root := buildMap(t, ns, hash.Hash{}, map[string]string{"x": "1", "y": "2"})
	diffs, err := Diffs(ctx, ns, hash.Hash{}, root)
	require.NoError(t, err)
	assert.Len(t, diffs, 2)
	for _, d := range diffs {
		assert.Nil(t, d.OldValue)
		assert.NotNil(t, d.NewValue)
	}
}

func TestDiffsLargeTreeSkipsUnchangedSubtrees(t *testing.T) {
	ctx := context.Background()
	s := store.OpenMem(store.NewDefaultConfig(), nil)
	defer s.Close()
	ns := s.NodeStore()

	kvs := map[string]string{}
	for i := 0; i < 2000; i++ {
		kvs[pad(i)] = pad(i)
	}
	base := buildMap(t, ns, hash.Hash{}, kvs)

	next, err := tree.BuildMap(ctx, ns, base, []tree.Mutation{
		{Key: key.OfBytes([]byte(pad(1000))), Value: []byte("changed")},
	})
	require.NoError(t, err)

	diffs, err := Diffs(ctx, ns, base, next)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, []byte("changed"), diffs[0].NewValue)
}

func TestDiffsInsertCausingLeafSplitIsExactlyOneDiff(t *testing.T) {
	ctx := context.Background()
	s := store.OpenMem(store.NewDefaultConfig(), nil)
	defer s.Close()
	ns := s.NodeStore()

	kvs := map[string]string{}
	for i := 0; i < 2000; i++ {
		if i == 1000 {
			continue // leave a gap for the inserted key to land in
		}
		kvs[pad(i)] = pad(i)
	}
	base := buildMap(t, ns, hash.Hash{}, kvs)

	// Inserting a brand-new key (rather than modifying an existing one,
	// as TestDiffsLargeTreeSkipsUnchangedSubtrees does) shifts every
	// meta-child boundary that follows it on one side, without changing
	// any of the surrounding keys' values.
	next, err := tree.BuildMap(ctx, ns, base, []tree.Mutation{
		{Key: key.OfBytes([]byte(pad(1000))), Value: []byte(pad(1000))},
	})
	require.NoError(t, err)

	diffs, err := Diffs(ctx, ns, base, next)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Nil(t, diffs[0].OldValue)
	assert.Equal(t, []byte(pad(1000)), diffs[0].NewValue)
}

func pad(i int) string {
	return fmt.Sprintf("%07d", i)
}
