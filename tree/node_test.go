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

package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nusdbsystem/ustore/chunk"
	"github.com/nusdbsystem/ustore/hash"
	"github.com/nusdbsystem/ustore/key"
)

func buildMapLeafChunk(t *testing.T, pairs [][2]string) chunk.Chunk {
	t.Helper()
	payload := make([]byte, 4)
	for _, p := range pairs {
		payload = append(payload, EncodeMapEntry([]byte(p[0]), []byte(p[1]))...)
	}
	count := len(pairs)
	payload[0] = byte(count)
	payload[1], payload[2], payload[3] = 0, 0, 0
	return chunk.New(chunk.TypeMap, payload)
}

func TestMapLeafThreeEntries(t *testing.T) {
	c := buildMapLeafChunk(t, [][2]string{{"k1", "v1"}, {"k22", "v22"}, {"k333", "v333"}})
	nd, err := DecodeNode(c)
	require.NoError(t, err)

	assert.Equal(t, 3, nd.NumEntries())
	assert.Equal(t, 12, nd.Len(0)) // 8 + len("k1") + len("v1")

	assert.Equal(t, 1, nd.GetIdxForKey(key.OfBytes([]byte("k12"))))
	assert.Equal(t, 3, nd.GetIdxForKey(key.OfBytes([]byte("k4"))))
}

func TestSetLeafRoundTrip(t *testing.T) {
	payload := []byte{3, 0, 0, 0}
	payload = append(payload, EncodeSetEntry([]byte("a"))...)
	payload = append(payload, EncodeSetEntry([]byte("bb"))...)
	payload = append(payload, EncodeSetEntry([]byte("ccc"))...)
	c := chunk.New(chunk.TypeSet, payload)

	nd, err := DecodeNode(c)
	require.NoError(t, err)
	assert.Equal(t, 3, nd.NumEntries())
	assert.Equal(t, []byte("a"), nd.Item(0))
	assert.Equal(t, []byte("bb"), nd.Item(1))
	assert.Equal(t, []byte("ccc"), nd.Item(2))
}

func TestBlobNodeRawBytes(t *testing.T) {
	c := chunk.New(chunk.TypeBlob, []byte("hello"))
	nd, err := DecodeNode(c)
	require.NoError(t, err)
	assert.Equal(t, 5, nd.NumEntries())
	assert.Equal(t, []byte("hello"), nd.Bytes())
}

func TestMetaAggregation(t *testing.T) {
	children := []MetaEntry{
		{NumLeaves: 1, NumElements: 10, ChildHash: hashOf("c1"), MaxKey: key.OfUint64(5)},
		{NumLeaves: 2, NumElements: 20, ChildHash: hashOf("c2"), MaxKey: key.OfUint64(10)},
		{NumLeaves: 3, NumElements: 25, ChildHash: hashOf("c3"), MaxKey: key.OfUint64(15)},
	}
	payload := make([]byte, 4)
	for _, m := range children {
		payload = append(payload, m.Encode(nil)...)
	}
	payload[0] = byte(len(children))
	c := chunk.New(chunk.TypeMeta, payload)

	nd, err := DecodeNode(c)
	require.NoError(t, err)

	assert.Equal(t, uint32(6), nd.NumLeaves())
	assert.Equal(t, 55, nd.TreeCount())
	assert.Equal(t, uint64(30), nd.NumElementsUntilEntry(2))

	childHash, idx, err := nd.GetChildHashByKey(key.OfUint64(9))
	require.NoError(t, err)
	assert.Equal(t, children[1].ChildHash, childHash)
	assert.Equal(t, 1, idx)

	childHash, idx, err = nd.GetChildHashByKey(key.OfUint64(20))
	require.NoError(t, err)
	assert.True(t, childHash.IsEmpty())
	assert.Equal(t, 3, idx)
}

func hashOf(s string) hash.Hash {
	c := chunk.New(chunk.TypeBlob, []byte(s))
	return c.Hash()
}
