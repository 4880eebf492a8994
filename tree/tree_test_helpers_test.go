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
	"context"

	"github.com/nusdbsystem/ustore/chunk"
	"github.com/nusdbsystem/ustore/hash"
	"github.com/nusdbsystem/ustore/rollinghash"
	"github.com/nusdbsystem/ustore/ustoreerr"
)

// testNodeStore is a minimal in-memory NodeStore used only by this
// package's own tests, so tree's tests don't need to depend on the store
// package (which itself depends on tree).
type testNodeStore struct {
	params rollinghash.Params
	chunks map[hash.Hash]chunk.Chunk
}

func newTestNodeStore() *testNodeStore {
	return &testNodeStore{params: rollinghash.DefaultParams(), chunks: map[hash.Hash]chunk.Chunk{}}
}

func (s *testNodeStore) ReadNode(ctx context.Context, h hash.Hash) (*Node, error) {
	c, ok := s.chunks[h]
	if !ok {
		return nil, ustoreerr.HashNotFound.New(h.String())
	}
	return DecodeNode(c)
}

func (s *testNodeStore) WriteChunk(ctx context.Context, c chunk.Chunk) error {
	s.chunks[c.Hash()] = c
	return nil
}

func (s *testNodeStore) Params() rollinghash.Params { return s.params }
