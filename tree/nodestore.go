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
)

// NodeStore is the narrow capability the tree package needs from the
// chunk loader: read a node by hash, persist a freshly built chunk, and
// report the store-wide rolling-hash parameters that every Splitter must
// use. It is passed explicitly into every builder and cursor call; the
// package holds no implicit global store reference.
type NodeStore interface {
	ReadNode(ctx context.Context, h hash.Hash) (*Node, error)
	WriteChunk(ctx context.Context, c chunk.Chunk) error
	Params() rollinghash.Params
}

// ReadRoot reads the node at root, or returns (nil, nil) if root is the
// null hash (an unset / never-written tree).
func ReadRoot(ctx context.Context, ns NodeStore, root hash.Hash) (*Node, error) {
	if root.IsEmpty() {
		return nil, nil
	}
	return ns.ReadNode(ctx, root)
}
