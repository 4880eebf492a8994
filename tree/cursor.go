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

	"github.com/pkg/errors"

	"github.com/nusdbsystem/ustore/chunk"
	"github.com/nusdbsystem/ustore/hash"
	"github.com/nusdbsystem/ustore/key"
	"github.com/nusdbsystem/ustore/ustoreerr"
)

// Get descends from root to the leaf that should contain target and
// returns its value, or ok=false if target is absent. Valid for Map trees
// (value is the stored bytes) and Set trees (value is a zero-length slice
// when present).
func Get(ctx context.Context, ns NodeStore, root hash.Hash, target key.OrderedKey) (value []byte, ok bool, err error) {
	nd, err := ReadRoot(ctx, ns, root)
	if err != nil {
		return nil, false, err
	}
	if nd == nil {
		return nil, false, nil
	}
	return getFromNode(ctx, ns, nd, target)
}

func getFromNode(ctx context.Context, ns NodeStore, nd *Node, target key.OrderedKey) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, ustoreerr.Cancelled.New()
	}

	if nd.IsLeaf() {
		idx := nd.GetIdxForKey(target)
		if idx >= nd.NumEntries() || !key.Equal(nd.Key(idx), target) {
			return nil, false, nil
		}
		if nd.Kind() == chunk.TypeSet {
			return []byte{}, true, nil
		}
		return nd.Value(idx), true, nil
	}

	childHash, _, err := nd.GetChildHashByKey(target)
	if err != nil {
		return nil, false, err
	}
	if childHash.IsEmpty() {
		return nil, false, nil
	}
	child, err := ns.ReadNode(ctx, childHash)
	if err != nil {
		return nil, false, errors.Wrap(err, "tree.getFromNode")
	}
	return getFromNode(ctx, ns, child, target)
}

// Cursor walks every leaf entry of a tree in ascending key order, for a
// plain ordered scan. It reads all of the tree's leaf entries when it is
// created.
type Cursor struct {
	ctx     context.Context
	ns      NodeStore
	entries []leafEntry
	pos     int
}

// NewCursorAtStart returns a Cursor positioned at the first entry of the
// tree rooted at root (out of bounds if the tree is empty).
func NewCursorAtStart(ctx context.Context, ns NodeStore, root hash.Hash) (*Cursor, error) {
	entries, err := walkLeafEntries(ctx, ns, root)
	if err != nil {
		return nil, err
	}
	return &Cursor{ctx: ctx, ns: ns, entries: entries, pos: 0}, nil
}

// OutOfBounds reports whether the cursor has advanced past the last entry.
func (c *Cursor) OutOfBounds() bool { return c.pos >= len(c.entries) }

// CurrentKey returns the key at the cursor's current position.
func (c *Cursor) CurrentKey() key.OrderedKey { return c.entries[c.pos].Key }

// CurrentValue returns the value at the cursor's current position.
func (c *Cursor) CurrentValue() []byte { return c.entries[c.pos].Value }

// Advance moves the cursor to the next entry.
func (c *Cursor) Advance() {
	c.pos++
}
