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

// Package diff implements a dual-cursor differ over two prolly-tree
// roots. Because chunk boundaries are content-defined, two trees that
// share most of their data reuse most of their chunks byte-for-byte;
// the differ exploits that by comparing subtree hashes and skipping any
// region where they already match, rather than flattening both trees
// and comparing every entry.
package diff

import (
	"bytes"
	"context"

	"github.com/nusdbsystem/ustore/chunk"
	"github.com/nusdbsystem/ustore/hash"
	"github.com/nusdbsystem/ustore/key"
	"github.com/nusdbsystem/ustore/tree"
	"github.com/nusdbsystem/ustore/ustoreerr"
)

// Diff describes one key whose presence or value differs between the
// left and right trees. OldValue is nil for an addition, NewValue is nil
// for a removal; both are non-nil for a modification.
type Diff struct {
	Key      key.OrderedKey
	OldValue []byte
	NewValue []byte
}

// Diffs computes the set of changed keys between the trees rooted at
// left and right. Either may be the null hash, meaning an empty tree.
// The result is ordered by key.
func Diffs(ctx context.Context, ns tree.NodeStore, left, right hash.Hash) ([]Diff, error) {
	var out []Diff
	if err := diffHashes(ctx, ns, left, right, func(d Diff) { out = append(out, d) }); err != nil {
		return nil, err
	}
	return out, nil
}

func readOrNil(ctx context.Context, ns tree.NodeStore, h hash.Hash) (*tree.Node, error) {
	if h.IsEmpty() {
		return nil, nil
	}
	return ns.ReadNode(ctx, h)
}

func diffHashes(ctx context.Context, ns tree.NodeStore, left, right hash.Hash, emit func(Diff)) error {
	if ctx.Err() != nil {
		return ustoreerr.Cancelled.New(ctx.Err().Error())
	}
	if left == right {
		// Identical subtree (including both-empty): the Merkle
		// short-circuit that makes diffing large, mostly-shared trees
		// cheap.
		return nil
	}

	leftNode, err := readOrNil(ctx, ns, left)
	if err != nil {
		return err
	}
	rightNode, err := readOrNil(ctx, ns, right)
	if err != nil {
		return err
	}

	switch {
	case leftNode == nil && rightNode == nil:
		return nil
	case leftNode == nil:
		return emitAll(ctx, ns, rightNode, false, emit)
	case rightNode == nil:
		return emitAll(ctx, ns, leftNode, true, emit)
	}

	if !leftNode.IsLeaf() && !rightNode.IsLeaf() {
		return diffMeta(ctx, ns, leftNode, rightNode, emit)
	}
	if leftNode.IsLeaf() && rightNode.IsLeaf() {
		diffLeaves(leftNode, rightNode, emit)
		return nil
	}

	// One side materialized a meta root, the other a single leaf chunk
	// (a tree straddling the single-leaf/meta-root size boundary). Fall
	// back to a full flatten-and-merge of both sides; rare in practice
	// since it only happens at the root.
	leftEntries, err := flatten(ctx, ns, leftNode)
	if err != nil {
		return err
	}
	rightEntries, err := flatten(ctx, ns, rightNode)
	if err != nil {
		return err
	}
	diffEntryLists(leftEntries, rightEntries, emit)
	return nil
}

// diffMeta walks two Meta nodes' children in MaxKey order. Children with
// equal hash AND equal MaxKey cover the exact same range with the exact
// same content and are skipped without being read; children with equal
// MaxKey but differing hash are recursed into directly. A mismatched
// MaxKey does not by itself mean the two children's ranges are disjoint —
// an insertion that splits a leaf shifts every subsequent child boundary
// on one side without changing the underlying keys — so a MaxKey
// mismatch instead collects a run of children from whichever side lags
// behind, on both sides, until the boundaries realign (or, if they never
// do, to the end of both nodes), and flattens only that run for an exact
// entry-level diff. Children outside any such run are never read.
func diffMeta(ctx context.Context, ns tree.NodeStore, left, right *tree.Node, emit func(Diff)) error {
	i, j := 0, 0
	for i < left.NumEntries() && j < right.NumEntries() {
		le := left.MetaEntryAt(i)
		re := right.MetaEntryAt(j)

		if le.ChildHash == re.ChildHash && key.Equal(le.MaxKey, re.MaxKey) {
			i++
			j++
			continue
		}
		if key.Equal(le.MaxKey, re.MaxKey) {
			if err := diffHashes(ctx, ns, le.ChildHash, re.ChildHash, emit); err != nil {
				return err
			}
			i++
			j++
			continue
		}

		// Boundaries disagree: collect the run of children on each side
		// up to and including the point where a MaxKey next matches,
		// then diff that run as flattened entries instead of assuming
		// either side is wholly absent on the other.
		var leftRun, rightRun []tree.MetaEntry
		for i < left.NumEntries() && j < right.NumEntries() {
			le = left.MetaEntryAt(i)
			re = right.MetaEntryAt(j)
			if key.Equal(le.MaxKey, re.MaxKey) {
				leftRun = append(leftRun, le)
				rightRun = append(rightRun, re)
				i++
				j++
				break
			}
			if key.Less(le.MaxKey, re.MaxKey) {
				leftRun = append(leftRun, le)
				i++
			} else {
				rightRun = append(rightRun, re)
				j++
			}
		}
		// One node ran out before the boundaries realigned: the rest of
		// the other node overlaps this run, so it joins the run.
		if i == left.NumEntries() || j == right.NumEntries() {
			for ; i < left.NumEntries(); i++ {
				leftRun = append(leftRun, left.MetaEntryAt(i))
			}
			for ; j < right.NumEntries(); j++ {
				rightRun = append(rightRun, right.MetaEntryAt(j))
			}
		}
		leftEntries, err := flattenMetaEntries(ctx, ns, leftRun)
		if err != nil {
			return err
		}
		rightEntries, err := flattenMetaEntries(ctx, ns, rightRun)
		if err != nil {
			return err
		}
		diffEntryLists(leftEntries, rightEntries, emit)
	}
	for ; i < left.NumEntries(); i++ {
		if err := diffHashes(ctx, ns, left.MetaEntryAt(i).ChildHash, hash.Hash{}, emit); err != nil {
			return err
		}
	}
	for ; j < right.NumEntries(); j++ {
		if err := diffHashes(ctx, ns, hash.Hash{}, right.MetaEntryAt(j).ChildHash, emit); err != nil {
			return err
		}
	}
	return nil
}

// flattenMetaEntries reads and flattens every child named by entries, in
// order. Used by diffMeta to materialize a misaligned run for an exact
// entry-level diff.
func flattenMetaEntries(ctx context.Context, ns tree.NodeStore, entries []tree.MetaEntry) ([]entry, error) {
	var out []entry
	for _, me := range entries {
		child, err := readOrNil(ctx, ns, me.ChildHash)
		if err != nil {
			return nil, err
		}
		childEntries, err := flatten(ctx, ns, child)
		if err != nil {
			return nil, err
		}
		out = append(out, childEntries...)
	}
	return out, nil
}

func leafValue(n *tree.Node, i int) []byte {
	if n.Kind() == chunk.TypeSet {
		return n.Item(i)
	}
	return n.Value(i)
}

func diffLeaves(left, right *tree.Node, emit func(Diff)) {
	i, j := 0, 0
	for i < left.NumEntries() && j < right.NumEntries() {
		lk, rk := left.Key(i), right.Key(j)
		switch {
		case key.Equal(lk, rk):
			lv, rv := leafValue(left, i), leafValue(right, j)
			if !bytes.Equal(lv, rv) {
				emit(Diff{Key: lk, OldValue: lv, NewValue: rv})
			}
			i++
			j++
		case key.Less(lk, rk):
			emit(Diff{Key: lk, OldValue: leafValue(left, i)})
			i++
		default:
			emit(Diff{Key: rk, NewValue: leafValue(right, j)})
			j++
		}
	}
	for ; i < left.NumEntries(); i++ {
		emit(Diff{Key: left.Key(i), OldValue: leafValue(left, i)})
	}
	for ; j < right.NumEntries(); j++ {
		emit(Diff{Key: right.Key(j), NewValue: leafValue(right, j)})
	}
}

type entry struct {
	key   key.OrderedKey
	value []byte
}

func flatten(ctx context.Context, ns tree.NodeStore, n *tree.Node) ([]entry, error) {
	if n == nil {
		return nil, nil
	}
	if n.IsLeaf() {
		out := make([]entry, n.NumEntries())
		for i := range out {
			out[i] = entry{key: n.Key(i), value: leafValue(n, i)}
		}
		return out, nil
	}
	var out []entry
	for i := 0; i < n.NumEntries(); i++ {
		child, err := readOrNil(ctx, ns, n.MetaEntryAt(i).ChildHash)
		if err != nil {
			return nil, err
		}
		childEntries, err := flatten(ctx, ns, child)
		if err != nil {
			return nil, err
		}
		out = append(out, childEntries...)
	}
	return out, nil
}

func diffEntryLists(left, right []entry, emit func(Diff)) {
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		switch {
		case key.Equal(left[i].key, right[j].key):
			if !bytes.Equal(left[i].value, right[j].value) {
				emit(Diff{Key: left[i].key, OldValue: left[i].value, NewValue: right[j].value})
			}
			i++
			j++
		case key.Less(left[i].key, right[j].key):
			emit(Diff{Key: left[i].key, OldValue: left[i].value})
			i++
		default:
			emit(Diff{Key: right[j].key, NewValue: right[j].value})
			j++
		}
	}
	for ; i < len(left); i++ {
		emit(Diff{Key: left[i].key, OldValue: left[i].value})
	}
	for ; j < len(right); j++ {
		emit(Diff{Key: right[j].key, NewValue: right[j].value})
	}
}

func emitAll(ctx context.Context, ns tree.NodeStore, n *tree.Node, isLeft bool, emit func(Diff)) error {
	entries, err := flatten(ctx, ns, n)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if isLeft {
			emit(Diff{Key: e.key, OldValue: e.value})
		} else {
			emit(Diff{Key: e.key, NewValue: e.value})
		}
	}
	return nil
}
