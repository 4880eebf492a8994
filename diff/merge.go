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
	"bytes"
	"context"

	"github.com/nusdbsystem/ustore/hash"
	"github.com/nusdbsystem/ustore/key"
	"github.com/nusdbsystem/ustore/tree"
	"github.com/nusdbsystem/ustore/ustoreerr"
)

// Conflict describes a key both branches changed since the common
// ancestor, in incompatible ways. The caller-supplied Resolver decides
// the outcome; the merge does not guess.
type Conflict struct {
	Key           key.OrderedKey
	AncestorValue []byte
	LeftValue     []byte
	RightValue    []byte
}

// keyIndex renders k into a comparable map key, working for both
// OrderedKey variants (unlike k.Bytes(), which panics on a by-value key).
func keyIndex(k key.OrderedKey) string {
	buf := make([]byte, k.NumBytes())
	k.Encode(buf)
	return string(buf)
}

// Resolver picks a winning value (or removal, via nil) for a Conflict.
// Returning an error aborts the merge.
type Resolver func(c Conflict) ([]byte, error)

// Merge computes a three-way merge of left and right against their
// common ancestor and returns the resulting root. Keys changed on
// exactly one side are taken as-is; keys changed identically on both
// sides collapse to that one change; keys changed differently on both
// sides are conflicts, resolved by resolve. Merge targets Map-shaped
// trees (BuildMap semantics: a nil value in the result removes the key).
func Merge(ctx context.Context, ns tree.NodeStore, ancestor, left, right hash.Hash, resolve Resolver) (hash.Hash, error) {
	if left == right {
		return left, nil
	}
	if left == ancestor {
		return right, nil
	}
	if right == ancestor {
		return left, nil
	}

	leftDiffs, err := Diffs(ctx, ns, ancestor, left)
	if err != nil {
		return hash.Hash{}, err
	}
	rightDiffs, err := Diffs(ctx, ns, ancestor, right)
	if err != nil {
		return hash.Hash{}, err
	}

	leftByKey := indexByKey(leftDiffs)
	rightByKey := indexByKey(rightDiffs)

	var mutations []tree.Mutation
	seen := map[string]bool{}
	for _, d := range leftDiffs {
		k := keyIndex(d.Key)
		if seen[k] {
			continue
		}
		seen[k] = true

		rd, onRight := rightByKey[k]
		if !onRight {
			mutations = append(mutations, tree.Mutation{Key: d.Key, Value: d.NewValue})
			continue
		}
		if bytes.Equal(d.NewValue, rd.NewValue) {
			mutations = append(mutations, tree.Mutation{Key: d.Key, Value: d.NewValue})
			continue
		}
		if resolve == nil {
			return hash.Hash{}, ustoreerr.InvalidInput.New("merge conflict with no resolver supplied")
		}
		winner, err := resolve(Conflict{
			Key:           d.Key,
			AncestorValue: d.OldValue,
			LeftValue:     d.NewValue,
			RightValue:    rd.NewValue,
		})
		if err != nil {
			return hash.Hash{}, err
		}
		mutations = append(mutations, tree.Mutation{Key: d.Key, Value: winner})
	}
	for _, d := range rightDiffs {
		k := keyIndex(d.Key)
		if seen[k] {
			continue
		}
		if _, onLeft := leftByKey[k]; onLeft {
			continue
		}
		mutations = append(mutations, tree.Mutation{Key: d.Key, Value: d.NewValue})
	}

	return tree.BuildMap(ctx, ns, ancestor, mutations)
}

func indexByKey(diffs []Diff) map[string]Diff {
	m := make(map[string]Diff, len(diffs))
	for _, d := range diffs {
		m[keyIndex(d.Key)] = d
	}
	return m
}
