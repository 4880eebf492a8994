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

// Package ustore is the orchestration surface tying the chunk store, the
// prolly tree, the branch manager, and the differ together into a
// branch-oriented put/get/commit/merge API.
package ustore

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nusdbsystem/ustore/branch"
	"github.com/nusdbsystem/ustore/diff"
	"github.com/nusdbsystem/ustore/hash"
	"github.com/nusdbsystem/ustore/key"
	"github.com/nusdbsystem/ustore/store"
	"github.com/nusdbsystem/ustore/tree"
	"github.com/nusdbsystem/ustore/ustoreerr"
)

// commitVariant tags every UCell this package writes, so a reader can
// tell a ustore commit apart from any other caller-defined use of the
// Cell chunk type sharing the same store.
const commitVariant = 1

// Session is the top-level handle an embedding application uses: a
// Store plus a BranchStore, wired together into branch-scoped
// read/write/commit/merge operations over Map-shaped data.
type Session struct {
	Store  *store.Store
	Branch branch.BranchStore
	log    *logrus.Entry
}

// Open builds a Session over an already-open Store, creating an
// in-memory branch manager. Branch pointers are not persisted: on
// restart, callers must re-seed branches from their own durable
// bookkeeping (a UCell hash is enough to resume).
func Open(s *store.Store, log *logrus.Entry) *Session {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Session{Store: s, Branch: branch.NewMemBranchStore(), log: log}
}

// NodeStore exposes the underlying Loader.
func (s *Session) NodeStore() tree.NodeStore { return s.Store.NodeStore() }

// dataRootOf resolves branch to the data root its current commit points
// at, or the null hash if the branch has never been committed to.
func (s *Session) dataRootOf(ctx context.Context, branchName string) (hash.Hash, error) {
	commitHash, ok, err := s.Branch.Get(ctx, branchName)
	if err != nil {
		return hash.Hash{}, err
	}
	if !ok {
		return hash.Hash{}, nil
	}
	c, err := s.Store.ReadChunk(ctx, commitHash)
	if err != nil {
		return hash.Hash{}, err
	}
	cell, err := tree.DecodeUCell(c.Payload())
	if err != nil {
		return hash.Hash{}, err
	}
	return cell.DataRoot, nil
}

// Get reads a single key from branch's current data root.
func (s *Session) Get(ctx context.Context, branchName string, k key.OrderedKey) ([]byte, bool, error) {
	root, err := s.dataRootOf(ctx, branchName)
	if err != nil {
		return nil, false, err
	}
	return tree.Get(ctx, s.NodeStore(), root, k)
}

// Commit applies mutations to branch's current data root and records a
// new UCell pointing at the previous commit (if any) as its sole
// parent. It returns the new commit's hash.
func (s *Session) Commit(ctx context.Context, branchName string, mutations []tree.Mutation) (hash.Hash, error) {
	parentHash, hasParent, err := s.Branch.Get(ctx, branchName)
	if err != nil {
		return hash.Hash{}, err
	}
	root, err := s.dataRootOf(ctx, branchName)
	if err != nil {
		return hash.Hash{}, err
	}

	newRoot, err := tree.BuildMap(ctx, s.NodeStore(), root, mutations)
	if err != nil {
		return hash.Hash{}, errors.Wrap(err, "ustore.Commit")
	}

	cell := tree.UCell{Variant: commitVariant, DataRoot: newRoot}
	if hasParent {
		cell.Parents = []hash.Hash{parentHash}
	}
	chunk := cell.ToChunk()
	if err := s.NodeStore().WriteChunk(ctx, chunk); err != nil {
		return hash.Hash{}, err
	}
	if err := s.Branch.Set(ctx, branchName, chunk.Hash()); err != nil {
		return hash.Hash{}, err
	}
	s.log.WithFields(logrus.Fields{"branch": branchName, "commit": chunk.Hash().String()}).Info("committed")
	return chunk.Hash(), nil
}

// Fork creates a new branch pointing at the same commit as from.
func (s *Session) Fork(ctx context.Context, from, to string) error {
	return s.Branch.Fork(ctx, from, to)
}

// Diff computes the key-level differences between two branches' current
// data roots.
func (s *Session) Diff(ctx context.Context, left, right string) ([]diff.Diff, error) {
	leftRoot, err := s.dataRootOf(ctx, left)
	if err != nil {
		return nil, err
	}
	rightRoot, err := s.dataRootOf(ctx, right)
	if err != nil {
		return nil, err
	}
	return diff.Diffs(ctx, s.NodeStore(), leftRoot, rightRoot)
}

// Merge three-way merges right into left's branch, using ancestor as the
// common base, and commits the result onto left. A nil resolve rejects
// any conflicting change with InvalidInput.
func (s *Session) Merge(ctx context.Context, ancestor, left, right string, resolve diff.Resolver) (hash.Hash, error) {
	ancestorRoot, err := s.dataRootOf(ctx, ancestor)
	if err != nil {
		return hash.Hash{}, err
	}
	leftRoot, err := s.dataRootOf(ctx, left)
	if err != nil {
		return hash.Hash{}, err
	}
	rightRoot, err := s.dataRootOf(ctx, right)
	if err != nil {
		return hash.Hash{}, err
	}

	mergedRoot, err := diff.Merge(ctx, s.NodeStore(), ancestorRoot, leftRoot, rightRoot, resolve)
	if err != nil {
		return hash.Hash{}, err
	}

	parentHash, hasParent, err := s.Branch.Get(ctx, left)
	if err != nil {
		return hash.Hash{}, err
	}
	rightHash, hasRight, err := s.Branch.Get(ctx, right)
	if err != nil {
		return hash.Hash{}, err
	}
	if !hasRight {
		return hash.Hash{}, ustoreerr.KeyNotFound.New(right)
	}

	cell := tree.UCell{Variant: commitVariant, DataRoot: mergedRoot}
	if hasParent {
		cell.Parents = append(cell.Parents, parentHash)
	}
	cell.Parents = append(cell.Parents, rightHash)

	chunk := cell.ToChunk()
	if err := s.NodeStore().WriteChunk(ctx, chunk); err != nil {
		return hash.Hash{}, err
	}
	if err := s.Branch.Set(ctx, left, chunk.Hash()); err != nil {
		return hash.Hash{}, err
	}
	return chunk.Hash(), nil
}
