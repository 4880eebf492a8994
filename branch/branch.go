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

// Package branch implements an in-process branch-to-root mapping: a
// mutable name pointing at the hash of a UCell commit. It supplements
// the data model's branch/fork concept, which the distilled spec names
// but gives no operations for.
package branch

import (
	"context"
	"sort"
	"sync"

	"github.com/nusdbsystem/ustore/hash"
	"github.com/nusdbsystem/ustore/ustoreerr"
)

// BranchStore maps branch names to the commit hash they currently point
// at. Implementations are not required to persist across restarts; see
// MemBranchStore.
type BranchStore interface {
	Get(ctx context.Context, branch string) (hash.Hash, bool, error)
	Set(ctx context.Context, branch string, root hash.Hash) error
	Fork(ctx context.Context, from, to string) error
	Delete(ctx context.Context, branch string) error
	List(ctx context.Context) ([]string, error)
}

// MemBranchStore is an in-memory BranchStore. Branch pointers are lost on
// process exit; making them durable would require the WAL/recovery
// subsystem this store explicitly leaves out of scope.
type MemBranchStore struct {
	mu       sync.RWMutex
	branches map[string]hash.Hash
}

// NewMemBranchStore returns an empty MemBranchStore.
func NewMemBranchStore() *MemBranchStore {
	return &MemBranchStore{branches: map[string]hash.Hash{}}
}

func (s *MemBranchStore) Get(ctx context.Context, branch string) (hash.Hash, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.branches[branch]
	return h, ok, nil
}

func (s *MemBranchStore) Set(ctx context.Context, branch string, root hash.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches[branch] = root
	return nil
}

// Fork creates branch `to` pointing at whatever commit `from` currently
// points at. It fails if `from` does not exist or `to` already does —
// fork is creation, not an alias for Set.
func (s *MemBranchStore) Fork(ctx context.Context, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.branches[from]
	if !ok {
		return ustoreerr.KeyNotFound.New(from)
	}
	if _, exists := s.branches[to]; exists {
		return ustoreerr.InvalidInput.New("branch already exists: " + to)
	}
	s.branches[to] = src
	return nil
}

func (s *MemBranchStore) Delete(ctx context.Context, branch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.branches[branch]; !ok {
		return ustoreerr.KeyNotFound.New(branch)
	}
	delete(s.branches, branch)
	return nil
}

func (s *MemBranchStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.branches))
	for name := range s.branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
