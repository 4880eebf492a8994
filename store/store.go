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

package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nusdbsystem/ustore/chunk"
	"github.com/nusdbsystem/ustore/hash"
	"github.com/nusdbsystem/ustore/tree"
)

// configFileName is the well-known config file name within a store's
// directory, alongside the BoltDB data file.
const configFileName = "ustore.toml"

// boltFileName is the well-known BoltDB data file name within a store's
// directory.
const boltFileName = "chunks.db"

// Store bundles a backing ChunkStore behind a bounded Loader, with the
// Config that fixed its rolling-hash parameters at creation time. It is
// the handle the ustore package's Session is built on.
type Store struct {
	ID      uuid.UUID
	Config  Config
	Loader  *Loader
	backing ChunkStore
	log     *logrus.Entry
}

// OpenDir opens (or creates) a persistent Store rooted at dir, backed by
// BoltDB. A config file found in dir must match cfg exactly; OpenDir
// refuses to silently change a store's rolling-hash parameters.
func OpenDir(dir string, cfg Config, log *logrus.Entry) (*Store, error) {
	if log == nil {
		l := logrus.New()
		log = logrus.NewEntry(l)
	}
	confPath := filepath.Join(dir, configFileName)
	existing, err := LoadConfig(confPath)
	if err == nil {
		if cerr := EnsureCompatible(existing, cfg); cerr != nil {
			return nil, cerr
		}
		cfg = existing
	} else {
		if werr := WriteConfig(confPath, cfg); werr != nil {
			return nil, werr
		}
	}

	bolt, err := OpenBoltStore(filepath.Join(dir, boltFileName))
	if err != nil {
		return nil, err
	}
	loader, err := NewLoader(bolt, cfg.Params(), DefaultCacheSize, log)
	if err != nil {
		bolt.Close()
		return nil, err
	}

	id := uuid.New()
	log.WithFields(logrus.Fields{"store_id": id, "dir": dir}).Info("opened store")
	return &Store{ID: id, Config: cfg, Loader: loader, backing: bolt, log: log}, nil
}

// OpenMem opens a fresh, ephemeral in-memory Store. Useful for tests and
// scratch sessions where nothing needs to outlive the process.
func OpenMem(cfg Config, log *logrus.Entry) *Store {
	if log == nil {
		l := logrus.New()
		log = logrus.NewEntry(l)
	}
	mem := NewMemStore()
	loader, _ := NewLoader(mem, cfg.Params(), DefaultCacheSize, log)
	return &Store{ID: uuid.New(), Config: cfg, Loader: loader, backing: mem, log: log}
}

// NodeStore exposes the Loader as a tree.NodeStore.
func (s *Store) NodeStore() tree.NodeStore { return s.Loader }

// ReadChunk fetches a chunk by hash without decoding it as a tree Node,
// for chunk kinds (like Cell) the tree package's node decoder does not
// understand.
func (s *Store) ReadChunk(ctx context.Context, h hash.Hash) (chunk.Chunk, error) {
	return s.backing.Get(ctx, h)
}

// Close releases the backing store.
func (s *Store) Close() error { return s.backing.Close() }

// Info is a point-in-time snapshot of store size, formatted for
// human-readable display.
type Info struct {
	NumChunks  int
	TotalBytes int64
	ByType     map[chunk.Type]TypeTotals
}

// String renders i using humanized byte counts, e.g. "1,204 chunks, 3.4 MB".
func (i Info) String() string {
	s := fmt.Sprintf("%s chunks, %s", humanize.Comma(int64(i.NumChunks)), humanize.Bytes(uint64(i.TotalBytes)))
	for _, k := range []chunk.Type{chunk.TypeBlob, chunk.TypeMap, chunk.TypeSet, chunk.TypeList, chunk.TypeMeta, chunk.TypeCell} {
		t, ok := i.ByType[k]
		if !ok {
			continue
		}
		s += fmt.Sprintf(", %s %s (%s)", humanize.Comma(int64(t.Count)), k, humanize.Bytes(uint64(t.Bytes)))
	}
	return s
}

// GetInfo answers the store-wide get_info() introspection: a full scan of
// every chunk the backing store holds, bucketed by leading chunk-type
// byte. Unlike Inspect, it is not scoped to any one root and includes
// orphaned chunks a garbage collector has not yet reclaimed.
func (s *Store) GetInfo(ctx context.Context) (Info, error) {
	totals, err := s.backing.ScanByType(ctx)
	if err != nil {
		return Info{}, err
	}
	info := Info{ByType: totals}
	for _, t := range totals {
		info.NumChunks += t.Count
		info.TotalBytes += t.Bytes
	}
	return info, nil
}

// Inspect walks every chunk reachable from root through Meta nodes and
// reports aggregate size information, bucketed by chunk type. A Cell's
// data root and parents are not followed. It is a diagnostic, not a
// fast path: it performs one GetInfo per node visited and does not cache
// across calls. Unlike (*Store).GetInfo, it is scoped to root's subtree.
func Inspect(ctx context.Context, s *Store, root hash.Hash) (Info, error) {
	info := Info{ByType: map[chunk.Type]TypeTotals{}}
	seen := map[hash.Hash]bool{}
	var walk func(h hash.Hash) error
	walk = func(h hash.Hash) error {
		if h.IsEmpty() || seen[h] {
			return nil
		}
		seen[h] = true
		ci, err := s.backing.GetInfo(ctx, h)
		if err != nil {
			return err
		}
		info.NumChunks++
		info.TotalBytes += int64(ci.NumBytes)
		t := info.ByType[ci.Kind]
		t.Count++
		t.Bytes += int64(ci.NumBytes)
		info.ByType[ci.Kind] = t

		if ci.Kind != chunk.TypeMeta {
			return nil
		}
		nd, err := s.Loader.ReadNode(ctx, h)
		if err != nil {
			return err
		}
		for i := 0; i < nd.NumEntries(); i++ {
			childHash, err := nd.GetChildHashByEntry(i)
			if err != nil {
				return err
			}
			if err := walk(childHash); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return Info{}, err
	}
	return info, nil
}
