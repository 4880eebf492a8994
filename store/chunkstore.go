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
	"sync"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/nusdbsystem/ustore/chunk"
	"github.com/nusdbsystem/ustore/hash"
	"github.com/nusdbsystem/ustore/ustoreerr"
)

// ChunkInfo is the metadata GetInfo returns about a stored chunk, without
// paying for a full payload fetch.
type ChunkInfo struct {
	Hash     hash.Hash
	NumBytes int
	Kind     chunk.Type
}

// TypeTotals is the count and byte total for one chunk type, as reported
// by a full-store scan.
type TypeTotals struct {
	Count int
	Bytes int64
}

// ChunkStore is the narrow persistence boundary every backend (in-memory,
// BoltDB, or anything else) must satisfy. It speaks chunk.Chunk values,
// not Node values — decoding is the Loader's job, one layer up.
type ChunkStore interface {
	Put(ctx context.Context, c chunk.Chunk) error
	Get(ctx context.Context, h hash.Hash) (chunk.Chunk, error)
	Exists(ctx context.Context, h hash.Hash) (bool, error)
	GetInfo(ctx context.Context, h hash.Hash) (ChunkInfo, error)
	// ScanByType walks every chunk the store holds and returns the
	// count and on-wire byte total bucketed by leading chunk-type byte.
	// It is a full scan, not an index lookup.
	ScanByType(ctx context.Context) (map[chunk.Type]TypeTotals, error)
	Close() error
}

// MemStore is a ChunkStore backed by a plain map, guarded by a mutex. It
// never persists to disk and is the default for tests and ephemeral use.
type MemStore struct {
	mu     sync.Mutex
	chunks map[hash.Hash]chunk.Chunk
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{chunks: map[hash.Hash]chunk.Chunk{}}
}

func (s *MemStore) Put(ctx context.Context, c chunk.Chunk) error {
	if ctx.Err() != nil {
		return ustoreerr.Cancelled.New(ctx.Err().Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[c.Hash()] = c
	return nil
}

func (s *MemStore) Get(ctx context.Context, h hash.Hash) (chunk.Chunk, error) {
	if ctx.Err() != nil {
		return chunk.Chunk{}, ustoreerr.Cancelled.New(ctx.Err().Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[h]
	if !ok {
		return chunk.Chunk{}, ustoreerr.HashNotFound.New(h.String())
	}
	return c, nil
}

func (s *MemStore) Exists(ctx context.Context, h hash.Hash) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.chunks[h]
	return ok, nil
}

func (s *MemStore) GetInfo(ctx context.Context, h hash.Hash) (ChunkInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[h]
	if !ok {
		return ChunkInfo{}, ustoreerr.HashNotFound.New(h.String())
	}
	return ChunkInfo{Hash: h, NumBytes: c.NumBytes(), Kind: c.Kind()}, nil
}

// ScanByType iterates the backing map once and buckets every chunk by kind.
func (s *MemStore) ScanByType(ctx context.Context) (map[chunk.Type]TypeTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := map[chunk.Type]TypeTotals{}
	for _, c := range s.chunks {
		if ctx.Err() != nil {
			return nil, ustoreerr.Cancelled.New(ctx.Err().Error())
		}
		t := totals[c.Kind()]
		t.Count++
		t.Bytes += int64(c.NumBytes())
		totals[c.Kind()] = t
	}
	return totals, nil
}

func (s *MemStore) Close() error { return nil }

var chunksBucket = []byte("chunks")

// BoltStore is a ChunkStore persisted to a single BoltDB file, one bucket
// keyed by the raw 20-byte hash and storing the chunk's framed bytes.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if absent) a BoltDB file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrap(ustoreerr.StoreError.New(err.Error()), "store.OpenBoltStore")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(chunksBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(ustoreerr.StoreError.New(err.Error()), "store.OpenBoltStore")
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Put(ctx context.Context, c chunk.Chunk) error {
	if ctx.Err() != nil {
		return ustoreerr.Cancelled.New(ctx.Err().Error())
	}
	h := c.Hash()
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(chunksBucket).Put(h[:], c.Frame())
	})
	if err != nil {
		return errors.Wrap(ustoreerr.StoreError.New(err.Error()), "store.BoltStore.Put")
	}
	return nil
}

func (s *BoltStore) Get(ctx context.Context, h hash.Hash) (chunk.Chunk, error) {
	if ctx.Err() != nil {
		return chunk.Chunk{}, ustoreerr.Cancelled.New(ctx.Err().Error())
	}
	var framed []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(chunksBucket).Get(h[:])
		if v == nil {
			return ustoreerr.HashNotFound.New(h.String())
		}
		framed = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return chunk.Chunk{}, err
	}
	c, err := chunk.Parse(framed)
	if err != nil {
		return chunk.Chunk{}, err
	}
	if err := c.VerifyAgainst(h); err != nil {
		return chunk.Chunk{}, err
	}
	return c, nil
}

func (s *BoltStore) Exists(ctx context.Context, h hash.Hash) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(chunksBucket).Get(h[:]) != nil
		return nil
	})
	return found, err
}

func (s *BoltStore) GetInfo(ctx context.Context, h hash.Hash) (ChunkInfo, error) {
	var info ChunkInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(chunksBucket).Get(h[:])
		if v == nil {
			return ustoreerr.HashNotFound.New(h.String())
		}
		c, err := chunk.Parse(v)
		if err != nil {
			return err
		}
		info = ChunkInfo{Hash: h, NumBytes: c.NumBytes(), Kind: c.Kind()}
		return nil
	})
	return info, err
}

// ScanByType walks the chunks bucket once, bucketing by the leading
// chunk-type byte of each stored frame. It reads the type byte and frame
// length directly rather than fully parsing and hash-verifying every
// entry — get_info is a size report, not an integrity check.
func (s *BoltStore) ScanByType(ctx context.Context) (map[chunk.Type]TypeTotals, error) {
	totals := map[chunk.Type]TypeTotals{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(chunksBucket).ForEach(func(k, v []byte) error {
			if ctx.Err() != nil {
				return ustoreerr.Cancelled.New(ctx.Err().Error())
			}
			if len(v) < 1 {
				return errors.Wrap(ustoreerr.CorruptChunk.New(hash.Hash{}.String(), "empty frame"), "store.BoltStore.ScanByType")
			}
			kind := chunk.Type(v[0])
			t := totals[kind]
			t.Count++
			t.Bytes += int64(len(v))
			totals[kind] = t
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return totals, nil
}

func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Wrap(ustoreerr.StoreError.New(err.Error()), "store.BoltStore.Close")
	}
	return nil
}
