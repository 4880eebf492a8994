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

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/nusdbsystem/ustore/chunk"
	"github.com/nusdbsystem/ustore/hash"
	"github.com/nusdbsystem/ustore/rollinghash"
	"github.com/nusdbsystem/ustore/tree"
	"github.com/nusdbsystem/ustore/ustoreerr"
)

// DefaultCacheSize is the number of decoded nodes a Loader keeps hot. It
// bounds memory use independent of how large the backing store grows.
const DefaultCacheSize = 8192

// Loader is a read-through, write-through NodeStore: writes go straight to
// the backing ChunkStore and populate the cache; reads are served from
// the cache when present, and otherwise fetched from the backing store
// with concurrent requests for the same hash deduplicated via
// singleflight so a hot key under load triggers one backend read, not N.
type Loader struct {
	backing ChunkStore
	params  rollinghash.Params
	cache   *lru.Cache[hash.Hash, *tree.Node]
	group   singleflight.Group
	log     *logrus.Entry
}

// NewLoader wraps backing with a bounded node cache sized cacheSize.
// log may be nil, in which case a disabled logger is used.
func NewLoader(backing ChunkStore, params rollinghash.Params, cacheSize int, log *logrus.Entry) (*Loader, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	c, err := lru.New[hash.Hash, *tree.Node](cacheSize)
	if err != nil {
		return nil, ustoreerr.StoreError.New(err.Error())
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = logrus.NewEntry(l)
	}
	return &Loader{backing: backing, params: params, cache: c, log: log}, nil
}

// ReadNode implements tree.NodeStore.
func (l *Loader) ReadNode(ctx context.Context, h hash.Hash) (*tree.Node, error) {
	if nd, ok := l.cache.Get(h); ok {
		l.log.WithField("hash", h.String()).Debug("node cache hit")
		return nd, nil
	}

	key := h.String()
	v, err, shared := l.group.Do(key, func() (interface{}, error) {
		c, err := l.backing.Get(ctx, h)
		if err != nil {
			return nil, err
		}
		nd, err := tree.DecodeNode(c)
		if err != nil {
			return nil, err
		}
		l.cache.Add(h, nd)
		return nd, nil
	})
	if err != nil {
		return nil, err
	}
	l.log.WithFields(logrus.Fields{"hash": key, "deduped": shared}).Debug("node cache miss, fetched from backing store")
	return v.(*tree.Node), nil
}

// WriteChunk implements tree.NodeStore.
func (l *Loader) WriteChunk(ctx context.Context, c chunk.Chunk) error {
	if err := l.backing.Put(ctx, c); err != nil {
		return err
	}
	if nd, err := tree.DecodeNode(c); err == nil {
		l.cache.Add(c.Hash(), nd)
	}
	return nil
}

// Params implements tree.NodeStore.
func (l *Loader) Params() rollinghash.Params { return l.params }

// Close releases the backing store.
func (l *Loader) Close() error { return l.backing.Close() }
