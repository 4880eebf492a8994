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
	"encoding/binary"

	"github.com/nusdbsystem/ustore/chunk"
	"github.com/nusdbsystem/ustore/key"
	"github.com/nusdbsystem/ustore/rollinghash"
	"github.com/nusdbsystem/ustore/segment"
)

// ChunkInfo is the output of one chunk assembly: the new chunk itself, and
// a single-entry segment carrying that chunk's rollup MetaEntry, ready to
// be fed into the next level's Splitter.
type ChunkInfo struct {
	Chunk   chunk.Chunk
	MetaSeg segment.Segment
	Entry   MetaEntry
}

// Splitter turns a stream of entries into chunks plus parent MetaEntries.
// It owns one rolling hasher and the entries accumulated for the
// in-progress chunk; a caller feeds entries one at a time and flushes
// whenever CrossedBoundary() (or end of stream) demands it.
//
// One Splitter handles exactly one node kind, the one passed to
// NewSplitter, and the caller uses the matching Append* method:
// AppendBlobByte for Blob leaves (which chunk at
// byte granularity), AppendLeafEntry for Map/Set/List leaves, and
// AppendChildMeta for Meta nodes one level up.
type Splitter struct {
	kind   chunk.Type
	hasher *rollinghash.Hasher

	blobBuf []byte
	varSeg  *segment.VarSegment
	keys    []key.OrderedKey

	numLeaves   uint32
	numElements uint64
}

// NewSplitter returns a Splitter for kind, using params for its rolling
// hasher.
func NewSplitter(kind chunk.Type, params rollinghash.Params) *Splitter {
	return &Splitter{
		kind:   kind,
		hasher: rollinghash.New(params),
		varSeg: segment.NewEmptyVar(),
	}
}

// AppendBlobByte feeds one byte of a Blob leaf's content and reports
// whether the hasher has crossed a chunk boundary.
func (s *Splitter) AppendBlobByte(b byte) bool {
	s.blobBuf = append(s.blobBuf, b)
	s.numElements++
	s.hasher.HashByte(b)
	return s.hasher.CrossedBoundary()
}

// AppendLeafEntry feeds one already-encoded leaf entry (see EncodeMapEntry
// / EncodeSetEntry / EncodeListEntry) keyed by k, and reports whether the
// hasher has crossed a chunk boundary.
func (s *Splitter) AppendLeafEntry(entryBytes []byte, k key.OrderedKey) bool {
	s.varSeg.Append(entryBytes)
	s.keys = append(s.keys, k)
	s.numLeaves = 1
	s.numElements++
	s.hasher.HashBytes(entryBytes)
	return s.hasher.CrossedBoundary()
}

// AppendChildMeta feeds one child MetaEntry into a meta-level Splitter and
// reports whether the hasher has crossed a chunk boundary.
func (s *Splitter) AppendChildMeta(child MetaEntry) bool {
	entryBytes := child.Encode(nil)
	s.varSeg.Append(entryBytes)
	s.keys = append(s.keys, child.MaxKey)
	s.numLeaves += child.NumLeaves
	s.numElements += child.NumElements
	s.hasher.HashBytes(entryBytes)
	return s.hasher.CrossedBoundary()
}

// Empty reports whether anything has been appended since the last Flush.
func (s *Splitter) Empty() bool {
	if s.kind == chunk.TypeBlob {
		return len(s.blobBuf) == 0
	}
	return len(s.keys) == 0
}

// Flush assembles everything appended since the last Flush (or since
// construction) into a chunk, wraps its rollup in a MetaEntry, and resets
// the Splitter to accept the next chunk's entries. Flush on an empty
// Splitter panics: callers must check Empty() first, since the builder's
// contract is to omit empty subtrees rather than emit zero-length chunks.
func (s *Splitter) Flush() ChunkInfo {
	if s.Empty() {
		panic("tree: Flush called with no pending entries")
	}

	var payload []byte
	var lastKey key.OrderedKey
	switch s.kind {
	case chunk.TypeBlob:
		payload = s.blobBuf
	default:
		count := len(s.keys)
		payload = make([]byte, 4, 4+s.varSeg.NumBytes())
		binary.LittleEndian.PutUint32(payload[0:4], uint32(count))
		body := make([]byte, s.varSeg.NumBytes())
		s.varSeg.AppendForChunk(body)
		payload = append(payload, body...)
		lastKey = s.keys[len(s.keys)-1]
	}

	c := chunk.New(s.kind, payload)

	entry := MetaEntry{
		NumLeaves:   s.numLeaves,
		NumElements: s.numElements,
		ChildHash:   c.Hash(),
		MaxKey:      lastKey,
	}
	if s.kind == chunk.TypeBlob {
		entry.NumLeaves = 1
	}

	metaBytes := entry.Encode(nil)
	metaSeg := segment.NewVar(metaBytes, []int{0})

	info := ChunkInfo{Chunk: c, MetaSeg: metaSeg, Entry: entry}

	s.blobBuf = nil
	s.varSeg = segment.NewEmptyVar()
	s.keys = nil
	s.numLeaves = 0
	s.numElements = 0
	s.hasher.Reset()

	return info
}
