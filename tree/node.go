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

// Package tree implements the prolly-tree node family (blob, map, set,
// list, meta) and the chunker/builder machinery that turns mutations into
// new, deterministically-hashed chunks. The builder re-chunks a tree's
// whole entry stream on every mutation batch; it does not reuse old
// chunks by reference, though unchanged regions come out byte-identical.
//
// Per the store's design notes, Node is modeled as one tagged struct over
// {Blob, Map, Set, List, Meta} rather than a per-kind interface hierarchy:
// every node is a count-prefixed series of entries (Blob is the one
// exception — raw bytes, no count prefix) and the kind tag selects which
// accessor methods are valid.
package tree

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"

	"github.com/nusdbsystem/ustore/chunk"
	"github.com/nusdbsystem/ustore/hash"
	"github.com/nusdbsystem/ustore/key"
	"github.com/nusdbsystem/ustore/segment"
	"github.com/nusdbsystem/ustore/ustoreerr"
)

// Node is a typed, read-only view over a Chunk.
type Node struct {
	kind chunk.Type
	src  chunk.Chunk

	// spans holds each leaf entry's full on-wire bytes (headers
	// included), in order. Unused for Blob.
	spans [][]byte
	// keys holds, for Map/Set/List leaves, each entry's OrderedKey; for
	// Meta nodes it holds each MetaEntry's MaxKey. List leaves key by
	// implicit position (OfUint64(index)).
	keys []key.OrderedKey
	// values holds, for Map and List leaves, each entry's value bytes.
	values [][]byte
	// metas holds the decoded MetaEntry for a Meta node, one per entry.
	metas []MetaEntry
	// blob holds the raw payload of a Blob leaf.
	blob []byte
}

// Kind returns the node's chunk type.
func (n *Node) Kind() chunk.Type { return n.kind }

// IsLeaf reports whether n is a leaf node (anything but Meta).
func (n *Node) IsLeaf() bool { return n.kind != chunk.TypeMeta }

// Hash returns the hash of the chunk backing this node.
func (n *Node) Hash() hash.Hash { return n.src.Hash() }

// Empty reports whether the node has zero entries.
func (n *Node) Empty() bool { return n.NumEntries() == 0 }

// NumEntries returns the node's entry count. For a Blob leaf this is the
// byte count, since a blob chunks at byte granularity.
func (n *Node) NumEntries() int {
	switch n.kind {
	case chunk.TypeBlob:
		return len(n.blob)
	case chunk.TypeMeta:
		return len(n.metas)
	default:
		return len(n.spans)
	}
}

// Len returns the raw byte length of entry i.
func (n *Node) Len(i int) int {
	if n.kind == chunk.TypeBlob {
		return 1
	}
	if n.kind == chunk.TypeMeta {
		return n.metas[i].EntryLen()
	}
	return len(n.spans[i])
}

// Data returns the raw bytes of entry i.
func (n *Node) Data(i int) []byte {
	switch n.kind {
	case chunk.TypeBlob:
		return n.blob[i : i+1]
	case chunk.TypeMeta:
		return n.metas[i].Encode(nil)
	default:
		return n.spans[i]
	}
}

// Bytes returns the full raw content of a Blob leaf.
func (n *Node) Bytes() []byte {
	if n.kind != chunk.TypeBlob {
		panic("Node.Bytes called on a non-Blob node")
	}
	return n.blob
}

// Key returns the OrderedKey of entry i. Valid for Map and Set leaves and
// for Meta nodes (where it returns the child's MaxKey); List leaves key by
// implicit position.
func (n *Node) Key(i int) key.OrderedKey {
	switch n.kind {
	case chunk.TypeList:
		return key.OfUint64(uint64(i))
	default:
		return n.keys[i]
	}
}

// Value returns the value bytes of entry i. Valid for Map and List leaves.
func (n *Node) Value(i int) []byte {
	return n.values[i]
}

// Item returns the key bytes of entry i for a Set leaf.
func (n *Node) Item(i int) []byte {
	if n.kind != chunk.TypeSet {
		panic("Node.Item called on a non-Set node")
	}
	return n.keys[i].Bytes()
}

// GetIdxForKey returns the index of the first entry whose key is greater
// than or equal to target, or NumEntries() if every key is less than
// target. Valid for Map and Set leaves.
func (n *Node) GetIdxForKey(target key.OrderedKey) int {
	return sort.Search(len(n.keys), func(i int) bool {
		return !key.Less(n.keys[i], target)
	})
}

// --- Meta node accessors ---

// NumLeaves returns the total leaf-chunk count across this meta node's
// subtree (invariant 3: sum of children's num_leaves).
func (n *Node) NumLeaves() uint32 {
	var total uint32
	for _, m := range n.metas {
		total += m.NumLeaves
	}
	return total
}

// TreeCount returns the total user-entry count across this node's
// subtree. For a leaf this is just NumEntries (Map/Set count pairs/keys
// as one user entry each; Blob and List count one per byte/value).
func (n *Node) TreeCount() int {
	if n.kind != chunk.TypeMeta {
		return n.NumEntries()
	}
	var total uint64
	for _, m := range n.metas {
		total += m.NumElements
	}
	return int(total)
}

// NumElementsUntilEntry returns the cumulative user-entry count of every
// meta entry strictly before index i, enabling log-branching positional
// descent.
func (n *Node) NumElementsUntilEntry(i int) uint64 {
	var total uint64
	for j := 0; j < i; j++ {
		total += n.metas[j].NumElements
	}
	return total
}

// GetChildHashByIndex returns the child hash covering the element at
// position idx within this subtree, the index of that meta entry, and the
// remaining offset within that child.
func (n *Node) GetChildHashByIndex(idx uint64) (h hash.Hash, entryIdx int, offsetInChild uint64, err error) {
	var cum uint64
	for i, m := range n.metas {
		if idx < cum+m.NumElements {
			return m.ChildHash, i, idx - cum, nil
		}
		cum += m.NumElements
	}
	return hash.Hash{}, len(n.metas), 0, ustoreerr.KeyNotFound.New("positional index out of range")
}

// GetChildHashByEntry returns the child hash of the meta entry at index
// entryIdx.
func (n *Node) GetChildHashByEntry(entryIdx int) (hash.Hash, error) {
	if entryIdx < 0 || entryIdx >= len(n.metas) {
		return hash.Hash{}, ustoreerr.KeyNotFound.New("meta entry index out of range")
	}
	return n.metas[entryIdx].ChildHash, nil
}

// GetChildHashByKey returns the hash of, and index of, the first child
// subtree whose MaxKey is greater than or equal to target. If target is
// greater than every child's MaxKey, it returns the null hash and an index
// equal to NumEntries().
func (n *Node) GetChildHashByKey(target key.OrderedKey) (hash.Hash, int, error) {
	idx := sort.Search(len(n.metas), func(i int) bool {
		return !key.Less(n.metas[i].MaxKey, target)
	})
	if idx == len(n.metas) {
		return hash.Hash{}, idx, nil
	}
	return n.metas[idx].ChildHash, idx, nil
}

// MetaEntryAt returns the MetaEntry at index i.
func (n *Node) MetaEntryAt(i int) MetaEntry {
	return n.metas[i]
}

// GetSegment returns a zero-copy view over count entries starting at
// startEntry, for splicing by the node builder.
func (n *Node) GetSegment(startEntry, count int) segment.Segment {
	switch n.kind {
	case chunk.TypeBlob:
		return segment.NewFixed(n.blob[startEntry:startEntry+count], 1)
	case chunk.TypeMeta:
		data := make([]byte, 0)
		offsets := make([]int, 0, count)
		for i := startEntry; i < startEntry+count; i++ {
			offsets = append(offsets, len(data))
			data = n.metas[i].Encode(data)
		}
		return segment.NewVar(data, offsets)
	default:
		data := make([]byte, 0)
		offsets := make([]int, 0, count)
		for i := startEntry; i < startEntry+count; i++ {
			offsets = append(offsets, len(data))
			data = append(data, n.spans[i]...)
		}
		return segment.NewVar(data, offsets)
	}
}

// --- encoding helpers used by mutation callers to build entry spans ---

// EncodeMapEntry returns the on-wire bytes of a Map leaf entry:
// {u32 total_len, u32 key_len, key_bytes, value_bytes}, where total_len
// counts every byte after the total_len field itself.
func EncodeMapEntry(k, v []byte) []byte {
	total := 4 + len(k) + len(v)
	buf := make([]byte, 4+total)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(total))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(k)))
	copy(buf[8:8+len(k)], k)
	copy(buf[8+len(k):], v)
	return buf
}

// EncodeSetEntry returns the on-wire bytes of a Set leaf entry:
// {u32 total_len, key_bytes}.
func EncodeSetEntry(k []byte) []byte {
	buf := make([]byte, 4+len(k))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(k)))
	copy(buf[4:], k)
	return buf
}

// EncodeListEntry returns the on-wire bytes of a List leaf entry:
// {u32 total_len, value_bytes}.
func EncodeListEntry(v []byte) []byte {
	buf := make([]byte, 4+len(v))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(v)))
	copy(buf[4:], v)
	return buf
}

// --- decoding ---

// DecodeNode parses a Node view over c, dispatching on c.Kind().
func DecodeNode(c chunk.Chunk) (*Node, error) {
	switch c.Kind() {
	case chunk.TypeBlob:
		return &Node{kind: chunk.TypeBlob, src: c, blob: c.Payload()}, nil
	case chunk.TypeMap:
		return decodeMapLeaf(c)
	case chunk.TypeSet:
		return decodeSetLeaf(c)
	case chunk.TypeList:
		return decodeListLeaf(c)
	case chunk.TypeMeta:
		return decodeMeta(c)
	default:
		return nil, ustoreerr.CorruptChunk.New(c.Hash().String(), "not a tree node chunk type")
	}
}

func readCount(payload []byte) (uint32, []byte, error) {
	if len(payload) < 4 {
		return 0, nil, errors.Wrap(ustoreerr.CorruptChunk.New("<truncated>", "missing entry count"), "tree.decode")
	}
	return binary.LittleEndian.Uint32(payload[0:4]), payload[4:], nil
}

func decodeMapLeaf(c chunk.Chunk) (*Node, error) {
	count, rest, err := readCount(c.Payload())
	if err != nil {
		return nil, err
	}
	n := &Node{kind: chunk.TypeMap, src: c}
	for i := uint32(0); i < count; i++ {
		if len(rest) < 8 {
			return nil, ustoreerr.CorruptChunk.New(c.Hash().String(), "map entry header truncated")
		}
		total := binary.LittleEndian.Uint32(rest[0:4])
		keyLen := binary.LittleEndian.Uint32(rest[4:8])
		entryLen := 4 + int(total)
		if entryLen < 8 || len(rest) < entryLen {
			return nil, ustoreerr.CorruptChunk.New(c.Hash().String(), "map entry payload truncated")
		}
		keyBytes := rest[8 : 8+keyLen]
		valBytes := rest[8+keyLen : entryLen]

		n.spans = append(n.spans, rest[:entryLen])
		n.keys = append(n.keys, key.OfBytes(append([]byte(nil), keyBytes...)))
		n.values = append(n.values, append([]byte(nil), valBytes...))
		rest = rest[entryLen:]
	}
	return n, nil
}

func decodeSetLeaf(c chunk.Chunk) (*Node, error) {
	count, rest, err := readCount(c.Payload())
	if err != nil {
		return nil, err
	}
	n := &Node{kind: chunk.TypeSet, src: c}
	for i := uint32(0); i < count; i++ {
		if len(rest) < 4 {
			return nil, ustoreerr.CorruptChunk.New(c.Hash().String(), "set entry header truncated")
		}
		total := binary.LittleEndian.Uint32(rest[0:4])
		entryLen := 4 + int(total)
		if len(rest) < entryLen {
			return nil, ustoreerr.CorruptChunk.New(c.Hash().String(), "set entry payload truncated")
		}
		keyBytes := rest[4:entryLen]

		n.spans = append(n.spans, rest[:entryLen])
		n.keys = append(n.keys, key.OfBytes(append([]byte(nil), keyBytes...)))
		rest = rest[entryLen:]
	}
	return n, nil
}

func decodeListLeaf(c chunk.Chunk) (*Node, error) {
	count, rest, err := readCount(c.Payload())
	if err != nil {
		return nil, err
	}
	n := &Node{kind: chunk.TypeList, src: c}
	for i := uint32(0); i < count; i++ {
		if len(rest) < 4 {
			return nil, ustoreerr.CorruptChunk.New(c.Hash().String(), "list entry header truncated")
		}
		total := binary.LittleEndian.Uint32(rest[0:4])
		entryLen := 4 + int(total)
		if len(rest) < entryLen {
			return nil, ustoreerr.CorruptChunk.New(c.Hash().String(), "list entry payload truncated")
		}
		n.spans = append(n.spans, rest[:entryLen])
		n.values = append(n.values, append([]byte(nil), rest[4:entryLen]...))
		rest = rest[entryLen:]
	}
	return n, nil
}

func decodeMeta(c chunk.Chunk) (*Node, error) {
	count, rest, err := readCount(c.Payload())
	if err != nil {
		return nil, err
	}
	n := &Node{kind: chunk.TypeMeta, src: c}
	for i := uint32(0); i < count; i++ {
		m, consumed, err := DecodeMetaEntry(rest)
		if err != nil {
			return nil, errors.Wrap(err, "tree.decodeMeta")
		}
		n.metas = append(n.metas, m)
		n.keys = append(n.keys, m.MaxKey)
		rest = rest[consumed:]
	}
	return n, nil
}
