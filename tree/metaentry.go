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

	"github.com/pkg/errors"

	"github.com/nusdbsystem/ustore/hash"
	"github.com/nusdbsystem/ustore/key"
	"github.com/nusdbsystem/ustore/ustoreerr"
)

// metaEntryFixedLen is the size of a MetaEntry's fixed-width fields:
// num_bytes(4) + num_leaves(4) + num_elements(8) + child_hash(20).
const metaEntryFixedLen = 4 + 4 + 8 + hash.ByteLen

// MetaEntry is one edge of the tree: a child chunk's hash, the aggregate
// statistics of its subtree, and the maximum key that subtree contains.
// Within a meta node, entries are ordered by MaxKey ascending, and the
// last key of a child subtree always equals that child's MetaEntry key
// (invariant 2 of the data model).
type MetaEntry struct {
	NumLeaves   uint32
	NumElements uint64
	ChildHash   hash.Hash
	MaxKey      key.OrderedKey
}

// numBytes is the self-describing on-wire length recorded in the entry's
// num_bytes field: everything that follows that field (num_leaves,
// num_elements, child_hash, and the ordered key).
func (m MetaEntry) numBytes() uint32 {
	return uint32(4 + 8 + hash.ByteLen + m.MaxKey.NumBytes())
}

// EntryLen returns the full on-wire size of m, including its own
// num_bytes field.
func (m MetaEntry) EntryLen() int {
	return 4 + int(m.numBytes())
}

// Encode appends m's wire form to dst and returns the new slice.
func (m MetaEntry) Encode(dst []byte) []byte {
	var hdr [4 + 4 + 8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], m.numBytes())
	binary.LittleEndian.PutUint32(hdr[4:8], m.NumLeaves)
	binary.LittleEndian.PutUint64(hdr[8:16], m.NumElements)
	dst = append(dst, hdr[:]...)
	dst = append(dst, m.ChildHash[:]...)

	keyBuf := make([]byte, m.MaxKey.NumBytes())
	m.MaxKey.Encode(keyBuf)
	return append(dst, keyBuf...)
}

// DecodeMetaEntry parses one MetaEntry from the front of buf, returning it
// along with the number of bytes consumed.
func DecodeMetaEntry(buf []byte) (MetaEntry, int, error) {
	if len(buf) < 4 {
		return MetaEntry{}, 0, errors.Wrap(
			ustoreerr.CorruptChunk.New("<truncated>", "meta entry header truncated"), "tree.DecodeMetaEntry")
	}
	numBytes := binary.LittleEndian.Uint32(buf[0:4])
	entryLen := 4 + int(numBytes)
	if entryLen < metaEntryFixedLen+1 || len(buf) < entryLen {
		return MetaEntry{}, 0, errors.Wrap(
			ustoreerr.CorruptChunk.New("<truncated>", "meta entry payload truncated"), "tree.DecodeMetaEntry")
	}

	numLeaves := binary.LittleEndian.Uint32(buf[4:8])
	numElements := binary.LittleEndian.Uint64(buf[8:16])
	var childHash hash.Hash
	copy(childHash[:], buf[16:16+hash.ByteLen])

	keyStart := 16 + hash.ByteLen
	keyLen := entryLen - keyStart
	k, err := key.Decode(buf[keyStart:entryLen], keyLen)
	if err != nil {
		return MetaEntry{}, 0, errors.Wrap(err, "tree.DecodeMetaEntry")
	}

	return MetaEntry{
		NumLeaves:   numLeaves,
		NumElements: numElements,
		ChildHash:   childHash,
		MaxKey:      k,
	}, entryLen, nil
}
