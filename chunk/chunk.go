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

// Package chunk implements the immutable, typed, content-addressed byte
// block that every node in the store is built from. A chunk's hash is
// computed over its payload alone; the type byte and length prefix are
// wire framing used by the chunk store and the loader, not part of the
// chunk's identity (see DESIGN.md for why this resolves the spec's open
// question on what gets hashed).
package chunk

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/nusdbsystem/ustore/hash"
	"github.com/nusdbsystem/ustore/ustoreerr"
)

// Type is the 1-byte discriminator stored in a chunk's header.
type Type byte

const (
	TypeBlob Type = iota
	TypeMap
	TypeSet
	TypeList
	TypeMeta
	TypeCell
)

func (t Type) String() string {
	switch t {
	case TypeBlob:
		return "Blob"
	case TypeMap:
		return "Map"
	case TypeSet:
		return "Set"
	case TypeList:
		return "List"
	case TypeMeta:
		return "Meta"
	case TypeCell:
		return "Cell"
	default:
		return "Unknown"
	}
}

// headerLen is the fixed size of the type byte plus the total-length prefix.
const headerLen = 1 + 4

// Chunk is an immutable typed byte block. Its hash is its identity; once
// constructed a Chunk is never mutated.
type Chunk struct {
	kind    Type
	payload []byte
	h       hash.Hash
}

// New builds a Chunk of the given kind wrapping payload. payload is not
// copied; callers must treat it as immutable from this point on, which is
// always true of bytes a chunker just finished assembling.
func New(kind Type, payload []byte) Chunk {
	return Chunk{kind: kind, payload: payload, h: hash.Of(payload)}
}

// Kind returns the chunk's type byte.
func (c Chunk) Kind() Type { return c.kind }

// Payload returns the chunk's content, excluding the wire header.
func (c Chunk) Payload() []byte { return c.payload }

// Hash returns the chunk's content hash.
func (c Chunk) Hash() hash.Hash { return c.h }

// NumBytes returns the framed on-wire size: header plus payload.
func (c Chunk) NumBytes() int { return headerLen + len(c.payload) }

// Frame serializes c into its bit-exact wire form:
//
//	offset 0: 1 byte   chunk_type
//	offset 1: 4 bytes  total_length (little-endian, includes header)
//	offset 5: payload
func (c Chunk) Frame() []byte {
	buf := make([]byte, c.NumBytes())
	buf[0] = byte(c.kind)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(c.NumBytes()))
	copy(buf[headerLen:], c.payload)
	return buf
}

// Parse decodes a framed chunk and verifies its declared length. A length
// mismatch, an unknown type byte, or a truncated payload is reported as
// CorruptChunk. The hash is recomputed from the payload, not checked
// against any expected value; use VerifyAgainst for that.
func Parse(framed []byte) (Chunk, error) {
	if len(framed) < headerLen {
		return Chunk{}, errors.Wrap(
			ustoreerr.CorruptChunk.New("<truncated>", "header truncated"), "chunk.Parse")
	}
	kind := Type(framed[0])
	if kind > TypeCell {
		return Chunk{}, errors.Wrap(
			ustoreerr.CorruptChunk.New("<unknown>", "unknown chunk type byte"), "chunk.Parse")
	}
	total := binary.LittleEndian.Uint32(framed[1:5])
	if int(total) != len(framed) {
		return Chunk{}, errors.Wrap(
			ustoreerr.CorruptChunk.New("<length-mismatch>", "declared length does not match buffer"), "chunk.Parse")
	}
	payload := make([]byte, len(framed)-headerLen)
	copy(payload, framed[headerLen:])
	return New(kind, payload), nil
}

// VerifyAgainst reports a CorruptChunk error if want does not equal the
// hash c actually computes for its payload. Callers use this after a
// chunk-store Get to guard against a backend returning the wrong bytes
// for a requested hash.
func (c Chunk) VerifyAgainst(want hash.Hash) error {
	if c.h != want {
		return ustoreerr.CorruptChunk.New(want.String(), "hash verification failed after read")
	}
	return nil
}
