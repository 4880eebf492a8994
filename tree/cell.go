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
	"github.com/pkg/errors"

	"github.com/nusdbsystem/ustore/chunk"
	"github.com/nusdbsystem/ustore/hash"
	"github.com/nusdbsystem/ustore/ustoreerr"
)

// UCell is the commit-like node: a small, fixed-shape chunk pointing at a
// data root and zero or more parent commit hashes, tagged with a type
// variant (e.g. a caller-defined "this is a table commit" vs "this is a
// branch-root" discriminator — the core only stores and round-trips the
// byte, it assigns no meaning to it).
type UCell struct {
	Variant  byte
	DataRoot hash.Hash
	Parents  []hash.Hash
}

// Encode renders c as its wire form:
// {1B variant, 20B data_root, 20B parent_hash...}.
func (c UCell) Encode() []byte {
	buf := make([]byte, 1+hash.ByteLen+len(c.Parents)*hash.ByteLen)
	buf[0] = c.Variant
	copy(buf[1:1+hash.ByteLen], c.DataRoot[:])
	off := 1 + hash.ByteLen
	for _, p := range c.Parents {
		copy(buf[off:off+hash.ByteLen], p[:])
		off += hash.ByteLen
	}
	return buf
}

// ToChunk wraps c's encoding in a Cell-typed Chunk.
func (c UCell) ToChunk() chunk.Chunk {
	return chunk.New(chunk.TypeCell, c.Encode())
}

// DecodeUCell parses a UCell from a Cell chunk's payload.
func DecodeUCell(payload []byte) (UCell, error) {
	if len(payload) < 1+hash.ByteLen {
		return UCell{}, errors.Wrap(
			ustoreerr.CorruptChunk.New("<truncated>", "cell payload too short"), "tree.DecodeUCell")
	}
	if (len(payload)-1-hash.ByteLen)%hash.ByteLen != 0 {
		return UCell{}, errors.Wrap(
			ustoreerr.CorruptChunk.New("<misaligned>", "cell parent list misaligned"), "tree.DecodeUCell")
	}

	c := UCell{Variant: payload[0]}
	copy(c.DataRoot[:], payload[1:1+hash.ByteLen])

	off := 1 + hash.ByteLen
	for off < len(payload) {
		var p hash.Hash
		copy(p[:], payload[off:off+hash.ByteLen])
		c.Parents = append(c.Parents, p)
		off += hash.ByteLen
	}
	return c, nil
}
