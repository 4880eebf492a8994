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

// Package key implements the unified OrderedKey used at every level of the
// prolly tree: a two-variant key that is either a 64-bit unsigned integer,
// ordered numerically, or a length-prefixed byte string, ordered
// lexicographically with ties on the common prefix broken by length.
//
// Comparisons between variants are undefined by the data model; within any
// single tree every key uses the same variant, and Compare enforces that
// invariant rather than silently producing a meaningless answer.
package key

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/nusdbsystem/ustore/ustoreerr"
)

// OrderedKey is the unified integer-or-bytes key. The zero value is not a
// valid key; construct one with OfUint64 or OfBytes.
type OrderedKey struct {
	byValue bool
	value   uint64
	data    []byte
}

// OfUint64 returns a by-value OrderedKey ordered numerically.
func OfUint64(v uint64) OrderedKey {
	return OrderedKey{byValue: true, value: v}
}

// OfBytes returns a by-bytes OrderedKey ordered lexicographically. data is
// not copied; callers must not mutate it afterward.
func OfBytes(data []byte) OrderedKey {
	return OrderedKey{byValue: false, data: data}
}

// IsByValue reports whether k is the numeric variant.
func (k OrderedKey) IsByValue() bool { return k.byValue }

// Uint64 returns the numeric value of a by-value key. It panics if k is a
// by-bytes key.
func (k OrderedKey) Uint64() uint64 {
	if !k.byValue {
		panic("OrderedKey.Uint64 called on a by-bytes key")
	}
	return k.value
}

// Bytes returns the byte-string value of a by-bytes key. It panics if k is
// a by-value key.
func (k OrderedKey) Bytes() []byte {
	if k.byValue {
		panic("OrderedKey.Bytes called on a by-value key")
	}
	return k.data
}

// NumBytes returns the on-wire size of k, including the 1-byte variant
// discriminator, as recorded in the enclosing MetaEntry's num_bytes field.
func (k OrderedKey) NumBytes() int {
	if k.byValue {
		return 1 + 8
	}
	return 1 + len(k.data)
}

// Encode writes k's wire form (1-byte discriminator, then either an 8-byte
// little-endian value or the raw byte string) into buf, which must be at
// least k.NumBytes() long. It returns the number of bytes written.
func (k OrderedKey) Encode(buf []byte) int {
	if k.byValue {
		buf[0] = 1
		binary.LittleEndian.PutUint64(buf[1:9], k.value)
		return 9
	}
	buf[0] = 0
	n := copy(buf[1:], k.data)
	return 1 + n
}

// Decode parses an OrderedKey from buf, which must hold exactly numBytes
// bytes: the 1-byte discriminator plus the variant payload. numBytes is
// supplied by the caller (typically an enclosing MetaEntry) because a
// by-bytes key carries no self-describing length on the wire.
func Decode(buf []byte, numBytes int) (OrderedKey, error) {
	if numBytes < 1 || len(buf) < numBytes {
		return OrderedKey{}, errors.Wrap(
			ustoreerr.InvalidInput.New("ordered key truncated"), "key.Decode")
	}
	byValue := buf[0] != 0
	if byValue {
		if numBytes != 9 {
			return OrderedKey{}, errors.Wrap(
				ustoreerr.InvalidInput.New("by-value key must be 9 bytes"), "key.Decode")
		}
		return OfUint64(binary.LittleEndian.Uint64(buf[1:9])), nil
	}
	data := make([]byte, numBytes-1)
	copy(data, buf[1:numBytes])
	return OfBytes(data), nil
}

// Compare returns -1, 0, or 1 as a orders before, equal to, or after b.
// Both keys must share the same variant; Compare returns an InvalidInput
// error otherwise rather than guessing at cross-variant order.
func Compare(a, b OrderedKey) (int, error) {
	if a.byValue != b.byValue {
		return 0, ustoreerr.InvalidInput.New("ordered key variant mismatch")
	}
	if a.byValue {
		switch {
		case a.value < b.value:
			return -1, nil
		case a.value > b.value:
			return 1, nil
		default:
			return 0, nil
		}
	}

	minLen := len(a.data)
	if len(b.data) < minLen {
		minLen = len(b.data)
	}
	if rc := bytes.Compare(a.data[:minLen], b.data[:minLen]); rc != 0 {
		return rc, nil
	}
	switch {
	case len(a.data) < len(b.data):
		return -1, nil
	case len(a.data) > len(b.data):
		return 1, nil
	default:
		return 0, nil
	}
}

// Less reports whether a orders strictly before b. It panics on a variant
// mismatch; use Compare directly when the variants are not already known
// to agree.
func Less(a, b OrderedKey) bool {
	rc, err := Compare(a, b)
	if err != nil {
		panic(err)
	}
	return rc < 0
}

// Equal reports whether a and b compare equal.
func Equal(a, b OrderedKey) bool {
	rc, err := Compare(a, b)
	return err == nil && rc == 0
}
