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

// Package segment implements the zero-copy, non-owning view over a
// contiguous span of entries that feeds a chunker. A Segment never
// allocates a copy of its bytes; it only ever describes offsets into a
// buffer someone else owns, and it never outlives that buffer.
package segment

import (
	"sort"

	"github.com/nusdbsystem/ustore/ustoreerr"
)

// Segment is a view over one or more logically adjacent entries.
// Implementations: Fixed (uniform entry width) and Var (self-describing,
// variable-width entries with a side table of start offsets).
type Segment interface {
	// Entry returns the byte range of the idx'th entry.
	Entry(idx int) []byte
	// NumEntries returns the number of entries the segment describes.
	NumEntries() int
	// NumBytes returns the total byte length of the segment.
	NumBytes() int
	// Empty reports whether the segment has zero entries.
	Empty() bool
	// Prolong records that an entry of entryNumBytes has been appended to
	// the underlying buffer, used during streaming construction. It
	// returns the new entry count.
	Prolong(entryNumBytes int) int
	// PosToIdx binary-searches the entry whose byte range contains
	// byteOffset, returning its index, mapping a byte position back to a
	// logical entry.
	PosToIdx(byteOffset int) int
	// Split divides the segment at entry index idx into (left, right):
	// left holds the first idx entries, right the remainder. If
	// idx == NumEntries(), right is empty. Split panics if the segment
	// is empty, per the spec's precondition.
	Split(idx int) (left, right Segment)
	// AppendForChunk copies the segment's payload into dst, which must be
	// at least NumBytes() long, and returns the number of bytes written.
	AppendForChunk(dst []byte) int
}

// FixedSegment is a Segment whose entries all share one byte width.
type FixedSegment struct {
	data       []byte
	entryWidth int
	numEntries int
}

// NewFixed returns a FixedSegment over data, where entryWidth divides
// len(data) evenly.
func NewFixed(data []byte, entryWidth int) *FixedSegment {
	if entryWidth <= 0 {
		panic(ustoreerr.InvalidInput.New("fixed segment entry width must be positive"))
	}
	return &FixedSegment{data: data, entryWidth: entryWidth, numEntries: len(data) / entryWidth}
}

func (s *FixedSegment) Entry(idx int) []byte {
	off := idx * s.entryWidth
	return s.data[off : off+s.entryWidth]
}

func (s *FixedSegment) NumEntries() int { return s.numEntries }
func (s *FixedSegment) NumBytes() int   { return len(s.data) }
func (s *FixedSegment) Empty() bool     { return s.numEntries == 0 }

func (s *FixedSegment) Prolong(entryNumBytes int) int {
	if entryNumBytes%s.entryWidth != 0 {
		panic(ustoreerr.InvalidInput.New("fixed segment prolong size must be a multiple of entry width"))
	}
	s.numEntries += entryNumBytes / s.entryWidth
	// data already contains the appended bytes; the caller owns the
	// underlying buffer and extends it before calling Prolong.
	return s.numEntries
}

func (s *FixedSegment) PosToIdx(byteOffset int) int {
	idx := byteOffset / s.entryWidth
	if idx > s.numEntries {
		idx = s.numEntries
	}
	return idx
}

func (s *FixedSegment) Split(idx int) (Segment, Segment) {
	if s.Empty() {
		panic(ustoreerr.InvalidInput.New("cannot split an empty segment"))
	}
	preBytes := s.entryWidth * idx
	left := &FixedSegment{data: s.data[:preBytes], entryWidth: s.entryWidth, numEntries: idx}
	right := &FixedSegment{data: s.data[preBytes:], entryWidth: s.entryWidth, numEntries: s.numEntries - idx}
	return left, right
}

func (s *FixedSegment) AppendForChunk(dst []byte) int {
	return copy(dst, s.data)
}

// VarSegment is a Segment of self-describing, variable-width entries. A
// side table of start offsets (one per entry) lives beside the bytes so
// PosToIdx can binary-search without scanning entry headers.
type VarSegment struct {
	data    []byte
	offsets []int // start offset of each entry, relative to data[0]
}

// NewVar returns a VarSegment over data with the given per-entry start
// offsets. offsets must be sorted ascending and offsets[0] == 0 when
// len(data) > 0.
func NewVar(data []byte, offsets []int) *VarSegment {
	return &VarSegment{data: data, offsets: offsets}
}

// NewEmptyVar returns a VarSegment with zero entries, ready for Prolong.
func NewEmptyVar() *VarSegment {
	return &VarSegment{}
}

func (s *VarSegment) Entry(idx int) []byte {
	start := s.offsets[idx]
	end := s.NumBytes()
	if idx+1 < len(s.offsets) {
		end = s.offsets[idx+1]
	}
	return s.data[start:end]
}

func (s *VarSegment) NumEntries() int { return len(s.offsets) }
func (s *VarSegment) NumBytes() int   { return len(s.data) }
func (s *VarSegment) Empty() bool     { return len(s.offsets) == 0 }

// Prolong records that an entry of entryNumBytes has just been appended to
// the tail of data. The caller is responsible for having already grown
// data by that many bytes before calling Prolong.
func (s *VarSegment) Prolong(entryNumBytes int) int {
	s.offsets = append(s.offsets, len(s.data)-entryNumBytes)
	return len(s.offsets)
}

// Append grows the segment by entry, the bytes of one new entry, and
// records its offset. Unlike Prolong (which assumes the bytes are already
// present), Append owns copying entry into the segment's buffer.
func (s *VarSegment) Append(entry []byte) int {
	s.offsets = append(s.offsets, len(s.data))
	s.data = append(s.data, entry...)
	return len(s.offsets)
}

func (s *VarSegment) PosToIdx(byteOffset int) int {
	idx := sort.Search(len(s.offsets), func(i int) bool { return s.offsets[i] > byteOffset })
	if idx == 0 {
		return 0
	}
	return idx - 1
}

func (s *VarSegment) Split(idx int) (Segment, Segment) {
	if s.Empty() {
		panic(ustoreerr.InvalidInput.New("cannot split an empty segment"))
	}
	var preBytes int
	if idx < len(s.offsets) {
		preBytes = s.offsets[idx]
	} else {
		preBytes = len(s.data)
	}

	preOffsets := append([]int(nil), s.offsets[:idx]...)
	postOffsets := make([]int, 0, len(s.offsets)-idx)
	for i := idx; i < len(s.offsets); i++ {
		postOffsets = append(postOffsets, s.offsets[i]-preBytes)
	}

	left := &VarSegment{data: s.data[:preBytes], offsets: preOffsets}
	right := &VarSegment{data: s.data[preBytes:], offsets: postOffsets}
	return left, right
}

func (s *VarSegment) AppendForChunk(dst []byte) int {
	return copy(dst, s.data)
}
