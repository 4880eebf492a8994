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

package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedSegmentSplit(t *testing.T) {
	data := []byte{1, 1, 2, 2, 3, 3}
	s := NewFixed(data, 2)
	require.Equal(t, 3, s.NumEntries())

	left, right := s.Split(1)
	assert.Equal(t, 1, left.NumEntries())
	assert.Equal(t, 2, right.NumEntries())
	assert.Equal(t, left.NumEntries()+right.NumEntries(), s.NumEntries())
	assert.Equal(t, []byte{1, 1}, left.Entry(0))
	assert.Equal(t, []byte{2, 2}, right.Entry(0))
}

func TestFixedSegmentSplitAtEnd(t *testing.T) {
	s := NewFixed([]byte{1, 1, 2, 2}, 2)
	left, right := s.Split(2)
	assert.Equal(t, 2, left.NumEntries())
	assert.True(t, right.Empty())
}

func TestFixedSegmentSplitPanicsOnEmpty(t *testing.T) {
	s := NewFixed(nil, 2)
	assert.Panics(t, func() { s.Split(0) })
}

func TestVarSegmentEntries(t *testing.T) {
	data := []byte("k1v1k22v22")
	s := NewVar(data, []int{0, 4})
	assert.Equal(t, 2, s.NumEntries())
	assert.Equal(t, []byte("k1v1"), s.Entry(0))
	assert.Equal(t, []byte("k22v22"), s.Entry(1))
}

func TestVarSegmentAppendAndSplit(t *testing.T) {
	s := NewEmptyVar()
	s.Append([]byte("aa"))
	s.Append([]byte("bbb"))
	s.Append([]byte("c"))
	require.Equal(t, 3, s.NumEntries())
	require.Equal(t, 6, s.NumBytes())

	left, right := s.Split(1)
	assert.Equal(t, 1, left.NumEntries())
	assert.Equal(t, []byte("aa"), left.Entry(0))
	assert.Equal(t, 2, right.NumEntries())
	assert.Equal(t, []byte("bbb"), right.Entry(0))
	assert.Equal(t, []byte("c"), right.Entry(1))
	assert.Equal(t, left.NumBytes()+right.NumBytes(), s.NumBytes())
}

func TestVarSegmentPosToIdx(t *testing.T) {
	s := NewEmptyVar()
	s.Append([]byte("aa"))   // offset 0
	s.Append([]byte("bbb"))  // offset 2
	s.Append([]byte("c"))    // offset 5

	assert.Equal(t, 0, s.PosToIdx(0))
	assert.Equal(t, 0, s.PosToIdx(1))
	assert.Equal(t, 1, s.PosToIdx(2))
	assert.Equal(t, 2, s.PosToIdx(5))
}

func TestAppendForChunk(t *testing.T) {
	s := NewEmptyVar()
	s.Append([]byte("hello"))
	dst := make([]byte, s.NumBytes())
	n := s.AppendForChunk(dst)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), dst)
}
