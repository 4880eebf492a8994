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

package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOf(t *testing.T) {
	h := Of([]byte("The quick brown fox jumps over the lazy dog"))
	assert.Equal(t, "26UPXMYH26AJI2OKTK6LACBOJ6GVMUPE", h.String())
}

func TestParseRoundTrip(t *testing.T) {
	h := Of([]byte("abc"))
	s := h.String()
	h2, ok := MaybeParse(s)
	require.True(t, ok)
	assert.Equal(t, h, h2)
}

func TestMaybeParseRejectsGarbage(t *testing.T) {
	_, ok := MaybeParse("not a hash")
	assert.False(t, ok)

	_, ok = MaybeParse("")
	assert.False(t, ok)
}

func TestParsePanicsOnGarbage(t *testing.T) {
	assert.Panics(t, func() { Parse("nope") })
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, Hash{}.IsEmpty())
	assert.False(t, Of([]byte("x")).IsEmpty())
}

func TestLessAndCompare(t *testing.T) {
	a := Hash{0x01}
	b := Hash{0x02}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, a.Compare(b) < 0)
	assert.True(t, b.Compare(a) > 0)
}

func TestSort(t *testing.T) {
	hs := []Hash{{0x03}, {0x01}, {0x02}}
	Sort(hs)
	assert.Equal(t, []Hash{{0x01}, {0x02}, {0x03}}, hs)
}
