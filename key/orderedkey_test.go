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

package key

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByValueOrdering(t *testing.T) {
	a, b := OfUint64(10), OfUint64(5)
	rc, err := Compare(a, b)
	require.NoError(t, err)
	assert.True(t, rc > 0)
	assert.True(t, Less(b, a))
}

func TestByBytesLexicographic(t *testing.T) {
	abc, efg := OfBytes([]byte("abc")), OfBytes([]byte("efg"))
	assert.True(t, Less(abc, efg))
}

func TestByBytesTieBreakByLength(t *testing.T) {
	aaaa, abc := OfBytes([]byte("aaaa")), OfBytes([]byte("abc"))
	assert.True(t, Less(aaaa, abc))

	// Equal on the common prefix: the shorter key orders first.
	assert.True(t, Less(OfBytes([]byte("ab")), abc))
}

func TestVariantMismatchIsError(t *testing.T) {
	_, err := Compare(OfUint64(1), OfBytes([]byte("x")))
	assert.Error(t, err)
}

func TestVariantMismatchPanicsInLess(t *testing.T) {
	assert.Panics(t, func() {
		Less(OfUint64(1), OfBytes([]byte("x")))
	})
}

func TestEncodeDecodeRoundTripByValue(t *testing.T) {
	k := OfUint64(42)
	buf := make([]byte, k.NumBytes())
	n := k.Encode(buf)
	assert.Equal(t, k.NumBytes(), n)

	got, err := Decode(buf, n)
	require.NoError(t, err)
	assert.True(t, Equal(k, got))
}

func TestEncodeDecodeRoundTripByBytes(t *testing.T) {
	k := OfBytes([]byte("k333"))
	buf := make([]byte, k.NumBytes())
	n := k.Encode(buf)

	got, err := Decode(buf, n)
	require.NoError(t, err)
	assert.True(t, Equal(k, got))
	assert.Equal(t, []byte("k333"), got.Bytes())
}

func TestSpecExampleComparator(t *testing.T) {
	// OrderedKey(10) > OrderedKey(5)
	rc, err := Compare(OfUint64(10), OfUint64(5))
	require.NoError(t, err)
	assert.True(t, rc > 0)

	// byte-keys "abc" < "efg"
	rc, err = Compare(OfBytes([]byte("abc")), OfBytes([]byte("efg")))
	require.NoError(t, err)
	assert.True(t, rc < 0)

	// "aaaa" < "abc" (tie on first byte, then 'a' < 'b')
	rc, err = Compare(OfBytes([]byte("aaaa")), OfBytes([]byte("abc")))
	require.NoError(t, err)
	assert.True(t, rc < 0)
}
