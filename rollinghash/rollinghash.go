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

// Package rollinghash implements the buzhash-style window that decides
// where a byte stream should be split into chunks, independently of stream
// position. Two processes that see the same bytes in the same order always
// cross a boundary at the same byte, which is what lets the tree converge
// on the same root hash no matter how its mutations were batched.
package rollinghash

import (
	"github.com/kch42/buzhash"
)

const (
	// DefaultWindow is the default rolling-hash window size W.
	DefaultWindow = 64
	// DefaultPattern is the default chunk pattern bits P: the lower 12
	// bits all set.
	DefaultPattern = 1<<12 - 1
	// DefaultMaxChunkSize is the default maximum chunk size M, in bytes.
	DefaultMaxChunkSize = 64 * 1024
)

// Params are the rolling-hash configuration that a store fixes at
// creation time and never changes thereafter (changing any of them
// re-hashes the world, per the store's config contract).
type Params struct {
	Window       uint32
	Pattern      uint32
	MaxChunkSize uint32
}

// DefaultParams returns the documented default window/pattern/max-size.
func DefaultParams() Params {
	return Params{Window: DefaultWindow, Pattern: DefaultPattern, MaxChunkSize: DefaultMaxChunkSize}
}

// Hasher decides where a byte stream crosses a chunk boundary. It is
// state-free across calls in the sense that a boundary only ever depends
// on the bytes fed and the fixed Params — never on where in a larger
// operation this particular Hasher instance happens to sit.
type Hasher struct {
	params  Params
	buz     *buzhash.BuzHash
	hashed  uint32
	crossed bool
}

// New returns a Hasher configured with params. Two Hashers built from
// different Params will cross boundaries at different positions for
// identical input and must never be mixed within one store.
func New(params Params) *Hasher {
	return &Hasher{params: params, buz: buzhash.NewBuzHash(params.Window)}
}

// HashByte feeds one byte into the window and updates the
// crossed-boundary flag. Amortised O(1).
func (h *Hasher) HashByte(b byte) {
	h.hashed++
	h.buz.HashByte(b)
	h.crossed = h.crossed ||
		(h.hashed >= h.params.Window && h.buz.Sum32()&h.params.Pattern == h.params.Pattern) ||
		h.hashed == h.params.MaxChunkSize
}

// HashBytes feeds each byte of data into the window, in order. Splitting
// the same logical stream across two HashBytes calls of different sizes
// that sum to the same total yields the same boundary positions as one
// call over the whole stream.
func (h *Hasher) HashBytes(data []byte) {
	for _, b := range data {
		h.HashByte(b)
	}
}

// CrossedBoundary reports whether the stream fed so far has crossed a
// chunk boundary. Idempotent: once true it stays true until Reset.
func (h *Hasher) CrossedBoundary() bool {
	return h.crossed
}

// Reset clears the window, byte counter, and boundary flag so the same
// Hasher can be reused for the next chunk.
func (h *Hasher) Reset() {
	h.buz = buzhash.NewBuzHash(h.params.Window)
	h.hashed = 0
	h.crossed = false
}
