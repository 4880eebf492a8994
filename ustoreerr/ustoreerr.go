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

// Package ustoreerr defines the error kinds surfaced by the core, per the
// store's error handling design: navigation failures, loader misses,
// corrupt chunks, bad caller input, backend failures, and cooperative
// cancellation. Each kind is a distinct identity that survives wrapping,
// so a caller several layers up can still ask "was this a KeyNotFound?"
// after every intermediate layer has added its own context.
package ustoreerr

import (
	goerrors "gopkg.in/src-d/go-errors.v1"
)

var (
	// KeyNotFound is returned when a navigation request referenced an
	// absent entry.
	KeyNotFound = goerrors.NewKind("key not found: %s")

	// HashNotFound is returned when the loader could not resolve a hash
	// at the backing chunk store.
	HashNotFound = goerrors.NewKind("hash not found: %s")

	// CorruptChunk is returned for a header/length mismatch, an unknown
	// chunk-type byte, truncated payload, or a hash-verify failure after
	// a Get from the chunk store.
	CorruptChunk = goerrors.NewKind("corrupt chunk %s: %s")

	// InvalidInput is returned for caller errors: ordered-key variant
	// mismatches across trees, negative sizes, splitting an empty
	// segment, and similar preconditions.
	InvalidInput = goerrors.NewKind("invalid input: %s")

	// StoreError wraps a backend I/O failure from the chunk store.
	StoreError = goerrors.NewKind("chunk store error: %s")

	// Cancelled is returned when a cooperative cancellation flag was
	// observed mid-build.
	Cancelled = goerrors.NewKind("operation cancelled")
)
