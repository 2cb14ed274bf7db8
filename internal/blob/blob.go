// blob.go
//
// Phase-gated SDLC document generation and versioning service
// Copyright (c) 2026 Expeed Software (https://www.expeed.com)
//
// This file is part of opnxt-core.
// opnxt-core is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// opnxt-core is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with opnxt-core.
// If not, see <https://www.gnu.org/licenses/>.

// Package blob provides content-addressed storage of raw artifact bytes.
// Keys derive from the sha256 of the content, so identical content always
// maps to the same key and duplicate payloads are stored once. Blobs are
// never mutated, only created or garbage-collected under retention, which
// makes unsynchronized concurrent reads safe.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrNotFound is returned by Get when no blob exists under the key.
var ErrNotFound = errors.New("blob not found")

// Store is a pure key->bytes store with no knowledge of projects.
type Store interface {
	// Put writes data under key. Writing an existing key with the same
	// content is a no-op, which keeps content-addressed writes idempotent.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the bytes stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Has reports whether a blob exists under key.
	Has(ctx context.Context, key string) (bool, error)

	// Delete removes the blob under key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Keys returns all stored keys. Used by the orphan sweep.
	Keys(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// HashContent returns the hex sha256 digest of content.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Key derives the storage key from a content hash.
func Key(contentHash string) string {
	return "sha256-" + contentHash
}

// KeyFor derives the storage key directly from content.
func KeyFor(content []byte) string {
	return Key(HashContent(content))
}
