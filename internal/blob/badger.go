// badger.go
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

package blob

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore is the durable blob backend, an embedded BadgerDB keyed by
// content hash. Badger's in-memory mode backs the store in tests.
type BadgerStore struct {
	db *badger.DB
}

// BadgerConfig configures the Badger blob backend.
type BadgerConfig struct {
	// Path is the directory for the Badger value log and LSM files.
	// Ignored when InMemory is true.
	Path string

	// InMemory disables disk persistence.
	InMemory bool

	// SyncWrites forces fsync on every write. Blobs are written before the
	// version row that references them, so this should stay on in
	// production.
	SyncWrites bool
}

// OpenBadger opens (or creates) a Badger-backed blob store.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

// Put writes data under key unless the key already exists.
func (s *BadgerStore) Put(_ context.Context, key string, data []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set([]byte(key), data)
	})
}

// Get returns the bytes under key or ErrNotFound.
func (s *BadgerStore) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Has reports whether key exists.
func (s *BadgerStore) Has(_ context.Context, key string) (bool, error) {
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == nil {
			found = true
			return nil
		}
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	return found, err
}

// Delete removes key. Missing keys are not an error.
func (s *BadgerStore) Delete(_ context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Keys iterates all stored keys without loading values.
func (s *BadgerStore) Keys(_ context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Close flushes and closes the underlying Badger database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// RunValueLogGC triggers one round of Badger value log garbage collection.
// Called by the periodic retention sweep; ErrNoRewrite (nothing to collect)
// is swallowed.
func (s *BadgerStore) RunValueLogGC() error {
	err := s.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}
