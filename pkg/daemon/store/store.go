// Package store provides Badger DB-backed storage for file records.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/jamesainslie/scout/pkg/daemon/indexer"
	"github.com/jamesainslie/scout/pkg/scout/types"
)

// Key prefixes for different data types
const (
	prefixFile = "f:" // f:<rootID>/<rel> -> StoredFile JSON
	prefixID   = "i:" // i:<id> -> file key
	prefixMeta = "m:" // Metadata (schema, etc.)
)

var (
	_ indexer.Port   = (*Store)(nil)
	_ indexer.Lister = (*Store)(nil)
)

// Store is the record storage backed by Badger DB.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens or creates a store at the given path.
func Open(path string) (*Store, error) {
	return open(badger.DefaultOptions(path))
}

// OpenInMemory opens a store that lives only in memory.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Store, error) {
	opts.Logger = nil // Disable logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, now: time.Now}
	if err := s.checkSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func fileKey(rootID, rel string) []byte {
	return []byte(prefixFile + rootID + "/" + rel)
}

func idKey(id string) []byte {
	return []byte(prefixID + id)
}

// GetByPath implements indexer.Port.
func (s *Store) GetByPath(_ context.Context, rootID, rel string) (*types.StoredFile, error) {
	var f *types.StoredFile

	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		f, err = getFile(txn, fileKey(rootID, rel))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Create implements indexer.Port.
func (s *Store) Create(_ context.Context, rootID string, rec types.FileRecord) (*types.StoredFile, error) {
	now := s.now()
	f := &types.StoredFile{
		ID:          uuid.NewString(),
		RootID:      rootID,
		Record:      rec,
		FirstSeenAt: now,
		UpdatedAt:   now,
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		key := fileKey(rootID, rec.RelativePath)
		if err := putFile(txn, key, f); err != nil {
			return err
		}
		return txn.Set(idKey(f.ID), key)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Update implements indexer.Port.
func (s *Store) Update(_ context.Context, id string, rec types.FileRecord) error {
	return s.modify(id, func(txn *badger.Txn, key []byte, f *types.StoredFile) error {
		newKey := fileKey(f.RootID, rec.RelativePath)
		if string(newKey) != string(key) {
			if err := txn.Delete(key); err != nil {
				return err
			}
			if err := txn.Set(idKey(id), newKey); err != nil {
				return err
			}
		}

		f.Record = rec
		f.Retired = false
		f.UpdatedAt = s.now()
		return putFile(txn, newKey, f)
	})
}

// MarkRetired implements indexer.Port.
func (s *Store) MarkRetired(_ context.Context, id string) error {
	return s.modify(id, func(txn *badger.Txn, key []byte, f *types.StoredFile) error {
		f.Retired = true
		f.UpdatedAt = s.now()
		return putFile(txn, key, f)
	})
}

// modify loads row id inside a read-write transaction and hands it to fn.
func (s *Store) modify(id string, fn func(txn *badger.Txn, key []byte, f *types.StoredFile) error) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%s: %w", id, indexer.ErrNotFound)
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		f, err := getFile(txn, key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%s: %w", id, indexer.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return fn(txn, key, f)
	})
}

// Files returns every row stored for rootID, ordered by relative path.
func (s *Store) Files(rootID string) ([]types.StoredFile, error) {
	var files []types.StoredFile

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixFile + rootID + "/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var f types.StoredFile
				if err := json.Unmarshal(val, &f); err != nil {
					return err
				}
				files = append(files, f)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return files, err
}

// ListPaths implements indexer.Lister.
func (s *Store) ListPaths(_ context.Context, rootID, dir string) ([]string, error) {
	var paths []string

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := fileKey(rootID, dir+"/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var f types.StoredFile
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &f)
			})
			if err != nil {
				return err
			}
			if !f.Retired {
				paths = append(paths, f.Record.RelativePath)
			}
		}
		return nil
	})
	return paths, err
}

// Count returns the number of active and retired rows for rootID.
func (s *Store) Count(rootID string) (active, retired int64, err error) {
	files, err := s.Files(rootID)
	if err != nil {
		return 0, 0, err
	}
	for _, f := range files {
		if f.Retired {
			retired++
		} else {
			active++
		}
	}
	return active, retired, nil
}

func getFile(txn *badger.Txn, key []byte) (*types.StoredFile, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}

	var f types.StoredFile
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &f)
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func putFile(txn *badger.Txn, key []byte, f *types.StoredFile) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}
