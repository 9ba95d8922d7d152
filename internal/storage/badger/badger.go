// Package badger implements an embedded EventStore on BadgerDB via badgerhold.
// It serves single-node research setups that have no PostgreSQL.
package badger

import (
	"fmt"
	"os"

	"github.com/timshannon/badgerhold/v4"
)

// DB wraps a badgerhold store.
type DB struct {
	store *badgerhold.Store
}

// Open opens (creating if needed) a database directory at path.
// An empty path opens an in-memory database.
func Open(path string) (*DB, error) {
	options := badgerhold.DefaultOptions
	options.Logger = nil
	if path == "" {
		options.InMemory = true
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create badger dir: %w", err)
		}
		options.Dir = path
		options.ValueDir = path
	}

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", path, err)
	}
	return &DB{store: store}, nil
}

// Store returns the underlying badgerhold store.
func (d *DB) Store() *badgerhold.Store {
	return d.store
}

// Close closes the database.
func (d *DB) Close() error {
	if d.store == nil {
		return nil
	}
	return d.store.Close()
}
