package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// DB wraps BadgerDB for session storage
type DB struct {
	*badger.DB
}

// New opens (or creates) a BadgerDB at dbPath
func New(dbPath string) (*DB, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	return &DB{DB: db}, nil
}

// NewInMemory opens a BadgerDB that never touches disk
func NewInMemory() (*DB, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger db: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database
func (db *DB) Close() error {
	return db.DB.Close()
}

// HealthCheck checks if the database is usable
func (db *DB) HealthCheck(ctx context.Context) error {
	if db.IsClosed() {
		return fmt.Errorf("badger db is closed")
	}
	return db.View(func(txn *badger.Txn) error {
		return nil
	})
}
