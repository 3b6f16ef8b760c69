package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/amiyamandal-dev/repoportal/internal/repository"
)

// SessionRepo implements repository.SessionStore on BadgerDB.
// Every entry carries the session TTL so abandoned tabs age out.
type SessionRepo struct {
	db  *DB
	ttl time.Duration
}

// NewSessionRepo creates a session repository with the given entry TTL
func NewSessionRepo(db *DB, ttl time.Duration) *SessionRepo {
	return &SessionRepo{db: db, ttl: ttl}
}

// Get retrieves a session entry
func (r *SessionRepo) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	var value []byte

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(repository.SessionKey("", sessionID, key)))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session key %s: %w", key, err)
	}

	return value, nil
}

// Set stores a session entry with the configured TTL
func (r *SessionRepo) Set(ctx context.Context, sessionID, key string, value []byte) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(repository.SessionKey("", sessionID, key)), value)
		if r.ttl > 0 {
			entry = entry.WithTTL(r.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to write session key %s: %w", key, err)
	}
	return nil
}

// Delete removes session entries
func (r *SessionRepo) Delete(ctx context.Context, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(repository.SessionKey("", sessionID, key))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session keys: %w", err)
	}
	return nil
}

// HealthCheck checks the underlying database
func (r *SessionRepo) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// Close closes the underlying database
func (r *SessionRepo) Close() error {
	return r.db.Close()
}
