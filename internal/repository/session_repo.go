package repository

import (
	"context"
	"errors"
)

// ErrNotFound is returned by SessionStore.Get when the key is absent or expired
var ErrNotFound = errors.New("session key not found")

// SessionStore is a key/value store partitioned by session id.
// Entries expire with the session; there are no transactions across keys.
type SessionStore interface {
	// Get returns the raw value stored under key for the session
	Get(ctx context.Context, sessionID, key string) ([]byte, error)

	// Set stores value under key, refreshing the session TTL for that key
	Set(ctx context.Context, sessionID, key string, value []byte) error

	// Delete removes the given keys; missing keys are not an error
	Delete(ctx context.Context, sessionID string, keys ...string) error

	// HealthCheck reports whether the store is reachable
	HealthCheck(ctx context.Context) error

	// Close releases the underlying resources
	Close() error
}

// SessionKey builds the physical key for a session entry
func SessionKey(prefix, sessionID, key string) string {
	if prefix == "" {
		return "session:" + sessionID + ":" + key
	}
	return prefix + ":session:" + sessionID + ":" + key
}
