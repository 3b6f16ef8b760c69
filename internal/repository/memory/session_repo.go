package memory

import (
	"context"
	"sync"
	"time"

	"github.com/amiyamandal-dev/repoportal/internal/repository"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// SessionRepo is an in-process repository.SessionStore.
// It backs store.driver=memory and the tests.
type SessionRepo struct {
	mu        sync.RWMutex
	entries   map[string]entry
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewSessionRepo creates an empty store; ttl <= 0 disables expiry
func NewSessionRepo(ttl time.Duration) *SessionRepo {
	return &SessionRepo{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get retrieves a session entry
func (r *SessionRepo) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	k := repository.SessionKey("", sessionID, key)
	r.mu.RLock()
	e, ok := r.entries[k]
	r.mu.RUnlock()

	if !ok {
		return nil, repository.ErrNotFound
	}
	if now := r.now(); e.expired(now) {
		r.mu.Lock()
		if cur, ok := r.entries[k]; ok && cur.expired(now) {
			delete(r.entries, k)
		}
		r.mu.Unlock()
		return nil, repository.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a copy of value. Expired entries of every session are swept
// at most once per TTL.
func (r *SessionRepo) Set(ctx context.Context, sessionID, key string, value []byte) error {
	now := r.now()
	e := entry{value: append([]byte(nil), value...)}
	if r.ttl > 0 {
		e.expiresAt = now.Add(r.ttl)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ttl > 0 && now.Sub(r.lastSweep) >= r.ttl {
		for k, old := range r.entries {
			if old.expired(now) {
				delete(r.entries, k)
			}
		}
		r.lastSweep = now
	}
	r.entries[repository.SessionKey("", sessionID, key)] = e
	return nil
}

// Delete removes session entries
func (r *SessionRepo) Delete(ctx context.Context, sessionID string, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		delete(r.entries, repository.SessionKey("", sessionID, k))
	}
	return nil
}

// Len returns the number of stored entries, expired ones not yet swept included
func (r *SessionRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// HealthCheck always succeeds
func (r *SessionRepo) HealthCheck(ctx context.Context) error {
	return nil
}

// Close drops all entries
func (r *SessionRepo) Close() error {
	r.mu.Lock()
	r.entries = make(map[string]entry)
	r.mu.Unlock()
	return nil
}
