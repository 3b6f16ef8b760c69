package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amiyamandal-dev/repoportal/internal/repository"
)

// SessionRepo implements repository.SessionStore on Redis.
// It is used when several portal instances share sessions.
type SessionRepo struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Options configures the Redis connection
type Options struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewSessionRepo connects to Redis and verifies the connection
func NewSessionRepo(ctx context.Context, opts Options) (*SessionRepo, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewSessionRepoWithClient(client, opts.Prefix, opts.TTL), nil
}

// NewSessionRepoWithClient wraps an existing client
func NewSessionRepoWithClient(client *redis.Client, prefix string, ttl time.Duration) *SessionRepo {
	return &SessionRepo{client: client, prefix: prefix, ttl: ttl}
}

func (r *SessionRepo) key(sessionID, key string) string {
	return repository.SessionKey(r.prefix, sessionID, key)
}

// Get retrieves a session entry
func (r *SessionRepo) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(sessionID, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return data, nil
}

// Set stores a session entry with the configured TTL
func (r *SessionRepo) Set(ctx context.Context, sessionID, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(sessionID, key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

// Delete removes session entries
func (r *SessionRepo) Delete(ctx context.Context, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, r.key(sessionID, k))
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// HealthCheck pings Redis
func (r *SessionRepo) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client
func (r *SessionRepo) Close() error {
	return r.client.Close()
}
