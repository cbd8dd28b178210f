package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a thin JSON cache over Redis. A nil Store is valid and
// caches nothing, so callers need no branching when Redis is
// disabled.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore wraps a Redis client with a default TTL.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{client: client, ttl: ttl}
}

// Get unmarshals the cached value for key into dest. Returns false on
// a miss or any Redis failure.
func (s *Store) Get(ctx context.Context, key string, dest interface{}) bool {
	if s == nil {
		return false
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// Set stores value under key for the configured TTL. Failures are
// ignored; the cache is advisory.
func (s *Store) Set(ctx context.Context, key string, value interface{}) {
	if s == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	s.client.Set(ctx, key, raw, s.ttl)
}

// Invalidate removes the given keys.
func (s *Store) Invalidate(ctx context.Context, keys ...string) {
	if s == nil || len(keys) == 0 {
		return
	}
	s.client.Del(ctx, keys...)
}
