package session

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore is a Store backed by Redis, for deployments where the session
// must survive process restarts or be visible to sibling processes of the
// same app.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore returns a RedisStore persisting under "<prefix>-session".
// ttl bounds how long an orphaned value lingers; it should be at least the
// refresh-token lifetime. ttl <= 0 means no expiry.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		key:    prefix + storageKeySuffix,
		ttl:    ttl,
	}
}

// Load returns the stored bytes or (nil, nil) when absent.
func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	b, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Save replaces the stored bytes.
func (s *RedisStore) Save(ctx context.Context, data []byte) error {
	return s.client.Set(ctx, s.key, data, s.ttl).Err()
}

// Clear removes the stored value.
func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
