package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache is a CacheInterface implementation backed by a Redis server.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache. The returned instance is not
// connected; call Connect before using it.
func NewRedisCache() *RedisCache {
	return &RedisCache{}
}

// Connect establishes a connection to the Redis backend and verifies it
// with a ping.
func (r *RedisCache) Connect(redisURL string) error {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return err
	}

	r.client = redis.NewClient(opt)

	_, err = r.client.Ping(context.Background()).Result()
	return err
}

// Disconnect closes the connection to the Redis server.
func (r *RedisCache) Disconnect() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Set stores a key-value pair in the cache. The value is marshaled to JSON
// before storing, and the entry expires after the given TTL. A TTL of zero
// means the entry never expires.
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	marshaledValue, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, marshaledValue, ttl).Err()
}

// Get retrieves the value of a given key, unmarshaling the stored JSON into
// an interface{}. Returns ErrCacheMiss when the key is not present.
func (r *RedisCache) Get(ctx context.Context, key string) (interface{}, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	} else if err != nil {
		return nil, err
	}

	var result interface{}
	if err := json.Unmarshal([]byte(value), &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Clear removes all keys from the currently selected database.
func (r *RedisCache) Clear(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}
