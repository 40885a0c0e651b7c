package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss is returned by Get when the key is not present.
var ErrCacheMiss = errors.New("cache: key does not exist")

// CacheInterface defines the set of methods that need to be implemented to
// be used as a cache backend.
type CacheInterface interface {
	Connect(url string) error
	Disconnect() error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (interface{}, error)
	Clear(ctx context.Context) error
}

// NewCache creates a new CacheInterface with a Redis backend.
// It connects to the provided address, and returns the cache instance or
// an error if the connection failed.
func NewCache(url string) (CacheInterface, error) {
	c := NewRedisCache()
	if err := c.Connect(url); err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	return c, nil
}
