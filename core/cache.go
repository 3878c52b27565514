package core

import (
	"context"
	"time"
)

// Cache is a key/value store with expiring entries.
type Cache interface {
	// Get returns the cached value and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}
