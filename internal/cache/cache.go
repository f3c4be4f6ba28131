// Package cache holds short-lived copies of record store reads.
package cache

import (
	"context"
	"time"
)

// Cache stores byte values under string keys with a TTL.
type Cache interface {
	// Get returns ErrCacheMiss if the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Error is a cache error constant.
type Error string

func (e Error) Error() string { return string(e) }

// ErrCacheMiss indicates the key was not found in cache.
const ErrCacheMiss Error = "cache miss"
