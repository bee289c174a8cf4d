package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by drivers when a key is absent or its TTL has
// elapsed. Drivers are free to evict lazily; a physically present but
// expired entry must still surface as ErrNotFound.
var ErrNotFound = errors.New("cache: not found")

// Store is an expiring key-value store. Concrete drivers (sqlite, redis,
// memory) implement this. Values are opaque bytes; typed encoding and
// validation live in TokenCache.
//
// A ttl <= 0 means the entry is already expired: drivers either refuse to
// store it or store-and-hide it, but a subsequent Get must not return it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}
