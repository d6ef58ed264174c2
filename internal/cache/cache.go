// Package cache is the key-value layer in front of the aggregate and
// document stores. Values are JSON encoded; the cache is never the source of
// truth.
package cache

import (
	"context"
	"time"
)

// Cache stores JSON-encoded values under namespaced keys.
type Cache interface {
	// Get decodes the value under key into dest. A missing key reports
	// false with a nil error.
	Get(ctx context.Context, key string, dest any) (bool, error)
	// Set stores value with the given TTL; a zero TTL never expires.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Delete removes keys. Absent keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key that starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}
