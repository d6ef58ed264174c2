package cache

import (
	"context"
	"time"

	"github.com/authorstack/authorstack/internal/observability/logger"
	"go.uber.org/zap"
)

// Fetch returns the cached value under key, or calls load, caches its result
// with ttl and returns it. Cache errors are treated as misses. Load errors
// are returned as-is and nothing is cached.
func Fetch[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	found, err := c.Get(ctx, key, &cached)
	if err != nil {
		logger.FromContext(ctx).Warn("cache read failed; loading from store", zap.String("key", key), zap.Error(err))
	} else if found {
		return cached, nil
	}

	value, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if err := c.Set(ctx, key, value, ttl); err != nil {
		logger.FromContext(ctx).Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}
