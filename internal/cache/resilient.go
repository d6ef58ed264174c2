package cache

import (
	"context"
	"time"

	"github.com/authorstack/authorstack/internal/observability/logger"
	obsmetrics "github.com/authorstack/authorstack/internal/observability/metrics"
	"go.uber.org/zap"
)

// Resilient never returns an error. Failed reads become misses and failed
// writes or deletes are logged and counted; callers fall through to the
// backing store.
type Resilient struct {
	inner   Cache
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

func NewResilient(inner Cache, log *zap.Logger, metrics *obsmetrics.Metrics) *Resilient {
	return &Resilient{inner: inner, log: log.Named("cache"), metrics: metrics}
}

func (r *Resilient) Get(ctx context.Context, key string, dest any) (bool, error) {
	found, err := r.inner.Get(ctx, key, dest)
	if err != nil {
		r.degraded(ctx, "get", key, err)
		return false, nil
	}
	return found, nil
}

func (r *Resilient) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := r.inner.Set(ctx, key, value, ttl); err != nil {
		r.degraded(ctx, "set", key, err)
	}
	return nil
}

func (r *Resilient) Delete(ctx context.Context, keys ...string) error {
	if err := r.inner.Delete(ctx, keys...); err != nil {
		r.degraded(ctx, "delete", "", err)
	}
	return nil
}

func (r *Resilient) DeletePrefix(ctx context.Context, prefix string) error {
	if err := r.inner.DeletePrefix(ctx, prefix); err != nil {
		r.degraded(ctx, "delete_prefix", prefix, err)
	}
	return nil
}

func (r *Resilient) degraded(ctx context.Context, op, key string, err error) {
	logger.WithContext(ctx, r.log).Warn("cache operation failed",
		zap.String("operation", op),
		zap.String("key", key),
		zap.Error(err),
	)
	r.metrics.RecordCacheDegraded(ctx, op)
}
