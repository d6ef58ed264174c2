package ratelimit

import (
	"context"
	"strings"

	"github.com/authorstack/authorstack/internal/config"
	obsmetrics "github.com/authorstack/authorstack/internal/observability/metrics"
)

const NamespaceAPI = "api"

// APILimiter applies the general per-user token bucket to the API surface.
type APILimiter struct {
	enabled bool
	bucket  Bucket
	rate    float64
	burst   int
	metrics *obsmetrics.Metrics
}

func NewAPILimiter(cfg config.Config, bucket Bucket, metrics *obsmetrics.Metrics) *APILimiter {
	limitCfg := cfg.RateLimit
	return &APILimiter{
		enabled: limitCfg.Enabled && bucket != nil && limitCfg.APIRate > 0 && limitCfg.APIBurst > 0,
		bucket:  bucket,
		rate:    limitCfg.APIRate,
		burst:   limitCfg.APIBurst,
		metrics: metrics,
	}
}

func (l *APILimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow returns the bucket decision for subject. When the limiter is
// disabled every request is admitted.
func (l *APILimiter) Allow(ctx context.Context, subject string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	res, err := l.bucket.Allow(ctx, Key(NamespaceAPI, strings.TrimSpace(subject)), l.rate, l.burst)
	if err != nil {
		return res, err
	}
	if res.Allowed {
		l.metrics.RecordRateLimitAllowed(ctx, NamespaceAPI)
	} else {
		l.metrics.RecordRateLimitDenied(ctx, NamespaceAPI, "bucket_empty")
	}
	return res, nil
}
