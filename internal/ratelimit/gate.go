package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/authorstack/authorstack/internal/config"
	obsmetrics "github.com/authorstack/authorstack/internal/observability/metrics"
	"go.uber.org/zap"
)

const keyPrefix = "authorstack:ratelimit"

// NamespaceAI is shared by every AI operation so they draw from one budget.
const NamespaceAI = "ai"

var ErrRateLimited = errors.New("rate_limited")

// LimitedError carries the cooldown of a rejected request. It matches
// ErrRateLimited with errors.Is.
type LimitedError struct {
	Scope      string
	Limit      int
	RetryAfter time.Duration
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("rate limited: %s budget of %d exhausted, retry after %s", e.Scope, e.Limit, e.RetryAfter)
}

func (e *LimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfter extracts the cooldown from a rate limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var limited *LimitedError
	if errors.As(err, &limited) {
		return limited.RetryAfter, true
	}
	return 0, false
}

func Key(namespace, subject string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, strings.TrimSpace(namespace), strings.TrimSpace(subject))
}

// Gate rejects metered operations once a user exhausts the budget for the
// gate's namespace in the current window.
type Gate struct {
	namespace string
	limit     int
	window    time.Duration
	enabled   bool

	counter Window
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

func NewGate(namespace string, limit int, window time.Duration, counter Window, log *zap.Logger, metrics *obsmetrics.Metrics) *Gate {
	return &Gate{
		namespace: namespace,
		limit:     limit,
		window:    window,
		enabled:   counter != nil && limit > 0 && window > 0,
		counter:   counter,
		log:       log.Named("ratelimit.gate"),
		metrics:   metrics,
	}
}

// NewAIGate builds the gate shared by insights, pricing and forecasting.
func NewAIGate(cfg config.Config, counter Window, log *zap.Logger, metrics *obsmetrics.Metrics) *Gate {
	if !cfg.RateLimit.Enabled {
		counter = nil
	}
	return NewGate(NamespaceAI, cfg.RateLimit.AILimit, cfg.RateLimit.AIWindow, counter, log, metrics)
}

// Check consumes one unit of the user's budget. A limiter backend failure
// is returned as-is; callers decide whether to fail open.
func (g *Gate) Check(ctx context.Context, userID string) error {
	if g == nil || !g.enabled {
		return nil
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("rate limit subject is empty")
	}

	res, err := g.counter.Hit(ctx, Key(g.namespace, userID), g.limit, g.window)
	if err != nil {
		g.log.Warn("rate limiter unavailable", zap.String("namespace", g.namespace), zap.Error(err))
		return err
	}
	if !res.Allowed {
		g.metrics.RecordRateLimitDenied(ctx, g.namespace, "window_exhausted")
		return &LimitedError{Scope: g.namespace, Limit: res.Limit, RetryAfter: res.RetryAfter}
	}
	g.metrics.RecordRateLimitAllowed(ctx, g.namespace)
	return nil
}
