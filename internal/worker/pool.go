// Package worker runs background jobs on a bounded pool that is drained on
// shutdown.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/authorstack/authorstack/internal/config"
	obscontext "github.com/authorstack/authorstack/internal/observability/context"
	"github.com/authorstack/authorstack/internal/observability/logger"
	obsmetrics "github.com/authorstack/authorstack/internal/observability/metrics"
	"github.com/authorstack/authorstack/internal/usercontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrPoolStopped = errors.New("worker_pool_stopped")

const (
	defaultSize       = 8
	defaultQueueSize  = 256
	defaultJobTimeout = 5 * time.Minute
)

// Pool wraps a pond pool with per-job timeouts, logging and metrics.
type Pool struct {
	pool    pond.Pool
	timeout time.Duration
	log     *zap.Logger
	metrics *obsmetrics.JobMetrics

	mu      sync.RWMutex
	stopped bool
}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle `optional:"true"`
	Config    config.Config
	Log       *zap.Logger
	Metrics   *obsmetrics.JobMetrics `optional:"true"`
}

func New(p Params) *Pool {
	pool := NewPool(p.Config.Workers, p.Log, p.Metrics)
	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error {
				pool.Stop()
				return nil
			},
		})
	}
	return pool
}

func NewPool(cfg config.WorkerConfig, log *zap.Logger, metrics *obsmetrics.JobMetrics) *Pool {
	size := cfg.Size
	if size <= 0 {
		size = defaultSize
	}
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = defaultQueueSize
	}
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	return &Pool{
		pool:    pond.NewPool(size, pond.WithQueueSize(queue)),
		timeout: timeout,
		log:     log.Named("worker"),
		metrics: metrics,
	}
}

// Go runs fn in the background, detached from the caller's cancellation but
// carrying its logger. The job gets its own timeout.
func (p *Pool) Go(ctx context.Context, job string, fn func(context.Context) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}

	detached := detach(ctx)
	jobLog := logger.WithContext(detached, p.log).With(zap.String("job", job))
	p.pool.Submit(func() {
		jobCtx, cancel := context.WithTimeout(detached, p.timeout)
		defer cancel()

		start := time.Now()
		err := fn(jobCtx)
		p.metrics.ObserveRun(job, time.Since(start), err)
		if err != nil {
			jobLog.Warn("background job failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
			return
		}
		jobLog.Debug("background job finished", zap.Duration("duration", time.Since(start)))
	})
	return nil
}

// Each runs fn for every item on the pool and waits for all of them. It
// returns the number of items that failed.
func (p *Pool) Each(ctx context.Context, job string, items []string, fn func(context.Context, string) error) (int, error) {
	p.mu.RLock()
	if p.stopped {
		p.mu.RUnlock()
		return 0, ErrPoolStopped
	}
	group := p.pool.NewGroupContext(ctx)
	p.mu.RUnlock()

	groupCtx := group.Context()
	log := logger.WithContext(ctx, p.log).With(zap.String("job", job))

	var failed atomic.Int32
	for _, item := range items {
		item := item
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				failed.Add(1)
				return
			}
			itemCtx, cancel := context.WithTimeout(groupCtx, p.timeout)
			defer cancel()
			if err := fn(itemCtx, item); err != nil {
				failed.Add(1)
				log.Warn("job item failed", zap.String("item", item), zap.Error(err))
			}
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return int(failed.Load()), err
	}
	return int(failed.Load()), ctx.Err()
}

// detach keeps the correlation values of ctx without its deadline or
// cancellation.
func detach(ctx context.Context) context.Context {
	out := context.Background()
	if ctx == nil {
		return out
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		out = obscontext.WithRequestID(out, requestID)
	}
	if userID, ok := usercontext.UserIDFromContext(ctx); ok {
		out = usercontext.WithUserID(out, userID)
	}
	return out
}

// Stop rejects new jobs and waits for queued ones to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.log.Info("draining worker pool", zap.Uint64("waiting", p.pool.WaitingTasks()))
	p.pool.StopAndWait()
}
