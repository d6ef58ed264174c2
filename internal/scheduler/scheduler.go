package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/authorstack/authorstack/internal/clock"
	obsmetrics "github.com/authorstack/authorstack/internal/observability/metrics"
	salesdomain "github.com/authorstack/authorstack/internal/sales/domain"
	"github.com/authorstack/authorstack/internal/worker"
	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobAnalyticsAggregation = "analytics-aggregation"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	GenID   *snowflake.Node
	Sales   salesdomain.Service
	Pool    *worker.Pool
	Config  Config                 `optional:"true"`
	Metrics *obsmetrics.JobMetrics `optional:"true"`
}

type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	clock   clock.Clock
	genID   *snowflake.Node
	sales   salesdomain.Service
	pool    *worker.Pool
	metrics *obsmetrics.JobMetrics
	cron    *cron.Cron
}

// JobReport is the outcome of one job run.
type JobReport struct {
	Job       string `json:"job"`
	RunID     string `json:"run_id"`
	Processed int64  `json:"processed"`
	Failed    int64  `json:"failed"`
	Error     string `json:"error,omitempty"`
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.GenID == nil || p.Sales == nil || p.Pool == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	log := p.Log.Named("scheduler").With(zap.String("component", "scheduler"))
	return &Scheduler{
		log:     log,
		cfg:     cfg,
		clock:   p.Clock,
		genID:   p.GenID,
		sales:   p.Sales,
		pool:    p.Pool,
		metrics: p.Metrics,
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC), cron.WithChain(cron.Recover(cronLogger{log: log.Sugar()}))),
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(context.Context, *jobRun) error) JobReport {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	run := s.newJobRun(name)
	s.logJobStart(ctx, run)

	start := s.clock.Now()
	err := fn(ctx, run)
	s.metrics.ObserveRun(name, s.clock.Now().Sub(start), err)
	s.metrics.AddItems(name, int(run.processed.Load()))
	s.logJobFinish(ctx, run, err)

	report := JobReport{
		Job:       name,
		RunID:     run.runID,
		Processed: run.processed.Load(),
		Failed:    run.errors.Load(),
	}
	if err != nil {
		report.Error = err.Error()
	}
	return report
}

// RunAll runs every scheduled job once, in order.
func (s *Scheduler) RunAll(ctx context.Context) []JobReport {
	return []JobReport{
		s.runJob(ctx, JobAnalyticsAggregation, s.aggregationJob),
	}
}

// RunAggregation recomputes yesterday's daily aggregates.
func (s *Scheduler) RunAggregation(ctx context.Context) JobReport {
	return s.runJob(ctx, JobAnalyticsAggregation, s.aggregationJob)
}

func (s *Scheduler) aggregationJob(ctx context.Context, run *jobRun) error {
	day := clock.StartOfDay(s.clock.Now()).AddDate(0, 0, -1)
	return s.aggregateDay(ctx, run, day)
}

// aggregateDay recomputes the aggregate of every user that has raw sales on
// day, fanned out over the worker pool.
func (s *Scheduler) aggregateDay(ctx context.Context, run *jobRun, day time.Time) error {
	users, err := s.sales.UsersWithSalesOn(ctx, day)
	if err != nil {
		return fmt.Errorf("list users with sales: %w", err)
	}
	if len(users) == 0 {
		return nil
	}

	failed, err := s.pool.Each(ctx, run.job, users, func(ctx context.Context, userID string) error {
		_, err := s.sales.RecalculateAggregate(ctx, userID, day)
		return err
	})
	run.AddProcessed(len(users) - failed)
	run.AddErrors(failed)
	return err
}

// Start registers the cron entries and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.AggregationSpec, func() {
		s.RunAggregation(ctx)
	}); err != nil {
		return fmt.Errorf("schedule %s: %w", JobAnalyticsAggregation, err)
	}
	s.cron.Start()
	s.log.Info("scheduler started", zap.String("aggregation_spec", s.cfg.AggregationSpec))
	return nil
}

// Stop stops the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
