package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	JobReasonDeadlineExceeded = "deadline_exceeded"
	JobReasonCanceled         = "canceled"
	JobReasonUnknown          = "unknown"
)

// JobMetrics covers background work: scheduled aggregation and platform syncs.
type JobMetrics struct {
	runs     *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	items    *prometheus.CounterVec
}

func NewJobMetrics(reg prometheus.Registerer) (*JobMetrics, error) {
	m := &JobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authorstack_job_runs_total",
			Help: "Background job runs by name.",
		}, []string{"job"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authorstack_job_errors_total",
			Help: "Background job errors by low-cardinality reason.",
		}, []string{"job", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authorstack_job_duration_seconds",
			Help:    "Background job latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"job"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authorstack_job_items_processed_total",
			Help: "Items processed by background jobs.",
		}, []string{"job"}),
	}
	for _, c := range []prometheus.Collector{m.runs, m.errors, m.duration, m.items} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *JobMetrics) ObserveRun(job string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job).Inc()
	m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
	if err != nil {
		m.errors.WithLabelValues(job, ClassifyJobError(err)).Inc()
	}
}

func (m *JobMetrics) AddItems(job string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.items.WithLabelValues(job).Add(float64(n))
}

func ClassifyJobError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return JobReasonDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return JobReasonCanceled
	default:
		return JobReasonUnknown
	}
}
