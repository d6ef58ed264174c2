package scheduler

import (
	"time"

	"github.com/authorstack/authorstack/internal/config"
)

// Config controls the cron schedule and job bounds.
type Config struct {
	Enabled         bool
	AggregationSpec string
	JobTimeout      time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		AggregationSpec: "0 30 2 * * *",
		JobTimeout:      30 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:         cfg.Scheduler.Enabled,
		AggregationSpec: cfg.Scheduler.AggregationSpec,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.AggregationSpec == "" {
		c.AggregationSpec = defaults.AggregationSpec
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
