package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/livecss/internal/cache"
	"github.com/charlesng35/livecss/pkg/logger"
)

const defaultCacheSpec = "@hourly"

// Target is one cache backend whose expired entries should be purged.
type Target struct {
	Name   string
	Purger cache.Purger
}

// Cleaner coordinates background maintenance tasks, currently purging expired cache entries
// such as rate limit counters left behind in the database or process memory.
type Cleaner struct {
	targets []Target
	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger

	cacheSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache cleanup.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. Targets without a purger are ignored.
func NewCleaner(targets []Target, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		now:           time.Now,
		cacheSchedule: defaultCacheSpec,
		log:           logger.WithModule("maintenance"),
	}
	for _, target := range targets {
		if target.Purger != nil {
			cleaner.targets = append(cleaner.targets, target)
		}
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the cleanup job and launches the scheduler when there is anything to purge.
func (c *Cleaner) Start() error {
	if len(c.targets) == 0 {
		return nil
	}

	if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("cache cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance: schedule cache cleanup: %w", err)
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return c.cron.Stop()
}

// RunOnce purges every target sequentially and aggregates failures.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	now := c.now()
	for _, target := range c.targets {
		removed, err := target.Purger.PurgeExpired(ctx, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", target.Name, err))
			continue
		}
		if removed > 0 {
			c.log.Debug("purged expired cache entries", zap.String("target", target.Name), zap.Int64("removed", removed))
		}
	}
	return errs
}
