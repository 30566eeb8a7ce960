package maintenance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/taskpad/internal/store"
	"github.com/charlesng35/taskpad/pkg/logger"
	"github.com/charlesng35/taskpad/pkg/metrics"
)

const (
	defaultChallengeSpec = "@every 10m"
	defaultAccountSpec   = "@daily"
	defaultCacheSpec     = "@hourly"
)

// CachePurger removes expired cache entries. Only the SQL cache needs it;
// redis expires keys on its own.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner coordinates background maintenance: blanking expired one-time
// codes, removing accounts that never verified and purging stale cache rows.
type Cleaner struct {
	accounts  store.AccountStore
	cache     CachePurger
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention time.Duration

	challengeSchedule string
	accountSchedule   string
	cacheSchedule     string

	mu     sync.Mutex
	status map[string]*JobStatus
}

// JobStatus is the run history of one maintenance job.
type JobStatus struct {
	Job                 string    `json:"job"`
	TotalRuns           uint64    `json:"totalRuns"`
	ConsecutiveFailures uint64    `json:"consecutiveFailures"`
	LastRunAt           time.Time `json:"lastRunAt"`
	LastRemoved         int64     `json:"lastRemoved"`
	LastError           string    `json:"lastError,omitempty"`
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

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithCachePurger enables the cache purge job.
func WithCachePurger(p CachePurger) Option {
	return func(cleaner *Cleaner) {
		cleaner.cache = p
	}
}

// WithUnverifiedRetention sets how long unverified accounts are kept. Zero
// or negative disables the job.
func WithUnverifiedRetention(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		cleaner.retention = d
	}
}

// WithChallengeSchedule overrides the cron specification for challenge cleanup.
func WithChallengeSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.challengeSchedule = spec
		}
	}
}

// WithAccountSchedule overrides the cron specification for unverified account cleanup.
func WithAccountSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.accountSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron specification for the cache purge.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil account store disables the account jobs.
func NewCleaner(accounts store.AccountStore, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		accounts:          accounts,
		now:               time.Now,
		retention:         7 * 24 * time.Hour,
		challengeSchedule: defaultChallengeSpec,
		accountSchedule:   defaultAccountSpec,
		cacheSchedule:     defaultCacheSpec,
		log:               logger.WithModule("maintenance"),
		status:            make(map[string]*JobStatus),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

type job struct {
	name string
	spec string
	run  func(context.Context) (int64, error)
}

func (c *Cleaner) jobs() []job {
	var jobs []job
	if c.accounts != nil {
		jobs = append(jobs, job{name: "challenges", spec: c.challengeSchedule, run: c.clearChallenges})
		if c.retention > 0 {
			jobs = append(jobs, job{name: "unverified_accounts", spec: c.accountSchedule, run: c.deleteUnverified})
		}
	}
	if c.cache != nil {
		jobs = append(jobs, job{name: "cache", spec: c.cacheSchedule, run: c.cache.PurgeExpired})
	}
	return jobs
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	jobs := c.jobs()
	if len(jobs) == 0 {
		return nil
	}

	for _, j := range jobs {
		j := j
		if _, err := c.cron.AddFunc(j.spec, func() {
			removed, err := c.execute(context.Background(), j)
			if err != nil {
				c.log.Warn("cleanup failed", zap.String("job", j.name), zap.Error(err))
				return
			}
			if removed > 0 {
				c.log.Info("cleanup completed", zap.String("job", j.name), zap.Int64("removed", removed))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler; the returned context is done once running jobs finish.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially and aggregates failures.
func (c *Cleaner) RunOnce(ctx context.Context) (map[string]int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	removed := make(map[string]int64)
	var errs error
	for _, j := range c.jobs() {
		n, err := c.execute(ctx, j)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		removed[j.name] = n
	}
	return removed, errs
}

// Jobs reports the run history of every job that has run at least once, sorted by name.
func (c *Cleaner) Jobs() []JobStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]JobStatus, 0, len(c.status))
	for _, st := range c.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Job < out[k].Job })
	return out
}

// Now exposes the cleaner's clock so health checks judge staleness consistently.
func (c *Cleaner) Now() time.Time {
	return c.now()
}

func (c *Cleaner) execute(ctx context.Context, j job) (int64, error) {
	start := time.Now()
	removed, err := j.run(ctx)

	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.MaintenanceRuns.WithLabelValues(j.name, result).Inc()
	metrics.MaintenanceDuration.WithLabelValues(j.name).Observe(time.Since(start).Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.status[j.name]
	if !ok {
		st = &JobStatus{Job: j.name}
		c.status[j.name] = st
	}
	st.TotalRuns++
	st.LastRunAt = c.now().UTC()
	if err != nil {
		st.ConsecutiveFailures++
		st.LastError = err.Error()
		return 0, err
	}
	st.ConsecutiveFailures = 0
	st.LastError = ""
	st.LastRemoved = removed
	return removed, nil
}

func (c *Cleaner) clearChallenges(ctx context.Context) (int64, error) {
	return c.accounts.ClearExpiredChallenges(ctx, c.now().UTC())
}

func (c *Cleaner) deleteUnverified(ctx context.Context) (int64, error) {
	return c.accounts.DeleteUnverifiedBefore(ctx, c.now().UTC().Add(-c.retention))
}
