// Package scheduler runs the periodic maintenance jobs: purging expired
// idempotency records and refreshing stale performance blogs.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-icp-dashboard/internal/cache"
)

// Purger deletes expired idempotency records and reports how many went.
type Purger func(ctx context.Context, now time.Time) (int64, error)

// Refresher reprocesses stale performance blogs.
type Refresher interface {
	RefreshStale(ctx context.Context, limit int) (int, error)
}

// Options configures the scheduler. Empty specs disable their job.
type Options struct {
	PurgeSpec   string // e.g. "@every 1h"
	RefreshSpec string // e.g. "0 3 * * *"
	// RefreshBatch caps blogs per refresh tick.
	RefreshBatch int
	// Guard, when set, makes a tick run on one replica only.
	Guard cache.Store
	// JobTimeout bounds one run; defaults to 30m.
	JobTimeout time.Duration
}

// Scheduler wraps robfig/cron.
type Scheduler struct {
	cron    *cron.Cron
	opts    Options
	purge   Purger
	refresh Refresher
	owner   string
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New registers the configured jobs. Invalid specs are reported here rather
// than at Start.
func New(opts Options, purge Purger, refresh Refresher) (*Scheduler, error) {
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Minute
	}
	if opts.RefreshBatch <= 0 {
		opts.RefreshBatch = 20
	}
	lg := cronLogger{log.With().Str("component", "scheduler").Logger()}
	host, _ := os.Hostname()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(lg), cron.WithChain(cron.Recover(lg), cron.SkipIfStillRunning(lg))),
		opts:    opts,
		purge:   purge,
		refresh: refresh,
		owner:   fmt.Sprintf("%s:%d", host, os.Getpid()),
		now:     time.Now,
		ctx:     lg.l.WithContext(ctx),
		cancel:  cancel,
	}

	if opts.PurgeSpec != "" && purge != nil {
		if _, err := s.cron.AddFunc(opts.PurgeSpec, func() { s.runJob("purge_idempotency", s.purgeOnce) }); err != nil {
			cancel()
			return nil, fmt.Errorf("purge spec %q: %w", opts.PurgeSpec, err)
		}
	}
	if opts.RefreshSpec != "" && refresh != nil {
		if _, err := s.cron.AddFunc(opts.RefreshSpec, func() { s.runJob("refresh_blogs", s.refreshOnce) }); err != nil {
			cancel()
			return nil, fmt.Errorf("refresh spec %q: %w", opts.RefreshSpec, err)
		}
	}
	return s, nil
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int { return len(s.cron.Entries()) }

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	zerolog.Ctx(s.ctx).Info().Int("jobs", s.Jobs()).Msg("scheduler started")
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// runJob runs fn under the job timeout, holding the cross-replica guard for
// the duration when one is configured.
func (s *Scheduler) runJob(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.JobTimeout)
	defer cancel()
	logger := zerolog.Ctx(ctx).With().Str("job", name).Logger()
	ctx = logger.WithContext(ctx)

	if g := s.opts.Guard; g != nil {
		key := "cron:" + name
		won, err := g.SetNX(ctx, key, s.owner, s.opts.JobTimeout)
		if err != nil {
			logger.Warn().Err(err).Msg("job guard unavailable")
			return
		}
		if !won {
			logger.Debug().Msg("job running elsewhere")
			return
		}
		defer func() {
			if err := g.Del(context.WithoutCancel(ctx), key); err != nil {
				logger.Warn().Err(err).Msg("job guard release failed")
			}
		}()
	}

	start := time.Now()
	if err := fn(ctx); err != nil {
		logger.Error().Err(err).Dur("took", time.Since(start)).Msg("job failed")
		return
	}
	logger.Debug().Dur("took", time.Since(start)).Msg("job done")
}

func (s *Scheduler) purgeOnce(ctx context.Context) error {
	n, err := s.purge(ctx, s.now().UTC())
	if err != nil {
		return err
	}
	if n > 0 {
		zerolog.Ctx(ctx).Info().Int64("purged", n).Msg("expired idempotency records removed")
	}
	return nil
}

func (s *Scheduler) refreshOnce(ctx context.Context) error {
	n, err := s.refresh.RefreshStale(ctx, s.opts.RefreshBatch)
	if n > 0 {
		zerolog.Ctx(ctx).Info().Int("refreshed", n).Msg("stale performance blogs refreshed")
	}
	return err
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ l zerolog.Logger }

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug().Fields(kv).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error().Err(err).Fields(kv).Msg(msg)
}
