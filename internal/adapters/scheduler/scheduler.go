// Package scheduler drives the periodic sync and ranking jobs with gocron.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/okian/codeboard/pkg/logger"
	"github.com/okian/codeboard/pkg/metrics"
)

// Job names.
const (
	JobSync          = "sync"
	JobRanking       = "ranking"
	JobCooldownRetry = "cooldown_retry"
)

// Default cadences.
const (
	DefaultSyncCron    = "0 2 * * 0"
	DefaultRankingCron = "30 3 * * *"
)

// Service is what the jobs invoke.
type Service interface {
	RunScheduledSync(ctx context.Context) error
	RunCooldownRetry(ctx context.Context) error
	RunRankingRecompute(ctx context.Context) error
}

// Scheduler owns the gocron scheduler and its jobs.
type Scheduler struct {
	cron     gocron.Scheduler
	svc      Service
	logger   logger.Logger
	location *time.Location

	syncCron     string
	rankingCron  string
	cooldownCron string

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]gocron.Job
}

// New registers the jobs. An empty cooldown cron disables that job. The
// scheduler does not run until Start.
func New(ctx context.Context, svc Service, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		svc:         svc,
		logger:      logger.Nop(),
		location:    time.Local,
		syncCron:    DefaultSyncCron,
		rankingCron: DefaultRankingCron,
		jobs:        map[string]gocron.Job{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("scheduler")

	cron, err := gocron.NewScheduler(gocron.WithLocation(s.location))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s.cron = cron
	s.ctx, s.cancel = context.WithCancel(ctx)

	defs := []struct {
		name string
		expr string
		run  func(context.Context) error
	}{
		{JobSync, s.syncCron, svc.RunScheduledSync},
		{JobRanking, s.rankingCron, svc.RunRankingRecompute},
		{JobCooldownRetry, s.cooldownCron, svc.RunCooldownRetry},
	}
	for _, def := range defs {
		if def.expr == "" {
			continue
		}
		if err := s.add(def.name, def.expr, def.run); err != nil {
			s.cancel()
			_ = cron.Shutdown()
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(name, expr string, run func(context.Context) error) error {
	job, err := s.cron.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(func() { s.execute(name, run) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule %s job %q: %w", name, expr, err)
	}
	s.mu.Lock()
	s.jobs[name] = job
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) execute(name string, run func(context.Context) error) {
	ctx := s.ctx
	start := time.Now()
	s.logger.Info(ctx, "job started", logger.String("job", name))

	if err := run(ctx); err != nil {
		metrics.RecordSchedulerRun(name, "error")
		metrics.RecordErrorByComponent("scheduler", name)
		s.logger.Error(ctx, "job failed",
			logger.String("job", name),
			logger.Duration("took", time.Since(start)),
			logger.Error(err))
		return
	}
	metrics.RecordSchedulerRun(name, "ok")
	s.logger.Info(ctx, "job finished",
		logger.String("job", name),
		logger.Duration("took", time.Since(start)))
}

// Start begins firing jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, name := range s.Jobs() {
		next, _ := s.NextRun(name)
		s.logger.Info(s.ctx, "job scheduled", logger.String("job", name), logger.Time("next_run", next))
	}
}

// Jobs returns the names of the registered jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for _, name := range []string{JobSync, JobRanking, JobCooldownRetry} {
		if _, ok := s.jobs[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// RunNow triggers a registered job outside its cadence. Singleton mode still
// applies.
func (s *Scheduler) RunNow(name string) error {
	job, err := s.job(name)
	if err != nil {
		return err
	}
	return job.RunNow()
}

// NextRun returns when the job fires next.
func (s *Scheduler) NextRun(name string) (time.Time, error) {
	job, err := s.job(name)
	if err != nil {
		return time.Time{}, err
	}
	return job.NextRun()
}

func (s *Scheduler) job(name string) (gocron.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return job, nil
}

// Shutdown cancels running jobs and stops the scheduler.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}
