// Package service wires the sync and ranking core into the operations the
// HTTP API, the scheduler and the CLI call.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/okian/codeboard/internal/adapters/mq/queue"
	"github.com/okian/codeboard/internal/adapters/mq/worker"
	"github.com/okian/codeboard/internal/adapters/repository"
	"github.com/okian/codeboard/internal/domain/dedupe"
	"github.com/okian/codeboard/internal/domain/eligibility"
	"github.com/okian/codeboard/internal/domain/grading"
	"github.com/okian/codeboard/internal/domain/model"
	"github.com/okian/codeboard/internal/domain/orchestrator"
	"github.com/okian/codeboard/internal/domain/ranking"
	"github.com/okian/codeboard/internal/domain/types"
	"github.com/okian/codeboard/pkg/logger"
	"github.com/okian/codeboard/pkg/metrics"
)

// Defaults applied by New.
const (
	defaultQueueSize           = 1024
	defaultDedupeSize          = 50000
	defaultMaxLeaderboardLimit = 500
	enqueueRetryInterval       = 25 * time.Millisecond
)

// Service implements the sync and ranking operations.
type Service struct {
	mu sync.RWMutex

	// Core components
	store        repository.Store
	adapters     orchestrator.Adapters
	deduper      dedupe.Deduper
	queue        *queue.InMemoryQueue
	orchestrator *orchestrator.Orchestrator
	pool         *worker.Pool
	selector     *eligibility.Selector
	grading      *grading.Engine
	ranking      *ranking.Engine
	validate     *validator.Validate

	// Configuration
	workerCount          int
	queueSize            int
	dedupeSize           int
	maxAttempts          int
	backoff              time.Duration
	cooldown             time.Duration
	verificationRequired bool
	defaultPoints        map[model.Metric]int64
	rankingCache         ranking.Cache
	maxLeaderboardLimit  int

	// State
	started bool
	stopped bool
	cancel  context.CancelFunc
	loopWG  sync.WaitGroup

	logger logger.Logger
	now    func() time.Time
}

// New builds the service around store and the platform adapters. Nothing
// runs until Start.
func New(store repository.Store, adapters orchestrator.Adapters, opts ...Option) *Service {
	s := &Service{
		store:                store,
		adapters:             adapters,
		workerCount:          runtime.NumCPU() * 2,
		queueSize:            defaultQueueSize,
		dedupeSize:           defaultDedupeSize,
		maxAttempts:          orchestrator.DefaultMaxAttempts,
		backoff:              orchestrator.DefaultBackoff,
		cooldown:             eligibility.DefaultCooldown,
		verificationRequired: true,
		defaultPoints:        grading.DefaultPoints(),
		maxLeaderboardLimit:  defaultMaxLeaderboardLimit,
		logger:               logger.Nop(),
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	base := s.logger
	s.logger = base.Named("service")

	s.validate = validator.New()
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.orchestrator = orchestrator.New(store, adapters,
		orchestrator.NotifierFunc(store.AppendNotification),
		orchestrator.WithMaxAttempts(s.maxAttempts),
		orchestrator.WithBackoff(s.backoff),
		orchestrator.WithClock(s.now),
		orchestrator.WithLogger(base),
	)
	s.pool = worker.NewPool(s.workerCount, s.queue, s.orchestrator,
		worker.WithTracker(s.deduper),
		worker.WithLogger(base),
	)
	s.selector = eligibility.New(store,
		eligibility.WithCooldown(s.cooldown),
		eligibility.WithLogger(base),
	)
	s.grading = grading.NewEngine(store, grading.WithLogger(base))
	rankingOpts := []ranking.Option{ranking.WithLogger(base), ranking.WithClock(s.now)}
	if s.rankingCache != nil {
		rankingOpts = append(rankingOpts, ranking.WithCache(s.rankingCache))
	}
	s.ranking = ranking.NewEngine(store, s.grading, rankingOpts...)
	return s
}

// Start seeds the grading rule and starts the workers and the ranking loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting codeboard service...")
	if err := s.store.SeedPoints(ctx, s.defaultPoints); err != nil {
		return fmt.Errorf("seed grading points: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)
	s.loopWG.Add(1)
	go func() {
		defer s.loopWG.Done()
		s.ranking.Run(runCtx)
	}()

	s.started = true
	s.logger.Info(ctx, "codeboard service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queue.Capacity()),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("maxAttempts", s.maxAttempts),
		logger.Bool("verificationRequired", s.verificationRequired),
	)
	return nil
}

// Stop drains the queue, waits for the workers and stops the ranking loop.
// A stopped service cannot be restarted.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		s.stopped = true
		return nil
	}
	s.logger.Info(ctx, "stopping codeboard service...")

	err := s.pool.Shutdown(ctx)
	s.cancel()
	s.loopWG.Wait()

	s.started = false
	s.stopped = true
	s.logger.Info(ctx, "codeboard service stopped")
	return err
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.stopped:
		return ErrStopped
	case !s.started:
		return ErrNotStarted
	}
	return nil
}

// dispatch queues task unless the same link is already queued or running.
// done is called exactly once, also when the task is not queued. When wait
// is set a full queue is retried until ctx ends.
func (s *Service) dispatch(ctx context.Context, task model.SyncTask, done func(), wait bool) (bool, error) {
	finish := func() {
		if done != nil {
			done()
		}
	}
	if err := s.running(); err != nil {
		finish()
		return false, err
	}

	id := task.ID()
	if s.deduper.SeenAndRecord(ctx, id) {
		s.logger.Debug(ctx, "sync task already in flight, skipping", logger.String("task", id))
		finish()
		return false, nil
	}

	job := queue.Job{Task: task, Done: done}
	for !s.queue.Enqueue(ctx, job) {
		if !wait || s.queue.IsClosed() || ctx.Err() != nil {
			s.deduper.Unrecord(ctx, id)
			finish()
			if s.queue.IsClosed() {
				return false, ErrStopped
			}
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return false, ErrBackpressure
		}
		select {
		case <-ctx.Done():
		case <-time.After(enqueueRetryInterval):
		}
	}
	metrics.UpdateInFlightTasks(s.deduper.Size())
	return true, nil
}

// trigger queues one on-demand sync. The ranking is recomputed once the
// task is done.
func (s *Service) trigger(ctx context.Context, task model.SyncTask) error {
	_, err := s.dispatch(ctx, task, s.ranking.Request, false)
	if err != nil {
		s.logger.Warn(ctx, "on-demand sync not queued",
			logger.String("student_id", task.StudentID),
			logger.String("platform", task.Platform.String()),
			logger.Error(err))
	}
	return err
}

// RunScheduledSync syncs every accepted link and every suspended link whose
// cooldown elapsed, waits for the batch to drain and requests a recompute.
func (s *Service) RunScheduledSync(ctx context.Context) error {
	return s.runBatch(ctx, eligibility.ModeAll)
}

// RunCooldownRetry syncs only suspended links whose cooldown elapsed.
func (s *Service) RunCooldownRetry(ctx context.Context) error {
	return s.runBatch(ctx, eligibility.ModeCooldownRetry)
}

func (s *Service) runBatch(ctx context.Context, mode eligibility.Mode) error {
	if err := s.running(); err != nil {
		return err
	}
	start := time.Now()
	tasks, err := s.selector.Select(ctx, s.now(), mode)
	if err != nil {
		return fmt.Errorf("select %s sync tasks: %w", mode, err)
	}

	var wg sync.WaitGroup
	queued := 0
	for _, task := range tasks {
		wg.Add(1)
		ok, err := s.dispatch(ctx, task, wg.Done, true)
		if err != nil {
			// the remaining tasks are picked up by the next run
			s.logger.Warn(ctx, "sync batch interrupted", logger.String("mode", mode.String()), logger.Error(err))
			break
		}
		if ok {
			queued++
		}
	}

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		s.logger.Warn(ctx, "sync batch wait canceled", logger.String("mode", mode.String()))
		return ctx.Err()
	}

	s.ranking.Request()
	s.logger.Info(ctx, "sync batch drained",
		logger.String("mode", mode.String()),
		logger.Int("selected", len(tasks)),
		logger.Int("queued", queued),
		logger.Duration("took", time.Since(start)))
	return nil
}

// RunRankingRecompute runs a full ranking recompute.
func (s *Service) RunRankingRecompute(ctx context.Context) error {
	_, err := s.ranking.Recompute(ctx)
	return err
}

// Recompute runs a full ranking recompute and returns the result.
func (s *Service) Recompute(ctx context.Context) (types.Ranking, error) {
	return s.ranking.Recompute(ctx)
}

// GetRanking returns the last ranking narrowed by f. Ranks stay global. A
// zero or oversized limit is capped to the configured maximum.
func (s *Service) GetRanking(ctx context.Context, f types.Filter) ([]types.Entry, error) {
	if f.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", model.ErrInvalidInput)
	}
	if f.Platform != "" && !f.Platform.Valid() {
		return nil, fmt.Errorf("%w: unknown platform %q", model.ErrInvalidInput, f.Platform)
	}
	if f.Limit == 0 || f.Limit > s.maxLeaderboardLimit {
		f.Limit = s.maxLeaderboardLimit
	}
	return s.ranking.Get(ctx, f)
}

// Rank returns the ranking entry of one student. A student created after
// the last recompute triggers a fresh one.
func (s *Service) Rank(ctx context.Context, studentID string) (types.Entry, error) {
	entry, err := s.ranking.Rank(ctx, studentID)
	if err == nil || !errors.Is(err, model.ErrNotFound) {
		return entry, err
	}
	if _, serr := s.store.GetStudent(ctx, studentID); serr != nil {
		return types.Entry{}, serr
	}
	r, err := s.ranking.Recompute(ctx)
	if err != nil {
		return types.Entry{}, err
	}
	entry, ok := r.Find(studentID)
	if !ok {
		return types.Entry{}, fmt.Errorf("%w: student %s is not ranked", model.ErrNotFound, studentID)
	}
	return entry, nil
}

// GradingRule returns the full metric→points mapping.
func (s *Service) GradingRule(ctx context.Context) (map[model.Metric]int64, error) {
	return s.grading.Points(ctx)
}

// SetGradingPoints updates one metric. The ranking changes on the next
// recompute.
func (s *Service) SetGradingPoints(ctx context.Context, req SetPointsRequest) error {
	req.normalize()
	if err := invalid(s.validate, req); err != nil {
		return err
	}
	return s.grading.SetPoints(ctx, model.Metric(req.Metric), req.Points)
}

// Notifications lists a student's notifications, newest first.
func (s *Service) Notifications(ctx context.Context, studentID string) ([]model.Notification, error) {
	if _, err := s.store.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return s.store.ListNotifications(ctx, studentID)
}

// MarkNotificationRead flags one notification as read.
func (s *Service) MarkNotificationRead(ctx context.Context, studentID, id string) error {
	return s.store.MarkNotificationRead(ctx, studentID, id)
}

// Stats summarizes the service and store.
func (s *Service) Stats(ctx context.Context) (map[string]any, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	queueLen := s.queue.Len(ctx)
	inFlight := s.deduper.Size()
	metrics.UpdateInFlightTasks(inFlight)
	metrics.UpdateWorkerCount(s.pool.Size())

	stats := map[string]any{
		"started":              started,
		"workerCount":          s.pool.Size(),
		"queueCapacity":        s.queue.Capacity(),
		"queueLength":          queueLen,
		"inFlight":             inFlight,
		"verificationRequired": s.verificationRequired,
		"students":             st.Students,
		"links":                st.Links,
		"notifications":        st.Notifications,
	}
	if r, ok := s.ranking.Latest(ctx); ok {
		stats["rankedStudents"] = len(r.Entries)
		stats["rankingComputedAt"] = r.ComputedAt
	}
	return stats, nil
}
