// Package orchestrator runs one sync task: fetch with bounded retry, write
// the result atomically, move the link through its state machine and notify
// the student when the link is suspended or reactivated.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/codeboard/internal/adapters/platform"
	"github.com/okian/codeboard/internal/adapters/repository"
	"github.com/okian/codeboard/internal/domain/model"
	"github.com/okian/codeboard/pkg/logger"
	"github.com/okian/codeboard/pkg/metrics"
)

// Defaults for the retry loop.
const (
	DefaultMaxAttempts = 5
	DefaultBackoff     = time.Second
)

// Store is the persistence the orchestrator writes through.
type Store interface {
	ApplySync(ctx context.Context, studentID string, p model.Platform, fn repository.SyncMutator) error
}

// Adapters resolves the adapter of a platform.
type Adapters interface {
	Get(p model.Platform) (platform.Adapter, bool)
}

// Notifier receives outbound notifications.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n model.Notification) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n model.Notification) error { return f(ctx, n) }

// Outcome is the terminal state of one task.
type Outcome string

// Task outcomes.
const (
	OutcomeSynced      Outcome = "synced"
	OutcomeReactivated Outcome = "reactivated"
	OutcomeSuspended   Outcome = "suspended"
	OutcomeFailed      Outcome = "failed" // failed again while already suspended
	OutcomeStale       Outcome = "stale"
	OutcomeCanceled    Outcome = "canceled"
)

// Result describes what one Sync call did.
type Result struct {
	Outcome  Outcome
	Attempts int
	Err      error // last adapter error, if any
}

// Orchestrator synchronizes single (student, platform) links.
type Orchestrator struct {
	store       Store
	adapters    Adapters
	notifier    Notifier
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
	newID       func() string
	logger      logger.Logger
}

// New creates an orchestrator.
func New(store Store, adapters Adapters, notifier Notifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		adapters:    adapters,
		notifier:    notifier,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		now:         time.Now,
		newID:       uuid.NewString,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("orchestrator")
	return o
}

// Handle runs Sync and reports only errors that are not adapter failures.
func (o *Orchestrator) Handle(ctx context.Context, task model.SyncTask) error {
	_, err := o.Sync(ctx, task)
	return err
}

// Sync fetches task.Username from its platform and applies the result.
// Adapter failures never surface as errors; a cancelled context, an unknown
// platform or a store failure do, and leave state unmodified.
func (o *Orchestrator) Sync(ctx context.Context, task model.SyncTask) (Result, error) {
	adapter, ok := o.adapters.Get(task.Platform)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNoAdapter, task.Platform)
	}

	pm, attempts, fetchErr := o.fetch(ctx, adapter, task)
	res := Result{Attempts: attempts, Err: fetchErr}
	if err := ctx.Err(); err != nil {
		metrics.RecordSyncAttempt(task.Platform.String(), metrics.OutcomeCanceled)
		res.Outcome = OutcomeCanceled
		return res, err
	}

	at := o.now()
	var before model.LinkStatus
	err := o.store.ApplySync(ctx, task.StudentID, task.Platform, func(l *model.PlatformLink, rec *model.PerformanceRecord) error {
		if l.User() != task.Username || !l.Status.Syncable() {
			return errStale
		}
		before = l.Status
		l.LastScrapeAttempt = model.TimePtr(at)
		if fetchErr == nil {
			rec.Merge(pm, at)
			return l.Apply(model.EventSyncSucceeded, at)
		}
		if before == model.StatusSuspended {
			return nil
		}
		return l.Apply(model.EventSyncFailed, at)
	})
	switch {
	case errors.Is(err, errStale):
		metrics.RecordStaleTask()
		o.logger.Debug(ctx, "dropping stale sync task",
			logger.String("student_id", task.StudentID),
			logger.String("platform", task.Platform.String()))
		res.Outcome = OutcomeStale
		return res, nil
	case errors.Is(err, model.ErrNotFound):
		metrics.RecordStaleTask()
		res.Outcome = OutcomeStale
		return res, nil
	case err != nil:
		metrics.RecordErrorByComponent("orchestrator", "apply_sync")
		return res, fmt.Errorf("apply sync %s: %w", task.ID(), err)
	}

	switch {
	case fetchErr == nil && before == model.StatusSuspended:
		res.Outcome = OutcomeReactivated
		metrics.RecordReactivation(task.Platform.String())
		o.notify(ctx, reactivated(o.newID(), task, at))
	case fetchErr == nil:
		res.Outcome = OutcomeSynced
	case before == model.StatusSuspended:
		res.Outcome = OutcomeFailed
	default:
		res.Outcome = OutcomeSuspended
		metrics.RecordSuspension(task.Platform.String())
		o.notify(ctx, suspended(o.newID(), task, at))
	}

	fields := []logger.Field{
		logger.String("student_id", task.StudentID),
		logger.String("platform", task.Platform.String()),
		logger.String("outcome", string(res.Outcome)),
		logger.Int("attempts", res.Attempts),
	}
	if fetchErr != nil {
		o.logger.Warn(ctx, "platform sync failed", append(fields, logger.Error(fetchErr))...)
	} else {
		o.logger.Info(ctx, "platform synced", fields...)
	}
	return res, nil
}

// fetch calls the adapter up to maxAttempts times, sleeping backoff between
// transient failures. It returns early on a non-retryable error or when ctx
// is done.
func (o *Orchestrator) fetch(ctx context.Context, a platform.Adapter, task model.SyncTask) (model.PlatformMetrics, int, error) {
	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		start := time.Now()
		pm, err := a.Fetch(ctx, task.Username)
		metrics.RecordFetchLatency(task.Platform.String(), metrics.Since(start))
		if ctx.Err() != nil {
			return model.PlatformMetrics{}, attempt, ctx.Err()
		}
		if err == nil {
			metrics.RecordSyncAttempt(task.Platform.String(), metrics.OutcomeSuccess)
			return pm, attempt, nil
		}
		lastErr = err

		if !platform.IsRetryable(err) {
			metrics.RecordSyncAttempt(task.Platform.String(), metrics.OutcomeFatal)
			return model.PlatformMetrics{}, attempt, err
		}
		metrics.RecordSyncAttempt(task.Platform.String(), metrics.OutcomeTransient)
		o.logger.Debug(ctx, "transient fetch failure",
			logger.String("student_id", task.StudentID),
			logger.String("platform", task.Platform.String()),
			logger.Int("attempt", attempt),
			logger.Error(err))

		if attempt == o.maxAttempts {
			break
		}
		timer := time.NewTimer(o.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return model.PlatformMetrics{}, attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return model.PlatformMetrics{}, o.maxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, o.maxAttempts, lastErr)
}

func (o *Orchestrator) notify(ctx context.Context, n model.Notification) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, n); err != nil {
		metrics.RecordErrorByComponent("orchestrator", "notify")
		o.logger.Error(ctx, "notification failed",
			logger.String("student_id", n.StudentID),
			logger.String("status_tag", n.StatusTag),
			logger.Error(err))
		return
	}
	metrics.RecordNotification(n.StatusTag)
}
