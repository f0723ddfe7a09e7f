package scheduler

import (
	"time"

	"github.com/okian/codeboard/pkg/logger"
)

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithSyncCron sets the full sync cadence.
func WithSyncCron(expr string) Option {
	return func(s *Scheduler) {
		if expr != "" {
			s.syncCron = expr
		}
	}
}

// WithRankingCron sets the ranking recompute cadence.
func WithRankingCron(expr string) Option {
	return func(s *Scheduler) {
		if expr != "" {
			s.rankingCron = expr
		}
	}
}

// WithCooldownCron enables the cooldown-retry job. Empty disables it.
func WithCooldownCron(expr string) Option {
	return func(s *Scheduler) { s.cooldownCron = expr }
}

// WithLocation sets the time zone cron expressions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}
