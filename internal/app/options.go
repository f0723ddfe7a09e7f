package service

import (
	"time"

	"github.com/okian/codeboard/internal/domain/model"
	"github.com/okian/codeboard/internal/domain/ranking"
	"github.com/okian/codeboard/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of sync workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the sync task queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize caps the number of tracked in-flight tasks.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxAttempts sets the fetch attempts per task before suspension.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoff sets the pause between fetch attempts.
func WithBackoff(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.backoff = d
		}
	}
}

// WithCooldown sets how long a suspended link waits before an automatic retry.
func WithCooldown(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

// WithVerificationRequired decides whether submitted links wait for review.
func WithVerificationRequired(required bool) Option {
	return func(s *Service) { s.verificationRequired = required }
}

// WithDefaultPoints sets the grading points seeded on Start for metrics
// that have none stored.
func WithDefaultPoints(points map[model.Metric]int64) Option {
	return func(s *Service) {
		if points != nil {
			s.defaultPoints = points
		}
	}
}

// WithRankingCache shares computed rankings through c.
func WithRankingCache(c ranking.Cache) Option {
	return func(s *Service) { s.rankingCache = c }
}

// WithMaxLeaderboardLimit caps GetRanking page sizes.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLeaderboardLimit = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
