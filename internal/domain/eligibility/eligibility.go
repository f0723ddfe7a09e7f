// Package eligibility decides which platform links are due for a sync pass.
package eligibility

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/codeboard/internal/domain/model"
	"github.com/okian/codeboard/pkg/logger"
)

// DefaultCooldown is the minimum interval between automatic retries of a
// suspended link.
const DefaultCooldown = 24 * time.Hour

// Mode selects which rules apply.
type Mode int

// Selection modes.
const (
	// ModeAll applies both rules.
	ModeAll Mode = iota
	// ModeFull picks accepted links.
	ModeFull
	// ModeCooldownRetry picks suspended links whose cooldown elapsed.
	ModeCooldownRetry
)

func (m Mode) String() string {
	switch m {
	case ModeAll:
		return "all"
	case ModeFull:
		return "full"
	case ModeCooldownRetry:
		return "cooldown_retry"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// LinkLister lists every platform link.
type LinkLister interface {
	ListLinks(ctx context.Context) ([]model.PlatformLink, error)
}

// Option applies a configuration option to the Selector.
type Option func(*Selector)

// WithCooldown overrides DefaultCooldown.
func WithCooldown(d time.Duration) Option {
	return func(s *Selector) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Selector) {
		if l != nil {
			s.logger = l
		}
	}
}

// Selector picks sync tasks from the stored links.
type Selector struct {
	links    LinkLister
	cooldown time.Duration
	logger   logger.Logger
}

// New creates a selector.
func New(links LinkLister, opts ...Option) *Selector {
	s := &Selector{links: links, cooldown: DefaultCooldown, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("eligibility")
	return s
}

// Cooldown returns the configured cooldown.
func (s *Selector) Cooldown() time.Duration { return s.cooldown }

// Select returns the de-duplicated tasks due at now, ordered by student and
// platform.
func (s *Selector) Select(ctx context.Context, now time.Time, mode Mode) ([]model.SyncTask, error) {
	links, err := s.links.ListLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}

	seen := make(map[model.LinkKey]struct{}, len(links))
	tasks := make([]model.SyncTask, 0, len(links))
	for i := range links {
		l := &links[i]
		if !Eligible(l, now, s.cooldown, mode) {
			continue
		}
		if _, dup := seen[l.Key()]; dup {
			continue
		}
		seen[l.Key()] = struct{}{}
		tasks = append(tasks, model.SyncTask{StudentID: l.StudentID, Platform: l.Platform, Username: l.User()})
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].StudentID != tasks[j].StudentID {
			return tasks[i].StudentID < tasks[j].StudentID
		}
		return tasks[i].Platform < tasks[j].Platform
	})

	s.logger.Debug(ctx, "links selected",
		logger.String("mode", mode.String()),
		logger.Int("links", len(links)),
		logger.Int("tasks", len(tasks)))
	return tasks, nil
}

// Eligible reports whether l qualifies under mode at now.
func Eligible(l *model.PlatformLink, now time.Time, cooldown time.Duration, mode Mode) bool {
	if l.User() == "" {
		return false
	}
	full := l.Status == model.StatusAccepted
	retry := l.Status == model.StatusSuspended &&
		(l.LastScrapeAttempt == nil || l.LastScrapeAttempt.Before(now.Add(-cooldown)))

	switch mode {
	case ModeFull:
		return full
	case ModeCooldownRetry:
		return retry
	case ModeAll:
		return full || retry
	}
	return false
}
