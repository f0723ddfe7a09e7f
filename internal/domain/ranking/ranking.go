// Package ranking recomputes the global leaderboard from a store snapshot.
package ranking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/codeboard/internal/domain/grading"
	"github.com/okian/codeboard/internal/domain/model"
	"github.com/okian/codeboard/internal/domain/types"
	"github.com/okian/codeboard/pkg/logger"
	"github.com/okian/codeboard/pkg/metrics"
)

// Store is the persistence the engine reads from and writes back to.
type Store interface {
	// Snapshot returns every student with its record and link statuses,
	// read consistently.
	Snapshot(ctx context.Context) ([]model.StudentSnapshot, error)
	// SaveRanking writes score and rank of every student in one transaction.
	SaveRanking(ctx context.Context, standings []model.Standing) error
}

// Compiler yields the current grading rule.
type Compiler interface {
	Compile(ctx context.Context) (grading.Rule, error)
}

// Cache shares the last ranking between processes. Load returns nil on a miss.
type Cache interface {
	Load(ctx context.Context) (*types.Ranking, error)
	Store(ctx context.Context, r types.Ranking) error
	// Invalidate drops the shared copy.
	Invalidate(ctx context.Context) error
}

// Engine owns ranking recomputes and the cached result.
type Engine struct {
	store    Store
	compiler Compiler
	cache    Cache
	logger   logger.Logger
	now      func() time.Time

	// run serializes recomputes.
	run sync.Mutex

	mu     sync.RWMutex
	latest *types.Ranking

	pending chan struct{}
}

// NewEngine creates a ranking engine.
func NewEngine(store Store, compiler Compiler, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		compiler: compiler,
		logger:   logger.Nop(),
		now:      time.Now,
		pending:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("ranking")
	return e
}

// Recompute runs a full recompute and writes score and rank back.
func (e *Engine) Recompute(ctx context.Context) (types.Ranking, error) {
	e.run.Lock()
	defer e.run.Unlock()

	start := time.Now()
	r, err := e.recompute(ctx)
	if err != nil {
		metrics.RecordRankingError()
		metrics.RecordErrorByComponent("ranking", "recompute")
		e.logger.Error(ctx, "ranking recompute failed", logger.Error(err))
		return types.Ranking{}, err
	}
	metrics.RecordRankingRun(time.Since(start), len(r.Entries))
	e.logger.Info(ctx, "ranking recomputed",
		logger.Int("students", len(r.Entries)),
		logger.Bool("all_zero", r.AllZero),
		logger.Duration("took", time.Since(start)))
	return r, nil
}

func (e *Engine) recompute(ctx context.Context) (types.Ranking, error) {
	rule, err := e.compiler.Compile(ctx)
	if err != nil {
		return types.Ranking{}, err
	}
	snaps, err := e.store.Snapshot(ctx)
	if err != nil {
		return types.Ranking{}, fmt.Errorf("read ranking snapshot: %w", err)
	}

	entries, allZero := Compute(rule, snaps)
	if allZero && len(entries) > 0 {
		e.logger.Warn(ctx, "every score is zero; ranking by student id")
	}
	if err := e.store.SaveRanking(ctx, Standings(entries)); err != nil {
		return types.Ranking{}, fmt.Errorf("write back ranking: %w", err)
	}

	r := types.Ranking{Entries: entries, AllZero: allZero, ComputedAt: e.now()}
	e.mu.Lock()
	e.latest = &r
	e.mu.Unlock()

	if e.cache != nil {
		if err := e.cache.Store(ctx, r); err != nil {
			e.logger.Warn(ctx, "ranking cache write failed", logger.Error(err))
			// the shared copy is now stale for processes without a local one
			if err := e.cache.Invalidate(ctx); err != nil {
				e.logger.Warn(ctx, "ranking cache invalidate failed", logger.Error(err))
			}
		}
	}
	return r, nil
}

// Request asks for a recompute without waiting. Requests made while one is
// already pending collapse into it.
func (e *Engine) Request() {
	select {
	case e.pending <- struct{}{}:
	default:
		metrics.RecordRankingCoalesced()
	}
}

// Run serves Request calls until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.pending:
			_, _ = e.Recompute(ctx)
		}
	}
}

// Latest returns the newest known ranking, comparing the in-process copy
// with the shared cache by ComputedAt. A newer cached copy replaces the local
// one. ok is false when nothing has been computed yet.
func (e *Engine) Latest(ctx context.Context) (types.Ranking, bool) {
	e.mu.RLock()
	latest := e.latest
	e.mu.RUnlock()
	if e.cache == nil {
		if latest == nil {
			return types.Ranking{}, false
		}
		return *latest, true
	}
	cached, err := e.cache.Load(ctx)
	if err != nil {
		e.logger.Warn(ctx, "ranking cache read failed", logger.Error(err))
		cached = nil
	}
	switch {
	case cached == nil && latest == nil:
		return types.Ranking{}, false
	case cached == nil:
		return *latest, true
	case latest == nil || cached.ComputedAt.After(latest.ComputedAt):
		e.adopt(cached)
		return *cached, true
	default:
		return *latest, true
	}
}

// adopt installs r as the in-process copy unless a newer one landed meanwhile.
func (e *Engine) adopt(r *types.Ranking) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.latest == nil || r.ComputedAt.After(e.latest.ComputedAt) {
		e.latest = r
	}
}

// Get returns the filtered last ranking, computing one first if none exists.
// Ranks stay global.
func (e *Engine) Get(ctx context.Context, f types.Filter) ([]types.Entry, error) {
	r, ok := e.Latest(ctx)
	if !ok {
		var err error
		if r, err = e.Recompute(ctx); err != nil {
			return nil, err
		}
	}
	return f.Apply(r.Entries), nil
}

// Rank returns the ranking entry of one student.
func (e *Engine) Rank(ctx context.Context, studentID string) (types.Entry, error) {
	r, ok := e.Latest(ctx)
	if !ok {
		var err error
		if r, err = e.Recompute(ctx); err != nil {
			return types.Entry{}, err
		}
	}
	entry, found := r.Find(studentID)
	if !found {
		return types.Entry{}, fmt.Errorf("%w: student %s is not ranked", model.ErrNotFound, studentID)
	}
	return entry, nil
}
