// Package grading holds the metric→points configuration and compiles it into
// a scoring rule.
package grading

import (
	"context"
	"fmt"

	"github.com/okian/codeboard/internal/domain/model"
	"github.com/okian/codeboard/pkg/logger"
)

// PointsStore persists the grading rule.
type PointsStore interface {
	Points(ctx context.Context) (map[model.Metric]int64, error)
	SetPoints(ctx context.Context, metric model.Metric, points int64) error
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine reads and updates the grading rule.
type Engine struct {
	store  PointsStore
	logger logger.Logger
}

// NewEngine creates a grading engine backed by store.
func NewEngine(store PointsStore, opts ...Option) *Engine {
	e := &Engine{store: store, logger: logger.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("grading")
	return e
}

// Points returns the full metric→points mapping. Catalogue metrics without
// an entry are reported with 0 points.
func (e *Engine) Points(ctx context.Context) (map[model.Metric]int64, error) {
	rule, err := e.Compile(ctx)
	if err != nil {
		return nil, err
	}
	return rule.Mapping(), nil
}

// SetPoints updates one metric. It does not trigger a ranking recompute.
func (e *Engine) SetPoints(ctx context.Context, metric model.Metric, points int64) error {
	if !metric.Known() {
		return fmt.Errorf("%w: %q", model.ErrUnknownMetric, metric)
	}
	if points < 0 {
		return fmt.Errorf("%w: points for %s must not be negative", model.ErrInvalidInput, metric)
	}
	if err := e.store.SetPoints(ctx, metric, points); err != nil {
		return fmt.Errorf("set points for %s: %w", metric, err)
	}
	e.logger.Info(ctx, "grading points updated", logger.String("metric", string(metric)), logger.Int64("points", points))
	return nil
}

// Compile snapshots the current points into a Rule. Metrics missing from the
// stored rule contribute zero and are logged; stored entries for unknown
// metrics are ignored.
func (e *Engine) Compile(ctx context.Context) (Rule, error) {
	stored, err := e.store.Points(ctx)
	if err != nil {
		return Rule{}, fmt.Errorf("load grading rule: %w", err)
	}
	points := make(map[model.Metric]int64, len(stored))
	for m, p := range stored {
		if !m.Known() {
			e.logger.Warn(ctx, "ignoring grading entry for unknown metric", logger.String("metric", string(m)))
			continue
		}
		points[m] = p
	}
	for _, m := range model.AllMetrics() {
		if _, ok := points[m]; !ok {
			e.logger.Warn(ctx, "metric has no grading entry; it contributes zero", logger.String("metric", string(m)))
		}
	}
	return Rule{points: points}, nil
}

// Rule is an immutable compiled grading rule.
type Rule struct {
	points map[model.Metric]int64
}

// NewRule builds a rule directly from a mapping.
func NewRule(points map[model.Metric]int64) Rule {
	cp := make(map[model.Metric]int64, len(points))
	for m, p := range points {
		cp[m] = p
	}
	return Rule{points: cp}
}

// Points returns the points of m, 0 when absent.
func (r Rule) Points(m model.Metric) int64 { return r.points[m] }

// Mapping returns a copy of the rule covering the whole catalogue.
func (r Rule) Mapping() map[model.Metric]int64 {
	out := make(map[model.Metric]int64, len(r.points))
	for _, m := range model.AllMetrics() {
		out[m] = r.points[m]
	}
	return out
}

// Gated returns the value of m counted for scoring: zero unless the owning
// platform's link is accepted.
func Gated(rec *model.PerformanceRecord, statuses map[model.Platform]model.LinkStatus, m model.Metric) int64 {
	if !statuses[m.Platform()].Counts() {
		return 0
	}
	return rec.Value(m)
}

// Score computes Σ gated(metric) × points over the catalogue.
func (r Rule) Score(rec *model.PerformanceRecord, statuses map[model.Platform]model.LinkStatus) int64 {
	var total int64
	for _, m := range model.AllMetrics() {
		total += Gated(rec, statuses, m) * r.points[m]
	}
	return total
}

// PlatformScore computes the score contributed by p alone.
func (r Rule) PlatformScore(rec *model.PerformanceRecord, statuses map[model.Platform]model.LinkStatus, p model.Platform) int64 {
	var total int64
	for _, m := range model.MetricsFor(p) {
		total += Gated(rec, statuses, m) * r.points[m]
	}
	return total
}
