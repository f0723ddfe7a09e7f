package grading

import (
	"context"
	"sync"

	"github.com/okian/codeboard/internal/domain/model"
)

// MemoryPoints is a mutex-guarded in-process PointsStore.
type MemoryPoints struct {
	mu     sync.RWMutex
	points map[model.Metric]int64
}

// NewMemoryPoints seeds a store from defaults.
func NewMemoryPoints(defaults map[model.Metric]int64) *MemoryPoints {
	s := &MemoryPoints{points: make(map[model.Metric]int64, len(defaults))}
	for m, p := range defaults {
		s.points[m] = p
	}
	return s
}

// Points implements PointsStore.
func (s *MemoryPoints) Points(_ context.Context) (map[model.Metric]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.Metric]int64, len(s.points))
	for m, p := range s.points {
		out[m] = p
	}
	return out, nil
}

// SetPoints implements PointsStore.
func (s *MemoryPoints) SetPoints(_ context.Context, metric model.Metric, points int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[metric] = points
	return nil
}
