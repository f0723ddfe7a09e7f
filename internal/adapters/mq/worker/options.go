package worker

import (
	"sync/atomic"

	"github.com/okian/codeboard/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithTracker releases each task's in-flight ID after it is handled.
func WithTracker(t Tracker) Option {
	return func(w *InMemoryWorker) { w.tracker = t }
}

// withActive shares the active-job counter of a pool.
func withActive(active *atomic.Int64) Option {
	return func(w *InMemoryWorker) { w.active = active }
}
