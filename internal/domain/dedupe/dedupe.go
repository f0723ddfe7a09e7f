// Package dedupe tracks sync tasks that are queued or running so the same
// (student, platform) pair is never worked on twice at once.
package dedupe

import (
	"context"
	"sync"

	"github.com/okian/codeboard/pkg/metrics"
)

// Deduper records in-flight task IDs.
type Deduper interface {
	// SeenAndRecord atomically checks if id is in flight and records it if not.
	// Returns true if id was already in flight (or the tracker is full),
	// false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord releases id once its task finished or could not be queued.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper implements Deduper with a map guarded by a mutex.
// With maxSize > 0 new IDs are refused once the limit is reached; in-flight
// IDs are never evicted.
type inMemoryDeduper struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	maxSize  int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	metrics.UpdateInFlightTasks(0)
	return d
}

// SeenAndRecord implements Deduper.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.inFlight[id]; exists {
		metrics.RecordTaskDuplicate()
		return true
	}
	if d.maxSize > 0 && len(d.inFlight) >= d.maxSize {
		metrics.RecordErrorByComponent("dedupe", "full")
		return true
	}
	d.inFlight[id] = struct{}{}
	metrics.UpdateInFlightTasks(int64(len(d.inFlight)))
	return false
}

// Unrecord implements Deduper.
func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.inFlight[id]; exists {
		delete(d.inFlight, id)
		metrics.UpdateInFlightTasks(int64(len(d.inFlight)))
	}
}

// Size returns the number of in-flight IDs.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.inFlight))
}
