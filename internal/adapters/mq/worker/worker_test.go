package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	queue "github.com/okian/codeboard/internal/adapters/mq/queue"
	worker "github.com/okian/codeboard/internal/adapters/mq/worker"
	"github.com/okian/codeboard/internal/domain/dedupe"
	model "github.com/okian/codeboard/internal/domain/model"
)

type recordingHandler struct {
	mu     sync.Mutex
	seen   []model.SyncTask
	errFor map[string]error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{errFor: map[string]error{}}
}

func (h *recordingHandler) Handle(_ context.Context, task model.SyncTask) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, task)
	return h.errFor[task.StudentID]
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

func task(student string) model.SyncTask {
	return model.SyncTask{StudentID: student, Platform: model.Codeforces, Username: "tourist"}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from a channel", t, func() {
		jobs := make(chan queue.Job, 10)
		handler := newRecordingHandler()
		tracker := dedupe.NewInMemoryDeduper()
		w := worker.NewInMemoryWorker(jobs, handler, worker.WithName("test-worker"), worker.WithTracker(tracker))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job is queued", func() {
			var wg sync.WaitGroup
			wg.Add(1)
			tracker.SeenAndRecord(ctx, task("s1").ID())
			jobs <- queue.Job{Task: task("s1"), Done: wg.Done}
			wg.Wait()

			convey.Convey("Then it is handled, finished and released", func() {
				convey.So(handler.count(), convey.ShouldEqual, 1)
				convey.So(tracker.Size(), convey.ShouldEqual, int64(0))
			})
		})

		convey.Convey("When the handler fails", func() {
			handler.errFor["s2"] = errors.New("store down")
			var wg sync.WaitGroup
			wg.Add(2)
			jobs <- queue.Job{Task: task("s2"), Done: wg.Done}
			jobs <- queue.Job{Task: task("s3"), Done: wg.Done}
			wg.Wait()

			convey.Convey("Then the worker keeps going", func() {
				convey.So(handler.count(), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.Convey("Then it stops gracefully and twice is fine", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker whose context is cancelled", t, func() {
		w := worker.NewInMemoryWorker(make(chan queue.Job), newRecordingHandler())
		ctx, cancel := context.WithCancel(context.Background())
		go w.Run(ctx)
		cancel()

		convey.Convey("Then Run returns", func() {
			select {
			case <-w.Done():
				convey.So(true, convey.ShouldBeTrue)
			case <-time.After(time.Second):
				convey.So("worker still running", convey.ShouldBeEmpty)
			}
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool over an in-memory queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		handler := newRecordingHandler()
		pool := worker.NewPool(3, q, handler)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		convey.So(pool.Size(), convey.ShouldEqual, 3)
		pool.Start(ctx)
		pool.Start(ctx)

		convey.Convey("When a batch is enqueued", func() {
			var batch sync.WaitGroup
			for _, s := range []string{"a", "b", "c", "d", "e"} {
				batch.Add(1)
				convey.So(q.Enqueue(ctx, queue.Job{Task: task(s), Done: batch.Done}), convey.ShouldBeTrue)
			}
			batch.Wait()

			convey.Convey("Then every task is handled once", func() {
				convey.So(handler.count(), convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When shutting down with queued jobs", func() {
			for _, s := range []string{"x", "y"} {
				q.Enqueue(ctx, queue.Job{Task: task(s)})
			}
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.Convey("Then the queue is drained before workers exit", func() {
				convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(handler.count(), convey.ShouldEqual, 2)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool created with a non-positive size", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), worker.HandlerFunc(func(context.Context, model.SyncTask) error { return nil }))

		convey.Convey("Then it defaults to a multiple of the CPU count", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}

func TestWorkerPoolConcurrencyBound(t *testing.T) {
	convey.Convey("Given a pool of three workers whose handler blocks on a gate", t, func() {
		const size = 3
		var active, peak atomic.Int64
		gate := make(chan struct{})
		handler := worker.HandlerFunc(func(context.Context, model.SyncTask) error {
			n := active.Add(1)
			defer active.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-gate
			return nil
		})
		q := queue.NewInMemoryQueue(queue.WithCapacity(32))
		pool := worker.NewPool(size, q, handler)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When more jobs than workers are queued", func() {
			var batch sync.WaitGroup
			for i := 0; i < 10; i++ {
				batch.Add(1)
				convey.So(q.Enqueue(ctx, queue.Job{Task: task(string(rune('a' + i))), Done: batch.Done}), convey.ShouldBeTrue)
			}

			deadline := time.Now().Add(time.Second)
			for active.Load() < size && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			time.Sleep(50 * time.Millisecond)
			held := active.Load()
			close(gate)
			batch.Wait()

			convey.Convey("Then exactly the pool size runs at once and the rest wait", func() {
				convey.So(held, convey.ShouldEqual, int64(size))
				convey.So(peak.Load(), convey.ShouldEqual, int64(size))
				convey.So(q.Len(ctx), convey.ShouldEqual, 0)
			})
		})
	})
}
