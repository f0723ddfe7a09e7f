package ranking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/codeboard/internal/domain/grading"
	"github.com/okian/codeboard/internal/domain/model"
	"github.com/okian/codeboard/internal/domain/ranking"
	"github.com/okian/codeboard/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeStore struct {
	mu        sync.Mutex
	snaps     []model.StudentSnapshot
	saved     []model.Standing
	saves     int
	failRead  error
	failWrite error
}

func (f *fakeStore) Snapshot(context.Context) ([]model.StudentSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRead != nil {
		return nil, f.failRead
	}
	out := make([]model.StudentSnapshot, len(f.snaps))
	copy(out, f.snaps)
	return out, nil
}

func (f *fakeStore) SaveRanking(_ context.Context, s []model.Standing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite != nil {
		return f.failWrite
	}
	f.saved = s
	f.saves++
	return nil
}

type memCache struct {
	r           *types.Ranking
	failStore   error
	invalidated int
}

func (c *memCache) Load(context.Context) (*types.Ranking, error) { return c.r, nil }
func (c *memCache) Store(_ context.Context, r types.Ranking) error {
	if c.failStore != nil {
		return c.failStore
	}
	c.r = &r
	return nil
}
func (c *memCache) Invalidate(context.Context) error {
	c.r = nil
	c.invalidated++
	return nil
}

func snapshot(id string, values map[model.Metric]int64, links map[model.Platform]model.LinkStatus) model.StudentSnapshot {
	rec := model.NewPerformanceRecord(id)
	for m, v := range values {
		rec.Values[m] = v
	}
	return model.StudentSnapshot{
		Student: model.Student{ID: id, Name: "student " + id, Department: "cse", Batch: "2026"},
		Record:  rec,
		Links:   links,
	}
}

func accepted(ps ...model.Platform) map[model.Platform]model.LinkStatus {
	out := make(map[model.Platform]model.LinkStatus, len(ps))
	for _, p := range ps {
		out[p] = model.StatusAccepted
	}
	return out
}

func TestCompute(t *testing.T) {
	Convey("Given students with tied and distinct scores", t, func() {
		rule := grading.NewRule(map[model.Metric]int64{model.EasyLC: 1, model.ProblemsCF: 1})
		snaps := []model.StudentSnapshot{
			snapshot("c", map[model.Metric]int64{model.EasyLC: 5}, accepted(model.LeetCode)),
			snapshot("a", map[model.Metric]int64{model.EasyLC: 5}, accepted(model.LeetCode)),
			snapshot("b", map[model.Metric]int64{model.ProblemsCF: 9}, accepted(model.Codeforces)),
			snapshot("d", nil, nil),
		}

		Convey("When computing the ranking", func() {
			entries, allZero := ranking.Compute(rule, snaps)

			Convey("Then order is score desc, id asc, with gapless ranks", func() {
				So(allZero, ShouldBeFalse)
				ids := []string{}
				for i, e := range entries {
					ids = append(ids, e.StudentID)
					So(e.Rank, ShouldEqual, i+1)
				}
				So(ids, ShouldResemble, []string{"b", "a", "c", "d"})
			})

			Convey("Then re-running on unchanged data is identical", func() {
				again, _ := ranking.Compute(rule, snaps)
				So(again, ShouldResemble, entries)
			})

			Convey("Then the enriched view carries totals and the breakdown", func() {
				b := entries[0]
				So(b.TotalProblems, ShouldEqual, int64(9))
				So(b.Platforms[model.Codeforces].Score, ShouldEqual, int64(9))
				So(b.Platforms[model.Codeforces].Status, ShouldEqual, model.StatusAccepted)
				So(b.Platforms[model.LeetCode].Status, ShouldEqual, model.StatusNone)
			})
		})
	})

	Convey("Given students whose scores are all zero", t, func() {
		snaps := []model.StudentSnapshot{
			snapshot("s3", map[model.Metric]int64{model.EasyLC: 50}, map[model.Platform]model.LinkStatus{model.LeetCode: model.StatusPending}),
			snapshot("s1", nil, nil),
			snapshot("s2", nil, nil),
		}

		Convey("Then the order is ascending student id", func() {
			entries, allZero := ranking.Compute(grading.NewRule(grading.DefaultPoints()), snaps)
			So(allZero, ShouldBeTrue)
			So(entries[0].StudentID, ShouldEqual, "s1")
			So(entries[1].StudentID, ShouldEqual, "s2")
			So(entries[2].StudentID, ShouldEqual, "s3")
			So(entries[2].Rank, ShouldEqual, 3)
		})
	})

	Convey("Given a record with values on a non-accepted platform", t, func() {
		statuses := []model.LinkStatus{model.StatusNone, model.StatusPending, model.StatusRejected, model.StatusSuspended}
		for _, st := range statuses {
			snaps := []model.StudentSnapshot{snapshot("x", map[model.Metric]int64{
				model.StarsHR: 4, model.BadgesHR: 2,
			}, map[model.Platform]model.LinkStatus{model.HackerRank: st})}

			entries, _ := ranking.Compute(grading.NewRule(grading.DefaultPoints()), snaps)

			Convey("Then the "+string(st)+" platform contributes nothing", func() {
				So(entries[0].Score, ShouldEqual, int64(0))
				So(entries[0].Platforms[model.HackerRank].Metrics[model.StarsHR], ShouldEqual, int64(0))
			})
		}
	})
}

func TestEngine_Recompute(t *testing.T) {
	Convey("Given student A with 10 easy problems and easy_lc=2", t, func() {
		ctx := context.Background()
		points := grading.NewMemoryPoints(map[model.Metric]int64{model.EasyLC: 2})
		store := &fakeStore{snaps: []model.StudentSnapshot{
			snapshot("A", map[model.Metric]int64{model.EasyLC: 10}, accepted(model.LeetCode)),
		}}
		engine := ranking.NewEngine(store, grading.NewEngine(points))

		Convey("When the LeetCode link is accepted", func() {
			r, err := engine.Recompute(ctx)
			So(err, ShouldBeNil)

			Convey("Then the contribution is 20 and written back", func() {
				So(r.Entries[0].Score, ShouldEqual, int64(20))
				So(store.saved, ShouldResemble, []model.Standing{{StudentID: "A", Score: 20, Rank: 1}})
			})
		})

		Convey("When the link goes back to pending with the same stored data", func() {
			store.snaps[0].Links[model.LeetCode] = model.StatusPending
			r, err := engine.Recompute(ctx)
			So(err, ShouldBeNil)

			Convey("Then the contribution drops to zero", func() {
				So(r.Entries[0].Score, ShouldEqual, int64(0))
				So(store.saved[0].Score, ShouldEqual, int64(0))
			})
		})
	})

	Convey("Given HackerRank students and a stars_hr change from 5 to 10", t, func() {
		ctx := context.Background()
		grader := grading.NewEngine(grading.NewMemoryPoints(grading.DefaultPoints()))
		So(grader.SetPoints(ctx, model.StarsHR, 5), ShouldBeNil)
		store := &fakeStore{snaps: []model.StudentSnapshot{
			snapshot("h1", map[model.Metric]int64{model.StarsHR: 3}, accepted(model.HackerRank)),
			snapshot("h2", map[model.Metric]int64{model.StarsHR: 0, model.BadgesHR: 1}, accepted(model.HackerRank)),
			snapshot("h3", map[model.Metric]int64{model.StarsHR: 7}, map[model.Platform]model.LinkStatus{model.HackerRank: model.StatusSuspended}),
			snapshot("l1", map[model.Metric]int64{model.EasyLC: 4}, accepted(model.LeetCode)),
		}}
		engine := ranking.NewEngine(store, grader)

		before, err := engine.Recompute(ctx)
		So(err, ShouldBeNil)
		So(grader.SetPoints(ctx, model.StarsHR, 10), ShouldBeNil)
		after, err := engine.Recompute(ctx)
		So(err, ShouldBeNil)

		Convey("Then only accepted students with stars gain score", func() {
			was := map[string]int64{}
			for _, e := range before.Entries {
				was[e.StudentID] = e.Score
			}
			for _, e := range after.Entries {
				switch e.StudentID {
				case "h1":
					So(e.Score, ShouldBeGreaterThan, was[e.StudentID])
				default:
					So(e.Score, ShouldEqual, was[e.StudentID])
				}
			}
		})
	})

	Convey("Given a store whose snapshot read fails", t, func() {
		store := &fakeStore{failRead: errors.New("db down")}
		engine := ranking.NewEngine(store, grading.NewEngine(grading.NewMemoryPoints(nil)))

		Convey("Then recompute fails without writing back", func() {
			_, err := engine.Recompute(context.Background())
			So(err, ShouldNotBeNil)
			So(store.saves, ShouldEqual, 0)
			_, ok := engine.Latest(context.Background())
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a store whose write-back fails", t, func() {
		store := &fakeStore{snaps: []model.StudentSnapshot{snapshot("a", nil, nil)}, failWrite: errors.New("tx aborted")}
		engine := ranking.NewEngine(store, grading.NewEngine(grading.NewMemoryPoints(nil)))

		Convey("Then the result is not published", func() {
			_, err := engine.Recompute(context.Background())
			So(err, ShouldNotBeNil)
			_, ok := engine.Latest(context.Background())
			So(ok, ShouldBeFalse)
		})
	})
}

func TestEngine_ReadPath(t *testing.T) {
	Convey("Given an engine with a cache and a fixed clock", t, func() {
		ctx := context.Background()
		now := time.Date(2026, 1, 5, 3, 30, 0, 0, time.UTC)
		store := &fakeStore{snaps: []model.StudentSnapshot{
			snapshot("a", map[model.Metric]int64{model.ReposGH: 3}, accepted(model.GitHub)),
			snapshot("b", map[model.Metric]int64{model.ReposGH: 1}, accepted(model.GitHub)),
		}}
		store.snaps[1].Student.Department = "ece"
		cache := &memCache{}
		grader := grading.NewEngine(grading.NewMemoryPoints(grading.DefaultPoints()))
		engine := ranking.NewEngine(store, grader, ranking.WithCache(cache), ranking.WithClock(func() time.Time { return now }))

		Convey("When nothing has been computed yet", func() {
			entries, err := engine.Get(ctx, types.Filter{})

			Convey("Then Get computes on demand and fills the cache", func() {
				So(err, ShouldBeNil)
				So(len(entries), ShouldEqual, 2)
				So(store.saves, ShouldEqual, 1)
				So(cache.r, ShouldNotBeNil)
				So(cache.r.ComputedAt, ShouldEqual, now)
			})
		})

		Convey("When filtering by department", func() {
			_, err := engine.Recompute(ctx)
			So(err, ShouldBeNil)
			entries, err := engine.Get(ctx, types.Filter{Department: "ece"})

			Convey("Then ranks stay global", func() {
				So(err, ShouldBeNil)
				So(len(entries), ShouldEqual, 1)
				So(entries[0].StudentID, ShouldEqual, "b")
				So(entries[0].Rank, ShouldEqual, 2)
			})
		})

		Convey("When another process computed the ranking", func() {
			cache.r = &types.Ranking{Entries: []types.Entry{{StudentID: "z", Rank: 1}}}
			fresh := ranking.NewEngine(store, grader, ranking.WithCache(cache))

			Convey("Then the cached copy is served", func() {
				e, err := fresh.Rank(ctx, "z")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 1)
				So(store.saves, ShouldEqual, 0)
			})
		})

		Convey("When another process publishes a newer ranking", func() {
			_, err := engine.Recompute(ctx)
			So(err, ShouldBeNil)
			cache.r = &types.Ranking{
				ComputedAt: now.Add(time.Minute),
				Entries:    []types.Entry{{StudentID: "b", Rank: 1, Score: 99}},
			}

			Convey("Then the newer cached copy wins over the local one", func() {
				e, err := engine.Rank(ctx, "b")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 1)
				So(e.Score, ShouldEqual, 99)
				So(store.saves, ShouldEqual, 1)
			})
		})

		Convey("When the cache holds an older ranking", func() {
			_, err := engine.Recompute(ctx)
			So(err, ShouldBeNil)
			cache.r = &types.Ranking{
				ComputedAt: now.Add(-time.Hour),
				Entries:    []types.Entry{{StudentID: "b", Rank: 1}},
			}

			Convey("Then the local copy is kept", func() {
				e, err := engine.Rank(ctx, "b")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 2)
			})
		})

		Convey("When the cache write fails over an older shared copy", func() {
			cache.r = &types.Ranking{
				ComputedAt: now.Add(-time.Hour),
				Entries:    []types.Entry{{StudentID: "b", Rank: 1}},
			}
			cache.failStore = errors.New("redis down")
			_, err := engine.Recompute(ctx)

			Convey("Then the stale shared copy is dropped", func() {
				So(err, ShouldBeNil)
				So(cache.invalidated, ShouldEqual, 1)
				So(cache.r, ShouldBeNil)
			})
		})

		Convey("When asking for an unknown student", func() {
			_, err := engine.Rank(ctx, "nobody")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestEngine_RequestCoalescing(t *testing.T) {
	Convey("Given a running engine loop", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		store := &fakeStore{snaps: []model.StudentSnapshot{snapshot("a", nil, nil)}}
		engine := ranking.NewEngine(store, grading.NewEngine(grading.NewMemoryPoints(nil)))

		Convey("When many requests arrive before the loop starts", func() {
			for i := 0; i < 10; i++ {
				engine.Request()
			}
			go engine.Run(ctx)

			Convey("Then they collapse into a single recompute", func() {
				deadline := time.Now().Add(2 * time.Second)
				for {
					store.mu.Lock()
					n := store.saves
					store.mu.Unlock()
					if n > 0 || time.Now().After(deadline) {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				time.Sleep(50 * time.Millisecond)
				store.mu.Lock()
				defer store.mu.Unlock()
				So(store.saves, ShouldEqual, 1)
			})
		})
	})
}
