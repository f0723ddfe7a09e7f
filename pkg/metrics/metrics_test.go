package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithRegistry(registry))

			Convey("Then collectors are registered under the codeboard namespace", func() {
				manager.syncAttempts.WithLabelValues("leetcode", OutcomeSuccess).Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "codeboard_sync_attempts_total")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithName("ns", "sub"),
				WithLatencyBuckets([]float64{0.1, 0.5, 1.0}),
				WithRefreshInterval(10*time.Second),
				WithConstLabels(map[string]string{"env": "test"}),
				WithRegistry(registry),
			)

			Convey("Then names and labels follow the options", func() {
				manager.staleTasks.Inc()
				So(testutil.ToFloat64(manager.staleTasks), ShouldEqual, 1.0)
				count, err := testutil.GatherAndCount(registry, "ns_sub_stale_tasks_total")
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 1)
				So(manager.RefreshInterval(), ShouldEqual, 10*time.Second)
			})
		})

		Convey("When metrics are disabled", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(Disabled(), WithRegistry(registry))

			Convey("Then nothing is exposed on the given registry", func() {
				manager.rankingRuns.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(families, ShouldBeEmpty)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording sync metrics", func() {
			before := testutil.ToFloat64(globalManager.syncAttempts.WithLabelValues("codeforces", OutcomeTransient))
			RecordSyncAttempt("codeforces", OutcomeTransient)
			RecordFetchLatency("codeforces", 12.5)
			RecordSuspension("codeforces")
			RecordReactivation("codeforces")
			RecordNotification("suspended")
			RecordStaleTask()

			Convey("Then the attempt counter advances", func() {
				after := testutil.ToFloat64(globalManager.syncAttempts.WithLabelValues("codeforces", OutcomeTransient))
				So(after-before, ShouldEqual, 1.0)
			})
		})

		Convey("When recording queue and worker metrics", func() {
			UpdateQueueCapacity(100)
			UpdateQueueSize(25)
			UpdateQueueUtilization(0.25)
			UpdateWorkerCount(4)
			UpdateWorkerActiveCount(2)
			UpdateInFlightTasks(3)

			Convey("Then gauges hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 25.0)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4.0)
				So(testutil.ToFloat64(globalManager.inFlightTasks), ShouldEqual, 3.0)
			})
		})

		Convey("When recording a ranking run", func() {
			RecordRankingRun(40*time.Millisecond, 12)

			Convey("Then the ranked students gauge is set", func() {
				So(testutil.ToFloat64(globalManager.rankedStudents), ShouldEqual, 12.0)
				So(testutil.ToFloat64(globalManager.rankingLastUnix), ShouldBeGreaterThan, 0.0)
			})
		})

		Convey("When recording the remaining helpers", func() {
			So(func() {
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordWorkerProcessingLatency(3)
				RecordWorkerError()
				RecordTaskDuplicate()
				RecordRankingError()
				RecordRankingCoalesced()
				RecordSchedulerRun("sync", "ok")
				RecordStoreLatency("snapshot", 1.5)
				UpdateStoredStudents(10)
				UpdateStoredLinks("accepted", 4)
				RecordCacheLookup("hit")
				RecordHTTPRequest("/leaderboard", "GET", "200")
				RecordHTTPRequestDuration("/leaderboard", "GET", "200", 2)
				RecordErrorByComponent("orchestrator", "store")
			}, ShouldNotPanic)
		})
	})
}

func TestSince(t *testing.T) {
	Convey("Given a start time in the past", t, func() {
		start := time.Now().Add(-5 * time.Millisecond)

		Convey("Then Since reports at least the elapsed milliseconds", func() {
			So(Since(start), ShouldBeGreaterThanOrEqualTo, 5.0)
		})
	})
}

func TestUpstreamRequests(t *testing.T) {
	Convey("Given per-request upstream observations", t, func() {
		RecordUpstreamRequest("hackerrank", StatusClass(503), 40)
		RecordUpstreamRequest("hackerrank", StatusClass(0), 5)

		Convey("Then they land on their own histogram, not the per-attempt one", func() {
			So(testutil.CollectAndCount(globalManager.upstreamCalls, "codeboard_sync_upstream_request_latency_milliseconds"), ShouldBeGreaterThanOrEqualTo, 2)
		})

		Convey("Then status codes are bucketed by class", func() {
			So(StatusClass(200), ShouldEqual, "2xx")
			So(StatusClass(404), ShouldEqual, "4xx")
			So(StatusClass(503), ShouldEqual, "5xx")
			So(StatusClass(0), ShouldEqual, "error")
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the package registry", t, func() {
		Convey("Then it exposes the global collectors", func() {
			RecordRankingCoalesced()
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}
