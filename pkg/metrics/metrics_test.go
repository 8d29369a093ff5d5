package metrics

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "fixturecast")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("client"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.cacheMisses.Inc()

			Convey("Then metric names and labels carry the options", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				found := false
				for _, f := range families {
					if f.GetName() == "test_client_cache_misses_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
			})
		})

		Convey("When empty option values are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "fixturecast")
				So(len(manager.histogramBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording upstream activity", func() {
			before := testutil.ToFloat64(globalManager.upstreamRequests.WithLabelValues("fixtures", "ok"))
			RecordUpstreamRequest("fixtures", "ok", 12)
			RecordUpstreamRetry("fixtures")
			RecordFallback("stale")

			Convey("Then the counters move", func() {
				So(testutil.ToFloat64(globalManager.upstreamRequests.WithLabelValues("fixtures", "ok")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.upstreamRetries.WithLabelValues("fixtures")), ShouldBeGreaterThanOrEqualTo, 1)
				So(testutil.ToFloat64(globalManager.upstreamFallbacks.WithLabelValues("stale")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When the breaker changes state", func() {
			UpdateBreakerState(BreakerOpen)
			RecordBreakerTransition("closed", "open")

			Convey("Then the gauge reflects it", func() {
				So(testutil.ToFloat64(globalManager.breakerState), ShouldEqual, BreakerOpen)
				So(testutil.ToFloat64(globalManager.breakerTransitions.WithLabelValues("closed", "open")), ShouldBeGreaterThanOrEqualTo, 1)
			})
			UpdateBreakerState(BreakerClosed)
		})

		Convey("When recording cache activity", func() {
			RecordCacheHit("memory")
			RecordCacheMiss()
			RecordCacheEviction("expired", 3)
			UpdateCacheEntries(42)

			Convey("Then the cache metrics are set", func() {
				So(testutil.ToFloat64(globalManager.cacheEntries), ShouldEqual, 42)
				So(testutil.ToFloat64(globalManager.cacheEvictions.WithLabelValues("expired")), ShouldBeGreaterThanOrEqualTo, 3)
			})
		})

		Convey("When recording ingestion events", func() {
			before := testutil.ToFloat64(globalManager.ingestionRecords.WithLabelValues("fixtures"))
			RecordIngestionEvent("fixtures", "completed", 120, 10)
			RecordIngestionEvent("fixtures", "failed", 30, 0)
			UpdateIngestionOpen(2)

			Convey("Then records are only added when positive", func() {
				So(testutil.ToFloat64(globalManager.ingestionRecords.WithLabelValues("fixtures")), ShouldEqual, before+10)
				So(testutil.ToFloat64(globalManager.ingestionOpen), ShouldEqual, 2)
			})
		})

		Convey("When recording the remaining families", func() {
			So(func() {
				RecordPrediction("model", 20)
				RecordPrediction("rules", 2)
				RecordModelError()
				RecordFeatureError()
				RecordHTTPRequest("/healthz", "GET", "200")
				RecordHTTPRequestDuration("/healthz", "GET", "200", 1.5)
				UpdateQueueSize(3)
				UpdateQueueCapacity(100)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerCount(4)
				UpdateWorkerActiveCount(1)
				RecordWorkerProcessingLatency(80)
				RecordWorkerError()
				RecordErrorByComponent("upstream", "rate_limited")
			}, ShouldNotPanic)
		})
	})
}

func TestMetricsRegistry(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		RecordCacheMiss()
		families, err := GetRegistry().Gather()

		Convey("Then it exposes only fixturecast metrics", func() {
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
			for _, f := range families {
				So(strings.HasPrefix(f.GetName(), "fixturecast_"), ShouldBeTrue)
			}
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent metric updates", t, func() {
		before := testutil.ToFloat64(globalManager.queueEnqueueRate)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					RecordQueueEnqueue()
					RecordCacheHit("redis")
				}
			}()
		}
		wg.Wait()

		Convey("Then no increment is lost", func() {
			So(testutil.ToFloat64(globalManager.queueEnqueueRate), ShouldEqual, before+1000)
		})
	})
}
