package metrics

import (
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

			Convey("Then every collector is registered under the default namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.batchesReceived.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				found := false
				for _, f := range families {
					if f.GetName() == "riskwatch_pipeline_batches_received_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then names follow the options", func() {
				manager.fatalErrors.Inc()
				n, err := testutil.GatherAndCount(registry, "test_unit_fatal_errors_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When registering twice on the same registry", func() {
			registry := prometheus.NewRegistry()
			_ = NewManager(WithPrometheusRegistry(registry))

			Convey("Then promauto panics on the duplicate", func() {
				So(func() { _ = NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording a batch and its series", func() {
			before := testutil.ToFloat64(globalManager.batchesReceived)
			RecordBatch(8)
			RecordSeries(24, 0.75)
			RecordPointRisk("high")

			Convey("Then counters and gauges move", func() {
				So(testutil.ToFloat64(globalManager.batchesReceived), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.seriesLength), ShouldEqual, 24)
				So(testutil.ToFloat64(globalManager.latestScore), ShouldEqual, 0.75)
				So(testutil.ToFloat64(globalManager.pointsByRisk.WithLabelValues("high")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When connectivity changes", func() {
			UpdateConnected(true)
			So(testutil.ToFloat64(globalManager.connected), ShouldEqual, 1)
			UpdateConnected(false)
			So(testutil.ToFloat64(globalManager.connected), ShouldEqual, 0)
		})

		Convey("When skipping zero documents", func() {
			before := testutil.ToFloat64(globalManager.documentsSkipped)
			RecordDocumentsSkipped(0)
			RecordDocumentsSkipped(2)
			So(testutil.ToFloat64(globalManager.documentsSkipped), ShouldEqual, before+2)
		})

		Convey("When recording queue and http metrics", func() {
			So(func() {
				UpdateQueueCapacity(10)
				UpdateQueueSize(3)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError("full")
				RecordHTTPRequest("view", "GET", "200")
				RecordHTTPRequestDuration("view", "GET", "200", 1.5)
				RecordHTTPError("view", "GET", "not_found")
				RecordSourceError("dynamo", "scan")
				RecordFatalError()
				RecordEmptyBatch()
				RecordDuplicateBatch()
				RecordFlattenLatency(0.2)
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 3)
		})

		Convey("Then the registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		before := testutil.ToFloat64(globalManager.queueEnqueued)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					RecordQueueEnqueue()
				}
			}()
		}
		wg.Wait()

		So(testutil.ToFloat64(globalManager.queueEnqueued), ShouldEqual, before+1000)
	})
}

func TestRuntimeCollectors(t *testing.T) {
	Convey("Given runtime collectors registered twice", t, func() {
		So(RegisterRuntimeCollectors, ShouldNotPanic)
		So(RegisterRuntimeCollectors, ShouldNotPanic)

		Convey("Then the registry reports Go runtime metrics", func() {
			n, err := testutil.GatherAndCount(GetRegistry(), "go_goroutines")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
		})
	})
}
