package worker

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/riskwatch/internal/adapters/mq/queue"
	"github.com/okian/riskwatch/internal/adapters/repository"
	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/internal/domain/scoring"
	"github.com/okian/riskwatch/internal/domain/series"
	logging "github.com/okian/riskwatch/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logging.Init(logging.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

var anchor = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestWorker(q Queue, store Publisher) *InMemoryWorker {
	f := series.New(series.Config{
		ScoredChannel: "IR",
		Interval:      200 * time.Millisecond,
		MaxPoints:     600,
		Range:         scoring.Range{Min: 2600, Max: 3200},
	})
	return NewInMemoryWorker(q, f, store,
		WithName("test-worker"),
		WithRawFields([]string{"HR", "Temp"}),
		WithRecentEvents(2),
		WithClock(func() time.Time { return anchor }),
	)
}

func sensorBatch() model.Batch {
	return model.Batch{
		ID: "b1",
		Documents: []model.Document{
			{"IR": []any{2600.0, 2900.0}, "HR": []any{70.0}},
			{"IR": []any{"3200"}, "HR": []any{72.0, 74.0}},
		},
	}
}

func TestWorker_ApplyBatch(t *testing.T) {
	convey.Convey("Given a worker publishing to a view store", t, func() {
		ctx := context.Background()
		store := repository.NewViewStore()
		w := newTestWorker(nil, store)

		convey.Convey("When a batch with samples is applied", func() {
			err := w.processEvent(ctx, model.BatchEvent(sensorBatch()))
			v := store.Current(ctx)

			convey.Convey("Then the series is published newest last", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(v.Connected, convey.ShouldBeTrue)
				convey.So(v.Series, convey.ShouldHaveLength, 3)
				convey.So(v.Series[0].Timestamp, convey.ShouldEqual, anchor.Add(-600*time.Millisecond))
				convey.So(v.Series[1].Timestamp, convey.ShouldEqual, anchor.Add(-400*time.Millisecond))
				convey.So(v.Series[2].Timestamp, convey.ShouldEqual, anchor)
				convey.So(v.Series[1].Score, convey.ShouldAlmostEqual, 0.5)
			})

			convey.Convey("Then the headline is the newest point", func() {
				convey.So(v.Headline, convey.ShouldNotBeNil)
				convey.So(v.Headline.Score, convey.ShouldEqual, 1.0)
				convey.So(v.Headline.Risk, convey.ShouldEqual, scoring.RiskHigh)
				convey.So(v.UpdatedAt, convey.ShouldEqual, anchor)
			})

			convey.Convey("Then the event table holds the newest rows first", func() {
				convey.So(v.Recent, convey.ShouldHaveLength, 2)
				convey.So(v.Recent[0].Score, convey.ShouldEqual, 1.0)
				convey.So(v.Recent[1].Risk, convey.ShouldEqual, scoring.RiskModerate)
			})

			convey.Convey("Then raw values come from the last document", func() {
				convey.So(v.Raw["HR"], convey.ShouldResemble, model.RawValue{Value: 74, Present: true})
				convey.So(v.Raw["Temp"].Present, convey.ShouldBeFalse)
				convey.So(v.RawFields, convey.ShouldResemble, []string{"HR", "Temp"})
				convey.So(v.Documents, convey.ShouldEqual, 2)
				convey.So(v.BatchID, convey.ShouldEqual, "b1")
			})
		})

		convey.Convey("When an empty batch follows a published one", func() {
			_ = w.processEvent(ctx, model.BatchEvent(sensorBatch()))
			_ = w.processEvent(ctx, model.ConnectionEvent(false))
			_ = w.processEvent(ctx, model.BatchEvent(model.Batch{ID: "empty"}))
			v := store.Current(ctx)

			convey.Convey("Then the view is connected and keeps its content", func() {
				convey.So(v.Connected, convey.ShouldBeTrue)
				convey.So(v.BatchID, convey.ShouldEqual, "b1")
				convey.So(v.Series, convey.ShouldHaveLength, 3)
				convey.So(v.Batches, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When a batch has no scored samples", func() {
			_ = w.processEvent(ctx, model.BatchEvent(model.Batch{
				ID:        "no-ir",
				Documents: []model.Document{{"HR": []any{70.0}}, {"IR": []any{}}},
			}))
			v := store.Current(ctx)

			convey.Convey("Then nothing is shown yet but the view is connected", func() {
				convey.So(v.Empty(), convey.ShouldBeTrue)
				convey.So(v.Connected, convey.ShouldBeTrue)
				convey.So(v.Raw, convey.ShouldBeNil)
			})
		})
	})
}

func TestWorker_Connectivity(t *testing.T) {
	convey.Convey("Given a worker with a published view", t, func() {
		ctx := context.Background()
		store := repository.NewViewStore()
		w := newTestWorker(nil, store)
		_ = w.processEvent(ctx, model.BatchEvent(sensorBatch()))

		convey.Convey("When the source reports a disconnect", func() {
			_ = w.processEvent(ctx, model.ConnectionEvent(false))

			convey.So(store.Current(ctx).Connected, convey.ShouldBeFalse)
			convey.So(store.Current(ctx).Headline, convey.ShouldNotBeNil)
		})

		convey.Convey("When the subscription fails", func() {
			_ = w.processEvent(ctx, model.FatalEvent(errors.New("permission denied")))
			v := store.Current(ctx)

			convey.So(v.Connected, convey.ShouldBeFalse)
			convey.So(v.LastError, convey.ShouldEqual, "permission denied")
		})

		convey.Convey("When an event has an unknown kind", func() {
			err := w.processEvent(ctx, model.Event{})

			convey.So(errors.Is(err, ErrUnknownEvent), convey.ShouldBeTrue)
			convey.So(store.Current(ctx).BatchID, convey.ShouldEqual, "b1")
		})
	})
}

func TestWorker_Run(t *testing.T) {
	convey.Convey("Given a running worker fed by a queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		store := repository.NewViewStore()
		w := newTestWorker(q, store)
		go w.Run(ctx)

		q.Enqueue(ctx, model.ConnectionEvent(true))
		q.Enqueue(ctx, model.BatchEvent(sensorBatch()))

		convey.Convey("When the queue is closed", func() {
			_ = q.Close()

			select {
			case <-w.Done():
			case <-time.After(2 * time.Second):
				t.Fatal("worker did not stop after the queue closed")
			}

			convey.Convey("Then every queued event was applied", func() {
				v := store.Current(ctx)
				convey.So(v.BatchID, convey.ShouldEqual, "b1")
				convey.So(v.Connected, convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a running worker", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue()
		w := newTestWorker(q, repository.NewViewStore())
		go w.Run(ctx)

		convey.Convey("When it is shut down twice", func() {
			first := w.Shutdown(ctx)
			second := w.Shutdown(ctx)

			convey.So(first, convey.ShouldBeNil)
			convey.So(second, convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a worker whose loop never started", t, func() {
		w := newTestWorker(queue.NewInMemoryQueue(), repository.NewViewStore())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		convey.So(w.Shutdown(ctx), convey.ShouldNotBeNil)
	})
}
