package service_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/riskwatch/internal/app"
	"github.com/okian/riskwatch/internal/adapters/source"
	"github.com/okian/riskwatch/internal/config"
	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/internal/domain/scoring"
	"github.com/okian/riskwatch/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

var anchor = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func pushConfig() *config.Config {
	cfg := config.New()
	cfg.Source = config.SourcePush
	cfg.FetchLimit = 4
	cfg.RawFields = []string{"HR", "Temp"}
	return cfg
}

// waitFor polls the view until cond holds or a deadline passes.
func waitFor(svc *service.Service, cond func(model.View) bool) model.View {
	ctx := context.Background()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v := svc.Current(ctx); cond(v) {
			return v
		}
		time.Sleep(2 * time.Millisecond)
	}
	return svc.Current(ctx)
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New(pushConfig())

		v := svc.Current(context.Background())
		So(v.Empty(), ShouldBeTrue)
		So(svc.GetStats()["started"], ShouldEqual, false)
		So(svc.Stop(context.Background()), ShouldBeNil)

		_, err := svc.Push(context.Background(), model.Batch{})
		So(errors.Is(err, service.ErrPushDisabled), ShouldBeTrue)
		So(errors.Is(err, source.ErrNotSubscribed), ShouldBeTrue)
	})

	Convey("Given a started push service", t, func() {
		ctx := context.Background()
		svc := service.New(pushConfig(), service.WithClock(func() time.Time { return anchor }))
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("Then it reports connected and started", func() {
			v := waitFor(svc, func(v model.View) bool { return v.Connected })
			So(v.Connected, ShouldBeTrue)

			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["source"], ShouldEqual, config.SourcePush)
			So(stats["ingestEnabled"], ShouldEqual, true)
		})

		Convey("When it is stopped", func() {
			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then pushes are rejected", func() {
				_, err := svc.Push(ctx, model.Batch{ID: "late"})
				So(errors.Is(err, source.ErrNotSubscribed), ShouldBeTrue)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})

			Convey("Then it can be started again", func() {
				So(svc.Start(ctx), ShouldBeNil)
				_, err := svc.Push(ctx, model.Batch{ID: "again"})
				So(err, ShouldBeNil)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})

		_ = svc.Stop(ctx)
	})
}

func TestService_PushPipeline(t *testing.T) {
	Convey("Given a started push service", t, func() {
		ctx := context.Background()
		svc := service.New(pushConfig(), service.WithClock(func() time.Time { return anchor }))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When a batch is pushed", func() {
			b, err := svc.Push(ctx, model.Batch{
				ID: "b1",
				Documents: []model.Document{
					{"IR": []any{2600.0, 2900.0}},
					{"IR": []any{3200.0}, "HR": []any{71.0, 73.0}},
				},
			})
			So(err, ShouldBeNil)
			So(b.ID, ShouldEqual, "b1")

			v := waitFor(svc, func(v model.View) bool { return v.BatchID == "b1" })

			Convey("Then the view holds the flattened series", func() {
				So(v.Series, ShouldHaveLength, 3)
				So(v.Headline.Score, ShouldEqual, 1.0)
				So(v.Headline.Risk, ShouldEqual, scoring.RiskHigh)
				So(v.Headline.Timestamp, ShouldEqual, anchor)
				So(v.Raw["HR"], ShouldResemble, model.RawValue{Value: 73, Present: true})
				So(v.Raw["Temp"].Present, ShouldBeFalse)
			})

			Convey("Then a second push of the same id is a duplicate", func() {
				_, err := svc.Push(ctx, model.Batch{ID: "b1"})
				So(errors.Is(err, source.ErrDuplicateBatch), ShouldBeTrue)
				So(svc.GetStats()["dedupeSize"], ShouldEqual, int64(1))
			})

			Convey("Then an empty batch keeps the published content", func() {
				_, err := svc.Push(ctx, model.Batch{ID: "b2"})
				So(err, ShouldBeNil)

				v := waitFor(svc, func(v model.View) bool { return v.Batches == 2 })
				So(v.BatchID, ShouldEqual, "b1")
				So(v.Series, ShouldHaveLength, 3)
			})
		})

		Convey("When a batch exceeds the fetch limit", func() {
			docs := make([]model.Document, 5)
			_, err := svc.Push(ctx, model.Batch{ID: "big", Documents: docs})

			So(errors.Is(err, source.ErrBatchTooLarge), ShouldBeTrue)
		})
	})
}

// gatedClock returns anchor, except that once armed the next call blocks
// until released.
type gatedClock struct {
	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func newGatedClock() *gatedClock {
	return &gatedClock{entered: make(chan struct{}), release: make(chan struct{})}
}

func (c *gatedClock) arm() {
	c.mu.Lock()
	c.armed = true
	c.mu.Unlock()
}

func (c *gatedClock) now() time.Time {
	c.mu.Lock()
	block := c.armed
	c.armed = false
	c.mu.Unlock()
	if block {
		close(c.entered)
		<-c.release
	}
	return anchor
}

func TestService_StopWhileDraining(t *testing.T) {
	Convey("Given a push service whose worker is mid-batch", t, func() {
		ctx := context.Background()
		clock := newGatedClock()
		svc := service.New(pushConfig(), service.WithClock(clock.now))
		So(svc.Start(ctx), ShouldBeNil)
		waitFor(svc, func(v model.View) bool { return v.Connected })

		clock.arm()
		_, err := svc.Push(ctx, model.Batch{ID: "slow", Documents: []model.Document{{"IR": []any{2900.0}}}})
		So(err, ShouldBeNil)
		<-clock.entered

		async := func(f func()) <-chan struct{} {
			done := make(chan struct{})
			go func() {
				f()
				close(done)
			}()
			return done
		}

		Convey("When the service is stopped", func() {
			var stopErr error
			stopped := async(func() { stopErr = svc.Stop(ctx) })
			time.Sleep(20 * time.Millisecond)

			Convey("Then readers are served while the worker drains", func() {
				read := async(func() {
					_ = svc.Current(ctx)
					_ = svc.GetStats()
				})
				select {
				case <-read:
				case <-time.After(time.Second):
					t.Fatal("readers blocked by Stop")
				}

				select {
				case <-stopped:
					t.Fatal("Stop returned before the worker drained")
				default:
				}

				close(clock.release)
				<-stopped
				So(stopErr, ShouldBeNil)
				So(svc.Current(ctx).BatchID, ShouldEqual, "slow")
			})
		})
	})
}

const fixtureYAML = `
batches:
  - id: f1
    documents:
      - IR: [2750, 2900]
        HR: [68]
`

func TestService_FixtureSource(t *testing.T) {
	Convey("Given a service replaying a fixture", t, func() {
		path := filepath.Join(t.TempDir(), "fixture.yaml")
		So(os.WriteFile(path, []byte(fixtureYAML), 0o600), ShouldBeNil)

		cfg := config.New()
		cfg.Source = config.SourceFixture
		cfg.FixturePath = path
		cfg.FixtureIntervalMS = 5
		svc := service.New(cfg)

		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		v := waitFor(svc, func(v model.View) bool { return v.Headline != nil })

		So(v.Connected, ShouldBeTrue)
		So(v.Series, ShouldHaveLength, 2)
		So(v.Headline.Score, ShouldAlmostEqual, 0.5)

		_, err := svc.Push(ctx, model.Batch{})
		So(errors.Is(err, service.ErrPushDisabled), ShouldBeTrue)
	})

	Convey("Given a fixture path that does not exist", t, func() {
		cfg := config.New()
		cfg.Source = config.SourceFixture
		cfg.FixturePath = filepath.Join(t.TempDir(), "missing.yaml")
		svc := service.New(cfg)

		err := svc.Start(context.Background())
		So(errors.Is(err, service.ErrStart), ShouldBeTrue)
	})

	Convey("Given an unknown source kind", t, func() {
		cfg := config.New()
		cfg.Source = "carrier-pigeon"
		svc := service.New(cfg)

		err := svc.Start(context.Background())
		So(errors.Is(err, service.ErrUnknownSource), ShouldBeTrue)
	})
}

// stubDynamo serves one fixed scan result.
type stubDynamo struct {
	dynamodbiface.DynamoDBAPI

	mu    sync.Mutex
	items []map[string]any
	scans int
}

func (s *stubDynamo) ScanWithContext(_ aws.Context, _ *dynamodb.ScanInput, _ ...request.Option) (*dynamodb.ScanOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans++

	out := &dynamodb.ScanOutput{}
	for _, item := range s.items {
		av, err := dynamodbattribute.MarshalMap(item)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, av)
	}
	return out, nil
}

func TestService_DynamoSource(t *testing.T) {
	Convey("Given a service polling a DynamoDB table", t, func() {
		client := &stubDynamo{items: []map[string]any{
			{"IR": []any{3000.0}, "SPO2": []any{97.0}},
		}}
		cfg := config.New()
		cfg.PollIntervalMS = 5
		svc := service.New(cfg, service.WithDynamoClient(client))

		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		v := waitFor(svc, func(v model.View) bool { return v.Headline != nil })

		So(v.Connected, ShouldBeTrue)
		So(v.Series, ShouldHaveLength, 1)
		So(v.Raw["SPO2"], ShouldResemble, model.RawValue{Value: 97, Present: true})
		So(svc.GetStats()["collection"], ShouldEqual, "SensorData")
	})
}
