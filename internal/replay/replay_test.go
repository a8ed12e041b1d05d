package replay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/riskwatch/internal/adapters/http/api"
	"github.com/okian/riskwatch/internal/adapters/source"
	service "github.com/okian/riskwatch/internal/app"
	"github.com/okian/riskwatch/internal/config"
	"github.com/okian/riskwatch/internal/domain/coerce"
	"github.com/okian/riskwatch/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
	m.Run()
}

func TestGenerator(t *testing.T) {
	Convey("Given two generators with the same seed", t, func() {
		a := NewGenerator(42, 5)
		b := NewGenerator(42, 5)

		Convey("Then they produce the same documents", func() {
			So(a.Document(), ShouldResemble, b.Document())
		})

		Convey("Then IR samples stay inside the walk bounds", func() {
			for i := 0; i < 50; i++ {
				for _, v := range coerce.Numbers(a.Document()["IR"]) {
					So(v, ShouldBeBetweenOrEqual, irCenter-irSpread, irCenter+irSpread)
				}
			}
		})

		Convey("Then every document carries the raw channels", func() {
			doc := a.Document()
			So(coerce.Numbers(doc["IR"]), ShouldHaveLength, 5)
			for _, field := range []string{"HR", "SPO2", "Temp", "AcX", "AcY", "AcZ", "VHR", "VSPO2"} {
				_, ok := coerce.Last(doc[field])
				So(ok, ShouldBeTrue)
			}
		})

		Convey("Then batches get distinct ids", func() {
			So(a.Batch(2).ID, ShouldNotEqual, a.Batch(2).ID)
			So(a.Batch(3).Documents, ShouldHaveLength, 3)
		})
	})
}

func TestConfigValidate(t *testing.T) {
	Convey("Given replay configs", t, func() {
		ok := Config{Batches: 1, DocsPerBatch: 1, Samples: 1}
		So(ok.Validate(), ShouldBeNil)

		for _, bad := range []Config{
			{Batches: 0, DocsPerBatch: 1, Samples: 1},
			{Batches: 1, DocsPerBatch: 0, Samples: 1},
			{Batches: 1, DocsPerBatch: 1, Samples: 0},
			{Batches: 1, DocsPerBatch: 1, Samples: 1, Interval: -time.Second},
		} {
			So(errors.Is(bad.Validate(), ErrInvalidConfig), ShouldBeTrue)
		}
	})
}

func TestWriteFixture(t *testing.T) {
	Convey("Given generated batches written as a fixture", t, func() {
		path := filepath.Join(t.TempDir(), "out", "fixture.yaml")
		batches := Generate(&Config{Batches: 3, DocsPerBatch: 2, Samples: 4, Seed: 7})
		So(WriteFixture(path, batches), ShouldBeNil)

		Convey("Then the fixture source can load it", func() {
			fx, err := source.LoadFixture(path)
			So(err, ShouldBeNil)
			So(fx.Len(), ShouldEqual, 3)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running push service", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.Source = config.SourcePush
		svc := service.New(cfg)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		server := api.NewServer(svc, svc)
		mux := http.NewServeMux()
		server.Register(ctx, mux)
		ts := httptest.NewServer(mux)
		defer ts.Close()

		Convey("When a replay run pushes batches", func() {
			stats, err := Run(ctx, &Config{
				BaseURL:      ts.URL,
				Batches:      4,
				DocsPerBatch: 3,
				Samples:      5,
				Timeout:      time.Second,
				Seed:         1,
			})

			Convey("Then every batch is accepted and applied", func() {
				So(err, ShouldBeNil)
				So(stats.BatchesGenerated, ShouldEqual, 4)
				So(stats.Accepted, ShouldEqual, 4)
				So(stats.Submitted(), ShouldEqual, 4)

				v := svc.Current(ctx)
				So(v.Series, ShouldHaveLength, 15)
				So(v.Connected, ShouldBeTrue)
			})
		})
	})

	Convey("Given a service that is not reachable", t, func() {
		ts := httptest.NewServer(http.NotFoundHandler())
		ts.Close()

		_, err := Run(context.Background(), &Config{
			BaseURL: ts.URL, Batches: 1, DocsPerBatch: 1, Samples: 1, Timeout: 100 * time.Millisecond,
		})

		So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
	})
}
