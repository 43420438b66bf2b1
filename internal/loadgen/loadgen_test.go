package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/follicle/internal/adapters/http/api"
	service "github.com/okian/follicle/internal/app"
	"github.com/okian/follicle/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		panic(err)
	}
}

func newTarget() (*httptest.Server, *service.Service) {
	svc := service.New()
	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(context.Background(), mux)
	return httptest.NewServer(mux), svc
}

func TestRandomAnswers(t *testing.T) {
	Convey("Given generated answers", t, func() {
		Convey("Then every questionnaire is complete", func() {
			for i := 0; i < 200; i++ {
				So(randomAnswers().Validate(), ShouldBeNil)
			}
		})
	})
}

func TestGenerateSubmissions(t *testing.T) {
	Convey("Given two profiles and a replay every third submission", t, func() {
		subs := generateSubmissions(7, 3, []string{"a", "b"})

		Convey("Then replays copy the previous submission", func() {
			So(len(subs), ShouldEqual, 7)
			for i, s := range subs {
				So(s.Index, ShouldEqual, i)
				if i > 0 && i%3 == 0 {
					So(s.Replay, ShouldBeTrue)
					So(s.Key, ShouldEqual, subs[i-1].Key)
					So(s.ProfileID, ShouldEqual, subs[i-1].ProfileID)
				} else {
					So(s.Replay, ShouldBeFalse)
				}
			}
			So(subs[1].ProfileID, ShouldEqual, "b")
			So(subs[2].Key, ShouldNotEqual, subs[1].Key)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		srv, _ := newTarget()
		defer srv.Close()
		out := filepath.Join(t.TempDir(), "subs", "out.json")

		cfg := &Config{
			BaseURL:        srv.URL,
			Profiles:       3,
			Assessments:    40,
			Workers:        4,
			DuplicateEvery: 5,
			Timeout:        5 * time.Second,
			OutputFile:     out,
		}

		Convey("When a load run completes", func() {
			stats, err := Run(context.Background(), cfg)

			Convey("Then every result verifies and replays are rejected", func() {
				So(err, ShouldBeNil)
				So(stats.Profiles, ShouldEqual, 3)
				So(stats.Submitted, ShouldEqual, 40)
				So(stats.Duplicate, ShouldEqual, 7)
				So(stats.Created, ShouldEqual, 33)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Mismatched, ShouldEqual, 0)

				b, err := os.ReadFile(out)
				So(err, ShouldBeNil)
				var subs []Submission
				So(json.Unmarshal(b, &subs), ShouldBeNil)
				So(len(subs), ShouldEqual, 40)
			})
		})
	})

	Convey("Given a service that is down", t, func() {
		srv, _ := newTarget()
		srv.Close()

		Convey("Then the run fails the health check", func() {
			_, err := Run(context.Background(), &Config{BaseURL: srv.URL, Profiles: 1, Assessments: 1, Timeout: time.Second})
			So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
		})
	})

	Convey("Given non-positive sizes", t, func() {
		Convey("Then the options are rejected", func() {
			_, err := Run(context.Background(), &Config{BaseURL: "http://localhost", Assessments: 1})
			So(errors.Is(err, ErrInvalidOptions), ShouldBeTrue)
		})
	})
}
