package signal_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/follicle/internal/adapters/signal"
	"github.com/okian/follicle/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func sampleRequest() signal.Request {
	age := 34
	return signal.NewRequest(model.AssessmentRequest{
		ProfileID: "p-1",
		Answers: model.Answers{
			HairFallSeverity: model.SeverityHigh,
			FamilyHistory:    model.FamilyHistoryYes,
			StressLevel:      model.StressModerate,
			DietQuality:      model.DietGood,
			SleepDuration:    model.Sleep7To9,
			ScalpItching:     true,
		},
		Images:   []model.ImageRef{{Label: model.LabelCrownTop, URL: "https://img.example/crown.jpg"}},
		UserInfo: &model.UserInfo{Age: &age, Gender: "female"},
	})
}

func TestAnalyze(t *testing.T) {
	convey.Convey("Given an analysis service", t, func() {
		var got map[string]any
		var gotPath string
		status := http.StatusOK
		body := `{"ml_predictions":{"hair_loss_stage":3,"pattern_type":"male_pattern","confidence":0.82},` +
			`"recommendations":["See a specialist"],"risk_factors":["Androgenetic alopecia"]}`

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
		defer srv.Close()

		c := signal.New(srv.URL+"/", signal.WithTimeout(time.Second))

		convey.Convey("When it answers with predictions", func() {
			sig, err := c.Analyze(context.Background(), sampleRequest())

			convey.Convey("Then the response is mapped to a signal", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(*sig.EstimatedStage, convey.ShouldEqual, 3.0)
				convey.So(sig.PatternType, convey.ShouldEqual, "male_pattern")
				convey.So(*sig.Confidence, convey.ShouldAlmostEqual, 0.82)
				convey.So(sig.RiskFactors, convey.ShouldResemble, []string{"Androgenetic alopecia"})
				convey.So(sig.Recommendations, convey.ShouldResemble, []string{"See a specialist"})
			})

			convey.Convey("Then the request carries wire answers, images and user info", func() {
				convey.So(gotPath, convey.ShouldEqual, "/analyze")
				q := got["questionnaire"].(map[string]any)
				convey.So(q["hairFallSeverity"], convey.ShouldEqual, "high")
				convey.So(q["sleepDuration"], convey.ShouldEqual, "7_to_9")
				convey.So(q["scalpItching"], convey.ShouldEqual, true)
				images := got["images"].([]any)
				convey.So(len(images), convey.ShouldEqual, 1)
				convey.So(images[0].(map[string]any)["label"], convey.ShouldEqual, "crown_top")
				info := got["user_info"].(map[string]any)
				convey.So(info["age"], convey.ShouldEqual, 34.0)
			})
		})

		convey.Convey("When it answers with an empty object", func() {
			body = `{}`
			sig, err := c.Analyze(context.Background(), sampleRequest())

			convey.Convey("Then the signal carries nothing", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(sig.EstimatedStage, convey.ShouldBeNil)
				convey.So(sig.RiskFactors, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When it fails with a 500", func() {
			status = http.StatusInternalServerError
			body = `model crashed`
			sig, err := c.Analyze(context.Background(), sampleRequest())

			convey.Convey("Then a status error is returned", func() {
				convey.So(sig, convey.ShouldBeNil)
				convey.So(errors.Is(err, signal.ErrStatus), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "model crashed")
			})
		})

		convey.Convey("When the body is not JSON", func() {
			body = `<html>oops</html>`
			_, err := c.Analyze(context.Background(), sampleRequest())

			convey.Convey("Then a decode error is returned", func() {
				convey.So(errors.Is(err, signal.ErrDecode), convey.ShouldBeTrue)
			})
		})
	})
}

func TestAnalyzeTimeout(t *testing.T) {
	convey.Convey("Given a service slower than the timeout", t, func() {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		c := signal.New(srv.URL, signal.WithTimeout(50*time.Millisecond))

		convey.Convey("When Analyze is called", func() {
			start := time.Now()
			_, err := c.Analyze(context.Background(), sampleRequest())

			convey.Convey("Then it gives up with a timeout error", func() {
				convey.So(errors.Is(err, signal.ErrTimeout), convey.ShouldBeTrue)
				convey.So(time.Since(start), convey.ShouldBeLessThan, 2*time.Second)
			})
		})
	})
}

func TestAnalyzeUnavailable(t *testing.T) {
	convey.Convey("Given an unreachable or missing endpoint", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		convey.Convey("Then a closed server is unavailable", func() {
			_, err := signal.New(url).Analyze(context.Background(), sampleRequest())
			convey.So(errors.Is(err, signal.ErrUnavailable), convey.ShouldBeTrue)
		})

		convey.Convey("Then an empty endpoint is rejected without a request", func() {
			_, err := signal.New("").Analyze(context.Background(), sampleRequest())
			convey.So(errors.Is(err, signal.ErrNoEndpoint), convey.ShouldBeTrue)
		})
	})
}

func TestNewRequest(t *testing.T) {
	convey.Convey("Given a request without images", t, func() {
		req := signal.NewRequest(model.AssessmentRequest{ProfileID: "p"})

		convey.Convey("Then images encode as an empty list", func() {
			b, err := json.Marshal(req)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(b), convey.ShouldContainSubstring, `"images":[]`)
			convey.So(string(b), convey.ShouldContainSubstring, `"user_info":null`)
		})
	})
}
