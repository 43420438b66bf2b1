package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/follicle/internal/adapters/http/api"
	"github.com/okian/follicle/internal/adapters/repository"
	service "github.com/okian/follicle/internal/app"
	"github.com/okian/follicle/internal/domain/model"
	"github.com/okian/follicle/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const validAnswers = `{"hairFallSeverity":"high","familyHistory":"yes","stressLevel":"high",` +
	`"dietQuality":"poor","sleepDuration":"less_than_5","hairWashFrequency":"daily",` +
	`"scalpItching":true,"scalpDandruff":true,"scalpRedness":false,` +
	`"useHeatStyling":false,"useChemicalTreatments":false}`

var testSecret = []byte("test-secret")

// failingStore fails every assessment write.
type failingStore struct {
	*repository.MemoryStore
}

func (failingStore) SaveAssessment(context.Context, *model.QuestionnaireRecord, model.ReportRecord) error {
	return errors.New("connection reset by peer")
}

func newHandler(svc *service.Service, opts ...api.Option) http.Handler {
	mux := http.NewServeMux()
	api.NewServer(svc, svc, opts...).Register(context.Background(), mux)
	return api.CORSMiddleware("*")(mux)
}

func do(h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

type errorBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	ReportID string `json:"report_id"`
}

func createProfile(h http.Handler, headers ...string) model.Profile {
	w := do(h, http.MethodPost, "/profiles", `{"name":"Ana","email":"ana@example.com"}`, headers...)
	So(w.Code, ShouldBeIn, http.StatusCreated, http.StatusOK)
	return decodeBody[model.Profile](w)
}

func TestServer_Basics(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		svc := service.New()
		h := newHandler(svc)

		Convey("Then the health endpoint serves metrics", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the stats endpoint serves JSON", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			stats := decodeBody[service.Stats](w)
			So(stats.QueueCapacity, ShouldBeGreaterThan, 0)
		})

		Convey("Then unknown paths are 404 and wrong methods 405", func() {
			So(do(h, http.MethodGet, "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(h, http.MethodGet, "/assessments", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Then preflight requests get CORS headers and 204", func() {
			w := do(h, http.MethodOptions, "/assessments", "")
			So(w.Code, ShouldEqual, http.StatusNoContent)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
			So(w.Header().Get("Access-Control-Allow-Headers"), ShouldContainSubstring, "Idempotency-Key")
		})
	})
}

func TestServer_Score(t *testing.T) {
	Convey("Given the stateless scoring endpoint", t, func() {
		h := newHandler(service.New())

		Convey("When complete answers are posted", func() {
			w := do(h, http.MethodPost, "/score", validAnswers)

			Convey("Then the report is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				r := decodeBody[model.Report](w)
				So(r.RiskScore, ShouldEqual, 100)
				So(r.OverallRiskLevel, ShouldEqual, model.RiskHigh)
				So(r.ScalpHealthWarning, ShouldBeTrue)
			})
		})

		Convey("When answers are incomplete", func() {
			w := do(h, http.MethodPost, "/score", `{"hairFallSeverity":"high","stressLevel":"extreme"}`)

			Convey("Then it is a 400 naming the fields", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				e := decodeBody[errorBody](w)
				So(e.Code, ShouldEqual, "incomplete_answers")
				So(e.Message, ShouldContainSubstring, "familyHistory")
				So(e.Message, ShouldContainSubstring, "stressLevel")
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(h, http.MethodPost, "/score", `{nope`)

			Convey("Then it is a 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeBody[errorBody](w).Code, ShouldEqual, "bad_request")
			})
		})
	})
}

func TestServer_Assessments(t *testing.T) {
	Convey("Given a profile", t, func() {
		svc := service.New()
		h := newHandler(svc)
		p := createProfile(h)

		Convey("When an assessment is posted", func() {
			w := do(h, http.MethodPost, "/assessments", `{"profile_id":"`+p.ID+`","answers":`+validAnswers+`}`)

			Convey("Then it is created and retrievable", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				rec := decodeBody[model.ReportRecord](w)
				So(rec.ProfileID, ShouldEqual, p.ID)
				So(rec.QuestionnaireID, ShouldNotBeEmpty)
				So(rec.Source, ShouldEqual, model.SourceRules)
				So(w.Header().Get("Location"), ShouldEqual, "/reports/"+rec.ID)

				got := do(h, http.MethodGet, "/reports/"+rec.ID, "")
				So(got.Code, ShouldEqual, http.StatusOK)
				So(decodeBody[model.ReportRecord](got).RiskScore, ShouldEqual, rec.RiskScore)

				latest := do(h, http.MethodGet, "/profiles/"+p.ID+"/reports/latest", "")
				So(latest.Code, ShouldEqual, http.StatusOK)
				So(decodeBody[model.ReportRecord](latest).ID, ShouldEqual, rec.ID)

				q := do(h, http.MethodGet, "/profiles/"+p.ID+"/questionnaires/latest", "")
				So(q.Code, ShouldEqual, http.StatusOK)
				So(decodeBody[model.QuestionnaireRecord](q).ID, ShouldEqual, rec.QuestionnaireID)
			})
		})

		Convey("When answers are missing", func() {
			w := do(h, http.MethodPost, "/assessments", `{"profile_id":"`+p.ID+`"}`)

			Convey("Then it is a 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When an image reference has an unknown label", func() {
			w := do(h, http.MethodPost, "/assessments", `{"profile_id":"`+p.ID+`","answers":`+validAnswers+
				`,"images":[{"label":"back","url":"https://x/y.jpg"}]}`)

			Convey("Then it is a 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the profile is unknown", func() {
			w := do(h, http.MethodPost, "/assessments", `{"profile_id":"missing","answers":`+validAnswers+`}`)

			Convey("Then it is a 404", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decodeBody[errorBody](w).Code, ShouldEqual, "not_found")
			})
		})

		Convey("When the same idempotency key is used twice", func() {
			body := `{"profile_id":"` + p.ID + `","answers":` + validAnswers + `}`
			first := do(h, http.MethodPost, "/assessments", body, api.IdempotencyHeader, "abc")
			So(first.Code, ShouldEqual, http.StatusCreated)
			second := do(h, http.MethodPost, "/assessments", body, api.IdempotencyHeader, "abc")

			Convey("Then the replay is a 409 pointing at the first report", func() {
				So(second.Code, ShouldEqual, http.StatusConflict)
				e := decodeBody[errorBody](second)
				So(e.Code, ShouldEqual, "duplicate")
				So(e.ReportID, ShouldEqual, decodeBody[model.ReportRecord](first).ID)
			})
		})

		Convey("When listing history with a limit", func() {
			body := `{"profile_id":"` + p.ID + `","answers":` + validAnswers + `}`
			for i := 0; i < 3; i++ {
				So(do(h, http.MethodPost, "/assessments", body).Code, ShouldEqual, http.StatusCreated)
			}

			Convey("Then the limit is honoured and a bad limit is rejected", func() {
				w := do(h, http.MethodGet, "/profiles/"+p.ID+"/reports?limit=2", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(len(decodeBody[[]model.ReportRecord](w)), ShouldEqual, 2)

				So(do(h, http.MethodGet, "/profiles/"+p.ID+"/reports?limit=zero", "").Code, ShouldEqual, http.StatusBadRequest)
				So(do(h, http.MethodGet, "/profiles/missing/reports", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When a report does not exist", func() {
			So(do(h, http.MethodGet, "/reports/nope", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_AssessmentPersistenceFailure(t *testing.T) {
	Convey("Given a store that cannot save reports", t, func() {
		svc := service.New(service.WithStore(failingStore{repository.NewMemoryStore()}))
		h := newHandler(svc)
		p := createProfile(h)

		Convey("When an assessment is posted", func() {
			w := do(h, http.MethodPost, "/assessments", `{"profile_id":"`+p.ID+`","answers":`+validAnswers+`}`)

			Convey("Then it is a 500 without report or internals", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				e := decodeBody[errorBody](w)
				So(e.Code, ShouldEqual, "internal_error")
				So(e.Message, ShouldNotContainSubstring, "connection reset")
				So(w.Body.String(), ShouldNotContainSubstring, "riskScore")
			})
		})
	})
}

func TestServer_AsyncAssessments(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithWorkerCount(1))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer func() { _ = svc.Stop(context.Background()) }()
		h := newHandler(svc)
		p := createProfile(h)

		Convey("When an assessment is submitted asynchronously", func() {
			w := do(h, http.MethodPost, "/assessments/async", `{"profile_id":"`+p.ID+`","answers":`+validAnswers+`}`)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			id := decodeBody[map[string]string](w)["job_id"]
			So(id, ShouldNotBeEmpty)

			Convey("Then the job completes with a report", func() {
				var st model.JobState
				deadline := time.Now().Add(5 * time.Second)
				for time.Now().Before(deadline) {
					jw := do(h, http.MethodGet, "/jobs/"+id, "")
					So(jw.Code, ShouldEqual, http.StatusOK)
					st = decodeBody[model.JobState](jw)
					if st.Status == model.JobDone {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				So(st.Status, ShouldEqual, model.JobDone)
				So(do(h, http.MethodGet, "/reports/"+st.ReportID, "").Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When an unknown job is requested", func() {
			So(do(h, http.MethodGet, "/jobs/nope", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given a service that was never started", t, func() {
		svc := service.New()
		h := newHandler(svc)
		p := createProfile(h)

		Convey("Then async submissions are unavailable", func() {
			w := do(h, http.MethodPost, "/assessments/async", `{"profile_id":"`+p.ID+`","answers":`+validAnswers+`}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestServer_ProfileResources(t *testing.T) {
	Convey("Given a profile", t, func() {
		h := newHandler(service.New())
		p := createProfile(h)

		Convey("Then it can be read and updated", func() {
			So(do(h, http.MethodGet, "/profiles/"+p.ID, "").Code, ShouldEqual, http.StatusOK)
			w := do(h, http.MethodPut, "/profiles/"+p.ID, `{"name":"Ana B","email":"ana@example.com","age":30}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			up := decodeBody[model.Profile](w)
			So(up.Name, ShouldEqual, "Ana B")
			So(*up.Age, ShouldEqual, 30)
		})

		Convey("Then an invalid profile is rejected", func() {
			So(do(h, http.MethodPost, "/profiles", `{"name":""}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPut, "/profiles/missing", `{"name":"a","email":"b"}`).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then a user_id makes creation idempotent", func() {
			a := do(h, http.MethodPost, "/profiles", `{"user_id":"u-1","name":"A","email":"a@x.io"}`)
			b := do(h, http.MethodPost, "/profiles", `{"user_id":"u-1","name":"B","email":"b@x.io"}`)
			So(a.Code, ShouldEqual, http.StatusCreated)
			So(b.Code, ShouldEqual, http.StatusOK)
			So(decodeBody[model.Profile](b).ID, ShouldEqual, decodeBody[model.Profile](a).ID)
		})

		Convey("Then questionnaires can be stored and listed", func() {
			w := do(h, http.MethodPost, "/profiles/"+p.ID+"/questionnaires", validAnswers)
			So(w.Code, ShouldEqual, http.StatusCreated)
			q := decodeBody[model.QuestionnaireRecord](w)
			So(q.Answers.HairFallSeverity, ShouldEqual, model.SeverityHigh)

			list := do(h, http.MethodGet, "/profiles/"+p.ID+"/questionnaires", "")
			So(list.Code, ShouldEqual, http.StatusOK)
			So(len(decodeBody[[]model.QuestionnaireRecord](list)), ShouldEqual, 1)

			So(do(h, http.MethodPost, "/profiles/"+p.ID+"/questionnaires", `{}`).Code, ShouldEqual, http.StatusBadRequest)

			ref := do(h, http.MethodPost, "/assessments", `{"profile_id":"`+p.ID+`","questionnaire_id":"`+q.ID+`"}`)
			So(ref.Code, ShouldEqual, http.StatusCreated)
			So(decodeBody[model.ReportRecord](ref).QuestionnaireID, ShouldEqual, q.ID)
		})

		Convey("Then image metadata can be added, listed and deleted", func() {
			w := do(h, http.MethodPost, "/profiles/"+p.ID+"/images",
				`{"label":"crown_top","file_name":"crown.jpg","file_path":"u/crown.jpg","file_size":2048,"mime_type":"image/jpeg"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			img := decodeBody[model.ImageRecord](w)

			list := do(h, http.MethodGet, "/profiles/"+p.ID+"/images", "")
			So(len(decodeBody[[]model.ImageRecord](list)), ShouldEqual, 1)

			So(do(h, http.MethodDelete, "/profiles/"+p.ID+"/images/"+img.ID, "").Code, ShouldEqual, http.StatusNoContent)
			So(do(h, http.MethodDelete, "/profiles/"+p.ID+"/images/"+img.ID, "").Code, ShouldEqual, http.StatusNotFound)
			So(do(h, http.MethodPost, "/profiles/"+p.ID+"/images", `{"label":"nope","file_name":"a","file_path":"b"}`).Code,
				ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_Auth(t *testing.T) {
	Convey("Given a server with authentication enabled", t, func() {
		svc := service.New()
		So(svc.Start(context.Background()), ShouldBeNil)
		defer func() { _ = svc.Stop(context.Background()) }()
		h := newHandler(svc, api.WithJWTSecret(string(testSecret)))
		tokenA, err := api.IssueToken(testSecret, "user-a", time.Hour)
		So(err, ShouldBeNil)
		tokenB, err := api.IssueToken(testSecret, "user-b", time.Hour)
		So(err, ShouldBeNil)

		Convey("Then requests without a token are rejected", func() {
			w := do(h, http.MethodPost, "/profiles", `{"name":"Ana","email":"a@x.io"}`)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
			So(decodeBody[errorBody](w).Code, ShouldEqual, "unauthorized")
		})

		Convey("Then tokens signed with another secret are rejected", func() {
			bad, err := api.IssueToken([]byte("other"), "user-a", time.Hour)
			So(err, ShouldBeNil)
			So(do(h, http.MethodGet, "/profiles/x", "", "Authorization", "Bearer "+bad).Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("Then expired tokens are rejected", func() {
			old, err := api.IssueToken(testSecret, "user-a", -time.Minute)
			So(err, ShouldBeNil)
			So(do(h, http.MethodGet, "/profiles/x", "", "Authorization", "Bearer "+old).Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("Then public endpoints stay open", func() {
			So(do(h, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("When a user creates a profile", func() {
			p := createProfile(h, "Authorization", "Bearer "+tokenA)

			Convey("Then it belongs to the token subject", func() {
				So(p.UserID, ShouldEqual, "user-a")
				again := createProfile(h, "Authorization", "Bearer "+tokenA)
				So(again.ID, ShouldEqual, p.ID)
			})

			Convey("Then other users cannot see it", func() {
				So(do(h, http.MethodGet, "/profiles/"+p.ID, "", "Authorization", "Bearer "+tokenA).Code, ShouldEqual, http.StatusOK)
				So(do(h, http.MethodGet, "/profiles/"+p.ID, "", "Authorization", "Bearer "+tokenB).Code, ShouldEqual, http.StatusNotFound)
				w := do(h, http.MethodPost, "/assessments", `{"profile_id":"`+p.ID+`","answers":`+validAnswers+`}`,
					"Authorization", "Bearer "+tokenB)
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("Then other users cannot read its jobs", func() {
				w := do(h, http.MethodPost, "/assessments/async", `{"profile_id":"`+p.ID+`","answers":`+validAnswers+`}`,
					"Authorization", "Bearer "+tokenA)
				So(w.Code, ShouldEqual, http.StatusAccepted)
				jobID := decodeBody[model.JobState](w).ID

				So(do(h, http.MethodGet, "/jobs/"+jobID, "", "Authorization", "Bearer "+tokenA).Code, ShouldEqual, http.StatusOK)
				other := do(h, http.MethodGet, "/jobs/"+jobID, "", "Authorization", "Bearer "+tokenB)
				So(other.Code, ShouldEqual, http.StatusNotFound)
				So(other.Body.String(), ShouldNotContainSubstring, p.ID)
			})
		})

		Convey("When a new user signs in with only an email", func() {
			tokenC, err := api.IssueToken(testSecret, "user-c", time.Hour)
			So(err, ShouldBeNil)
			w := do(h, http.MethodPost, "/profiles", `{"email":"c@example.com"}`, "Authorization", "Bearer "+tokenC)

			Convey("Then a profile is bootstrapped for them", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				p := decodeBody[model.Profile](w)
				So(p.UserID, ShouldEqual, "user-c")
				So(p.Name, ShouldBeEmpty)
			})
		})
	})
}

func TestServer_RateLimit(t *testing.T) {
	Convey("Given a server allowing one assessment per client", t, func() {
		svc := service.New()
		h := newHandler(svc, api.WithRateLimit(0.001, 1))
		p := createProfile(h)
		body := `{"profile_id":"` + p.ID + `","answers":` + validAnswers + `}`

		Convey("When a client posts twice", func() {
			first := do(h, http.MethodPost, "/assessments", body)
			second := do(h, http.MethodPost, "/assessments", body)

			Convey("Then the second request is throttled", func() {
				So(first.Code, ShouldEqual, http.StatusCreated)
				So(second.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decodeBody[errorBody](second).Code, ShouldEqual, "rate_limited")
				So(second.Header().Get("Retry-After"), ShouldNotBeEmpty)
			})

			Convey("Then other endpoints are not throttled", func() {
				So(do(h, http.MethodGet, "/profiles/"+p.ID+"/reports", "").Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}
