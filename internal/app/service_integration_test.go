package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	service "github.com/okian/follicle/internal/app"
	"github.com/okian/follicle/internal/adapters/repository"
	"github.com/okian/follicle/internal/adapters/signal"
	"github.com/okian/follicle/internal/domain/dedupe"
	"github.com/okian/follicle/internal/domain/model"
	"github.com/okian/follicle/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

// blockingAnalyzer holds every call until release is closed.
type blockingAnalyzer struct {
	started chan struct{}
	release chan struct{}
}

func (a *blockingAnalyzer) Analyze(ctx context.Context, _ signal.Request) (*scoring.Signal, error) {
	select {
	case a.started <- struct{}{}:
	default:
	}
	select {
	case <-a.release:
	case <-ctx.Done():
	}
	return nil, signal.ErrUnavailable
}

// slowAnalyzer takes a while and then reports the service unavailable.
type slowAnalyzer struct{ delay time.Duration }

func (a slowAnalyzer) Analyze(ctx context.Context, _ signal.Request) (*scoring.Signal, error) {
	select {
	case <-time.After(a.delay):
	case <-ctx.Done():
	}
	return nil, signal.ErrUnavailable
}

func waitJob(ctx context.Context, svc *service.Service, id string) model.JobState {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := svc.Job(ctx, id)
		So(err, ShouldBeNil)
		if st.Status == model.JobDone || st.Status == model.JobFailed {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	st, _ := svc.Job(ctx, id)
	return st
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service backed by SQLite", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, err := repository.Open(ctx, repository.DriverSQLite, ":memory:")
		So(err, ShouldBeNil)

		svc := service.New(
			service.WithStore(store),
			service.WithWorkerCount(2),
			service.WithQueueSize(100),
			service.WithDedupeSize(500),
		)
		defer func() { _ = svc.Stop(context.Background()) }()
		So(svc.Start(ctx), ShouldBeNil)

		p := newProfile(ctx, svc)

		Convey("When assessments are submitted asynchronously", func() {
			ids := make([]string, 0, 10)
			for i := 0; i < 10; i++ {
				id, err := svc.Submit(ctx, model.AssessmentRequest{ProfileID: p.ID, Answers: answers()})
				So(err, ShouldBeNil)
				ids = append(ids, id)
			}

			Convey("Then every job finishes with a stored report", func() {
				for _, id := range ids {
					st := waitJob(ctx, svc, id)
					So(st.Status, ShouldEqual, model.JobDone)
					rec, err := svc.Report(ctx, st.ReportID)
					So(err, ShouldBeNil)
					So(rec.Report.RiskScore, ShouldEqual, svc.Score(ctx, answers()).RiskScore)
				}

				stats, err := svc.Stats(ctx)
				So(err, ShouldBeNil)
				So(stats.Started, ShouldBeTrue)
				So(stats.Store.Reports, ShouldEqual, 10)
				So(stats.Jobs[model.JobDone], ShouldEqual, 10)
			})
		})

		Convey("When a queued job references another profile's questionnaire", func() {
			other := newProfile(ctx, svc)
			q, err := svc.SaveQuestionnaire(ctx, other.ID, answers())
			So(err, ShouldBeNil)
			id, err := svc.Submit(ctx, model.AssessmentRequest{ProfileID: p.ID, QuestionnaireID: q.ID})
			So(err, ShouldBeNil)

			Convey("Then the job fails with a reason", func() {
				st := waitJob(ctx, svc, id)
				So(st.Status, ShouldEqual, model.JobFailed)
				So(st.Error, ShouldContainSubstring, "not found")
			})
		})

		Convey("When submitting for an unknown profile", func() {
			_, err := svc.Submit(ctx, model.AssessmentRequest{ProfileID: "missing", Answers: answers()})

			Convey("Then it is rejected before queueing", func() {
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When submitting the same idempotency key twice", func() {
			req := model.AssessmentRequest{ProfileID: p.ID, Answers: answers(), IdempotencyKey: "async-1"}
			_, err := svc.Submit(ctx, req)
			So(err, ShouldBeNil)
			_, err = svc.Submit(ctx, req)

			Convey("Then the second submission is a duplicate", func() {
				So(errors.Is(err, service.ErrDuplicateSubmission), ShouldBeTrue)
			})
		})

		Convey("When asking for an unknown job", func() {
			_, err := svc.Job(ctx, "nope")

			Convey("Then it returns not found", func() {
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestServiceBackpressure(t *testing.T) {
	Convey("Given a single busy worker and a queue of one", t, func() {
		ctx := context.Background()
		analyzer := &blockingAnalyzer{started: make(chan struct{}, 1), release: make(chan struct{})}
		svc := service.New(
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
			service.WithSignal(analyzer),
		)
		So(svc.Start(ctx), ShouldBeNil)
		p := newProfile(ctx, svc)
		req := model.AssessmentRequest{ProfileID: p.ID, Answers: answers()}

		first, err := svc.Submit(ctx, req)
		So(err, ShouldBeNil)
		<-analyzer.started

		Convey("When more jobs are submitted than fit", func() {
			accepted := 0
			for i := 0; i < 5; i++ {
				req.IdempotencyKey = fmt.Sprintf("bp-%d", i)
				if _, err = svc.Submit(ctx, req); err != nil {
					break
				}
				accepted++
			}

			Convey("Then the queue pushes back and the rejected key is released", func() {
				So(errors.Is(err, service.ErrBackpressure), ShouldBeTrue)
				So(accepted, ShouldBeLessThanOrEqualTo, 2)

				stats, err := svc.Stats(ctx)
				So(err, ShouldBeNil)
				So(stats.IdempotencyKeys, ShouldEqual, int64(accepted))

				close(analyzer.release)
				st := waitJob(ctx, svc, first)
				So(st.Status, ShouldEqual, model.JobDone)

				So(svc.Stop(context.Background()), ShouldBeNil)
				_, err = svc.Submit(ctx, model.AssessmentRequest{ProfileID: p.ID, Answers: answers()})
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(svc.Start(ctx), ShouldEqual, service.ErrStopped)
			})
		})
	})
}

func TestServiceStopDrains(t *testing.T) {
	Convey("Given queued jobs", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(1), service.WithQueueSize(50))
		So(svc.Start(ctx), ShouldBeNil)
		p := newProfile(ctx, svc)

		for i := 0; i < 20; i++ {
			_, err := svc.Submit(ctx, model.AssessmentRequest{
				ProfileID:      p.ID,
				Answers:        answers(),
				IdempotencyKey: fmt.Sprintf("drain-%d", i),
			})
			So(err, ShouldBeNil)
		}

		Convey("When the service stops", func() {
			sctx, scancel := context.WithTimeout(ctx, 5*time.Second)
			defer scancel()
			err := svc.Stop(sctx)

			Convey("Then every job was processed first", func() {
				So(err, ShouldBeNil)
				history, err := svc.ReportHistory(ctx, p.ID, 50)
				So(err, ShouldBeNil)
				So(len(history), ShouldEqual, 20)
			})
		})
	})
}

func TestServiceStopAfterCancel(t *testing.T) {
	Convey("Given a service started on a context that is later canceled", t, func() {
		root, cancel := context.WithCancel(context.Background())
		defer cancel()
		ctx := context.Background()

		svc := service.New(
			service.WithWorkerCount(1),
			service.WithSignal(slowAnalyzer{delay: 20 * time.Millisecond}),
		)
		So(svc.Start(root), ShouldBeNil)
		p := newProfile(ctx, svc)

		ids := make([]string, 0, 4)
		for i := 0; i < 4; i++ {
			id, err := svc.Submit(ctx, model.AssessmentRequest{ProfileID: p.ID, Answers: answers()})
			So(err, ShouldBeNil)
			ids = append(ids, id)
		}

		Convey("When the context is canceled before Stop", func() {
			cancel()
			sctx, scancel := context.WithTimeout(ctx, 5*time.Second)
			defer scancel()
			err := svc.Stop(sctx)

			Convey("Then Stop still drains every queued job", func() {
				So(err, ShouldBeNil)
				for _, id := range ids {
					st, err := svc.Job(ctx, id)
					So(err, ShouldBeNil)
					So(st.Status, ShouldEqual, model.JobDone)
				}
			})
		})
	})
}

func TestServiceStopDeadline(t *testing.T) {
	Convey("Given a busy worker with jobs waiting behind it", t, func() {
		ctx := context.Background()
		analyzer := &blockingAnalyzer{started: make(chan struct{}, 1), release: make(chan struct{})}
		keys := dedupe.NewInMemoryDeduper()
		svc := service.New(
			service.WithWorkerCount(1),
			service.WithSignal(analyzer),
			service.WithDeduper(keys),
		)
		So(svc.Start(ctx), ShouldBeNil)
		p := newProfile(ctx, svc)

		ids := make([]string, 0, 3)
		for i := 0; i < 3; i++ {
			id, err := svc.Submit(ctx, model.AssessmentRequest{
				ProfileID:      p.ID,
				Answers:        answers(),
				IdempotencyKey: fmt.Sprintf("late-%d", i),
			})
			So(err, ShouldBeNil)
			ids = append(ids, id)
		}
		<-analyzer.started
		So(keys.Size(), ShouldEqual, int64(3))

		Convey("When Stop runs out of time", func() {
			sctx, scancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer scancel()
			err := svc.Stop(sctx)

			Convey("Then the waiting jobs fail and their keys are released", func() {
				So(err, ShouldNotBeNil)
				for _, id := range ids[1:] {
					st, err := svc.Job(ctx, id)
					So(err, ShouldBeNil)
					So(st.Status, ShouldEqual, model.JobFailed)
					So(st.Error, ShouldEqual, service.ErrStopped.Error())
				}
				So(keys.Size(), ShouldBeLessThanOrEqualTo, 1)
			})
		})
	})
}
