package repository

import (
	"context"
	"errors"
	"time"

	"github.com/okian/follicle/internal/domain/model"
	"github.com/okian/follicle/pkg/metrics"
)

// instrumented records latency and failures of every Store call.
type instrumented struct {
	driver string
	next   Store
}

// Instrument wraps next so each call reports store metrics under driver.
func Instrument(driver string, next Store) Store {
	return &instrumented{driver: driver, next: next}
}

// observe records one call. ErrNotFound is an answer, not a failure.
func (s *instrumented) observe(op string, start time.Time, err error) {
	failed := err != nil && !errors.Is(err, ErrNotFound)
	metrics.RecordStoreOperation(s.driver, op, float64(time.Since(start).Microseconds())/1000, failed)
}

func (s *instrumented) CreateProfile(ctx context.Context, p model.Profile) (err error) {
	defer func(start time.Time) { s.observe("create_profile", start, err) }(time.Now())
	return s.next.CreateProfile(ctx, p)
}

func (s *instrumented) UpdateProfile(ctx context.Context, p model.Profile) (err error) {
	defer func(start time.Time) { s.observe("update_profile", start, err) }(time.Now())
	return s.next.UpdateProfile(ctx, p)
}

func (s *instrumented) Profile(ctx context.Context, id string) (p model.Profile, err error) {
	defer func(start time.Time) { s.observe("get_profile", start, err) }(time.Now())
	return s.next.Profile(ctx, id)
}

func (s *instrumented) ProfileByUser(ctx context.Context, userID string) (p model.Profile, err error) {
	defer func(start time.Time) { s.observe("get_profile_by_user", start, err) }(time.Now())
	return s.next.ProfileByUser(ctx, userID)
}

func (s *instrumented) SaveQuestionnaire(ctx context.Context, q model.QuestionnaireRecord) (err error) {
	defer func(start time.Time) { s.observe("save_questionnaire", start, err) }(time.Now())
	return s.next.SaveQuestionnaire(ctx, q)
}

func (s *instrumented) Questionnaire(ctx context.Context, id string) (q model.QuestionnaireRecord, err error) {
	defer func(start time.Time) { s.observe("get_questionnaire", start, err) }(time.Now())
	return s.next.Questionnaire(ctx, id)
}

func (s *instrumented) LatestQuestionnaire(ctx context.Context, profileID string) (q model.QuestionnaireRecord, err error) {
	defer func(start time.Time) { s.observe("latest_questionnaire", start, err) }(time.Now())
	return s.next.LatestQuestionnaire(ctx, profileID)
}

func (s *instrumented) Questionnaires(ctx context.Context, profileID string, limit int) (list []model.QuestionnaireRecord, err error) {
	defer func(start time.Time) { s.observe("list_questionnaires", start, err) }(time.Now())
	return s.next.Questionnaires(ctx, profileID, limit)
}

func (s *instrumented) SaveAssessment(ctx context.Context, q *model.QuestionnaireRecord, r model.ReportRecord) (err error) {
	defer func(start time.Time) { s.observe("save_assessment", start, err) }(time.Now())
	return s.next.SaveAssessment(ctx, q, r)
}

func (s *instrumented) Report(ctx context.Context, id string) (r model.ReportRecord, err error) {
	defer func(start time.Time) { s.observe("get_report", start, err) }(time.Now())
	return s.next.Report(ctx, id)
}

func (s *instrumented) LatestReport(ctx context.Context, profileID string) (r model.ReportRecord, err error) {
	defer func(start time.Time) { s.observe("latest_report", start, err) }(time.Now())
	return s.next.LatestReport(ctx, profileID)
}

func (s *instrumented) Reports(ctx context.Context, profileID string, limit int) (list []model.ReportRecord, err error) {
	defer func(start time.Time) { s.observe("list_reports", start, err) }(time.Now())
	return s.next.Reports(ctx, profileID, limit)
}

func (s *instrumented) AddImage(ctx context.Context, img model.ImageRecord) (err error) {
	defer func(start time.Time) { s.observe("add_image", start, err) }(time.Now())
	return s.next.AddImage(ctx, img)
}

func (s *instrumented) Images(ctx context.Context, profileID string) (list []model.ImageRecord, err error) {
	defer func(start time.Time) { s.observe("list_images", start, err) }(time.Now())
	return s.next.Images(ctx, profileID)
}

func (s *instrumented) DeleteImage(ctx context.Context, profileID, imageID string) (err error) {
	defer func(start time.Time) { s.observe("delete_image", start, err) }(time.Now())
	return s.next.DeleteImage(ctx, profileID, imageID)
}

func (s *instrumented) Counts(ctx context.Context) (c Counts, err error) {
	defer func(start time.Time) { s.observe("counts", start, err) }(time.Now())
	return s.next.Counts(ctx)
}

func (s *instrumented) Close() error {
	return s.next.Close()
}
