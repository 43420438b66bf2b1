package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/follicle/internal/adapters/signal"
	"github.com/okian/follicle/internal/domain/model"
	"github.com/okian/follicle/internal/domain/scoring"
	"github.com/okian/follicle/pkg/logger"
	"github.com/okian/follicle/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Score runs the rule engine alone. Nothing is stored and the external
// signal is not consulted.
func (s *Service) Score(_ context.Context, in model.Answers) model.Report {
	start := time.Now()
	r := s.engine.Score(in)
	metrics.RecordEngineLatency(msSince(start))
	return r
}

// Assess runs one assessment synchronously and returns the stored report.
//
// When req.QuestionnaireID is set the stored questionnaire is scored and
// linked; otherwise req.Answers are stored as a new questionnaire together
// with the report. A failed write returns an error and no report.
func (s *Service) Assess(ctx context.Context, req model.AssessmentRequest) (model.ReportRecord, error) { //nolint:gocritic // hugeParam
	if err := s.reserveKey(ctx, req); err != nil {
		return model.ReportRecord{}, err
	}
	return s.assess(ctx, req)
}

// idempotencyKey scopes a client key to the profile it was sent for, so
// equal keys from different profiles never collide.
func idempotencyKey(req *model.AssessmentRequest) string {
	if req.IdempotencyKey == "" {
		return ""
	}
	return req.ProfileID + "/" + req.IdempotencyKey
}

// reserveKey records the request's idempotency key. Empty keys are not
// tracked.
func (s *Service) reserveKey(ctx context.Context, req model.AssessmentRequest) error { //nolint:gocritic // hugeParam
	key := idempotencyKey(&req)
	if key == "" {
		return nil
	}
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordAssessmentDuplicate()
		reportID, _ := s.deduper.Lookup(ctx, key)
		return &DuplicateError{Key: req.IdempotencyKey, ReportID: reportID}
	}
	return nil
}

// assess is the pipeline shared by Assess and queued jobs. The idempotency
// key, if any, is already reserved; it is released on failure.
func (s *Service) assess(ctx context.Context, req model.AssessmentRequest) (rec model.ReportRecord, err error) { //nolint:gocritic // hugeParam
	ctx, span := s.tracer.Start(ctx, "service.assess",
		trace.WithAttributes(attribute.String("profile_id", req.ProfileID)),
	)
	key := idempotencyKey(&req)
	defer func() {
		if err != nil {
			if key != "" {
				s.deduper.Unrecord(ctx, key)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if _, err := s.store.Profile(ctx, req.ProfileID); err != nil {
		metrics.RecordAssessmentError("profile")
		return model.ReportRecord{}, fmt.Errorf("assess: profile %s: %w", req.ProfileID, err)
	}

	answers := req.Answers
	var newQuestionnaire *model.QuestionnaireRecord
	if req.QuestionnaireID != "" {
		q, err := s.store.Questionnaire(ctx, req.QuestionnaireID)
		if err == nil && q.ProfileID != req.ProfileID {
			err = ErrNotFound
		}
		if err != nil {
			metrics.RecordAssessmentError("questionnaire")
			return model.ReportRecord{}, fmt.Errorf("assess: questionnaire %s: %w", req.QuestionnaireID, err)
		}
		answers = q.Answers
	} else {
		newQuestionnaire = &model.QuestionnaireRecord{
			ID:        uuid.NewString(),
			ProfileID: req.ProfileID,
			Answers:   answers,
			CreatedAt: s.now().UTC(),
		}
		req.QuestionnaireID = newQuestionnaire.ID
	}

	report := s.Score(ctx, answers)
	source := model.SourceRules
	if merged, ok := s.mergeSignal(ctx, req, answers, report); ok {
		report = merged
		source = model.SourceMerged
	}

	rec = model.ReportRecord{
		ID:              uuid.NewString(),
		ProfileID:       req.ProfileID,
		QuestionnaireID: req.QuestionnaireID,
		Source:          source,
		Report:          report,
	}
	if err := s.store.SaveAssessment(ctx, newQuestionnaire, rec); err != nil {
		metrics.RecordAssessmentError("persist")
		s.logger.Error(ctx, "failed to save assessment",
			logger.String("profile_id", req.ProfileID),
			logger.Error(err),
		)
		return model.ReportRecord{}, fmt.Errorf("assess: save report: %w", err)
	}

	if key != "" {
		s.deduper.Complete(ctx, key, rec.ID)
	}
	metrics.RecordAssessment(string(report.OverallRiskLevel), string(source), report.RiskScore)
	span.SetAttributes(
		attribute.String("report_id", rec.ID),
		attribute.String("risk_level", string(report.OverallRiskLevel)),
		attribute.String("source", string(source)),
	)
	return rec, nil
}

// mergeSignal consults the external service. Any failure keeps the rule
// report.
func (s *Service) mergeSignal(ctx context.Context, req model.AssessmentRequest, answers model.Answers, base model.Report) (model.Report, bool) { //nolint:gocritic // hugeParam
	if s.analyzer == nil {
		return base, false
	}
	sreq := signal.NewRequest(req)
	sreq.Questionnaire = answers.Wire()

	sig, err := s.analyzer.Analyze(ctx, sreq)
	if err != nil {
		reason := metrics.ErrorType(err, signal.Kinds...)
		metrics.RecordSignalFallback(reason)
		s.logger.Warn(ctx, "external signal unavailable, using rule report",
			logger.String("profile_id", req.ProfileID),
			logger.String("reason", reason),
			logger.Error(err),
		)
		return base, false
	}
	return scoring.Merge(base, sig)
}

// Submit queues an assessment and returns its job ID.
func (s *Service) Submit(ctx context.Context, req model.AssessmentRequest) (string, error) { //nolint:gocritic // hugeParam
	if !s.isStarted() {
		return "", ErrNotStarted
	}
	if _, err := s.store.Profile(ctx, req.ProfileID); err != nil {
		return "", fmt.Errorf("submit: profile %s: %w", req.ProfileID, err)
	}
	if err := s.reserveKey(ctx, req); err != nil {
		return "", err
	}

	j := model.AssessmentJob{
		ID:         uuid.NewString(),
		Request:    req,
		EnqueuedAt: s.now(),
	}
	key := idempotencyKey(&req)
	s.jobs.add(model.JobState{
		ID:        j.ID,
		ProfileID: req.ProfileID,
		Status:    model.JobPending,
		UpdatedAt: j.EnqueuedAt.UTC(),
	}, key)
	if !s.queue.Enqueue(ctx, j) {
		s.jobs.remove(j.ID)
		if key != "" {
			s.deduper.Unrecord(ctx, key)
		}
		return "", ErrBackpressure
	}
	return j.ID, nil
}

// HandleJob runs a queued assessment. It is called by the worker pool.
// Jobs abandoned by Stop are skipped.
func (s *Service) HandleJob(ctx context.Context, j model.AssessmentJob) error { //nolint:gocritic // hugeParam
	if !s.jobs.begin(j.ID, s.now().UTC()) {
		return nil
	}

	rec, err := s.assess(ctx, j.Request)
	if err != nil {
		s.jobs.finish(j.ID, model.JobFailed, "", err.Error(), s.now().UTC())
		return err
	}
	s.jobs.finish(j.ID, model.JobDone, rec.ID, "", s.now().UTC())
	return nil
}

// Job returns the state of a queued assessment.
func (s *Service) Job(_ context.Context, id string) (model.JobState, error) {
	st, ok := s.jobs.get(id)
	if !ok {
		return model.JobState{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return st, nil
}

// IsDuplicate reports whether err is a replayed idempotency key.
func IsDuplicate(err error) (*DuplicateError, bool) {
	var d *DuplicateError
	ok := errors.As(err, &d)
	return d, ok
}
