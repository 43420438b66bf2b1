package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	service "github.com/okian/follicle/internal/app"
	"github.com/okian/follicle/internal/domain/model"
)

// IdempotencyHeader carries the client's replay-protection key.
const IdempotencyHeader = "Idempotency-Key"

// assessmentRequest mirrors the OpenAPI schema for POST /assessments.
type assessmentRequest struct {
	ProfileID       string           `json:"profile_id"`
	QuestionnaireID string           `json:"questionnaire_id,omitempty"`
	Answers         *model.Answers   `json:"answers"`
	Images          []model.ImageRef `json:"images,omitempty"`
	UserInfo        *model.UserInfo  `json:"user_info,omitempty"`
}

// validate checks the request shape. Answers are required unless a stored
// questionnaire is referenced.
func (a *assessmentRequest) validate() error {
	if strings.TrimSpace(a.ProfileID) == "" {
		return errors.New("missing profile_id")
	}
	if a.QuestionnaireID == "" {
		if a.Answers == nil {
			return errors.New("missing answers")
		}
		if err := a.Answers.Validate(); err != nil {
			return err
		}
	}
	for i, img := range a.Images {
		if !img.Label.Valid() {
			return fmt.Errorf("images[%d]: unknown label %q", i, img.Label)
		}
		if strings.TrimSpace(img.URL) == "" {
			return fmt.Errorf("images[%d]: missing url", i)
		}
	}
	return nil
}

func (a *assessmentRequest) toModel(r *http.Request) model.AssessmentRequest {
	out := model.AssessmentRequest{
		ProfileID:       a.ProfileID,
		QuestionnaireID: a.QuestionnaireID,
		Images:          a.Images,
		UserInfo:        a.UserInfo,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get(IdempotencyHeader)),
	}
	if a.Answers != nil {
		out.Answers = *a.Answers
	}
	return out
}

// readAssessment decodes, validates and authorizes an assessment request.
func (s *Server) readAssessment(w http.ResponseWriter, r *http.Request, op string) (model.AssessmentRequest, error) {
	var req assessmentRequest
	if err := decode(w, r, op, &req); err != nil {
		return model.AssessmentRequest{}, err
	}
	if err := req.validate(); err != nil {
		return model.AssessmentRequest{}, WrapKind(op, ErrBadRequest, err)
	}
	if _, err := s.authorizeProfile(r.Context(), req.ProfileID); err != nil {
		return model.AssessmentRequest{}, Wrap(op, err)
	}
	return req.toModel(r), nil
}

// handlePostAssessment handles POST /assessments.
func (s *Server) handlePostAssessment(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_assessment"
	req, err := s.readAssessment(w, r, op)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rec, err := s.deps.Assess(r.Context(), req)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	w.Header().Set("Location", "/reports/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

type jobAccepted struct {
	JobID  string          `json:"job_id"`
	Status model.JobStatus `json:"status"`
}

// handlePostAssessmentAsync handles POST /assessments/async.
func (s *Server) handlePostAssessmentAsync(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_assessment_async"
	req, err := s.readAssessment(w, r, op)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := s.deps.Submit(r.Context(), req)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	w.Header().Set("Location", "/jobs/"+id)
	writeJSON(w, http.StatusAccepted, jobAccepted{JobID: id, Status: model.JobPending})
}

// handleGetJob handles GET /jobs/{id}. Jobs of profiles the caller does not
// own are reported as not found.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_job"
	id := r.PathValue("id")
	st, err := s.deps.Job(r.Context(), id)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	if _, err := s.authorizeProfile(r.Context(), st.ProfileID); err != nil {
		s.fail(w, r, Wrap(op, fmt.Errorf("job %s: %w", id, service.ErrNotFound)))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleScore handles POST /score: rule scoring without persistence.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.score"
	var in model.Answers
	if err := decode(w, r, op, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := in.Validate(); err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Score(r.Context(), in))
}
