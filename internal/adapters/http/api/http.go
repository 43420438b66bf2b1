// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	service "github.com/okian/follicle/internal/app"
	"github.com/okian/follicle/internal/domain/model"
	"github.com/okian/follicle/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. *service.Service implements it.
type Dependencies interface {
	Score(ctx context.Context, in model.Answers) model.Report
	Assess(ctx context.Context, req model.AssessmentRequest) (model.ReportRecord, error)
	Submit(ctx context.Context, req model.AssessmentRequest) (string, error)
	Job(ctx context.Context, id string) (model.JobState, error)

	Report(ctx context.Context, id string) (model.ReportRecord, error)
	LatestReport(ctx context.Context, profileID string) (model.ReportRecord, error)
	ReportHistory(ctx context.Context, profileID string, limit int) ([]model.ReportRecord, error)

	CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error)
	GetOrCreateProfile(ctx context.Context, userID string, p model.Profile) (model.Profile, bool, error)
	UpdateProfile(ctx context.Context, p model.Profile) (model.Profile, error)
	Profile(ctx context.Context, id string) (model.Profile, error)

	SaveQuestionnaire(ctx context.Context, profileID string, answers model.Answers) (model.QuestionnaireRecord, error)
	LatestQuestionnaire(ctx context.Context, profileID string) (model.QuestionnaireRecord, error)
	QuestionnaireHistory(ctx context.Context, profileID string, limit int) ([]model.QuestionnaireRecord, error)

	AddImage(ctx context.Context, img model.ImageRecord) (model.ImageRecord, error)
	Images(ctx context.Context, profileID string) ([]model.ImageRecord, error)
	DeleteImage(ctx context.Context, profileID, imageID string) error
}

var _ Dependencies = (*service.Service)(nil)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithJWTSecret enables bearer authentication with an HS256 secret.
func WithJWTSecret(secret string) Option {
	return func(s *Server) {
		s.jwtSecret = []byte(secret)
	}
}

// WithRateLimit sets the per-client token bucket for assessment POSTs.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.rps, s.burst = rps, burst
	}
}

// WithLogger sets a custom logger for the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps          Dependencies
	statsProvider StatsProvider

	jwtSecret []byte
	rps       float64
	burst     int
	limiter   *clientLimiter

	healthHandler *HealthHandler
	statsHandler  *StatsHandler

	logger logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:          deps,
		statsProvider: statsProvider,
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	if s.rps > 0 {
		s.limiter = newClientLimiter(s.rps, s.burst)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// public
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(s.authenticate(h), endpoint))
	}
	limited := func(pattern, endpoint string, h http.HandlerFunc) {
		route(pattern, endpoint, s.rateLimit(h, endpoint))
	}

	limited("POST /assessments", "assessments", s.handlePostAssessment)
	limited("POST /assessments/async", "assessments_async", s.handlePostAssessmentAsync)
	route("GET /jobs/{id}", "jobs", s.handleGetJob)
	route("POST /score", "score", s.handleScore)

	route("GET /reports/{id}", "reports", s.handleGetReport)
	route("GET /profiles/{id}/reports", "profile_reports", s.handleListReports)
	route("GET /profiles/{id}/reports/latest", "profile_reports_latest", s.handleLatestReport)

	route("POST /profiles", "profiles", s.handleCreateProfile)
	route("GET /profiles/{id}", "profile", s.handleGetProfile)
	route("PUT /profiles/{id}", "profile", s.handleUpdateProfile)

	route("POST /profiles/{id}/questionnaires", "questionnaires", s.handlePostQuestionnaire)
	route("GET /profiles/{id}/questionnaires", "questionnaires", s.handleListQuestionnaires)
	route("GET /profiles/{id}/questionnaires/latest", "questionnaires_latest", s.handleLatestQuestionnaire)

	route("POST /profiles/{id}/images", "images", s.handlePostImage)
	route("GET /profiles/{id}/images", "images", s.handleListImages)
	route("DELETE /profiles/{id}/images/{imageID}", "image", s.handleDeleteImage)
}

type errorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	ReportID string `json:"report_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail maps err to a response. Server errors are logged and their details
// are not sent to the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	resp := errorResponse{Code: code, Message: err.Error()}
	if dup, ok := service.IsDuplicate(err); ok {
		resp.ReportID = dup.ReportID
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
		resp.Message = http.StatusText(status)
	}
	writeJSON(w, status, resp)
}

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, op string, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

// limitParam parses ?limit=N. Absent means the service default.
func limitParam(r *http.Request, op string) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid limit %q", raw))
	}
	return n, nil
}

// authorizeProfile hides profiles owned by another user when the request
// is authenticated.
func (s *Server) authorizeProfile(ctx context.Context, profileID string) (model.Profile, error) {
	p, err := s.deps.Profile(ctx, profileID)
	if err != nil {
		return model.Profile{}, err
	}
	if sub, ok := SubjectFromContext(ctx); ok && p.UserID != "" && p.UserID != sub {
		return model.Profile{}, fmt.Errorf("profile %s: %w", profileID, service.ErrNotFound)
	}
	return p, nil
}
