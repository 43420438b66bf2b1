// Package signal calls the optional external hair analysis service.
//
// The service is best effort. Analyze makes exactly one attempt bounded by
// a timeout and reports every failure as an error; callers keep their
// rule-based report when it fails.
package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/follicle/internal/domain/model"
	"github.com/okian/follicle/internal/domain/scoring"
	"github.com/okian/follicle/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTimeout = 5 * time.Second
	analyzePath    = "/analyze"
	maxBodyBytes   = 1 << 20
	outcomeOK      = "ok"
)

// Request is the body sent to the analysis service.
type Request struct {
	Images        []model.ImageRef  `json:"images"`
	Questionnaire model.WireAnswers `json:"questionnaire"`
	UserInfo      *model.UserInfo   `json:"user_info"`
}

// NewRequest builds a Request from an assessment request.
func NewRequest(in model.AssessmentRequest) Request { //nolint:gocritic // hugeParam
	images := in.Images
	if images == nil {
		images = []model.ImageRef{}
	}
	return Request{
		Images:        images,
		Questionnaire: in.Answers.Wire(),
		UserInfo:      in.UserInfo,
	}
}

type response struct {
	Predictions *struct {
		Stage      *float64 `json:"hair_loss_stage"`
		Pattern    string   `json:"pattern_type"`
		Confidence *float64 `json:"confidence"`
	} `json:"ml_predictions"`
	Recommendations []string `json:"recommendations"`
	RiskFactors     []string `json:"risk_factors"`
}

func (r *response) signal() *scoring.Signal {
	s := &scoring.Signal{
		RiskFactors:     r.RiskFactors,
		Recommendations: r.Recommendations,
	}
	if p := r.Predictions; p != nil {
		s.EstimatedStage = p.Stage
		s.PatternType = p.Pattern
		s.Confidence = p.Confidence
	}
	return s
}

// Client talks to the analysis service over HTTP.
type Client struct {
	endpoint string
	timeout  time.Duration
	http     *http.Client
	tracer   trace.Tracer
}

// New creates a Client for endpoint, the service base URL.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		timeout:  defaultTimeout,
		http:     &http.Client{},
		tracer:   otel.Tracer("follicle/signal"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze sends one request and maps the response to a Signal.
func (c *Client) Analyze(ctx context.Context, in Request) (sig *scoring.Signal, err error) { //nolint:gocritic // hugeParam
	ctx, span := c.tracer.Start(ctx, "signal.analyze",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("endpoint", c.endpoint),
			attribute.Int("images", len(in.Images)),
		),
	)
	start := time.Now()
	defer func() {
		outcome := outcomeOK
		if err != nil {
			outcome = metrics.ErrorType(err, Kinds...)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		metrics.RecordSignalRequest(outcome, float64(time.Since(start).Microseconds())/1000)
		span.End()
	}()

	if c.endpoint == "" {
		return nil, ErrNoEndpoint
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+analyzePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return nil, fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, snippet(raw))
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return out.signal(), nil
}

func snippet(b []byte) string {
	const limit = 256
	if len(b) > limit {
		b = b[:limit]
	}
	return strings.TrimSpace(string(b))
}
