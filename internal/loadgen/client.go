package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/follicle/internal/domain/model"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// client is a small JSON client for the service API.
type client struct {
	http  *http.Client
	base  string
	token string
}

func newClient(cfg *Config) *client {
	return &client{
		http:  &http.Client{Timeout: cfg.Timeout},
		base:  strings.TrimRight(cfg.BaseURL, "/"),
		token: cfg.Token,
	}
}

// do sends body as JSON and decodes a 2xx response into out.
func (c *client) do(ctx context.Context, method, path string, headers map[string]string, body, out any) (int, error) {
	var rd io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

func (c *client) health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
	return err
}

func (c *client) createProfile(ctx context.Context, i int) (string, error) {
	in := map[string]any{
		"name":  fmt.Sprintf("load-%d-%d", time.Now().Unix(), i),
		"email": fmt.Sprintf("load-%d@example.com", i),
	}
	var p model.Profile
	if _, err := c.do(ctx, http.MethodPost, "/profiles", nil, in, &p); err != nil {
		return "", err
	}
	return p.ID, nil
}

func (c *client) submit(ctx context.Context, s Submission) Result {
	body := map[string]any{"profile_id": s.ProfileID, "answers": s.Answers}
	headers := map[string]string{"Idempotency-Key": s.Key}
	var r Result
	r.Status, r.Err = c.do(ctx, http.MethodPost, "/assessments", headers, body, &r.Record)
	return r
}

func (c *client) history(ctx context.Context, profileID string, limit int) ([]model.ReportRecord, error) {
	var out []model.ReportRecord
	_, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/profiles/%s/reports?limit=%d", profileID, limit), nil, nil, &out)
	return out, err
}
