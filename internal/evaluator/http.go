// Package evaluator provides Evaluator implementations for the service: a
// remote scoring webhook and a static weight table.
package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/copyleftdev/promptsearch/internal/optimization"
)

// DefaultTimeout bounds a single scoring request.
const DefaultTimeout = 60 * time.Second

// ScoreRequest is the body POSTed to the scoring service.
type ScoreRequest struct {
	Template   string   `json:"template"`
	Role       string   `json:"role"`
	Style      string   `json:"style"`
	Techniques []string `json:"techniques"`
}

type scoreResponse struct {
	Score *float64 `json:"score"`
}

// HTTPEvaluator scores candidates by POSTing their resolved names, together
// with the run's base template, to a remote scoring endpoint.
//
// Rate limits, server errors and transport failures are returned as plain
// errors so the cache retries them. Other non-2xx statuses and malformed
// bodies are permanent.
type HTTPEvaluator struct {
	url    string
	client *http.Client
}

var _ optimization.Evaluator = (*HTTPEvaluator)(nil)

// NewHTTPEvaluator returns an evaluator for url. A zero timeout uses
// DefaultTimeout.
func NewHTTPEvaluator(url string, timeout time.Duration) *HTTPEvaluator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPEvaluator{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Evaluate implements optimization.Evaluator.
func (e *HTTPEvaluator) Evaluate(ctx context.Context, c optimization.Candidate, space *optimization.SearchSpace) (float64, error) {
	names := c.Names(space)
	reqJSON, err := json.Marshal(ScoreRequest{
		Template:   optimization.TemplateFromContext(ctx),
		Role:       names.Role,
		Style:      names.Style,
		Techniques: names.Techniques,
	})
	if err != nil {
		return 0, optimization.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(reqJSON))
	if err != nil {
		return 0, optimization.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("scoring service error (%d): %s", resp.StatusCode, bytes.TrimSpace(body))
		if retryable(resp.StatusCode) {
			return 0, err
		}
		return 0, optimization.Permanent(err)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, optimization.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	if out.Score == nil {
		return 0, optimization.Permanent(errors.New("response has no score"))
	}
	return *out.Score, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500
}
