// Package testcase fetches problem test cases from a judgedat-compatible HTTP API.
package testcase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeduel/internal/judge/model"
)

const (
	DefaultBaseURL  = "https://judgedat.u-aizu.ac.jp"
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 8 << 20
)

// Provider lists and fetches test cases for a problem.
type Provider interface {
	ListHeaders(ctx context.Context, problemID string) ([]model.TestCaseHeader, error)
	Fetch(ctx context.Context, problemID string, serial int) (*model.TestCase, error)
}

// Config holds remote test case provider settings.
type Config struct {
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
}

// HTTPProvider reads test cases over HTTP.
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
}

type headerResponse struct {
	Headers []model.TestCaseHeader `json:"headers"`
}

type caseResponse struct {
	In  *string `json:"in"`
	Out *string `json:"out"`
}

func NewHTTPProvider(cfg Config) *HTTPProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &HTTPProvider{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// ListHeaders returns the test case headers of problemID in the order the remote lists them.
func (p *HTTPProvider) ListHeaders(ctx context.Context, problemID string) ([]model.TestCaseHeader, error) {
	if strings.TrimSpace(problemID) == "" {
		return nil, fmt.Errorf("problem id is required")
	}
	var resp headerResponse
	if err := p.getJSON(ctx, fmt.Sprintf("/testcases/%s/header", url.PathEscape(problemID)), &resp); err != nil {
		return nil, err
	}
	return resp.Headers, nil
}

// Fetch returns the literal input/output pair of one test case.
func (p *HTTPProvider) Fetch(ctx context.Context, problemID string, serial int) (*model.TestCase, error) {
	var resp caseResponse
	if err := p.getJSON(ctx, fmt.Sprintf("/testcases/%s/%d", url.PathEscape(problemID), serial), &resp); err != nil {
		return nil, err
	}
	if resp.In == nil || resp.Out == nil {
		return nil, fmt.Errorf("test case %s/%d missing in/out", problemID, serial)
	}
	return &model.TestCase{Input: *resp.In, ExpectedOutput: *resp.Out}, nil
}

func (p *HTTPProvider) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read %s failed: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s returned status %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s failed: %w", path, err)
	}
	return nil
}
