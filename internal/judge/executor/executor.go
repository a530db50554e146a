// Package executor talks to a JDoodle-compatible remote code execution API.
package executor

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

	"codeduel/internal/judge/normalize"
)

const (
	DefaultEndpoint = "https://api.jdoodle.com/v1/execute"
	defaultTimeout  = 15 * time.Second
	maxResponseSize = 1 << 20
)

// Kind classifies execution failures.
type Kind string

const (
	// KindBackendUnavailable means the backend rejected the account itself
	// (credentials, quota, rate limit). Further calls are pointless.
	KindBackendUnavailable Kind = "backend_unavailable"
	// KindRemote means the backend answered with an error for this run.
	KindRemote Kind = "remote"
	// KindTransport means the call did not complete (network, timeout, bad payload).
	KindTransport Kind = "transport"
)

// ExecutionError is returned for every failed execution.
type ExecutionError struct {
	Kind       Kind
	StatusCode int
	Reason     string
}

func (e *ExecutionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("execution failed (%s, status %d): %s", e.Kind, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("execution failed (%s): %s", e.Kind, e.Reason)
}

// IsBackendUnavailable reports whether err is an ExecutionError of KindBackendUnavailable.
func IsBackendUnavailable(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr) && execErr.Kind == KindBackendUnavailable
}

// Executor runs one script against one stdin.
type Executor interface {
	Execute(ctx context.Context, script, languageID, stdin string) (string, error)
}

// Config holds remote executor settings.
type Config struct {
	Endpoint     string        `yaml:"endpoint"`
	ClientID     string        `yaml:"clientId"`
	ClientSecret string        `yaml:"clientSecret"`
	VersionIndex string        `yaml:"versionIndex"`
	Timeout      time.Duration `yaml:"timeout"`
	// Markers overrides the diagnostic line markers stripped from output.
	Markers []string `yaml:"markers"`
}

// Client is an HTTP Executor.
type Client struct {
	endpoint     string
	clientID     string
	clientSecret string
	versionIndex string
	httpClient   *http.Client
	normalizer   *normalize.Normalizer
}

type executeRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	Script       string `json:"script"`
	Language     string `json:"language"`
	Stdin        string `json:"stdin"`
	VersionIndex string `json:"versionIndex"`
}

type executeResponse struct {
	Output     *string         `json:"output"`
	Error      string          `json:"error"`
	StatusCode int             `json:"statusCode"`
	Memory     json.RawMessage `json:"memory"`
	CPUTime    json.RawMessage `json:"cpuTime"`
}

// NewClient creates an executor client. The http.Client timeout bounds each call; there are no retries.
func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.VersionIndex == "" {
		cfg.VersionIndex = "0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		endpoint:     cfg.Endpoint,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		versionIndex: cfg.VersionIndex,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		normalizer:   normalize.New(cfg.Markers),
	}
}

// Execute runs script with stdin and returns normalized stdout.
func (c *Client) Execute(ctx context.Context, script, languageID, stdin string) (string, error) {
	if strings.TrimSpace(script) == "" {
		return "", &ExecutionError{Kind: KindRemote, Reason: "script is required"}
	}
	if strings.TrimSpace(languageID) == "" {
		return "", &ExecutionError{Kind: KindRemote, Reason: "language is required"}
	}
	if c.clientID == "" || c.clientSecret == "" {
		return "", &ExecutionError{Kind: KindBackendUnavailable, Reason: "executor credentials not configured"}
	}

	body, err := json.Marshal(executeRequest{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Script:       script,
		Language:     languageID,
		Stdin:        stdin,
		VersionIndex: c.versionIndex,
	})
	if err != nil {
		return "", &ExecutionError{Kind: KindTransport, Reason: fmt.Sprintf("encode request failed: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &ExecutionError{Kind: KindTransport, Reason: fmt.Sprintf("build request failed: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ExecutionError{Kind: KindTransport, Reason: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", &ExecutionError{Kind: KindTransport, StatusCode: resp.StatusCode, Reason: fmt.Sprintf("read response failed: %v", err)}
	}

	var payload executeResponse
	decodeErr := json.Unmarshal(raw, &payload)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := strings.TrimSpace(payload.Error)
		if reason == "" {
			reason = strings.TrimSpace(string(raw))
		}
		return "", &ExecutionError{Kind: kindForStatus(resp.StatusCode), StatusCode: resp.StatusCode, Reason: reason}
	}
	if decodeErr != nil {
		return "", &ExecutionError{Kind: KindTransport, StatusCode: resp.StatusCode, Reason: fmt.Sprintf("decode response failed: %v", decodeErr)}
	}
	if payload.Error != "" {
		return "", &ExecutionError{Kind: kindForStatus(payload.StatusCode), StatusCode: payload.StatusCode, Reason: payload.Error}
	}
	if payload.StatusCode != 0 && payload.StatusCode != http.StatusOK {
		return "", &ExecutionError{Kind: kindForStatus(payload.StatusCode), StatusCode: payload.StatusCode, Reason: "non-OK status in response"}
	}
	if payload.Output == nil {
		// Ran but printed nothing: the backend still reports resource usage.
		if hasValue(payload.Memory) || hasValue(payload.CPUTime) {
			return "", nil
		}
		return "", &ExecutionError{Kind: KindRemote, StatusCode: payload.StatusCode, Reason: "no output returned"}
	}
	return c.normalizer.Output(*payload.Output), nil
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return KindBackendUnavailable
	default:
		return KindRemote
	}
}

func hasValue(raw json.RawMessage) bool {
	v := strings.TrimSpace(string(raw))
	return v != "" && v != "null" && v != `""`
}
