package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/google/uuid"
)

const (
	// HeaderResumedStream marks a status probe response whose body is the
	// live generation stream to attach to.
	HeaderResumedStream = "X-Resumed-Stream"
	headerRequestID     = "X-Request-Id"

	// DefaultConcurrency is the fan-out ceiling used when the admin
	// config cannot be read.
	DefaultConcurrency = 2
)

// Client talks to the prepdash generation backend. Identity rides on the
// cookie jar (session cookie reuse); the client adds no auth headers of
// its own. Streaming requests carry no client-side timeout, cancellation
// is the caller's context.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a Client for the given base URL.
func NewClient(base string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Jar: jar},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(headerRequestID, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// readErrorMessage extracts the server-provided {error} message from a
// non-OK response, falling back to empty when the body isn't the
// documented shape.
func readErrorMessage(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return ""
	}
	return payload.Error
}

// StartGeneration issues a generation request for one module and returns
// the streamed response body. A non-OK status is returned as an APIError
// before any byte of the stream is read.
func (c *Client) StartGeneration(ctx context.Context, module ModuleKey, instructions string) (io.ReadCloser, error) {
	payload := struct {
		Module       ModuleKey `json:"module"`
		Instructions string    `json:"instructions,omitempty"`
	}{Module: module, Instructions: instructions}
	return c.postStream(ctx, "/api/generate", payload)
}

// AddMore requests count additional items for a module; the streamed
// content is appended by the caller rather than replacing what it holds.
func (c *Client) AddMore(ctx context.Context, module ModuleKey, count int, instructions string) (io.ReadCloser, error) {
	payload := struct {
		Module       ModuleKey `json:"module"`
		Count        int       `json:"count"`
		Instructions string    `json:"instructions,omitempty"`
	}{Module: module, Count: count, Instructions: instructions}
	return c.postStream(ctx, "/api/generate/more", payload)
}

func (c *Client) postStream(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		msg := readErrorMessage(resp.Body)
		resp.Body.Close()
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	return resp.Body, nil
}

// StreamProbe is the outcome of a status probe. When Resumed is set the
// Body is the live stream and must be consumed and closed by the caller;
// otherwise Job holds the server-reported state, nil when the server
// answered 204 (nothing to resume).
type StreamProbe struct {
	Resumed bool
	Body    io.ReadCloser
	Job     *JobStatus
}

// StreamStatus probes the per-module status endpoint.
func (c *Client) StreamStatus(ctx context.Context, module ModuleKey) (*StreamProbe, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/generate/status/"+string(module), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent {
		resp.Body.Close()
		return &StreamProbe{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		msg := readErrorMessage(resp.Body)
		resp.Body.Close()
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	if resp.Header.Get(HeaderResumedStream) != "" {
		return &StreamProbe{Resumed: true, Body: resp.Body}, nil
	}
	defer resp.Body.Close()
	var job JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to decode job status: %w", err)
	}
	return &StreamProbe{Job: &job}, nil
}

// FetchContent fetches the persisted content for a module. A 404 means
// nothing has been generated yet and returns nil without error.
func (c *Client) FetchContent(ctx context.Context, module ModuleKey) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/content/"+string(module), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	return json.RawMessage(raw), nil
}

// MaxConcurrent reads the admin-configured generation fan-out ceiling.
// Any failure falls back to DefaultConcurrency; the ceiling protects a
// shared downstream rate limit, not a client resource, so a stale default
// is acceptable.
func (c *Client) MaxConcurrent(ctx context.Context) int {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/admin/config", nil)
	if err != nil {
		return DefaultConcurrency
	}
	resp, err := c.http.Do(req)
	if err != nil {
		Debugf("Can't read admin config: %v", err)
		return DefaultConcurrency
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return DefaultConcurrency
	}
	var cfg struct {
		MaxConcurrentGenerations int `json:"maxConcurrentGenerations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil || cfg.MaxConcurrentGenerations <= 0 {
		return DefaultConcurrency
	}
	return cfg.MaxConcurrentGenerations
}
