package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"splicer/internal/poller"
	"splicer/internal/services"
)

const defaultClientTimeout = 30 * time.Second

// Client talks to a running splicer server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// NewClient constructs a client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is a non-2xx reply from the server.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s: http %d", e.Method, e.Path, e.StatusCode)
}

// Unwrap maps the status back onto the services taxonomy.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnprocessableEntity:
		return services.ErrAdmissionRejected
	case http.StatusBadRequest:
		return services.ErrValidation
	case http.StatusNotFound:
		return services.ErrNotFound
	case http.StatusServiceUnavailable:
		return services.ErrSandboxUnavailable
	case http.StatusGatewayTimeout:
		return services.ErrTimeout
	default:
		return nil
	}
}

// SubmitChunk starts an audio chunking job.
func (c *Client) SubmitChunk(ctx context.Context, req ChunkRequest) (Job, error) {
	var resp JobEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/jobs/chunk", req, &resp); err != nil {
		return Job{}, err
	}
	return resp.Job, nil
}

// SubmitStitch starts a video stitching job.
func (c *Client) SubmitStitch(ctx context.Context, req StitchRequest) (Job, error) {
	var resp JobEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/jobs/stitch", req, &resp); err != nil {
		return Job{}, err
	}
	return resp.Job, nil
}

// GetJob fetches one job record.
func (c *Client) GetJob(ctx context.Context, id string) (Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// ListJobs lists jobs newest first. Zero limit and empty status are omitted.
func (c *Client) ListJobs(ctx context.Context, limit int, status string) ([]Job, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if status = strings.TrimSpace(status); status != "" {
		query.Set("status", status)
	}
	path := "/api/jobs"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp JobList
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// AudioDuration asks the server to probe an audio URL.
func (c *Client) AudioDuration(ctx context.Context, audioURL string) (int64, error) {
	var resp DurationResponse
	if err := c.do(ctx, http.MethodPost, "/api/audio/duration", DurationRequest{AudioURL: audioURL}, &resp); err != nil {
		return 0, err
	}
	return resp.DurationMs, nil
}

// Capabilities reports whether the server can run the full pipeline.
func (c *Client) Capabilities(ctx context.Context) (Capabilities, error) {
	var resp Capabilities
	if err := c.do(ctx, http.MethodGet, "/api/capabilities", nil, &resp); err != nil {
		return Capabilities{}, err
	}
	return resp, nil
}

// Health checks the liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// JobStatus implements poller.StatusSource.
func (c *Client) JobStatus(ctx context.Context, jobID string) (poller.Snapshot, error) {
	job, err := c.GetJob(ctx, jobID)
	if err != nil {
		return poller.Snapshot{}, err
	}
	return poller.Snapshot{
		Status:    job.Status,
		Progress:  job.Progress,
		Stage:     job.Stage,
		Message:   job.Message,
		Error:     job.Error,
		ResultURL: job.ResultURL,
		Preview:   job.Preview,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
		var payload ErrorResponse
		if data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); readErr == nil {
			if json.Unmarshal(data, &payload) == nil {
				statusErr.Message = payload.Error
			}
		}
		return statusErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s %s: empty response", method, path)
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
