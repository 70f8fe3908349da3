package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultRemoteTimeout = 2 * time.Minute

// RemoteLauncher drives a headless execution service that hosts the codec
// worker in an isolated page. File content crosses the wire base64-encoded.
type RemoteLauncher struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// RemoteOption customizes a RemoteLauncher.
type RemoteOption func(*RemoteLauncher)

// WithRemoteHTTPClient overrides the default HTTP client.
func WithRemoteHTTPClient(client *http.Client) RemoteOption {
	return func(l *RemoteLauncher) {
		if client != nil {
			l.httpClient = client
		}
	}
}

// WithRemoteToken sets the bearer token sent with every request.
func WithRemoteToken(token string) RemoteOption {
	return func(l *RemoteLauncher) {
		l.token = strings.TrimSpace(token)
	}
}

// NewRemoteLauncher constructs a launcher for the service at baseURL.
func NewRemoteLauncher(baseURL string, opts ...RemoteOption) *RemoteLauncher {
	l := &RemoteLauncher{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultRemoteTimeout},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RemoteLauncher) Name() string { return "remote" }

type healthResponse struct {
	Ready    bool `json:"ready"`
	Isolated bool `json:"isolated"`
}

// Probe requires the service to be healthy and cross-origin isolated; the
// codec worker needs shared memory, which is only available when isolated.
func (l *RemoteLauncher) Probe(ctx context.Context) error {
	if l.baseURL == "" {
		return errors.New("remote sandbox url not configured")
	}
	var health healthResponse
	if err := l.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return err
	}
	if !health.Ready {
		return errors.New("remote sandbox reports not ready")
	}
	if !health.Isolated {
		return errors.New("remote sandbox is not cross-origin isolated")
	}
	return nil
}

type createSessionRequest struct {
	Origin string `json:"origin"`
}

type createSessionResponse struct {
	ID string `json:"id"`
}

// Launch opens a remote session bound to origin.
func (l *RemoteLauncher) Launch(ctx context.Context, origin string) (Runtime, error) {
	var created createSessionResponse
	if err := l.do(ctx, http.MethodPost, "/sessions", createSessionRequest{Origin: origin}, &created); err != nil {
		return nil, err
	}
	if strings.TrimSpace(created.ID) == "" {
		return nil, errors.New("remote sandbox returned an empty session id")
	}
	return &remoteRuntime{launcher: l, id: created.ID}, nil
}

// RemoteStatusError reports a non-2xx response from the execution service.
type RemoteStatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *RemoteStatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote sandbox %s %s: http %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote sandbox %s %s: http %d", e.Method, e.Path, e.StatusCode)
}

func (l *RemoteLauncher) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, l.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if l.token != "" {
		req.Header.Set("Authorization", "Bearer "+l.token)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remote sandbox %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &payload) != nil || payload.Error == "" {
			payload.Error = strings.TrimSpace(string(raw))
		}
		return &RemoteStatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

type remoteRuntime struct {
	launcher *RemoteLauncher
	id       string
}

func (r *remoteRuntime) path(suffix string) string {
	return "/sessions/" + url.PathEscape(r.id) + suffix
}

func (r *remoteRuntime) filePath(name string) string {
	return r.path("/files/" + url.PathEscape(name))
}

type loadRequest struct {
	CoreURL string `json:"coreUrl,omitempty"`
}

func (r *remoteRuntime) Load(ctx context.Context, coreURL string) error {
	return r.launcher.do(ctx, http.MethodPost, r.path("/load"), loadRequest{CoreURL: coreURL}, nil)
}

type readyResponse struct {
	Ready bool `json:"ready"`
}

func (r *remoteRuntime) Ready(ctx context.Context) (bool, error) {
	var resp readyResponse
	if err := r.launcher.do(ctx, http.MethodGet, r.path("/ready"), nil, &resp); err != nil {
		return false, err
	}
	return resp.Ready, nil
}

type execRequest struct {
	Args []string `json:"args"`
}

func (r *remoteRuntime) Exec(ctx context.Context, args []string) (ExecResult, error) {
	var result ExecResult
	if err := r.launcher.do(ctx, http.MethodPost, r.path("/exec"), execRequest{Args: args}, &result); err != nil {
		return ExecResult{ExitCode: -1}, err
	}
	return result, nil
}

type filePayload struct {
	Data string `json:"data"`
}

func (r *remoteRuntime) WriteFile(ctx context.Context, name string, data []byte) error {
	return r.launcher.do(ctx, http.MethodPut, r.filePath(name), filePayload{Data: EncodeBytes(data)}, nil)
}

func (r *remoteRuntime) ReadFile(ctx context.Context, name string) ([]byte, error) {
	var payload filePayload
	if err := r.launcher.do(ctx, http.MethodGet, r.filePath(name), nil, &payload); err != nil {
		return nil, err
	}
	return DecodeBytes(payload.Data)
}

type fetchRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

type fetchResponse struct {
	SizeBytes int64 `json:"sizeBytes"`
}

func (r *remoteRuntime) Fetch(ctx context.Context, url, name string) (int64, error) {
	var resp fetchResponse
	if err := r.launcher.do(ctx, http.MethodPost, r.path("/fetch"), fetchRequest{URL: url, Name: name}, &resp); err != nil {
		return 0, err
	}
	return resp.SizeBytes, nil
}

func (r *remoteRuntime) Remove(ctx context.Context, name string) error {
	err := r.launcher.do(ctx, http.MethodDelete, r.filePath(name), nil, nil)
	var statusErr *RemoteStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

type listResponse struct {
	Files []string `json:"files"`
}

func (r *remoteRuntime) List(ctx context.Context) ([]string, error) {
	var resp listResponse
	if err := r.launcher.do(ctx, http.MethodGet, r.path("/files"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

func (r *remoteRuntime) Close(ctx context.Context) error {
	err := r.launcher.do(ctx, http.MethodDelete, r.path(""), nil, nil)
	var statusErr *RemoteStatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}
