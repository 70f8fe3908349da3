package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"splicer/internal/admission"
	"splicer/internal/api"
	"splicer/internal/jobs"
	"splicer/internal/logging"
	"splicer/internal/poller"
	"splicer/internal/runner"
	"splicer/internal/services"
	"splicer/internal/testsupport"
)

type fakeService struct {
	store jobs.Store

	mu        sync.Mutex
	seq       int
	chunks    []runner.ChunkInput
	stitches  []runner.StitchInput
	rejectErr error
	duration  int64
	decodeErr error
}

func (f *fakeService) nextID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("job-%d", f.seq)
}

func (f *fakeService) SubmitChunk(ctx context.Context, in runner.ChunkInput) (*jobs.Job, error) {
	if f.rejectErr != nil {
		return nil, f.rejectErr
	}
	f.mu.Lock()
	f.chunks = append(f.chunks, in)
	f.mu.Unlock()
	return f.store.Create(ctx, f.nextID(), jobs.KindChunk, []byte(`{}`))
}

func (f *fakeService) SubmitStitch(ctx context.Context, in runner.StitchInput) (*jobs.Job, error) {
	if f.rejectErr != nil {
		return nil, f.rejectErr
	}
	f.mu.Lock()
	f.stitches = append(f.stitches, in)
	f.mu.Unlock()
	return f.store.Create(ctx, f.nextID(), jobs.KindStitch, []byte(`{}`))
}

func (f *fakeService) AudioDuration(context.Context, string) (int64, error) {
	if f.decodeErr != nil {
		return 0, f.decodeErr
	}
	return f.duration, nil
}

func (f *fakeService) Capabilities(context.Context) (bool, string) {
	return true, "sandbox ready"
}

type fixture struct {
	svc    *fakeService
	store  jobs.Store
	server *httptest.Server
	client *api.Client
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(token))
	store := testsupport.MustOpenStore(t, cfg)
	svc := &fakeService{store: store, duration: 30000}
	opts := api.ServerOptionsFromConfig(cfg)
	srv := api.NewServer(opts, svc, store, logging.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{
		svc:    svc,
		store:  store,
		server: ts,
		client: api.NewClient(ts.URL, api.WithToken(token), api.WithHTTPClient(ts.Client())),
	}
}

func (f *fixture) post(t *testing.T, path, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

const stitchBody = `{"segments":[
 {"index":1,"url":"https://cdn.example/1.mp4","durationMs":5000,"startTimeMs":5000,"endTimeMs":10000},
 {"index":0,"url":"https://cdn.example/0.mp4","durationMs":5000,"startTimeMs":0,"endTimeMs":5000}
],"audioUrl":"https://cdn.example/a.mp3"}`

func TestAPIRequiresBearerToken(t *testing.T) {
	f := newFixture(t, "secret")

	resp := f.post(t, "/api/jobs/chunk", "", `{"audioUrl":"https://cdn.example/a.mp3","totalDurationMs":30000}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp = f.post(t, "/api/jobs/chunk", "wrong", `{"audioUrl":"https://cdn.example/a.mp3","totalDurationMs":30000}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong token, got %d", resp.StatusCode)
	}
	if len(f.svc.chunks) != 0 {
		t.Fatalf("unauthorized request reached the service")
	}

	health, err := f.server.Client().Get(f.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("healthz should not require auth, got %d", health.StatusCode)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	f := newFixture(t, "")

	req, _ := http.NewRequest(http.MethodGet, f.server.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	resp, err = f.server.Client().Get(f.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected generated request id")
	}
}

func TestSubmitChunkAccepted(t *testing.T) {
	f := newFixture(t, "secret")

	resp := f.post(t, "/api/jobs/chunk", "secret", `{"audioUrl":"https://cdn.example/a.mp3","chunkDurationSec":10,"totalDurationMs":30000}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var env api.JobEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Job.ID != "job-1" || env.Job.Kind != "chunk" || env.Job.Status != "pending" {
		t.Fatalf("unexpected job %+v", env.Job)
	}
	if len(f.svc.chunks) != 1 || f.svc.chunks[0].ChunkDurationSec != 10 || f.svc.chunks[0].TotalDurationMs != 30000 {
		t.Fatalf("unexpected service input %+v", f.svc.chunks)
	}
}

func TestSubmitChunkRejectsUnknownFields(t *testing.T) {
	f := newFixture(t, "")

	resp := f.post(t, "/api/jobs/chunk", "", `{"audioUrl":"https://cdn.example/a.mp3","bogus":1}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAdmissionRejectionReturns422WithReason(t *testing.T) {
	f := newFixture(t, "")
	reason := "audio file is 120.0 MB, exceeding the 100 MB limit"
	f.svc.rejectErr = &admission.RejectedError{Reason: reason, SizeBytes: 120 << 20, LimitMB: 100}

	resp := f.post(t, "/api/jobs/chunk", "", `{"audioUrl":"https://cdn.example/a.mp3","totalDurationMs":30000}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if msg := decodeError(t, resp); msg != reason {
		t.Fatalf("expected reason %q, got %q", reason, msg)
	}
}

func TestSubmitStitchValidatesSchema(t *testing.T) {
	f := newFixture(t, "")

	cases := map[string]string{
		"empty segments": `{"segments":[]}`,
		"bad url":        `{"segments":[{"index":0,"url":"ftp://x","durationMs":1,"startTimeMs":0,"endTimeMs":1}]}`,
		"missing field":  `{"segments":[{"index":0,"url":"https://x/0.mp4"}]}`,
		"not json":       `{"segments":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := f.post(t, "/api/jobs/stitch", "", body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
	if len(f.svc.stitches) != 0 {
		t.Fatalf("invalid requests reached the service: %+v", f.svc.stitches)
	}
}

func TestSubmitStitchAccepted(t *testing.T) {
	f := newFixture(t, "")

	job, err := f.client.SubmitStitch(context.Background(), api.StitchRequest{})
	if err == nil {
		t.Fatalf("expected schema failure for empty request, got job %+v", job)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	resp := f.post(t, "/api/jobs/stitch", "", stitchBody)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if len(f.svc.stitches) != 1 {
		t.Fatalf("expected one stitch submission, got %d", len(f.svc.stitches))
	}
	in := f.svc.stitches[0]
	if len(in.Segments) != 2 || in.AudioURL != "https://cdn.example/a.mp3" {
		t.Fatalf("unexpected stitch input %+v", in)
	}
}

func TestGetJobNotFound(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.client.GetJob(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 status error, got %v", err)
	}
}

func TestListJobsFiltersByStatus(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	testsupport.NewJob(t, f.store, "a", jobs.KindChunk)
	testsupport.NewJob(t, f.store, "b", jobs.KindStitch)
	if err := f.store.Fail(ctx, "a", "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	all, err := f.client.ListJobs(ctx, 0, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != "b" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	failed, err := f.client.ListJobs(ctx, 10, "failed")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "a" || failed[0].Error != "boom" {
		t.Fatalf("unexpected failed list %+v", failed)
	}

	if _, err := f.client.ListJobs(ctx, 0, "sideways"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestAudioDurationAndCapabilities(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	ms, err := f.client.AudioDuration(ctx, "https://cdn.example/a.mp3")
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	if ms != 30000 {
		t.Fatalf("expected 30000ms, got %d", ms)
	}

	f.svc.decodeErr = services.Wrap(services.ErrValidation, "duration", "bounds", "too short", nil)
	if _, err := f.client.AudioDuration(ctx, "https://cdn.example/a.mp3"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	caps, err := f.client.Capabilities(ctx)
	if err != nil {
		t.Fatalf("capabilities: %v", err)
	}
	if !caps.FullPipeline || caps.Detail != "sandbox ready" || caps.Backend == "" {
		t.Fatalf("unexpected capabilities %+v", caps)
	}
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	f := newFixture(t, "")

	resp, err := f.server.Client().Get(f.server.URL + "/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if msg := decodeError(t, resp); msg != "not found" {
		t.Fatalf("unexpected body %q", msg)
	}
}

func TestClientPollsJobToCompletion(t *testing.T) {
	f := newFixture(t, "secret")
	ctx := context.Background()

	job, err := f.client.SubmitChunk(ctx, api.ChunkRequest{AudioURL: "https://cdn.example/a.mp3", TotalDurationMs: 30000})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	attempts := 0
	p := poller.New(f.client, logging.NewNop(), poller.Options{
		Interval:    time.Millisecond,
		MaxAttempts: 10,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			attempts++
			switch attempts {
			case 1:
				if err := f.store.MarkProcessing(ctx, job.ID); err != nil {
					return err
				}
				return f.store.UpdateProgress(ctx, job.ID, 40, "chunk", "chunk 1/3")
			case 2:
				return f.store.Complete(ctx, job.ID, "https://cdn.example/chunks.json", false, json.RawMessage(`{"chunks":[]}`))
			}
			return nil
		},
	})

	var updates []poller.Update
	res, err := p.Poll(ctx, job.ID, 0, func(u poller.Update) { updates = append(updates, u) })
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if res.ResultURL != "https://cdn.example/chunks.json" || res.Preview {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(updates) != 3 {
		t.Fatalf("expected 3 updates, got %d", len(updates))
	}
	if updates[1].Progress != 40 || updates[2].Progress != 100 {
		t.Fatalf("unexpected progress sequence %+v", updates)
	}
}

func TestStatusErrorMessageFromBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"sandbox unavailable"}`))
	}))
	defer ts.Close()

	err := api.NewClient(ts.URL).Health(context.Background())
	if !errors.Is(err, services.ErrSandboxUnavailable) {
		t.Fatalf("expected sandbox unavailable, got %v", err)
	}
	if err.Error() != "sandbox unavailable" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
