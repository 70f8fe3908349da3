package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"splicer/internal/config"
)

const userAgent = "splicer/0.1"

// Notice describes one finished job.
type Notice struct {
	JobID     string
	Kind      string
	ResultURL string
	Preview   bool
	Error     string
	Elapsed   time.Duration
}

// Service defines the notification surface exposed to the job runner.
type Service interface {
	NotifyJobCompleted(ctx context.Context, notice Notice) error
	NotifyJobFailed(ctx context.Context, notice Notice) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return Noop()
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return Noop()
	}

	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Noop returns a Service that drops every notice.
func Noop() Service { return noopService{} }

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, notice Notice) error {
	kind := kindLabel(notice.Kind)
	data := payload{
		title:   fmt.Sprintf("Splicer - %s complete", kind),
		message: fmt.Sprintf("Job %s finished in %s\n%s", notice.JobID, notice.Elapsed.Round(time.Second), notice.ResultURL),
		tags:    []string{"splicer", strings.ToLower(kind), "completed"},
	}
	if notice.Preview {
		data.title = fmt.Sprintf("Splicer - %s preview", kind)
		data.message = fmt.Sprintf("Job %s produced a preview only (full assembly unavailable)\n%s", notice.JobID, notice.ResultURL)
		data.tags = []string{"splicer", strings.ToLower(kind), "preview", "warning"}
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, notice Notice) error {
	kind := kindLabel(notice.Kind)
	message := strings.TrimSpace(notice.Error)
	if message == "" {
		message = "job failed"
	}
	data := payload{
		title:    fmt.Sprintf("Splicer - %s failed", kind),
		message:  fmt.Sprintf("Job %s: %s", notice.JobID, message),
		tags:     []string{"splicer", strings.ToLower(kind), "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Splicer - Test",
		message:  "Notification system test",
		tags:     []string{"splicer", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func kindLabel(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "chunk":
		return "Chunk"
	case "stitch":
		return "Stitch"
	default:
		return "Job"
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, Notice) error { return nil }
func (noopService) NotifyJobFailed(context.Context, Notice) error    { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
