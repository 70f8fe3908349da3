package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"splicer/internal/config"
	"splicer/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newNtfy(t *testing.T, status int) (*config.Config, <-chan captured) {
	t.Helper()
	ch := make(chan captured, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ch <- captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL + "/splicer"
	return &cfg, ch
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyJobFailed(context.Background(), notifications.Notice{JobID: "j"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).TestNotification(context.Background()); err != nil {
		t.Fatalf("expected nil config to yield noop, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "chunk completed",
			send: func(s notifications.Service) error {
				return s.NotifyJobCompleted(context.Background(), notifications.Notice{
					JobID: "job-1", Kind: "chunk", ResultURL: "http://cdn/chunks.json", Elapsed: 12400 * time.Millisecond,
				})
			},
			expectTitle:   "Splicer - Chunk complete",
			expectMessage: "Job job-1 finished in 12s\nhttp://cdn/chunks.json",
			expectTags:    "splicer,chunk,completed",
		},
		{
			name: "stitch preview",
			send: func(s notifications.Service) error {
				return s.NotifyJobCompleted(context.Background(), notifications.Notice{
					JobID: "job-2", Kind: "stitch", ResultURL: "http://cdn/preview.mp4", Preview: true,
				})
			},
			expectTitle:   "Splicer - Stitch preview",
			expectMessage: "Job job-2 produced a preview only",
			expectTags:    "splicer,stitch,preview,warning",
		},
		{
			name: "failed",
			send: func(s notifications.Service) error {
				return s.NotifyJobFailed(context.Background(), notifications.Notice{
					JobID: "job-3", Kind: "stitch", Error: "Video segment 2 is 60.0 MB, exceeding the 50 MB limit",
				})
			},
			expectTitle:    "Splicer - Stitch failed",
			expectMessage:  "Job job-3: Video segment 2 is 60.0 MB",
			expectTags:     "splicer,stitch,error",
			expectPriority: "high",
		},
		{
			name:           "test",
			send:           func(s notifications.Service) error { return s.TestNotification(context.Background()) },
			expectTitle:    "Splicer - Test",
			expectMessage:  "Notification system test",
			expectTags:     "splicer,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, ch := newNtfy(t, http.StatusOK)
			if err := tc.send(notifications.NewService(cfg)); err != nil {
				t.Fatalf("send failed: %v", err)
			}
			got := <-ch
			if got.title != tc.expectTitle {
				t.Fatalf("title = %q, want %q", got.title, tc.expectTitle)
			}
			if !strings.HasPrefix(got.body, tc.expectMessage) {
				t.Fatalf("body = %q, want prefix %q", got.body, tc.expectMessage)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("tags = %q, want %q", got.tags, tc.expectTags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("priority = %q, want %q", got.priority, tc.expectPriority)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	cfg, _ := newNtfy(t, http.StatusForbidden)
	err := notifications.NewService(cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
