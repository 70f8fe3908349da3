package poller_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"splicer/internal/poller"
	"splicer/internal/services"
)

type scriptedSource struct {
	steps []step
	calls int
}

type step struct {
	snap poller.Snapshot
	err  error
}

func (s *scriptedSource) JobStatus(context.Context, string) (poller.Snapshot, error) {
	idx := min(s.calls, len(s.steps)-1)
	s.calls++
	return s.steps[idx].snap, s.steps[idx].err
}

type fakeClock struct {
	now    time.Time
	sleeps int
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps++
	c.now = c.now.Add(d)
	return nil
}

func newPoller(source poller.StatusSource, clock *fakeClock, attempts int) *poller.Poller {
	return poller.New(source, nil, poller.Options{
		Interval:    2 * time.Second,
		MaxAttempts: attempts,
		Now:         clock.Now,
		Sleep:       clock.Sleep,
	})
}

func processing(progress int) step {
	return step{snap: poller.Snapshot{Status: poller.StatusProcessing, Progress: progress}}
}

func TestPollProgressIsMonotonic(t *testing.T) {
	source := &scriptedSource{steps: []step{
		processing(0),
		processing(50),
		processing(20),
		{err: errors.New("connection reset")},
		processing(60),
		{snap: poller.Snapshot{Status: poller.StatusCompleted, ResultURL: "http://x/final.mp4"}},
	}}
	clock := &fakeClock{now: time.Unix(0, 0)}

	var seen []int
	result, err := newPoller(source, clock, 10).Poll(context.Background(), "job-1", 20*time.Second, func(u poller.Update) {
		seen = append(seen, u.Progress)
	})
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if result.ResultURL != "http://x/final.mp4" || result.Attempts != 6 {
		t.Fatalf("unexpected result: %+v", result)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("progress decreased: %v", seen)
		}
	}
	if seen[len(seen)-1] != 100 {
		t.Fatalf("expected final progress 100, got %v", seen)
	}
	for _, p := range seen[:len(seen)-1] {
		if p >= 100 {
			t.Fatalf("progress reached 100 before completion: %v", seen)
		}
	}
	if clock.sleeps != 5 {
		t.Fatalf("expected a sleep between each of 6 polls, got %d", clock.sleeps)
	}
}

func TestPollSimulatedProgressCapsAt90(t *testing.T) {
	source := &scriptedSource{steps: []step{processing(0)}}
	clock := &fakeClock{now: time.Unix(0, 0)}

	var last poller.Update
	_, err := newPoller(source, clock, 20).Poll(context.Background(), "job-1", 10*time.Second, func(u poller.Update) { last = u })
	var timeout *poller.TimeoutError
	if !errors.As(err, &timeout) || !errors.Is(err, services.ErrPollTimeout) {
		t.Fatalf("expected poll timeout, got %v", err)
	}
	if timeout.Attempts != 20 {
		t.Fatalf("expected 20 attempts, got %d", timeout.Attempts)
	}
	if last.Progress != 90 || last.Stage != "Finalizing" {
		t.Fatalf("expected simulated progress capped at 90, got %+v", last)
	}
}

func TestPollFailedJobReturnsRecordedMessage(t *testing.T) {
	source := &scriptedSource{steps: []step{
		processing(10),
		{snap: poller.Snapshot{Status: poller.StatusFailed, Error: "Audio file too large: 23.8MB (max 20MB)"}},
	}}
	_, err := newPoller(source, &fakeClock{}, 5).Poll(context.Background(), "job-1", 0, nil)
	var failed *poller.JobFailedError
	if !errors.As(err, &failed) || !errors.Is(err, services.ErrJobFailed) {
		t.Fatalf("expected job failure, got %v", err)
	}
	if err.Error() != "Audio file too large: 23.8MB (max 20MB)" {
		t.Fatalf("message not verbatim: %q", err.Error())
	}
}

func TestPollFailedJobWithoutMessage(t *testing.T) {
	source := &scriptedSource{steps: []step{{snap: poller.Snapshot{Status: poller.StatusFailed}}}}
	_, err := newPoller(source, &fakeClock{}, 5).Poll(context.Background(), "job-1", 0, nil)
	if err == nil || err.Error() != "job failed" {
		t.Fatalf("expected default message, got %v", err)
	}
}

func TestPollCompletedWithoutResult(t *testing.T) {
	source := &scriptedSource{steps: []step{{snap: poller.Snapshot{Status: poller.StatusCompleted}}}}
	_, err := newPoller(source, &fakeClock{}, 5).Poll(context.Background(), "job-1", 0, nil)
	if !errors.Is(err, poller.ErrMissingResult) {
		t.Fatalf("expected ErrMissingResult, got %v", err)
	}
}

func TestPollUsesServerStage(t *testing.T) {
	source := &scriptedSource{steps: []step{
		{snap: poller.Snapshot{Status: poller.StatusProcessing, Progress: 45, Stage: "chunk 3/5"}},
		{snap: poller.Snapshot{Status: poller.StatusCompleted, ResultURL: "http://x/y", Preview: true}},
	}}
	var stages []string
	result, err := newPoller(source, &fakeClock{}, 5).Poll(context.Background(), "job-1", 0, func(u poller.Update) {
		stages = append(stages, u.Stage)
	})
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if !result.Preview {
		t.Fatal("expected preview flag to carry through")
	}
	if len(stages) != 2 || stages[0] != "chunk 3/5" || stages[1] != "Complete" {
		t.Fatalf("unexpected stages: %v", stages)
	}
}

func TestPollStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	source := &scriptedSource{steps: []step{processing(0)}}
	p := poller.New(source, nil, poller.Options{
		Interval:    time.Hour,
		MaxAttempts: 3,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})
	if _, err := p.Poll(ctx, "job-1", 0, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if source.calls != 1 {
		t.Fatalf("expected a single fetch before cancellation, got %d", source.calls)
	}
}

func TestStageLabel(t *testing.T) {
	cases := map[int]string{0: "Queued", 9: "Queued", 10: "Preparing", 39: "Preparing", 40: "Processing", 80: "Finalizing", 99: "Finalizing", 100: "Complete"}
	for progress, want := range cases {
		if got := poller.StageLabel(progress); got != want {
			t.Fatalf("StageLabel(%d) = %q, want %q", progress, got, want)
		}
	}
}
