package poller

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"splicer/internal/config"
	"splicer/internal/logging"
	"splicer/internal/services"
)

const (
	defaultInterval    = 2 * time.Second
	defaultMaxAttempts = 60
	simulatedCeiling   = 90
)

// Job status values reported by a StatusSource.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Snapshot is one observation of a job's status record.
type Snapshot struct {
	Status    string
	Progress  int
	Stage     string
	Message   string
	Error     string
	ResultURL string
	Preview   bool
}

// StatusSource fetches the current status record of a job.
type StatusSource interface {
	JobStatus(ctx context.Context, jobID string) (Snapshot, error)
}

// Update is delivered to the progress callback after every poll.
type Update struct {
	Attempt  int
	Status   string
	Progress int
	Stage    string
	Message  string
	Elapsed  time.Duration
}

// Result describes a successfully completed job.
type Result struct {
	JobID     string
	ResultURL string
	Preview   bool
	Attempts  int
	Elapsed   time.Duration
}

// Options tunes a Poller. Zero values fall back to the defaults.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
	Now         func() time.Time
	Sleep       func(ctx context.Context, d time.Duration) error
}

// OptionsFromConfig reads the polling cadence from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Interval:    cfg.PollInterval(),
		MaxAttempts: cfg.Poller.MaxAttempts,
	}
}

// Poller drives the poll loop against a StatusSource.
type Poller struct {
	source StatusSource
	logger *slog.Logger
	opts   Options
}

// New constructs a Poller.
func New(source StatusSource, logger *slog.Logger, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Poller{
		source: source,
		logger: logging.NewComponentLogger(logger, "poller"),
		opts:   opts,
	}
}

// Poll fetches the job status until it is terminal or the attempt budget is
// spent. expected is the estimated job duration used for simulated progress;
// zero disables the estimate. onProgress may be nil.
func (p *Poller) Poll(ctx context.Context, jobID string, expected time.Duration, onProgress func(Update)) (Result, error) {
	ctx = services.WithJobID(ctx, jobID)
	logger := logging.WithContext(ctx, p.logger)
	start := p.opts.Now()
	shown := 0

	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := p.opts.Sleep(ctx, p.opts.Interval); err != nil {
				return Result{}, err
			}
		}

		snap, err := p.source.JobStatus(ctx, jobID)
		elapsed := p.opts.Now().Sub(start)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			logging.WarnWithContext(logger, "status fetch failed; will retry", "poll_fetch_failed",
				logging.Int("attempt", attempt),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check connectivity to the splicer server"),
				logging.String(logging.FieldImpact, "progress display may lag"),
			)
			continue
		}

		switch snap.Status {
		case StatusCompleted:
			shown = 100
			emit(onProgress, Update{Attempt: attempt, Status: snap.Status, Progress: shown, Stage: stageLabel(snap.Stage, shown, true), Message: snap.Message, Elapsed: elapsed})
			if strings.TrimSpace(snap.ResultURL) == "" {
				return Result{}, services.Wrap(services.ErrJobFailed, "poll", "complete", jobID, ErrMissingResult)
			}
			return Result{JobID: jobID, ResultURL: snap.ResultURL, Preview: snap.Preview, Attempts: attempt, Elapsed: elapsed}, nil
		case StatusFailed:
			message := strings.TrimSpace(snap.Error)
			if message == "" {
				message = "job failed"
			}
			return Result{}, &JobFailedError{JobID: jobID, Message: message}
		}

		shown = nextProgress(shown, simulatedProgress(elapsed, expected), snap.Progress)
		emit(onProgress, Update{Attempt: attempt, Status: snap.Status, Progress: shown, Stage: stageLabel(snap.Stage, shown, false), Message: snap.Message, Elapsed: elapsed})
	}

	return Result{}, &TimeoutError{JobID: jobID, Attempts: p.opts.MaxAttempts, Elapsed: p.opts.Now().Sub(start)}
}

// simulatedProgress estimates progress from elapsed time, capped at 90.
func simulatedProgress(elapsed, expected time.Duration) int {
	if expected <= 0 || elapsed <= 0 {
		return 0
	}
	return min(simulatedCeiling, int(float64(elapsed)/float64(expected)*simulatedCeiling))
}

// nextProgress never decreases and stays below 100 until completion.
func nextProgress(previous, simulated, reported int) int {
	return min(99, max(previous, simulated, reported))
}

// StageLabel names a progress value for display.
func StageLabel(progress int) string {
	switch {
	case progress < 10:
		return "Queued"
	case progress < 40:
		return "Preparing"
	case progress < 80:
		return "Processing"
	case progress < 100:
		return "Finalizing"
	default:
		return "Complete"
	}
}

func stageLabel(serverStage string, progress int, completed bool) string {
	if completed {
		return StageLabel(100)
	}
	if stage := strings.TrimSpace(serverStage); stage != "" {
		return stage
	}
	return StageLabel(progress)
}

func emit(fn func(Update), u Update) {
	if fn != nil {
		fn(u)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
