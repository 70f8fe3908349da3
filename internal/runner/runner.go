package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"splicer/internal/admission"
	"splicer/internal/assembly"
	"splicer/internal/config"
	"splicer/internal/jobs"
	"splicer/internal/logging"
	"splicer/internal/media"
	"splicer/internal/notifications"
	"splicer/internal/services"
	"splicer/internal/storage"
)

// InterruptedMessage is recorded on jobs abandoned by a previous process.
const InterruptedMessage = "interrupted by restart"

// Admitter checks requests against the configured ceilings.
type Admitter interface {
	ValidateChunk(ctx context.Context, req admission.ChunkRequest) (admission.Admission, error)
	ValidateStitch(ctx context.Context, req admission.StitchRequest) (admission.Admission, error)
}

// Orchestrator runs the codec operations.
type Orchestrator interface {
	ChunkAudio(ctx context.Context, req assembly.ChunkRequest, progress assembly.ProgressFunc) (media.ChunkManifest, error)
	StitchVideos(ctx context.Context, req assembly.StitchRequest, progress assembly.ProgressFunc) (media.VideoStitchResult, error)
	GetAudioDuration(ctx context.Context, url string) (int64, error)
	Capability(ctx context.Context) (bool, error)
}

// Fallback produces a preview when the full pipeline is unavailable.
type Fallback interface {
	Assemble(ctx context.Context, segments []media.Segment, audioURL string) (media.FallbackArtifact, error)
}

// Options tunes a Runner.
type Options struct {
	MaxConcurrent           int
	DefaultChunkDurationSec int
}

// OptionsFromConfig reads runner settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxConcurrent:           cfg.Limits.MaxConcurrentJobs,
		DefaultChunkDurationSec: cfg.Chunking.ChunkDurationSeconds,
	}
}

// Runner admits, persists and executes jobs.
type Runner struct {
	store    jobs.Store
	guard    Admitter
	orch     Orchestrator
	fallback Fallback
	uploader storage.Uploader
	notifier notifications.Service
	logger   *slog.Logger
	opts     Options

	sem   *semaphore.Weighted
	newID func() string

	mu      sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

// New constructs a Runner. Call Shutdown to stop it.
func New(store jobs.Store, guard Admitter, orch Orchestrator, fallback Fallback, uploader storage.Uploader, logger *slog.Logger, opts Options) *Runner {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.DefaultChunkDurationSec <= 0 {
		opts.DefaultChunkDurationSec = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		store:    store,
		guard:    guard,
		orch:     orch,
		fallback: fallback,
		uploader: uploader,
		notifier: notifications.Noop(),
		logger:   logging.NewComponentLogger(logger, "runner"),
		opts:     opts,
		sem:      semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		newID:    uuid.NewString,
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// SetNotifier replaces the outcome notifier. Call it before the first
// submission.
func (r *Runner) SetNotifier(n notifications.Service) {
	if n == nil {
		n = notifications.Noop()
	}
	r.notifier = n
}

// Store exposes the job store backing the runner.
func (r *Runner) Store() jobs.Store { return r.store }

// Recover fails jobs left pending or processing by a previous process. It
// must run before the first submission.
func (r *Runner) Recover(ctx context.Context) (int, error) {
	n, err := r.store.FailInterrupted(ctx, InterruptedMessage)
	if err != nil {
		return 0, fmt.Errorf("recover interrupted jobs: %w", err)
	}
	if n > 0 {
		logging.WarnWithContext(r.logger, "failed jobs interrupted by restart", "jobs_interrupted",
			logging.Int("count", n),
			logging.String(logging.FieldErrorHint, "resubmit the affected jobs"),
			logging.String(logging.FieldImpact, "interrupted jobs report failure to pollers"),
		)
	}
	return n, nil
}

// Capabilities reports whether full assembly is currently possible.
func (r *Runner) Capabilities(ctx context.Context) (bool, string) {
	ok, err := r.orch.Capability(ctx)
	if err != nil {
		return ok, err.Error()
	}
	return ok, ""
}

// AudioDuration probes the duration of an audio URL synchronously.
func (r *Runner) AudioDuration(ctx context.Context, url string) (int64, error) {
	if !media.IsFetchableURL(url) {
		return 0, services.Wrap(services.ErrValidation, "duration", "validate", "audioUrl must be an absolute http(s) URL", nil)
	}
	return r.orch.GetAudioDuration(ctx, url)
}

// Wait blocks until every started job has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown stops accepting jobs and waits for running ones. When ctx expires
// first, running jobs are cancelled and Shutdown waits for them to unwind.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}

var errShuttingDown = errors.New("runner is shutting down")

type outcome struct {
	resultURL string
	preview   bool
	result    any
}

type workFunc func(ctx context.Context, progress assembly.ProgressFunc) (outcome, error)

// start runs work for job in a new goroutine.
func (r *Runner) start(job *jobs.Job, work workFunc) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return services.Wrap(services.ErrSandboxUnavailable, "runner", "start", "", errShuttingDown)
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(job, work)
	return nil
}

func (r *Runner) run(job *jobs.Job, work workFunc) {
	defer r.wg.Done()
	ctx := services.WithStage(services.WithJobID(r.baseCtx, job.ID), string(job.Kind))
	logger := logging.WithContext(ctx, r.logger).With(logging.String(logging.FieldJobKind, string(job.Kind)))
	started := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			r.failJob(ctx, logger, job, fmt.Errorf("internal error: %v", rec))
		}
	}()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.failJob(ctx, logger, job, err)
		return
	}
	defer r.sem.Release(1)

	if err := r.store.MarkProcessing(ctx, job.ID); err != nil {
		logger.Error("mark processing failed", logging.Error(err))
		return
	}
	logger.Info("job started")

	out, err := work(ctx, r.progressFunc(ctx, logger, job.ID))
	if err != nil {
		r.failJob(ctx, logger, job, err)
		return
	}

	var payload []byte
	if out.result != nil {
		if payload, err = marshalResult(out.result); err != nil {
			r.failJob(ctx, logger, job, err)
			return
		}
	}
	if err := r.store.Complete(context.WithoutCancel(ctx), job.ID, out.resultURL, out.preview, payload); err != nil {
		logger.Error("persist completion failed", logging.Error(err))
		return
	}
	logger.Info("job completed",
		logging.String("result_url", out.resultURL),
		logging.Bool("preview", out.preview),
		logging.Duration("elapsed", time.Since(started)),
	)
	r.notify(ctx, logger, func(ctx context.Context) error {
		return r.notifier.NotifyJobCompleted(ctx, notifications.Notice{
			JobID:     job.ID,
			Kind:      string(job.Kind),
			ResultURL: out.resultURL,
			Preview:   out.preview,
			Elapsed:   time.Since(started),
		})
	})
}

func (r *Runner) notify(ctx context.Context, logger *slog.Logger, send func(context.Context) error) {
	if err := send(context.WithoutCancel(ctx)); err != nil {
		logging.WarnWithContext(logger, "job notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "job outcome was not pushed"),
		)
	}
}

// progressFunc forwards orchestrator progress to the store. Updates are
// sampled and never lower the recorded value.
func (r *Runner) progressFunc(ctx context.Context, logger *slog.Logger, id string) assembly.ProgressFunc {
	sampler := logging.NewProgressSampler(5)
	var (
		mu   sync.Mutex
		last int
	)
	return func(percent int, stage string) {
		mu.Lock()
		defer mu.Unlock()
		if percent < last {
			percent = last
		}
		if !sampler.ShouldLog(percent, stage) {
			return
		}
		last = percent
		if err := r.store.UpdateProgress(ctx, id, percent, stage, ""); err != nil {
			logger.Debug("progress update dropped", logging.Error(err))
			return
		}
		logger.Debug("job progress", logging.Int("percent", percent), logging.String("progress_stage", stage))
	}
}

func (r *Runner) failJob(ctx context.Context, logger *slog.Logger, job *jobs.Job, err error) {
	ctx = context.WithoutCancel(ctx)
	id := job.ID
	message := failureMessage(err)
	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hintFor(err)),
	)
	if storeErr := r.store.Fail(ctx, id, message); storeErr != nil {
		logger.Error("persist failure failed", logging.Error(storeErr))
	}
	for _, prefix := range storage.JobPrefixes(id) {
		if delErr := r.uploader.DeletePrefix(ctx, prefix); delErr != nil {
			logging.WarnWithContext(logger, "artifact cleanup failed", "cleanup_failed",
				logging.String("prefix", prefix),
				logging.Error(delErr),
				logging.String(logging.FieldImpact, "orphaned artifacts remain in storage"),
			)
		}
	}
	r.notify(ctx, logger, func(ctx context.Context) error {
		return r.notifier.NotifyJobFailed(ctx, notifications.Notice{
			JobID: id,
			Kind:  string(job.Kind),
			Error: message,
		})
	})
}

func failureMessage(err error) string {
	var rejected *admission.RejectedError
	if errors.As(err, &rejected) {
		return rejected.Reason
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "job failed"
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrSandboxUnavailable):
		return "run `splicer status` to check the codec sandbox"
	case errors.Is(err, services.ErrCodecExecution):
		return "inspect the codec log in the error for the failing command"
	case errors.Is(err, services.ErrUploadFailed):
		return "check storage credentials and bucket permissions"
	case errors.Is(err, services.ErrValidation):
		return "verify the submitted media"
	default:
		return "check logs for details"
	}
}
