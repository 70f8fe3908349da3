package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"splicer/internal/config"
	"splicer/internal/logging"
	"splicer/internal/sandbox"
	"splicer/internal/services"
	"splicer/internal/storage"
)

const (
	defaultRetryBackoff       = 2 * time.Second
	defaultCapabilityTTL      = time.Minute
	defaultMinAudioDurationMs = 5_000
	defaultMaxAudioDurationMs = 600_000
)

// ProgressFunc receives coarse progress (0-100) and a stage label.
type ProgressFunc func(percent int, stage string)

// Options tunes an Orchestrator.
type Options struct {
	RetryBackoff       time.Duration
	CapabilityTTL      time.Duration
	MinAudioDurationMs int64
	MaxAudioDurationMs int64
}

// OptionsFromConfig copies the orchestration settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		RetryBackoff:       cfg.CodecRetryBackoff(),
		CapabilityTTL:      cfg.CapabilityTTL(),
		MinAudioDurationMs: cfg.Limits.MinAudioDurationMs,
		MaxAudioDurationMs: cfg.Limits.MaxAudioDurationMs,
	}
}

// Orchestrator runs chunk, stitch and duration operations inside sandbox
// sessions and uploads what they produce.
type Orchestrator struct {
	sessions *sandbox.Manager
	uploader storage.Uploader
	logger   *slog.Logger
	opts     Options

	sleep func(context.Context, time.Duration) error
	now   func() time.Time

	capMu      sync.Mutex
	capChecked time.Time
	capOK      bool
	capErr     error
}

// New constructs an Orchestrator.
func New(sessions *sandbox.Manager, uploader storage.Uploader, logger *slog.Logger, opts Options) *Orchestrator {
	if opts.RetryBackoff < 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	if opts.CapabilityTTL <= 0 {
		opts.CapabilityTTL = defaultCapabilityTTL
	}
	if opts.MinAudioDurationMs <= 0 {
		opts.MinAudioDurationMs = defaultMinAudioDurationMs
	}
	if opts.MaxAudioDurationMs <= 0 {
		opts.MaxAudioDurationMs = defaultMaxAudioDurationMs
	}
	return &Orchestrator{
		sessions: sessions,
		uploader: uploader,
		logger:   logging.NewComponentLogger(logger, "assembly"),
		opts:     opts,
		sleep:    sleepContext,
		now:      time.Now,
	}
}

// SetSleeper replaces the retry backoff sleeper. Tests use it to avoid delays.
func (o *Orchestrator) SetSleeper(sleep func(context.Context, time.Duration) error) {
	if sleep != nil {
		o.sleep = sleep
	}
}

// CanUseFullPipeline reports whether a full codec session can currently be
// established. Results are cached for the capability TTL.
func (o *Orchestrator) CanUseFullPipeline(ctx context.Context) bool {
	ok, _ := o.Capability(ctx)
	return ok
}

// Capability is CanUseFullPipeline with the reason for a negative answer.
func (o *Orchestrator) Capability(ctx context.Context) (bool, error) {
	o.capMu.Lock()
	defer o.capMu.Unlock()
	if !o.capChecked.IsZero() && o.now().Sub(o.capChecked) < o.opts.CapabilityTTL {
		return o.capOK, o.capErr
	}
	err := o.sessions.Probe(ctx)
	o.capChecked = o.now()
	o.capOK = err == nil
	o.capErr = err
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "full pipeline unavailable", "capability_probe_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check sandbox.backend settings and run `splicer status`"),
			logging.String(logging.FieldImpact, "stitch jobs will produce preview-only output"),
		)
	}
	return o.capOK, o.capErr
}

// BackendName returns the launcher name backing this orchestrator.
func (o *Orchestrator) BackendName() string {
	return o.sessions.Launcher().Name()
}

// withRetry runs fn, retrying once after the backoff when it fails with a
// codec execution error. Every other failure is returned as is.
func (o *Orchestrator) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil || !errors.Is(err, services.ErrCodecExecution) {
		return err
	}
	logger := logging.WithContext(ctx, o.logger)
	logger.Info("codec execution failed; retrying once",
		logging.String("op", op),
		logging.Duration("backoff", o.opts.RetryBackoff),
		logging.Error(err),
	)
	if sleepErr := o.sleep(ctx, o.opts.RetryBackoff); sleepErr != nil {
		return sleepErr
	}
	if retryErr := fn(ctx); retryErr != nil {
		return fmt.Errorf("%s failed after retry: %w", op, retryErr)
	}
	return nil
}

func report(progress ProgressFunc, percent int, stage string) {
	if progress != nil {
		progress(percent, stage)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
