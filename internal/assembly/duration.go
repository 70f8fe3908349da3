package assembly

import (
	"context"
	"errors"
	"fmt"

	"splicer/internal/ffmpeg"
	"splicer/internal/sandbox"
	"splicer/internal/services"
)

var (
	// ErrDurationUnparsed means the codec log carried no usable duration.
	ErrDurationUnparsed = errors.New("audio duration could not be determined")
	// ErrImplausibleDuration means the probed duration is outside the accepted range.
	ErrImplausibleDuration = errors.New("audio duration out of range")
)

// GetAudioDuration fetches url and returns its duration in milliseconds.
// Durations outside the configured bounds are rejected.
func (o *Orchestrator) GetAudioDuration(ctx context.Context, url string) (int64, error) {
	ctx = services.WithStage(ctx, "duration")
	var durationMs int64
	err := o.withRetry(ctx, "probe duration", func(ctx context.Context) error {
		return o.sessions.WithSession(ctx, func(ctx context.Context, s *sandbox.Session) error {
			defer s.Purge(context.WithoutCancel(ctx))
			if _, err := s.Fetch(ctx, url, ffmpeg.ProbeInput); err != nil {
				return services.Wrap(services.ErrCodecExecution, "duration", "fetch audio", url, err)
			}
			ms, err := probeDuration(ctx, s, ffmpeg.ProbeInput)
			if err != nil {
				return err
			}
			durationMs = ms
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	if durationMs < o.opts.MinAudioDurationMs || durationMs > o.opts.MaxAudioDurationMs {
		return 0, services.Wrap(services.ErrValidation, "duration", "bounds",
			fmt.Sprintf("%dms outside [%dms, %dms]", durationMs, o.opts.MinAudioDurationMs, o.opts.MaxAudioDurationMs),
			ErrImplausibleDuration)
	}
	return durationMs, nil
}

// probeDuration runs the describe command on name, whose non-zero exit is
// expected, and parses the Duration line. A zero duration counts as a failure.
func probeDuration(ctx context.Context, s *sandbox.Session, name string) (int64, error) {
	log, err := s.Probe(ctx, "probe "+name, ffmpeg.ProbeArgs(name))
	if err != nil {
		return 0, err
	}
	ms, err := ffmpeg.ParseDuration(log)
	if err != nil || ms <= 0 {
		return 0, services.Wrap(services.ErrValidation, "duration", "parse", name, ErrDurationUnparsed)
	}
	return ms, nil
}
