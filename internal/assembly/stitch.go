package assembly

import (
	"context"
	"fmt"
	"strings"

	"splicer/internal/ffmpeg"
	"splicer/internal/logging"
	"splicer/internal/media"
	"splicer/internal/sandbox"
	"splicer/internal/services"
	"splicer/internal/storage"
)

// StitchRequest asks for Segments to be concatenated and, when AudioURL is
// set, muxed with that audio track.
type StitchRequest struct {
	JobID     string
	Segments  []media.Segment
	AudioURL  string
	OutputKey string
}

// FinalName is the default object name of a stitched video.
const FinalName = "final.mp4"

// StitchVideos concatenates the segments in index order, optionally replaces
// the audio, and uploads the result. The reported duration is the total
// segment duration, capped by the probed audio duration when audio is muxed.
func (o *Orchestrator) StitchVideos(ctx context.Context, req StitchRequest, progress ProgressFunc) (media.VideoStitchResult, error) {
	if len(req.Segments) == 0 {
		return media.VideoStitchResult{}, services.Wrap(services.ErrValidation, "stitch", "plan", "", media.ErrNoSegments)
	}
	ctx = services.WithStage(services.WithJobID(ctx, req.JobID), "stitch")

	var result media.VideoStitchResult
	err := o.withRetry(ctx, "stitch videos", func(ctx context.Context) error {
		var runErr error
		result, runErr = o.stitchOnce(ctx, req, progress)
		return runErr
	})
	if err != nil {
		return media.VideoStitchResult{}, err
	}
	return result, nil
}

func (o *Orchestrator) stitchOnce(ctx context.Context, req StitchRequest, progress ProgressFunc) (media.VideoStitchResult, error) {
	segments := media.SortSegments(req.Segments)
	videoMs := media.TotalDurationMs(segments)
	hasAudio := strings.TrimSpace(req.AudioURL) != ""
	logger := logging.WithContext(ctx, o.logger)

	key := strings.TrimSpace(req.OutputKey)
	if key == "" {
		key = storage.Key(storage.CategoryStitchedVideos, req.JobID, FinalName)
	}

	result := media.VideoStitchResult{
		JobID:           req.JobID,
		Key:             key,
		Mode:            media.ModeFull,
		HasAudio:        hasAudio,
		SegmentCount:    len(segments),
		DurationMs:      videoMs,
		VideoDurationMs: videoMs,
	}

	err := o.sessions.WithSession(ctx, func(ctx context.Context, s *sandbox.Session) error {
		defer s.Purge(context.WithoutCancel(ctx))

		names := make([]string, 0, len(segments))
		for i, seg := range segments {
			name := ffmpeg.SegmentFileName(seg.Index)
			if _, err := s.Fetch(ctx, seg.URL, name); err != nil {
				return services.Wrap(services.ErrCodecExecution, "stitch", "fetch segment", fmt.Sprintf("segment %d", seg.Index), err)
			}
			names = append(names, name)
			report(progress, 5+(i+1)*40/len(segments), fmt.Sprintf("fetched %d/%d", i+1, len(segments)))
		}

		if err := s.WriteFile(ctx, ffmpeg.ConcatList, []byte(ffmpeg.BuildConcatList(names))); err != nil {
			return services.Wrap(services.ErrCodecExecution, "stitch", "write concat list", "", err)
		}
		report(progress, 50, "concatenating")
		if _, err := s.Exec(ctx, "concat", ffmpeg.ConcatArgs(ffmpeg.ConcatList, ffmpeg.VideoOnly)); err != nil {
			return err
		}

		output := ffmpeg.VideoOnly
		if hasAudio {
			report(progress, 65, "fetching audio")
			if _, err := s.Fetch(ctx, req.AudioURL, ffmpeg.MuxAudio); err != nil {
				return services.Wrap(services.ErrCodecExecution, "stitch", "fetch audio", req.AudioURL, err)
			}
			audioMs, probeErr := probeDuration(ctx, s, ffmpeg.MuxAudio)
			if probeErr != nil {
				logging.WarnWithContext(logger, "audio duration unavailable; using video duration", "audio_probe_failed",
					logging.Error(probeErr),
					logging.Int64("video_ms", videoMs),
					logging.String(logging.FieldErrorHint, "verify the audio file is a valid mp3"),
					logging.String(logging.FieldImpact, "reported duration may exceed the audio length"),
				)
			} else {
				result.AudioDurationMs = audioMs
				result.DurationMs = min(videoMs, audioMs)
			}
			report(progress, 75, "muxing audio")
			if _, err := s.Exec(ctx, "mux", ffmpeg.MuxArgs(ffmpeg.VideoOnly, ffmpeg.MuxAudio, ffmpeg.StitchOutput)); err != nil {
				return err
			}
			output = ffmpeg.StitchOutput
		}

		data, err := s.ReadFile(ctx, output)
		if err != nil {
			return services.Wrap(services.ErrCodecExecution, "stitch", "read output", output, err)
		}
		report(progress, 90, "uploading")
		url, err := o.uploader.Put(ctx, key, data, "video/mp4")
		if err != nil {
			return err
		}
		result.URL = url
		result.SizeBytes = int64(len(data))
		return nil
	})
	if err != nil {
		return media.VideoStitchResult{}, err
	}
	logger.Info("videos stitched",
		logging.Int("segments", result.SegmentCount),
		logging.Bool("audio", hasAudio),
		logging.Int64("duration_ms", result.DurationMs),
		logging.String("key", key),
	)
	return result, nil
}
