package assembly

import (
	"context"
	"fmt"

	"splicer/internal/ffmpeg"
	"splicer/internal/logging"
	"splicer/internal/media"
	"splicer/internal/sandbox"
	"splicer/internal/services"
	"splicer/internal/storage"
)

// ChunkRequest asks for AudioURL to be cut into ChunkDurationSec pieces.
type ChunkRequest struct {
	JobID            string
	AudioURL         string
	ChunkDurationSec int
	TotalDurationMs  int64
}

// ChunkAudio fetches the audio once, cuts it sequentially into chunks and
// uploads each chunk before cutting the next. Chunks are returned in index
// order; the last chunk ends at TotalDurationMs.
func (o *Orchestrator) ChunkAudio(ctx context.Context, req ChunkRequest, progress ProgressFunc) (media.ChunkManifest, error) {
	total := media.ChunkCount(req.TotalDurationMs, req.ChunkDurationSec)
	if total == 0 {
		return media.ChunkManifest{}, services.Wrap(services.ErrValidation, "chunk", "plan", "chunk duration and total duration must be positive", nil)
	}
	ctx = services.WithStage(services.WithJobID(ctx, req.JobID), "chunk")

	var result media.ChunkManifest
	err := o.withRetry(ctx, "chunk audio", func(ctx context.Context) error {
		var runErr error
		result, runErr = o.chunkOnce(ctx, req, total, progress)
		return runErr
	})
	if err != nil {
		return media.ChunkManifest{}, err
	}
	return result, nil
}

func (o *Orchestrator) chunkOnce(ctx context.Context, req ChunkRequest, total int, progress ProgressFunc) (media.ChunkManifest, error) {
	chunkMs := int64(req.ChunkDurationSec) * 1000
	manifest := media.ChunkManifest{
		JobID:           req.JobID,
		AudioURL:        req.AudioURL,
		TotalDurationMs: req.TotalDurationMs,
		ChunkDurationMs: chunkMs,
		Chunks:          make([]media.AudioChunk, 0, total),
	}
	logger := logging.WithContext(ctx, o.logger)

	err := o.sessions.WithSession(ctx, func(ctx context.Context, s *sandbox.Session) error {
		defer s.Purge(context.WithoutCancel(ctx))

		report(progress, 5, "fetching audio")
		if _, err := s.Fetch(ctx, req.AudioURL, ffmpeg.AudioInput); err != nil {
			return services.Wrap(services.ErrCodecExecution, "chunk", "fetch audio", req.AudioURL, err)
		}

		for i := 0; i < total; i++ {
			name := ffmpeg.ChunkFileName(i)
			if _, err := s.Exec(ctx, fmt.Sprintf("chunk %d", i), ffmpeg.ChunkArgs(ffmpeg.AudioInput, i, req.ChunkDurationSec, name)); err != nil {
				return err
			}
			data, err := s.ReadFile(ctx, name)
			if err != nil {
				return services.Wrap(services.ErrCodecExecution, "chunk", "read chunk", name, err)
			}
			key := storage.Key(storage.CategoryAudioChunks, req.JobID, storage.ChunkName(i))
			url, err := o.uploader.Put(ctx, key, data, "audio/mpeg")
			if err != nil {
				return err
			}
			if err := s.Remove(ctx, name); err != nil {
				logger.Debug("chunk cleanup failed", logging.String("file", name), logging.Error(err))
			}

			start := int64(i) * chunkMs
			end := min(start+chunkMs, req.TotalDurationMs)
			manifest.Chunks = append(manifest.Chunks, media.AudioChunk{
				Index:       i,
				URL:         url,
				Key:         key,
				StartTimeMs: start,
				EndTimeMs:   end,
				DurationMs:  end - start,
				SizeBytes:   int64(len(data)),
			})
			report(progress, 10+(i+1)*85/total, fmt.Sprintf("chunk %d/%d", i+1, total))
		}
		return nil
	})
	if err != nil {
		return media.ChunkManifest{}, err
	}
	logger.Info("audio chunked",
		logging.Int("chunks", len(manifest.Chunks)),
		logging.Int64("total_ms", req.TotalDurationMs),
	)
	return manifest, nil
}
