package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"splicer/internal/admission"
	"splicer/internal/assembly"
	"splicer/internal/jobs"
	"splicer/internal/logging"
	"splicer/internal/manifest"
	"splicer/internal/media"
	"splicer/internal/services"
	"splicer/internal/storage"
)

const (
	chunkManifestName = "chunks.json"
	stitchManifest    = "manifest.json"
	previewName       = "preview.mp4"
)

// ChunkInput is a request to cut an audio track into chunks.
type ChunkInput struct {
	AudioURL         string `json:"audioUrl"`
	ChunkDurationSec int    `json:"chunkDurationSec"`
	TotalDurationMs  int64  `json:"totalDurationMs"`
}

// StitchInput is a request to reassemble video segments.
type StitchInput struct {
	Segments  []media.Segment `json:"segments"`
	AudioURL  string          `json:"audioUrl,omitempty"`
	OutputKey string          `json:"outputKey,omitempty"`
}

// SubmitChunk admits in, records a pending job and starts it.
func (r *Runner) SubmitChunk(ctx context.Context, in ChunkInput) (*jobs.Job, error) {
	in.AudioURL = strings.TrimSpace(in.AudioURL)
	if in.ChunkDurationSec == 0 {
		in.ChunkDurationSec = r.opts.DefaultChunkDurationSec
	}
	adm, err := r.guard.ValidateChunk(ctx, admission.ChunkRequest{
		AudioURL:         in.AudioURL,
		ChunkDurationSec: in.ChunkDurationSec,
		TotalDurationMs:  in.TotalDurationMs,
	})
	if err != nil {
		return nil, err
	}

	job, err := r.create(ctx, jobs.KindChunk, in)
	if err != nil {
		return nil, err
	}
	logging.WithContext(services.WithJobID(ctx, job.ID), r.logger).Info("chunk job accepted",
		logging.Int("chunks", adm.TotalChunks),
		logging.Int("unverified_sources", len(adm.Unverified)),
	)

	err = r.start(job, func(ctx context.Context, progress assembly.ProgressFunc) (outcome, error) {
		result, err := r.orch.ChunkAudio(ctx, assembly.ChunkRequest{
			JobID:            job.ID,
			AudioURL:         in.AudioURL,
			ChunkDurationSec: in.ChunkDurationSec,
			TotalDurationMs:  in.TotalDurationMs,
		}, progress)
		if err != nil {
			return outcome{}, err
		}
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return outcome{}, fmt.Errorf("encode chunk manifest: %w", err)
		}
		url, err := r.uploader.Put(ctx, storage.Key(storage.CategoryManifests, job.ID, chunkManifestName), data, "application/json")
		if err != nil {
			return outcome{}, err
		}
		return outcome{resultURL: url, result: result}, nil
	})
	if err != nil {
		return nil, r.abandon(ctx, job.ID, err)
	}
	return job, nil
}

// SubmitStitch admits in, records a pending job and starts it.
func (r *Runner) SubmitStitch(ctx context.Context, in StitchInput) (*jobs.Job, error) {
	in.AudioURL = strings.TrimSpace(in.AudioURL)
	in.OutputKey = strings.TrimSpace(in.OutputKey)
	if in.OutputKey != "" {
		key, err := storage.SanitizeKey(in.OutputKey)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "stitch", "validate", "outputKey", err)
		}
		in.OutputKey = key
	}
	if _, err := r.guard.ValidateStitch(ctx, admission.StitchRequest{Segments: in.Segments, AudioURL: in.AudioURL}); err != nil {
		return nil, err
	}
	in.Segments = media.SortSegments(in.Segments)

	job, err := r.create(ctx, jobs.KindStitch, in)
	if err != nil {
		return nil, err
	}
	logging.WithContext(services.WithJobID(ctx, job.ID), r.logger).Info("stitch job accepted",
		logging.Int("segments", len(in.Segments)),
		logging.Bool("audio", in.AudioURL != ""),
	)

	if err := r.start(job, func(ctx context.Context, progress assembly.ProgressFunc) (outcome, error) {
		return r.stitch(ctx, job.ID, in, progress)
	}); err != nil {
		return nil, r.abandon(ctx, job.ID, err)
	}
	return job, nil
}

func (r *Runner) stitch(ctx context.Context, jobID string, in StitchInput, progress assembly.ProgressFunc) (outcome, error) {
	if full, _ := r.orch.Capability(ctx); !full {
		return r.stitchPreview(ctx, jobID, in, progress)
	}
	result, err := r.orch.StitchVideos(ctx, assembly.StitchRequest{
		JobID:     jobID,
		Segments:  in.Segments,
		AudioURL:  in.AudioURL,
		OutputKey: in.OutputKey,
	}, progress)
	if errors.Is(err, services.ErrSandboxUnavailable) {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "sandbox unavailable; switching to preview", "sandbox_fallback",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job completes with a preview-only artifact"),
		)
		return r.stitchPreview(ctx, jobID, in, progress)
	}
	if err != nil {
		return outcome{}, err
	}
	manifestURL, err := r.uploadManifest(ctx, jobID, in, result.DurationMs)
	if err != nil {
		return outcome{}, err
	}
	result.ManifestURL = manifestURL
	return outcome{resultURL: result.URL, result: result}, nil
}

// previewResult is the stored result document of a fallback stitch.
type previewResult struct {
	media.FallbackArtifact
	JobID       string `json:"jobId"`
	URL         string `json:"url"`
	Key         string `json:"key"`
	ManifestURL string `json:"manifestUrl,omitempty"`
}

func (r *Runner) stitchPreview(ctx context.Context, jobID string, in StitchInput, progress assembly.ProgressFunc) (outcome, error) {
	progress(10, "downloading segments")
	artifact, err := r.fallback.Assemble(ctx, in.Segments, in.AudioURL)
	if err != nil {
		return outcome{}, err
	}
	progress(80, "uploading preview")
	key := storage.Key(storage.CategoryStitchedVideos, jobID, previewName)
	url, err := r.uploader.Put(ctx, key, artifact.Data, "video/mp4")
	if err != nil {
		return outcome{}, err
	}
	first := in.Segments[0]
	manifestURL, err := r.uploadManifest(ctx, jobID, in, first.DurationMs)
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		resultURL: url,
		preview:   true,
		result: previewResult{
			FallbackArtifact: artifact,
			JobID:            jobID,
			URL:              url,
			Key:              key,
			ManifestURL:      manifestURL,
		},
	}, nil
}

func (r *Runner) uploadManifest(ctx context.Context, jobID string, in StitchInput, totalMs int64) (string, error) {
	doc := manifest.Build(jobID, in.Segments, in.AudioURL, totalMs)
	data, err := manifest.Encode(doc)
	if err != nil {
		return "", err
	}
	return r.uploader.Put(ctx, storage.Key(storage.CategoryManifests, jobID, stitchManifest), data, "application/json")
}

func (r *Runner) create(ctx context.Context, kind jobs.Kind, request any) (*jobs.Job, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return r.store.Create(ctx, r.newID(), kind, payload)
}

func (r *Runner) abandon(ctx context.Context, id string, cause error) error {
	if err := r.store.Fail(context.WithoutCancel(ctx), id, failureMessage(cause)); err != nil {
		r.logger.Error("persist abandoned job failed", logging.String(logging.FieldJobID, id), logging.Error(err))
	}
	return cause
}

func marshalResult(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return data, nil
}
