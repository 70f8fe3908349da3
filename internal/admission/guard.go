package admission

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"splicer/internal/config"
	"splicer/internal/logging"
	"splicer/internal/media"
	"splicer/internal/remotefile"
	"splicer/internal/services"
)

const bytesPerMB = 1024 * 1024

// Limits are the ceilings enforced before any expensive work starts.
type Limits struct {
	MaxAudioSizeMB        float64
	MaxVideoSegmentSizeMB float64
	MaxTotalSegments      int
	MaxJobDurationMs      int64
}

// LimitsFromConfig copies the admission ceilings out of cfg.
func LimitsFromConfig(cfg *config.Config) Limits {
	if cfg == nil {
		return Limits{}
	}
	return Limits{
		MaxAudioSizeMB:        cfg.Limits.MaxAudioSizeMB,
		MaxVideoSegmentSizeMB: cfg.Limits.MaxVideoSegmentSizeMB,
		MaxTotalSegments:      cfg.Limits.MaxTotalSegments,
		MaxJobDurationMs:      cfg.Limits.MaxJobDurationMs,
	}
}

// Prober reads the declared size of a remote file.
type Prober interface {
	Probe(ctx context.Context, url string) (remotefile.Info, error)
}

// ChunkRequest is the admission view of an audio chunking request.
type ChunkRequest struct {
	AudioURL         string
	ChunkDurationSec int
	TotalDurationMs  int64
}

// StitchRequest is the admission view of a video stitching request.
type StitchRequest struct {
	Segments []media.Segment
	AudioURL string
}

// Admission describes an accepted request. URLs whose size could not be
// determined are listed in Unverified; they were let through.
type Admission struct {
	TotalChunks int
	Verified    []string
	Unverified  []string
	SizeBytes   int64
}

// Guard enforces Limits on incoming requests.
type Guard struct {
	limits Limits
	prober Prober
	logger *slog.Logger
}

// NewGuard constructs a Guard. A nil prober creates a remotefile client.
func NewGuard(limits Limits, prober Prober, logger *slog.Logger) *Guard {
	if prober == nil {
		prober = remotefile.New()
	}
	return &Guard{
		limits: limits,
		prober: prober,
		logger: logging.NewComponentLogger(logger, "admission"),
	}
}

// Limits returns the configured ceilings.
func (g *Guard) Limits() Limits {
	return g.limits
}

// ValidateChunk checks the chunk count and total duration, then probes the
// audio size. Requests rejected on count never reach the network.
func (g *Guard) ValidateChunk(ctx context.Context, req ChunkRequest) (Admission, error) {
	if !media.IsFetchableURL(req.AudioURL) {
		return Admission{}, services.Wrap(services.ErrValidation, "admission", "chunk", "audioUrl must be an absolute http(s) URL", nil)
	}
	if req.ChunkDurationSec <= 0 {
		return Admission{}, services.Wrap(services.ErrValidation, "admission", "chunk", "chunkDurationSec must be positive", nil)
	}
	if req.TotalDurationMs <= 0 {
		return Admission{}, services.Wrap(services.ErrValidation, "admission", "chunk", "totalDurationMs must be positive", nil)
	}

	total := media.ChunkCount(req.TotalDurationMs, req.ChunkDurationSec)
	if g.limits.MaxTotalSegments > 0 && total > g.limits.MaxTotalSegments {
		return Admission{}, &RejectedError{
			Reason: fmt.Sprintf("Too many chunks: %d (max %d)", total, g.limits.MaxTotalSegments),
		}
	}
	if g.limits.MaxJobDurationMs > 0 && req.TotalDurationMs > g.limits.MaxJobDurationMs {
		return Admission{}, &RejectedError{
			Reason: fmt.Sprintf("Audio too long: %dms (max %dms)", req.TotalDurationMs, g.limits.MaxJobDurationMs),
		}
	}

	adm := Admission{TotalChunks: total}
	size, err := g.checkSize(ctx, "Audio file", req.AudioURL, g.limits.MaxAudioSizeMB, &adm)
	if err != nil {
		return Admission{}, err
	}
	adm.SizeBytes = size
	return adm, nil
}

// ValidateStitch checks segment structure, count and total duration, then
// probes every segment and the optional audio track.
func (g *Guard) ValidateStitch(ctx context.Context, req StitchRequest) (Admission, error) {
	if err := media.ValidateSegments(req.Segments); err != nil {
		return Admission{}, services.Wrap(services.ErrValidation, "admission", "stitch", "", err)
	}
	if req.AudioURL != "" && !media.IsFetchableURL(req.AudioURL) {
		return Admission{}, services.Wrap(services.ErrValidation, "admission", "stitch", "audioUrl must be an absolute http(s) URL", nil)
	}
	count := len(req.Segments)
	if g.limits.MaxTotalSegments > 0 && count > g.limits.MaxTotalSegments {
		return Admission{}, &RejectedError{
			Reason: fmt.Sprintf("Too many segments: %d (max %d)", count, g.limits.MaxTotalSegments),
		}
	}
	if total := media.TotalDurationMs(req.Segments); g.limits.MaxJobDurationMs > 0 && total > g.limits.MaxJobDurationMs {
		return Admission{}, &RejectedError{
			Reason: fmt.Sprintf("Video too long: %dms (max %dms)", total, g.limits.MaxJobDurationMs),
		}
	}

	adm := Admission{TotalChunks: count}
	for _, seg := range media.SortSegments(req.Segments) {
		label := fmt.Sprintf("Video segment %d", seg.Index)
		size, err := g.checkSize(ctx, label, seg.URL, g.limits.MaxVideoSegmentSizeMB, &adm)
		if err != nil {
			return Admission{}, err
		}
		adm.SizeBytes += size
	}
	if req.AudioURL != "" {
		size, err := g.checkSize(ctx, "Audio file", req.AudioURL, g.limits.MaxAudioSizeMB, &adm)
		if err != nil {
			return Admission{}, err
		}
		adm.SizeBytes += size
	}
	return adm, nil
}

// checkSize probes url once. Unknown sizes are recorded and allowed; declared
// sizes above limitMB are rejected. It returns the declared size or 0.
func (g *Guard) checkSize(ctx context.Context, label, url string, limitMB float64, adm *Admission) (int64, error) {
	info, err := g.prober.Probe(ctx, url)
	if err != nil || !info.Known() {
		attrs := []logging.Attr{logging.String("url", url)}
		if err != nil {
			attrs = append(attrs, logging.Error(err))
		}
		logging.WarnWithContext(logging.WithContext(ctx, g.logger), "size probe inconclusive; admitting unverified", "admission_unverified",
			append(attrs,
				logging.String(logging.FieldErrorHint, "serve the file with a Content-Length header to enable size checks"),
				logging.String(logging.FieldImpact, "oversized input may fail later in the pipeline"),
			)...,
		)
		adm.Unverified = append(adm.Unverified, url)
		return 0, nil
	}
	adm.Verified = append(adm.Verified, url)
	if limitMB > 0 && float64(info.SizeBytes) > limitMB*bytesPerMB {
		return 0, &RejectedError{
			Reason:    fmt.Sprintf("%s too large: %s (max %sMB)", label, FormatMB(info.SizeBytes), formatLimit(limitMB)),
			URL:       url,
			SizeBytes: info.SizeBytes,
			LimitMB:   limitMB,
		}
	}
	return info.SizeBytes, nil
}

// FormatMB renders bytes as mebibytes with one decimal, e.g. "23.8MB".
func FormatMB(bytes int64) string {
	return strconv.FormatFloat(float64(bytes)/bytesPerMB, 'f', 1, 64) + "MB"
}

func formatLimit(limitMB float64) string {
	return strconv.FormatFloat(limitMB, 'f', -1, 64)
}
