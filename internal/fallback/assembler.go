package fallback

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"splicer/internal/config"
	"splicer/internal/logging"
	"splicer/internal/media"
	"splicer/internal/remotefile"
	"splicer/internal/services"
)

// Downloader fetches a remote body up to maxBytes.
type Downloader interface {
	Download(ctx context.Context, url string, maxBytes int64) ([]byte, error)
}

// Assembler implements the degraded path.
type Assembler struct {
	downloader   Downloader
	maxSegmentMB float64
	logger       *slog.Logger
}

// New constructs an Assembler. A nil downloader uses a default remotefile client.
func New(downloader Downloader, maxSegmentMB float64, logger *slog.Logger) *Assembler {
	if downloader == nil {
		downloader = remotefile.New()
	}
	return &Assembler{
		downloader:   downloader,
		maxSegmentMB: maxSegmentMB,
		logger:       logging.NewComponentLogger(logger, "fallback"),
	}
}

// NewFromConfig bounds downloads by the configured segment ceiling.
func NewFromConfig(cfg *config.Config, downloader Downloader, logger *slog.Logger) *Assembler {
	return New(downloader, cfg.Limits.MaxVideoSegmentSizeMB, logger)
}

// Assemble downloads every segment sequentially in index order and keeps only
// the first segment's bytes. The result is always a preview.
func (a *Assembler) Assemble(ctx context.Context, segments []media.Segment, audioURL string) (media.FallbackArtifact, error) {
	if len(segments) == 0 {
		return media.FallbackArtifact{}, services.Wrap(services.ErrValidation, "fallback", "plan", "", media.ErrNoSegments)
	}
	ctx = services.WithStage(ctx, "fallback")
	logger := logging.WithContext(ctx, a.logger)

	var limit int64
	if a.maxSegmentMB > 0 {
		limit = int64(a.maxSegmentMB * 1024 * 1024)
	}

	sorted := media.SortSegments(segments)
	artifact := media.FallbackArtifact{
		SegmentIndex: sorted[0].Index,
		Mode:         media.ModeFallbackPreview,
		Preview:      true,
		AudioURL:     audioURL,
	}
	for i, seg := range sorted {
		data, err := a.downloader.Download(ctx, seg.URL, limit)
		if err != nil {
			return media.FallbackArtifact{}, services.Wrap(services.ErrUploadFailed, "fallback", "download segment",
				fmt.Sprintf("segment %d", seg.Index), err)
		}
		artifact.DownloadedSegments++
		artifact.TotalBytes += int64(len(data))
		if i == 0 {
			artifact.Data = data
		}
		logger.Debug("segment downloaded",
			logging.Int("index", seg.Index),
			logging.String("size", humanize.IBytes(uint64(len(data)))),
		)
	}

	logging.WarnWithContext(logger, "full assembly unavailable; returning first segment as preview", "fallback_preview",
		logging.Int("segments", artifact.DownloadedSegments),
		logging.String("downloaded", humanize.IBytes(uint64(artifact.TotalBytes))),
		logging.String("preview_size", humanize.IBytes(uint64(len(artifact.Data)))),
		logging.Bool("audio_dropped", audioURL != ""),
		logging.String(logging.FieldErrorHint, "check codec sandbox availability with `splicer status`"),
		logging.String(logging.FieldImpact, "output contains only the first segment and no mixed audio"),
	)
	return artifact, nil
}
