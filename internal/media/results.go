package media

// Mode distinguishes a real reassembly from the degraded preview path.
type Mode string

const (
	ModeFull            Mode = "full"
	ModeFallbackPreview Mode = "fallback_preview"
)

// ChunkCount returns ceil(totalDurationMs / (chunkDurationSec*1000)). Invalid
// inputs yield 0.
func ChunkCount(totalDurationMs int64, chunkDurationSec int) int {
	if totalDurationMs <= 0 || chunkDurationSec <= 0 {
		return 0
	}
	chunkMs := int64(chunkDurationSec) * 1000
	return int((totalDurationMs + chunkMs - 1) / chunkMs)
}

// AudioChunk describes one uploaded slice of the source audio.
type AudioChunk struct {
	Index       int    `json:"index"`
	URL         string `json:"url"`
	Key         string `json:"key"`
	StartTimeMs int64  `json:"startTimeMs"`
	EndTimeMs   int64  `json:"endTimeMs"`
	DurationMs  int64  `json:"durationMs"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// ChunkManifest is the ordered result of chunking one audio track.
type ChunkManifest struct {
	JobID           string       `json:"jobId"`
	AudioURL        string       `json:"audioUrl"`
	TotalDurationMs int64        `json:"totalDurationMs"`
	ChunkDurationMs int64        `json:"chunkDurationMs"`
	Chunks          []AudioChunk `json:"chunks"`
}

// VideoStitchResult is the outcome of a full stitch.
type VideoStitchResult struct {
	JobID           string `json:"jobId"`
	URL             string `json:"url"`
	Key             string `json:"key"`
	ManifestURL     string `json:"manifestUrl,omitempty"`
	Mode            Mode   `json:"mode"`
	Preview         bool   `json:"preview"`
	HasAudio        bool   `json:"hasAudio"`
	SegmentCount    int    `json:"segmentCount"`
	DurationMs      int64  `json:"durationMs"`
	VideoDurationMs int64  `json:"videoDurationMs"`
	AudioDurationMs int64  `json:"audioDurationMs,omitempty"`
	SizeBytes       int64  `json:"sizeBytes"`
}

// FallbackArtifact is the best-effort output of the degraded path. Data holds
// only the first segment; Preview is always true.
type FallbackArtifact struct {
	Data               []byte `json:"-"`
	SegmentIndex       int    `json:"segmentIndex"`
	Mode               Mode   `json:"mode"`
	Preview            bool   `json:"preview"`
	DownloadedSegments int    `json:"downloadedSegments"`
	TotalBytes         int64  `json:"totalBytes"`
	AudioURL           string `json:"audioUrl,omitempty"`
}
