package media

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Segment is one independently produced slice of video (or audio) identified
// by an ordering index and a time range.
type Segment struct {
	Index       int    `json:"index" yaml:"index"`
	URL         string `json:"url" yaml:"url"`
	DurationMs  int64  `json:"durationMs" yaml:"durationMs"`
	StartTimeMs int64  `json:"startTimeMs" yaml:"startTimeMs"`
	EndTimeMs   int64  `json:"endTimeMs" yaml:"endTimeMs"`
}

var (
	ErrNoSegments        = errors.New("at least one segment is required")
	ErrDuplicateIndex    = errors.New("duplicate segment index")
	ErrNegativeValue     = errors.New("segment values must not be negative")
	ErrNotContiguous     = errors.New("segments are not contiguous")
	ErrInvalidSegmentURL = errors.New("segment url must be an absolute http(s) URL")
)

// SortSegments returns a copy of segments ordered by ascending Index. The
// input slice is left untouched.
func SortSegments(segments []Segment) []Segment {
	sorted := append([]Segment(nil), segments...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	return sorted
}

// ValidateSegments checks the structural rules for one job's segments:
// unique non-negative indexes, fetchable URLs, non-negative timings and
// contiguity (EndTimeMs[i] == StartTimeMs[i+1]) in index order. Input order
// does not matter.
func ValidateSegments(segments []Segment) error {
	if len(segments) == 0 {
		return ErrNoSegments
	}
	sorted := SortSegments(segments)
	for i, seg := range sorted {
		if seg.Index < 0 || seg.DurationMs < 0 || seg.StartTimeMs < 0 || seg.EndTimeMs < 0 {
			return fmt.Errorf("segment %d: %w", seg.Index, ErrNegativeValue)
		}
		if !IsFetchableURL(seg.URL) {
			return fmt.Errorf("segment %d: %w", seg.Index, ErrInvalidSegmentURL)
		}
		if seg.EndTimeMs < seg.StartTimeMs {
			return fmt.Errorf("segment %d: end %dms before start %dms: %w", seg.Index, seg.EndTimeMs, seg.StartTimeMs, ErrNotContiguous)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if prev.Index == seg.Index {
			return fmt.Errorf("segment %d: %w", seg.Index, ErrDuplicateIndex)
		}
		if prev.EndTimeMs != seg.StartTimeMs {
			return fmt.Errorf("segment %d starts at %dms but segment %d ends at %dms: %w",
				seg.Index, seg.StartTimeMs, prev.Index, prev.EndTimeMs, ErrNotContiguous)
		}
	}
	return nil
}

// TotalDurationMs sums the declared durations of all segments.
func TotalDurationMs(segments []Segment) int64 {
	var total int64
	for _, seg := range segments {
		total += seg.DurationMs
	}
	return total
}

// IsFetchableURL reports whether raw is an absolute http or https URL.
func IsFetchableURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
