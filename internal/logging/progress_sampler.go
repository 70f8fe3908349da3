package logging

import (
	"strings"
	"sync"
)

// ProgressSampler suppresses repetitive job progress logs. An update is worth
// emitting when the stage changes or the percent enters a new bucket.
type ProgressSampler struct {
	mu         sync.Mutex
	bucketSize int
	lastStage  string
	lastBucket int
}

// NewProgressSampler constructs a sampler with the given bucket width in
// percent points (default 10).
func NewProgressSampler(bucketSize int) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress update at percent within stage should
// be logged. A nil sampler logs everything.
func (s *ProgressSampler) ShouldLog(percent int, stage string) bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	emit := false
	stage = strings.TrimSpace(stage)
	if stage != "" && stage != s.lastStage {
		s.lastStage = stage
		s.lastBucket = -1
		emit = true
	}
	if percent > 100 {
		percent = 100
	}
	if percent >= 0 {
		if bucket := percent / s.bucketSize; bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}
