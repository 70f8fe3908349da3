package ffmpeg

import (
	"errors"
	"math"
	"regexp"
	"strconv"
)

// ErrNoDuration is returned when a log carries no parsable Duration line.
var ErrNoDuration = errors.New("no duration in ffmpeg output")

var durationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// ParseDuration extracts the first "Duration: HH:MM:SS.ss" value from an
// ffmpeg diagnostic log and returns it in milliseconds, rounded.
func ParseDuration(log string) (int64, error) {
	match := durationPattern.FindStringSubmatch(log)
	if match == nil {
		return 0, ErrNoDuration
	}
	hours, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, ErrNoDuration
	}
	minutes, err := strconv.ParseInt(match[2], 10, 64)
	if err != nil {
		return 0, ErrNoDuration
	}
	seconds, err := strconv.ParseFloat(match[3], 64)
	if err != nil {
		return 0, ErrNoDuration
	}
	total := float64(hours*3600+minutes*60)*1000 + seconds*1000
	return int64(math.Round(total)), nil
}
