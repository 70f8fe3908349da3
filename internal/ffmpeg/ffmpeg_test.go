package ffmpeg_test

import (
	"errors"
	"reflect"
	"testing"

	"splicer/internal/ffmpeg"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		name string
		log  string
		want int64
	}{
		{"thirty seconds", "Input #0, mp3, from 'input':\n  Duration: 00:00:30.00, start: 0.025057, bitrate: 128 kb/s", 30000},
		{"fractional", "  Duration: 00:01:02.35, start: 0.000000", 62350},
		{"hours", "Duration: 01:00:00.5", 3600500},
		{"no fraction", "Duration:00:00:07", 7000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ffmpeg.ParseDuration(tc.log)
			if err != nil {
				t.Fatalf("ParseDuration failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("ParseDuration = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestParseDurationMissing(t *testing.T) {
	for _, log := range []string{"", "Duration: N/A, bitrate: N/A", "garbage"} {
		if _, err := ffmpeg.ParseDuration(log); !errors.Is(err, ffmpeg.ErrNoDuration) {
			t.Fatalf("expected ErrNoDuration for %q, got %v", log, err)
		}
	}
}

func TestChunkArgs(t *testing.T) {
	got := ffmpeg.ChunkArgs(ffmpeg.AudioInput, 3, 10, ffmpeg.ChunkFileName(3))
	want := []string{"-ss", "30", "-i", "input.mp3", "-t", "10", "-c", "copy", "chunk_003.mp3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ChunkArgs = %v, want %v", got, want)
	}
}

func TestMuxArgs(t *testing.T) {
	got := ffmpeg.MuxArgs(ffmpeg.VideoOnly, ffmpeg.MuxAudio, ffmpeg.StitchOutput)
	want := []string{"-i", "video_only.mp4", "-i", "audio.mp3", "-c:v", "copy", "-c:a", "aac", "-b:a", "192k",
		"-map", "0:v:0", "-map", "1:a:0", "-shortest", "output.mp4"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MuxArgs = %v, want %v", got, want)
	}
}

func TestBuildConcatList(t *testing.T) {
	got := ffmpeg.BuildConcatList([]string{ffmpeg.SegmentFileName(0), ffmpeg.SegmentFileName(1)})
	want := "file 'segment_000.mp4'\nfile 'segment_001.mp4'\n"
	if got != want {
		t.Fatalf("BuildConcatList = %q, want %q", got, want)
	}
}
