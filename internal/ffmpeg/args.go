package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// Working file names used inside a sandbox session.
const (
	AudioInput   = "input.mp3"
	MuxAudio     = "audio.mp3"
	ConcatList   = "concat.txt"
	VideoOnly    = "video_only.mp4"
	StitchOutput = "output.mp4"
	ProbeInput   = "probe_input"
)

// ChunkFileName returns the working name of the audio chunk at index.
func ChunkFileName(index int) string {
	return fmt.Sprintf("chunk_%03d.mp3", index)
}

// SegmentFileName returns the working name of the video segment at index.
func SegmentFileName(index int) string {
	return fmt.Sprintf("segment_%03d.mp4", index)
}

// ChunkArgs cuts chunkSec seconds starting at index*chunkSec out of input
// without re-encoding.
func ChunkArgs(input string, index, chunkSec int, output string) []string {
	return []string{
		"-ss", strconv.Itoa(index * chunkSec),
		"-i", input,
		"-t", strconv.Itoa(chunkSec),
		"-c", "copy",
		output,
	}
}

// ConcatArgs stream-copies the files named in list into output.
func ConcatArgs(list, output string) []string {
	return []string{
		"-f", "concat",
		"-safe", "0",
		"-i", list,
		"-c", "copy",
		output,
	}
}

// MuxArgs replaces the audio of video with audio, re-encoding only the audio
// track to AAC and stopping at the shorter stream.
func MuxArgs(video, audio, output string) []string {
	return []string{
		"-i", video,
		"-i", audio,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		output,
	}
}

// ProbeArgs asks ffmpeg to describe input. With no output file ffmpeg exits
// non-zero after printing stream information, including the Duration line.
func ProbeArgs(input string) []string {
	return []string{"-hide_banner", "-i", input}
}

// BuildConcatList renders a concat demuxer list for names in the given order.
func BuildConcatList(names []string) string {
	var b strings.Builder
	for _, name := range names {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(name, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}
