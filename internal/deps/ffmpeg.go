package deps

// ResolveFFmpeg reports the ffmpeg binary the local sandbox will execute.
// Empty means "ffmpeg" from PATH.
func ResolveFFmpeg(configured string) Status {
	return Resolve("FFmpeg", "Required by the local sandbox backend", configured, "ffmpeg")
}
