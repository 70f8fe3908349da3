// Package ffmpeg builds the argument lists for the codec operations the
// pipeline runs and parses the diagnostics they print. It does not execute
// anything; a sandbox runtime does.
package ffmpeg
