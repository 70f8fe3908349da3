// Package fallback produces a best-effort preview when full codec assembly is
// unavailable. It downloads the segments in index order and returns the first
// one, flagged as a preview. No mixing or muxing happens here.
package fallback
