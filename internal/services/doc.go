// Package services defines shared utilities consumed by the pipeline
// components and their callers.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - The failure taxonomy (admission, sandbox, codec, upload, poll timeout,
//     job failure) as sentinel markers, plus the Wrap helper that tags an error
//     with a marker and stage detail.
//   - Retry and classification helpers so every layer applies the same policy.
package services
