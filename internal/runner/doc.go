// Package runner executes chunk and stitch jobs asynchronously.
//
// Submissions are admitted synchronously so rejections reach the caller
// directly. Accepted jobs are persisted as pending and run in their own
// goroutine, bounded by a weighted semaphore. Stitch jobs fall back to a
// preview-only artifact when the codec sandbox cannot be used. Every finished
// job is reported to the configured notifications.Service.
package runner
