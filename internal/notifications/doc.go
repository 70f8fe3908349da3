// Package notifications pushes job outcomes to ntfy.
//
// The runner calls the Service once per finished job: completed, completed
// as a preview, or failed. When no topic is configured NewService returns a
// no-op, so callers never need to check whether notifications are enabled.
package notifications
