// Package poller follows a submitted job from the initiating side until it
// reaches a terminal state.
//
// Polls are strictly sequential. Shown progress is the maximum of the
// previous value, a time-based estimate capped at 90, and the progress the
// server reports, so it never moves backwards. It reaches 100 only when the
// job reports completion.
package poller
