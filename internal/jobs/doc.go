// Package jobs persists job-status records for chunk and stitch jobs.
//
// A job is created pending, moves to processing when the runner picks it up,
// and becomes completed or failed exactly once. Stores refuse any update to a
// terminal row with ErrJobTerminal, and stored progress never decreases.
//
// SQLite (modernc.org/sqlite) is the default backend; PostgreSQL through
// pgxpool is available for shared deployments.
package jobs
