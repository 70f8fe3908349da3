// Package sandbox manages the isolated codec execution environment.
//
// A Launcher produces Runtimes: LocalLauncher runs the ffmpeg binary in a
// locked per-session directory, RemoteLauncher drives a headless execution
// service over HTTP. Manager.WithSession owns the lifecycle of exactly one
// runtime per call (uninitialized, loading, ready, closed) and guarantees
// teardown on every exit path.
//
// Failures to establish a session are reported as *UnavailableError, so
// callers can route to a degraded path; failing codec commands are reported
// as *ExecError.
package sandbox
