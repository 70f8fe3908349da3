// Package main hosts the splicer CLI entrypoint and command graph.
//
// "splicer serve" wires the job store, artifact storage, codec sandbox and
// job runner behind the HTTP API. The remaining commands are thin clients
// of that API: they submit chunk and stitch jobs, follow them with the
// progress poller, and render job state as tables or JSON.
//
// Add behaviour to the internal packages first and surface it here; this
// package should only parse flags, resolve configuration and print.
package main
