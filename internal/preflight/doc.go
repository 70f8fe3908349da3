// Package preflight provides readiness checks for the binaries, directories
// and remote services splicer depends on.
//
// The serve command runs RunAll before accepting jobs and logs every failed
// check; "splicer status" renders the same results as a table. A failed
// check never stops the server, since the fallback path still works
// without a codec sandbox.
package preflight
