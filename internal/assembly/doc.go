// Package assembly runs the codec side of the pipeline: cutting an audio
// track into chunks, stitching video segments (optionally muxed with audio),
// and probing audio duration.
//
// Every call owns exactly one sandbox session and runs its codec commands
// sequentially. A call that fails with a codec execution error is retried
// once from the start after a short backoff; nothing else is retried here.
package assembly
