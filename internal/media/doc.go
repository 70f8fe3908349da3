// Package media holds the data model shared by the assembly pipeline:
// segments, chunk and stitch results, and the fallback preview artifact.
package media
