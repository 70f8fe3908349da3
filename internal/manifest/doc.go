// Package manifest builds and validates the manifest document recorded for a
// finished video job, validates inbound stitch requests against embedded JSON
// schemas, and decodes JSON or YAML segment files for the CLI.
package manifest
