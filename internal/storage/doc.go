// Package storage uploads finished artifacts and resolves their public URLs.
//
// Two backends implement Uploader: FileStore for a local directory served by
// the API, and S3Store for S3 or S3-compatible object storage. Open wraps the
// configured backend in Retrying. Keys follow "{category}/{jobId}/{name}";
// see Key.
package storage
