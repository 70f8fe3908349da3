// Package admission rejects chunk and stitch requests that exceed the
// configured size, count or duration ceilings before any codec work starts.
//
// Count and duration checks are pure and run first. Size checks issue one HEAD
// probe per source URL; when a server does not declare a size the request is
// admitted and the URL is reported as unverified.
package admission
