// Package remotefile probes and downloads media referenced by URL. Probes are a
// single HEAD request; downloads are bounded by a caller-supplied byte limit.
package remotefile
