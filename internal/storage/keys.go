package storage

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// Artifact categories. Every uploaded object lives under one of these roots.
const (
	CategoryAudioChunks    = "audio-chunks"
	CategoryStitchedVideos = "stitched-videos"
	CategoryManifests      = "manifests"
)

var (
	ErrInvalidKey = errors.New("storage: invalid key")

	now = time.Now
)

// Key builds "{category}/{jobID}/{name}". Without a job id the name is
// prefixed with the current unix milliseconds instead: "{category}/{ms}-{name}".
func Key(category, jobID, name string) string {
	category = strings.Trim(strings.TrimSpace(category), "/")
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	jobID = strings.Trim(strings.TrimSpace(jobID), "/")
	if jobID == "" {
		return fmt.Sprintf("%s/%d-%s", category, now().UnixMilli(), name)
	}
	return path.Join(category, jobID, name)
}

// ChunkName returns the object name of the audio chunk at index.
func ChunkName(index int) string {
	return fmt.Sprintf("chunk_%03d.mp3", index)
}

// JobPrefixes lists the prefixes that may hold artifacts for jobID. The
// manifest prefix is excluded; manifests are only written on success.
func JobPrefixes(jobID string) []string {
	jobID = strings.Trim(strings.TrimSpace(jobID), "/")
	if jobID == "" {
		return nil
	}
	return []string{
		CategoryAudioChunks + "/" + jobID + "/",
		CategoryStitchedVideos + "/" + jobID + "/",
	}
}

// SanitizeKey normalizes key and refuses anything that would escape the
// storage root.
func SanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: key is required", ErrInvalidKey)
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

func sanitizePrefix(prefix string) (string, error) {
	trailing := strings.HasSuffix(strings.TrimSpace(prefix), "/")
	cleaned, err := SanitizeKey(prefix)
	if err != nil {
		return "", err
	}
	if trailing {
		cleaned += "/"
	}
	return cleaned, nil
}

// joinURL appends an escaped key to base.
func joinURL(base, key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
}
