package fallback_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"splicer/internal/fallback"
	"splicer/internal/media"
	"splicer/internal/remotefile"
	"splicer/internal/services"
)

func segmentServer(t *testing.T, count int, size int) (*httptest.Server, *[]string) {
	t.Helper()
	var (
		mu    sync.Mutex
		order []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		order = append(order, r.URL.Path)
		mu.Unlock()
		var idx int
		if _, err := fmt.Sscanf(r.URL.Path, "/seg-%d.mp4", &idx); err != nil || idx >= count {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(bytes.Repeat([]byte{byte('a' + idx)}, size))
	}))
	t.Cleanup(srv.Close)
	return srv, &order
}

func buildSegments(baseURL string, count int) []media.Segment {
	segs := make([]media.Segment, count)
	for i := range segs {
		segs[i] = media.Segment{
			Index:       i,
			URL:         fmt.Sprintf("%s/seg-%d.mp4", baseURL, i),
			DurationMs:  5000,
			StartTimeMs: int64(i) * 5000,
			EndTimeMs:   int64(i+1) * 5000,
		}
	}
	return segs
}

func TestAssembleReturnsFirstSegmentAsPreview(t *testing.T) {
	srv, order := segmentServer(t, 5, 64)
	segs := buildSegments(srv.URL, 5)
	reversed := make([]media.Segment, len(segs))
	for i := range segs {
		reversed[len(segs)-1-i] = segs[i]
	}

	asm := fallback.New(remotefile.New(), 50, nil)
	artifact, err := asm.Assemble(context.Background(), reversed, "https://cdn.example.com/a.mp3")
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if !artifact.Preview || artifact.Mode != media.ModeFallbackPreview {
		t.Fatalf("expected preview artifact, got %+v", artifact)
	}
	if !bytes.Equal(artifact.Data, bytes.Repeat([]byte{'a'}, 64)) {
		t.Fatalf("expected segment 0 bytes, got %q", artifact.Data)
	}
	if artifact.SegmentIndex != 0 || artifact.DownloadedSegments != 5 || artifact.TotalBytes != 5*64 {
		t.Fatalf("unexpected artifact stats: %+v", artifact)
	}
	if artifact.AudioURL != "https://cdn.example.com/a.mp3" {
		t.Fatalf("audio url not carried: %q", artifact.AudioURL)
	}
	want := []string{"/seg-0.mp4", "/seg-1.mp4", "/seg-2.mp4", "/seg-3.mp4", "/seg-4.mp4"}
	if fmt.Sprint(*order) != fmt.Sprint(want) {
		t.Fatalf("downloads out of order: %v", *order)
	}
}

func TestAssembleRejectsOversizedSegment(t *testing.T) {
	srv, _ := segmentServer(t, 2, 2048)
	asm := fallback.New(remotefile.New(), 0.001, nil)
	_, err := asm.Assemble(context.Background(), buildSegments(srv.URL, 2), "")
	if !errors.Is(err, remotefile.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestAssembleFailsOnMissingSegment(t *testing.T) {
	srv, _ := segmentServer(t, 1, 16)
	asm := fallback.New(remotefile.New(), 50, nil)
	_, err := asm.Assemble(context.Background(), buildSegments(srv.URL, 2), "")
	var statusErr *remotefile.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 status error, got %v", err)
	}
}

func TestAssembleRequiresSegments(t *testing.T) {
	asm := fallback.New(nil, 50, nil)
	_, err := asm.Assemble(context.Background(), nil, "")
	if !errors.Is(err, services.ErrValidation) || !errors.Is(err, media.ErrNoSegments) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
