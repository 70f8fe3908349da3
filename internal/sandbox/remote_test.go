package sandbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"splicer/internal/sandbox"
)

// fakeExecService is a minimal in-memory implementation of the remote
// execution protocol.
type fakeExecService struct {
	mu       sync.Mutex
	token    string
	isolated bool
	files    map[string][]byte
	origin   string
	execs    [][]string
	deleted  bool
}

func (f *fakeExecService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if f.token != "" && r.Header.Get("Authorization") != "Bearer "+f.token {
				w.WriteHeader(http.StatusUnauthorized)
				writeJSON(w, map[string]string{"error": "unauthorized"})
				return
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			next(w, r)
		}
	}
	mux.HandleFunc("GET /health", auth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]bool{"ready": true, "isolated": f.isolated})
	}))
	mux.HandleFunc("POST /sessions", auth(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Origin string `json:"origin"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.origin = req.Origin
		writeJSON(w, map[string]string{"id": "s1"})
	}))
	mux.HandleFunc("POST /sessions/s1/load", auth(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("GET /sessions/s1/ready", auth(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]bool{"ready": true})
	}))
	mux.HandleFunc("PUT /sessions/s1/files/{name}", auth(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Data string `json:"data"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		data, err := sandbox.DecodeBytes(payload.Data)
		if err != nil {
			t.Errorf("bad payload: %v", err)
		}
		f.files[r.PathValue("name")] = data
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("GET /sessions/s1/files/{name}", auth(func(w http.ResponseWriter, r *http.Request) {
		data, ok := f.files[r.PathValue("name")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]string{"error": "no such file"})
			return
		}
		writeJSON(w, map[string]string{"data": sandbox.EncodeBytes(data)})
	}))
	mux.HandleFunc("DELETE /sessions/s1/files/{name}", auth(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := f.files[r.PathValue("name")]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.files, r.PathValue("name"))
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("GET /sessions/s1/files", auth(func(w http.ResponseWriter, r *http.Request) {
		names := []string{}
		for name := range f.files {
			names = append(names, name)
		}
		writeJSON(w, map[string][]string{"files": names})
	}))
	mux.HandleFunc("POST /sessions/s1/fetch", auth(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL  string `json:"url"`
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.files[req.Name] = []byte("fetched:" + req.URL)
		writeJSON(w, map[string]int64{"sizeBytes": int64(len(f.files[req.Name]))})
	}))
	mux.HandleFunc("POST /sessions/s1/exec", auth(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Args []string `json:"args"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.execs = append(f.execs, req.Args)
		if strings.Join(req.Args, " ") == "-hide_banner -i input.mp3" {
			writeJSON(w, sandbox.ExecResult{ExitCode: 1, Log: "  Duration: 00:00:30.00, start: 0"})
			return
		}
		writeJSON(w, sandbox.ExecResult{ExitCode: 0})
	}))
	mux.HandleFunc("DELETE /sessions/s1", auth(func(w http.ResponseWriter, r *http.Request) {
		f.deleted = true
		w.WriteHeader(http.StatusNoContent)
	}))
	return mux
}

func TestRemoteLauncherSessionLifecycle(t *testing.T) {
	svc := &fakeExecService{token: "secret", isolated: true, files: map[string][]byte{}}
	srv := httptest.NewServer(svc.handler(t))
	defer srv.Close()

	launcher := sandbox.NewRemoteLauncher(srv.URL, sandbox.WithRemoteToken("secret"), sandbox.WithRemoteHTTPClient(srv.Client()))
	if err := launcher.Probe(context.Background()); err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	mgr := sandbox.NewManager(launcher, sandbox.Options{Origin: testOrigin, ReadyPollInterval: time.Millisecond}, nil)

	err := mgr.WithSession(context.Background(), func(ctx context.Context, s *sandbox.Session) error {
		payload := []byte{0x00, 0x01, 0xfe, 0xff}
		if err := s.WriteFile(ctx, "concat.txt", payload); err != nil {
			return err
		}
		got, err := s.ReadFile(ctx, "concat.txt")
		if err != nil {
			return err
		}
		if string(got) != string(payload) {
			t.Fatalf("binary payload corrupted: %v", got)
		}
		if _, err := s.Fetch(ctx, "https://cdn.example.com/a.mp3", "input.mp3"); err != nil {
			return err
		}
		log, err := s.Probe(ctx, "probe", []string{"-hide_banner", "-i", "input.mp3"})
		if err != nil {
			return err
		}
		if !strings.Contains(log, "Duration: 00:00:30.00") {
			t.Fatalf("unexpected probe log %q", log)
		}
		if err := s.Remove(ctx, "never-written.mp4"); err != nil {
			t.Fatalf("removing a missing file should be tolerated: %v", err)
		}
		s.Purge(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("WithSession failed: %v", err)
	}
	if svc.origin != testOrigin {
		t.Fatalf("origin not forwarded: %q", svc.origin)
	}
	if !svc.deleted {
		t.Fatal("expected remote session to be deleted")
	}
	if len(svc.files) != 0 {
		t.Fatalf("expected purge to empty remote storage, got %v", svc.files)
	}
}

func TestRemoteLauncherProbeRequiresIsolation(t *testing.T) {
	svc := &fakeExecService{isolated: false, files: map[string][]byte{}}
	srv := httptest.NewServer(svc.handler(t))
	defer srv.Close()

	err := sandbox.NewRemoteLauncher(srv.URL).Probe(context.Background())
	if err == nil || !strings.Contains(err.Error(), "isolated") {
		t.Fatalf("expected isolation failure, got %v", err)
	}
}

func TestRemoteLauncherReportsAuthFailures(t *testing.T) {
	svc := &fakeExecService{token: "secret", isolated: true, files: map[string][]byte{}}
	srv := httptest.NewServer(svc.handler(t))
	defer srv.Close()

	_, err := sandbox.NewRemoteLauncher(srv.URL).Launch(context.Background(), testOrigin)
	var statusErr *sandbox.RemoteStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized || statusErr.Message != "unauthorized" {
		t.Fatalf("expected 401 status error, got %v", err)
	}
}
