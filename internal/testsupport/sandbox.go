package testsupport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"

	"splicer/internal/sandbox"
)

// FakeRuntime is an in-memory sandbox.Runtime that imitates the subset of
// ffmpeg behaviour the pipeline relies on: chunk cuts, concat demuxing,
// audio muxing and the Duration line of a probe.
type FakeRuntime struct {
	mu sync.Mutex

	Origin string
	// Remote maps fetchable URLs to their content.
	Remote map[string][]byte
	// Durations maps working file names to the duration a probe reports.
	Durations map[string]int64
	// NotReadyPolls is the number of Ready calls that report false.
	NotReadyPolls int
	LoadErr       error
	CloseErr      error
	// FailExecs makes the next N Exec calls exit 1.
	FailExecs int
	// ExecHook, when set, replaces the built-in emulation.
	ExecHook func(args []string, files map[string][]byte) (sandbox.ExecResult, error)

	files      map[string][]byte
	execCalls  [][]string
	fetched    []string
	loaded     bool
	readyPolls int
	closeCount int
	maxFiles   int
}

// NewFakeRuntime returns an empty runtime that can fetch from remote.
func NewFakeRuntime(remote map[string][]byte) *FakeRuntime {
	if remote == nil {
		remote = map[string][]byte{}
	}
	return &FakeRuntime{
		Remote:    remote,
		Durations: map[string]int64{},
		files:     map[string][]byte{},
	}
}

func (f *FakeRuntime) Load(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LoadErr != nil {
		return f.LoadErr
	}
	f.loaded = true
	return nil
}

func (f *FakeRuntime) Ready(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readyPolls++
	if !f.loaded {
		return false, nil
	}
	return f.readyPolls > f.NotReadyPolls, nil
}

func (f *FakeRuntime) Exec(_ context.Context, args []string) (sandbox.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execCalls = append(f.execCalls, append([]string(nil), args...))
	if f.FailExecs > 0 {
		f.FailExecs--
		return sandbox.ExecResult{ExitCode: 1, Log: "Conversion failed!"}, nil
	}
	if f.ExecHook != nil {
		return f.ExecHook(args, f.files)
	}
	return f.emulate(args), nil
}

func (f *FakeRuntime) emulate(args []string) sandbox.ExecResult {
	inputs := argValues(args, "-i")
	for _, in := range inputs {
		if _, ok := f.files[in]; !ok {
			return sandbox.ExecResult{ExitCode: 1, Log: in + ": No such file or directory"}
		}
	}
	if len(args) == 3 && args[0] == "-hide_banner" {
		ms, ok := f.Durations[inputs[0]]
		if !ok {
			return sandbox.ExecResult{ExitCode: 1, Log: "Input #0\n  Duration: N/A, bitrate: N/A\nAt least one output file must be specified"}
		}
		return sandbox.ExecResult{ExitCode: 1, Log: fmt.Sprintf("Input #0, mp3, from '%s':\n  Duration: %s, start: 0.000000, bitrate: 128 kb/s\nAt least one output file must be specified", inputs[0], formatDuration(ms))}
	}
	output := args[len(args)-1]
	switch {
	case slices.Contains(args, "concat"):
		var out []byte
		for _, line := range strings.Split(string(f.files[inputs[0]]), "\n") {
			name := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(line), "file '"), "'")
			if name == "" {
				continue
			}
			data, ok := f.files[name]
			if !ok {
				return sandbox.ExecResult{ExitCode: 1, Log: name + ": No such file or directory"}
			}
			out = append(out, data...)
		}
		f.files[output] = out
	case slices.Contains(args, "-map"):
		out := append([]byte(nil), f.files[inputs[0]]...)
		out = append(out, f.files[inputs[1]]...)
		f.files[output] = out
	case slices.Contains(args, "-ss"):
		f.files[output] = []byte(fmt.Sprintf("chunk ss=%s t=%s", argValue(args, "-ss"), argValue(args, "-t")))
	default:
		f.files[output] = append([]byte(nil), f.files[inputs[0]]...)
	}
	f.trackPeak()
	return sandbox.ExecResult{ExitCode: 0, Log: "video:0kB audio:0kB"}
}

func (f *FakeRuntime) WriteFile(_ context.Context, name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[name] = append([]byte(nil), data...)
	f.trackPeak()
	return nil
}

func (f *FakeRuntime) ReadFile(_ context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}
	return append([]byte(nil), data...), nil
}

func (f *FakeRuntime) Fetch(_ context.Context, url, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.Remote[url]
	if !ok {
		return 0, fmt.Errorf("fetch %s: http 404", url)
	}
	f.fetched = append(f.fetched, url)
	f.files[name] = append([]byte(nil), data...)
	f.trackPeak()
	return int64(len(data)), nil
}

func (f *FakeRuntime) Remove(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, name)
	return nil
}

func (f *FakeRuntime) List(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.files))
	for name := range f.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *FakeRuntime) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCount++
	return f.CloseErr
}

// ExecCalls returns a copy of every Exec argument list, in order.
func (f *FakeRuntime) ExecCalls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.execCalls))
	copy(out, f.execCalls)
	return out
}

// Fetched returns the URLs fetched so far, in order.
func (f *FakeRuntime) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

// File returns a working file and whether it exists.
func (f *FakeRuntime) File(name string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[name]
	return data, ok
}

// FileCount returns the number of files currently in working storage.
func (f *FakeRuntime) FileCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

// PeakFiles returns the largest number of working files seen at once.
func (f *FakeRuntime) PeakFiles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxFiles
}

// CloseCount returns how many times Close was called.
func (f *FakeRuntime) CloseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCount
}

func (f *FakeRuntime) trackPeak() {
	if n := len(f.files); n > f.maxFiles {
		f.maxFiles = n
	}
}

// FakeLauncher hands out FakeRuntimes sharing one Remote map.
type FakeLauncher struct {
	mu sync.Mutex

	Remote map[string][]byte
	// Configure runs on every new runtime before it is returned.
	Configure func(*FakeRuntime)
	LaunchErr error
	ProbeErr  error

	runtimes []*FakeRuntime
}

// NewFakeLauncher constructs a launcher over remote.
func NewFakeLauncher(remote map[string][]byte) *FakeLauncher {
	if remote == nil {
		remote = map[string][]byte{}
	}
	return &FakeLauncher{Remote: remote}
}

func (l *FakeLauncher) Name() string { return "fake" }

func (l *FakeLauncher) Probe(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ProbeErr
}

func (l *FakeLauncher) Launch(_ context.Context, origin string) (sandbox.Runtime, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	rt := NewFakeRuntime(l.Remote)
	rt.Origin = origin
	if l.Configure != nil {
		l.Configure(rt)
	}
	l.runtimes = append(l.runtimes, rt)
	return rt, nil
}

// Runtimes returns every runtime launched so far.
func (l *FakeLauncher) Runtimes() []*FakeRuntime {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*FakeRuntime(nil), l.runtimes...)
}

// LastRuntime returns the most recently launched runtime.
func (l *FakeLauncher) LastRuntime() (*FakeRuntime, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.runtimes) == 0 {
		return nil, errors.New("no runtime launched")
	}
	return l.runtimes[len(l.runtimes)-1], nil
}

func argValues(args []string, flag string) []string {
	var values []string
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			values = append(values, args[i+1])
		}
	}
	return values
}

func argValue(args []string, flag string) string {
	if values := argValues(args, flag); len(values) > 0 {
		return values[0]
	}
	return ""
}

func formatDuration(ms int64) string {
	hours := ms / 3_600_000
	minutes := (ms % 3_600_000) / 60_000
	seconds := float64(ms%60_000) / 1000
	return fmt.Sprintf("%02d:%02d:%05.2f", hours, minutes, seconds)
}
