package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vanderheijden86/depcity/pkg/loader"
)

const snapshotA = `{"nodes":[{"id":"a.py","label":"a.py"}],"edges":[]}`
const snapshotB = `{"nodes":[{"id":"a.py","label":"a.py"},{"id":"b.py","label":"b.py"}],"edges":[{"source":"a.py","target":"b.py"}]}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(150 * time.Millisecond)

	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 callback invocation, got %d", n)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var called atomic.Bool
	d.Trigger(func() { called.Store(true) })
	d.Cancel()
	time.Sleep(100 * time.Millisecond)

	if called.Load() {
		t.Error("callback should not run after Cancel")
	}
}

func TestDebouncer_DefaultDuration(t *testing.T) {
	if d := NewDebouncer(0); d.Duration() != DefaultDebounceDuration {
		t.Errorf("expected default duration %v, got %v", DefaultDebounceDuration, d.Duration())
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	tests := []struct {
		name      string
		forcePoll bool
	}{
		{"fsnotify", false},
		{"polling", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "depcity.json")
			writeFile(t, path, snapshotA)

			var changed atomic.Bool
			w, err := NewWatcher(path,
				WithDebounceDuration(50*time.Millisecond),
				WithPollInterval(50*time.Millisecond),
				WithForcePoll(tt.forcePoll),
				WithOnChange(func() { changed.Store(true) }),
			)
			if err != nil {
				t.Fatal(err)
			}
			if err := w.Start(context.Background()); err != nil {
				t.Fatal(err)
			}
			defer w.Stop()

			if tt.forcePoll && !w.IsPolling() {
				t.Error("expected polling mode")
			}

			time.Sleep(100 * time.Millisecond)
			writeFile(t, path, snapshotB)

			deadline := time.Now().Add(2 * time.Second)
			for !changed.Load() && time.Now().Before(deadline) {
				time.Sleep(20 * time.Millisecond)
			}
			if !changed.Load() {
				t.Error("expected change to be detected")
			}
		})
	}
}

func TestWatcher_ChangedChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depcity.json")
	writeFile(t, path, snapshotA)

	w, err := NewWatcher(path,
		WithDebounceDuration(20*time.Millisecond),
		WithPollInterval(50*time.Millisecond),
		WithForcePoll(true),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	go func() {
		time.Sleep(80 * time.Millisecond)
		os.WriteFile(path, []byte(snapshotB), 0o644)
	}()

	select {
	case <-w.Changed():
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for change notification")
	}
}

func TestWatcher_ForcePollingEnv(t *testing.T) {
	for _, env := range []string{EnvForcePolling, EnvForcePoll} {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, "yes")
			path := filepath.Join(t.TempDir(), "depcity.json")
			writeFile(t, path, snapshotA)

			w, err := NewWatcher(path, WithPollInterval(25*time.Millisecond))
			if err != nil {
				t.Fatal(err)
			}
			if err := w.Start(context.Background()); err != nil {
				t.Fatal(err)
			}
			defer w.Stop()

			if !w.IsPolling() {
				t.Fatalf("expected polling mode when %s is set", env)
			}
		})
	}
}

func TestWatcher_RemoteFilesystemUsesPolling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depcity.json")
	writeFile(t, path, snapshotA)

	orig := detectFilesystemTypeFunc
	detectFilesystemTypeFunc = func(string) FilesystemType { return FSTypeSSHFS }
	t.Cleanup(func() { detectFilesystemTypeFunc = orig })

	w, err := NewWatcher(path, WithPollInterval(25*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatal("expected polling on a remote filesystem")
	}
	if got := w.FilesystemType(); got != FSTypeSSHFS {
		t.Fatalf("expected %v, got %v", FSTypeSSHFS, got)
	}
}

func TestWatcher_FileRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depcity.json")
	writeFile(t, path, snapshotA)

	var (
		mu   sync.Mutex
		errs []error
	)
	w, err := NewWatcher(path,
		WithPollInterval(30*time.Millisecond),
		WithForcePoll(true),
		WithOnError(func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 1 || !errors.Is(errs[0], ErrFileRemoved) {
		t.Errorf("expected a single ErrFileRemoved, got %v", errs)
	}
}

func TestWatcher_StartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depcity.json")
	writeFile(t, path, snapshotA)

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	if w.IsStarted() {
		t.Error("watcher should not be started initially")
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !w.IsStarted() {
		t.Error("watcher should be started after Start")
	}
	if err := w.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	w.Stop()
	if w.IsStarted() {
		t.Error("watcher should not be started after Stop")
	}
	w.Stop()

	// A stopped watcher can be started again.
	if err := w.Start(context.Background()); err != nil {
		t.Errorf("restart: %v", err)
	}
	w.Stop()
}

func TestWatcher_Accessors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "depcity.json")

	w, err := NewWatcher(path, WithPollInterval(500*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	abs, _ := filepath.Abs(path)
	if w.Path() != abs {
		t.Errorf("expected path %s, got %s", abs, w.Path())
	}
	if w.PollInterval() != 500*time.Millisecond {
		t.Errorf("unexpected poll interval %v", w.PollInterval())
	}
	// A missing file is fine: the first analysis may create it.
	if err := w.Start(context.Background()); err != nil {
		t.Errorf("Start on a missing file: %v", err)
	}
	w.Stop()
}

func TestFilesystemType_String(t *testing.T) {
	tests := []struct {
		fsType FilesystemType
		want   string
	}{
		{FSTypeUnknown, "unknown"},
		{FSTypeLocal, "local"},
		{FSTypeNFS, "nfs"},
		{FSTypeSMB, "smb"},
		{FSTypeSSHFS, "sshfs"},
		{FSTypeFUSE, "fuse"},
		{FilesystemType(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.fsType.String(); got != tt.want {
			t.Errorf("FilesystemType(%d).String() = %q, want %q", tt.fsType, got, tt.want)
		}
	}
}

func TestEnvBool(t *testing.T) {
	tests := map[string]bool{
		"1": true, "true": true, "TRUE": true, "yes": true, "y": true, "on": true, " ON ": true,
		"0": false, "false": false, "no": false, "": false, "invalid": false,
	}
	for value, want := range tests {
		t.Setenv("DEPCITY_TEST_ENV_BOOL", value)
		if got := envBool("DEPCITY_TEST_ENV_BOOL"); got != want {
			t.Errorf("envBool(%q) = %v, want %v", value, got, want)
		}
	}
}

func TestDetectFilesystemType(t *testing.T) {
	if got := DetectFilesystemType(""); got != FSTypeUnknown {
		t.Errorf("empty path: got %v", got)
	}

	var seen string
	orig := detectFilesystemTypeFunc
	detectFilesystemTypeFunc = func(p string) FilesystemType { seen = p; return FSTypeLocal }
	t.Cleanup(func() { detectFilesystemTypeFunc = orig })

	dir := t.TempDir()
	if got := DetectFilesystemType(filepath.Join(dir, "missing", "depcity.json")); got != FSTypeLocal {
		t.Errorf("got %v", got)
	}
	if seen != dir {
		t.Errorf("expected the nearest existing parent %s, got %s", dir, seen)
	}
}

func TestSnapshotWatcher_Reloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depcity.json")
	writeFile(t, path, snapshotA)

	sw, err := NewSnapshotWatcher(path, loader.ParseOptions{RepoURL: "https://github.com/acme/api"},
		WithDebounceDuration(20*time.Millisecond),
		WithPollInterval(30*time.Millisecond),
		WithForcePoll(true),
	)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := sw.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer sw.Stop()

	time.Sleep(60 * time.Millisecond)
	writeFile(t, path, snapshotB)

	r, err := sw.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if r.Err != nil {
		t.Fatalf("unexpected reload error: %v", r.Err)
	}
	if len(r.Snapshot.Nodes) != 2 || r.Snapshot.RepoURL != "https://github.com/acme/api" || r.Path != sw.Path() {
		t.Errorf("unexpected reload %+v", r)
	}

	// A half-written file surfaces as an error; the consumer keeps its
	// previous snapshot.
	time.Sleep(60 * time.Millisecond)
	writeFile(t, path, `{"nodes":[`)
	r, err = sw.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if r.Err == nil {
		t.Error("expected a parse error")
	}
}

func TestSnapshotWatcher_KeepsLatest(t *testing.T) {
	sw := &SnapshotWatcher{out: make(chan Reload, 1), now: time.Now}
	sw.publish(Reload{Path: "first"})
	sw.publish(Reload{Path: "second"})

	r, err := sw.Next(context.Background())
	if err != nil || r.Path != "second" {
		t.Errorf("expected the latest reload, got %+v (%v)", r, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := sw.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
