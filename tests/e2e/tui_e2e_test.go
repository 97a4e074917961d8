package main_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestTUIStartsAndExits launches the explorer briefly to ensure it
// initializes and exits cleanly. DEPCITY_TUI_AUTOCLOSE_MS keeps it from
// hanging in CI.
func TestTUIStartsAndExits(t *testing.T) {
	skipIfNoScript(t)
	dir, env := workspace(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := scriptTUICommand(ctx, depcityBinaryPath, "-no-watch")
	cmd.Dir = dir
	cmd.Env = append(env,
		"TERM=xterm-256color",
		"DEPCITY_TUI_AUTOCLOSE_MS=1500",
	)

	ensureCmdStdinCloses(t, ctx, cmd, 3*time.Second)
	out, err := runCmdToFile(t, cmd)
	if ctx.Err() == context.DeadlineExceeded {
		t.Skipf("skipping TUI run: timed out (likely TTY/OS mismatch); output:\n%s", out)
	}
	if err != nil {
		t.Fatalf("TUI run failed: %v\n%s", err, out)
	}
}

// TestTUISurvivesSnapshotRewrites rewrites the watched snapshot while the
// explorer runs, catching deadlocks or panics in the reload path.
func TestTUISurvivesSnapshotRewrites(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping rapid-write TUI test in short mode")
	}
	skipIfNoScript(t)
	dir, env := workspace(t)
	snapPath := filepath.Join(dir, "depcity.json")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cmd := scriptTUICommand(ctx, depcityBinaryPath, snapPath)
	cmd.Dir = dir
	cmd.Env = append(env,
		"TERM=xterm-256color",
		"DEPCITY_TUI_AUTOCLOSE_MS=2500",
	)
	ensureCmdStdinCloses(t, ctx, cmd, 5*time.Second)

	go func() {
		for i := 0; i < 10; i++ {
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			_ = os.WriteFile(snapPath, []byte(fixtureSnapshot), 0o644)
		}
	}()

	out, err := runCmdToFile(t, cmd)
	if ctx.Err() == context.DeadlineExceeded {
		t.Skipf("skipping TUI run: timed out; output:\n%s", out)
	}
	if err != nil {
		t.Fatalf("TUI run failed: %v\n%s", err, out)
	}
}
