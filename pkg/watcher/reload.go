package watcher

import (
	"context"
	"time"

	"github.com/vanderheijden86/depcity/pkg/debug"
	"github.com/vanderheijden86/depcity/pkg/loader"
	"github.com/vanderheijden86/depcity/pkg/model"
)

// Reload is the outcome of re-reading a watched snapshot file. Exactly one
// of Snapshot and Err is meaningful.
type Reload struct {
	Path     string
	Snapshot model.Snapshot
	Err      error
	At       time.Time
}

// SnapshotWatcher re-parses a snapshot file whenever it settles after a
// change. Only the latest outcome is kept: a slow consumer sees the newest
// reload, never a backlog.
type SnapshotWatcher struct {
	w     *Watcher
	parse loader.ParseOptions
	out   chan Reload
	now   func() time.Time
}

// NewSnapshotWatcher watches the snapshot at path. Watcher options are
// applied as given, except that the change and error callbacks are owned by
// the snapshot watcher.
func NewSnapshotWatcher(path string, parse loader.ParseOptions, opts ...WatcherOption) (*SnapshotWatcher, error) {
	s := &SnapshotWatcher{parse: parse, out: make(chan Reload, 1), now: time.Now}
	opts = append(opts, WithOnChange(s.reload), WithOnError(s.fail))
	w, err := NewWatcher(path, opts...)
	if err != nil {
		return nil, err
	}
	s.w = w
	return s, nil
}

// Start begins watching.
func (s *SnapshotWatcher) Start(ctx context.Context) error { return s.w.Start(ctx) }

// Stop stops watching.
func (s *SnapshotWatcher) Stop() { s.w.Stop() }

// Path returns the absolute watched path.
func (s *SnapshotWatcher) Path() string { return s.w.Path() }

// IsPolling reports whether the underlying watcher polls.
func (s *SnapshotWatcher) IsPolling() bool { return s.w.IsPolling() }

// Reloads delivers reload outcomes.
func (s *SnapshotWatcher) Reloads() <-chan Reload { return s.out }

// Next blocks until the next reload or until ctx is done.
func (s *SnapshotWatcher) Next(ctx context.Context) (Reload, error) {
	select {
	case r := <-s.out:
		return r, nil
	case <-ctx.Done():
		return Reload{}, ctx.Err()
	}
}

func (s *SnapshotWatcher) reload() {
	snap, err := loader.LoadFile(s.w.Path(), s.parse)
	if err != nil {
		debug.Log("watcher: reload of %s failed: %v", s.w.Path(), err)
		s.publish(Reload{Path: s.w.Path(), Err: err, At: s.now()})
		return
	}
	debug.Log("watcher: reloaded %s (%d nodes)", s.w.Path(), len(snap.Nodes))
	s.publish(Reload{Path: s.w.Path(), Snapshot: snap, At: s.now()})
}

func (s *SnapshotWatcher) fail(err error) {
	s.publish(Reload{Path: s.w.Path(), Err: err, At: s.now()})
}

// publish replaces any unread reload with r.
func (s *SnapshotWatcher) publish(r Reload) {
	for {
		select {
		case s.out <- r:
			return
		default:
		}
		select {
		case <-s.out:
		default:
		}
	}
}
