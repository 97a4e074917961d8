package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/depcity/pkg/export"
	"github.com/vanderheijden86/depcity/pkg/graph"
	"github.com/vanderheijden86/depcity/pkg/layout"
	"github.com/vanderheijden86/depcity/pkg/model"
	"github.com/vanderheijden86/depcity/pkg/provider"
	"github.com/vanderheijden86/depcity/pkg/view"
	"github.com/vanderheijden86/depcity/pkg/watcher"
)

// BlastRadiusMsg carries a blast radius computed off the UI goroutine.
type BlastRadiusMsg struct {
	Ticket view.Ticket
	Set    graph.Set
}

// ContentMsg carries the source of the inspected file.
type ContentMsg struct {
	Ticket view.Ticket
	Code   string
	Err    error
}

// ExplanationMsg carries the markdown explanation of the inspected file.
type ExplanationMsg struct {
	Ticket      view.Ticket
	Explanation string
}

// AnalysisMsg is sent when a repository analysis finishes.
type AnalysisMsg struct {
	RepoURL  string
	Snapshot model.Snapshot
	Err      error
}

// ReloadMsg is sent when the watched snapshot file was re-read.
type ReloadMsg struct {
	Reload watcher.Reload
}

// ExportMsg is sent when an export finishes.
type ExportMsg struct {
	Path string
	Err  error
}

// PositionsSavedMsg is sent when the city layout was simulated and stored
// in the position cache.
type PositionsSavedMsg struct {
	Count int
	Err   error
}

// toastExpiredMsg hides the toast with the given sequence number.
type toastExpiredMsg struct{ seq int }

func blastRadiusCmd(t view.Ticket, compute func() graph.Set) tea.Cmd {
	return func() tea.Msg {
		return BlastRadiusMsg{Ticket: t, Set: compute()}
	}
}

func fetchContentCmd(p provider.ContentProvider, t view.Ticket, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		code, err := p.FileContent(ctx, t.NodeID)
		return ContentMsg{Ticket: t, Code: code, Err: err}
	}
}

func explainCmd(p provider.ExplanationProvider, t view.Ticket, code string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return ExplanationMsg{Ticket: t, Explanation: p.Explain(ctx, code)}
	}
}

// AnalyzeCmd analyses repoURL with p.
func AnalyzeCmd(p provider.AnalysisProvider, repoURL string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		snap, err := p.Analyze(ctx, repoURL)
		return AnalysisMsg{RepoURL: repoURL, Snapshot: snap, Err: err}
	}
}

// WaitForReloadCmd blocks until the watcher delivers the next reload.
func WaitForReloadCmd(w *watcher.SnapshotWatcher) tea.Cmd {
	return func() tea.Msg {
		r, err := w.Next(context.Background())
		if err != nil {
			return nil
		}
		return ReloadMsg{Reload: r}
	}
}

func exportSnapshotCmd(v view.View, lay layout.Result, opts export.SnapshotOptions) tea.Cmd {
	return func() tea.Msg {
		return ExportMsg{Path: opts.Path, Err: export.SaveGraphSnapshot(v, lay, opts)}
	}
}

func exportCityCmd(s *graph.Store, opts export.CityOptions, path string) tea.Cmd {
	return func() tea.Msg {
		city, err := export.BuildCity(context.Background(), s, opts)
		if err == nil {
			err = export.SaveCity(path, city)
		}
		return ExportMsg{Path: path, Err: err}
	}
}

// savePositionsCmd settles the city and stores its layout in opts.Cache
// without writing a file.
func savePositionsCmd(s *graph.Store, opts export.CityOptions) tea.Cmd {
	return func() tea.Msg {
		opts.SavePositions = true
		city, err := export.BuildCity(context.Background(), s, opts)
		return PositionsSavedMsg{Count: len(city.Buildings), Err: err}
	}
}

func toastExpiryCmd(seq int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return toastExpiredMsg{seq: seq}
	})
}

// exportPath names an export file in dir, stamped with now.
func exportPath(dir, kind, ext string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("depcity-%s-%s.%s", kind, now.Format("20060102-150405"), ext))
}
