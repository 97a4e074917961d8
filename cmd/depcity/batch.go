package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/depcity/pkg/config"
	"github.com/vanderheijden86/depcity/pkg/export"
	"github.com/vanderheijden86/depcity/pkg/hooks"
	"github.com/vanderheijden86/depcity/pkg/layout"
	"github.com/vanderheijden86/depcity/pkg/model"
	"github.com/vanderheijden86/depcity/pkg/spatial"
	"github.com/vanderheijden86/depcity/pkg/view"
)

// blastOutput is the -robot-blast payload.
type blastOutput struct {
	Node     string   `json:"node"`
	Known    bool     `json:"known"`
	Affected []string `json:"affected"`
	Count    int      `json:"count"`
}

type viewNodeOutput struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Rule       string  `json:"rule"`
	Fill       string  `json:"fill"`
	Opacity    float64 `json:"opacity"`
	Emphasized bool    `json:"emphasized,omitempty"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

type viewEdgeOutput struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Target  string  `json:"target"`
	Rule    string  `json:"rule"`
	Stroke  string  `json:"stroke"`
	Width   float64 `json:"width"`
	Visible bool    `json:"visible"`
}

// viewOutput is the -robot-view payload.
type viewOutput struct {
	RepoURL   string           `json:"repo_url,omitempty"`
	ColorMode string           `json:"color_mode"`
	Legend    string           `json:"legend"`
	Dark      bool             `json:"dark"`
	Isolated  string           `json:"isolated,omitempty"`
	Total     int              `json:"total_files"`
	Visible   int              `json:"visible_files"`
	Crossings int              `json:"crossings"`
	Nodes     []viewNodeOutput `json:"nodes"`
	Edges     []viewEdgeOutput `json:"edges"`
	Warnings  []string         `json:"warnings,omitempty"`
}

// runBatch performs every requested export or robot query against snap and
// writes robot output to w.
func runBatch(ctx context.Context, w io.Writer, snap model.Snapshot, opts options, cfg config.Config) error {
	session, err := batchSession(snap, opts, cfg)
	if err != nil {
		return err
	}
	v := session.View()
	lay := layout.Hierarchical(session.Store().Nodes(), session.Store().Edges(), cfg.LayoutOptions())

	for _, img := range []struct{ path, format string }{
		{opts.exportSVG, "svg"},
		{opts.exportPNG, "png"},
	} {
		if img.path == "" {
			continue
		}
		err := withHooks(opts, hooks.ExportContext{
			ExportPath:   img.path,
			ExportFormat: img.format,
			RepoURL:      snap.RepoURL,
			FileCount:    v.Len(),
			Timestamp:    time.Now(),
		}, func() error {
			return export.SaveGraphSnapshot(v, lay, export.SnapshotOptions{
				Path:    img.path,
				Format:  img.format,
				Title:   "depcity",
				RepoURL: snap.RepoURL,
				Layout:  cfg.LayoutOptions(),
			})
		})
		if err != nil {
			return fmt.Errorf("export %s: %w", img.format, err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", img.path)
	}

	if opts.exportGraph != "" {
		if err := writeGraph(session, opts); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", opts.exportGraph)
	}

	if opts.exportCity != "" {
		st := session.State()
		for id := range opts.pins {
			if !session.Store().Has(id) {
				return fmt.Errorf("-pin: unknown file %q", id)
			}
		}
		cache := spatial.NewCache(spatial.NewMemoryStore(), cfg.Spatial.Tuning)
		city, err := export.BuildCity(ctx, session.Store(), export.CityOptions{
			Cache:            cache,
			ColorMode:        st.ColorMode,
			Dark:             st.Dark,
			HideDisconnected: st.HideDisconnected,
			Scatter:          cfg.Spatial.Scatter || opts.scatter,
			Pins:             opts.pins,
		})
		if err != nil {
			return fmt.Errorf("export city: %w", err)
		}
		err = withHooks(opts, hooks.ExportContext{
			ExportPath:   opts.exportCity,
			ExportFormat: "city",
			RepoURL:      snap.RepoURL,
			FileCount:    len(city.Buildings),
			Timestamp:    time.Now(),
		}, func() error {
			return export.SaveCity(opts.exportCity, city)
		})
		if err != nil {
			return fmt.Errorf("export city: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s (%d buildings, %d ticks)\n", opts.exportCity, len(city.Buildings), city.Ticks)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if opts.robotBlast != "" {
		s := session.Store()
		set := s.BlastRadius(opts.robotBlast)
		affected := set.Sorted()
		if affected == nil {
			affected = []string{}
		}
		if err := enc.Encode(blastOutput{
			Node:     opts.robotBlast,
			Known:    s.Has(opts.robotBlast),
			Affected: affected,
			Count:    len(affected),
		}); err != nil {
			return err
		}
	}

	if opts.robotView {
		if err := enc.Encode(buildViewOutput(session, v, lay)); err != nil {
			return err
		}
	}
	return nil
}

// batchSession applies the command-line view flags to a fresh session.
func batchSession(snap model.Snapshot, opts options, cfg config.Config) (*view.Session, error) {
	session := view.NewSession(snap)
	if cfg.UI.Dark {
		session.Dispatch(view.ToggleDark{})
	}

	mode, err := view.ParseColorMode(cfg.UI.DefaultColorMode)
	if err != nil {
		return nil, err
	}
	if mode != view.ModeNone {
		session.Dispatch(view.SetColorMode{Mode: mode})
	}
	if opts.hideDisconnected {
		session.Dispatch(view.ToggleHideDisconnected{})
	}
	if opts.isolate != "" {
		if !session.Store().Has(opts.isolate) {
			return nil, fmt.Errorf("-isolate: unknown file %q", opts.isolate)
		}
		session.Dispatch(view.Isolate{ID: opts.isolate})
	}
	return session, nil
}

func writeGraph(session *view.Session, opts options) error {
	name := opts.graphFormat
	if name == "" {
		name = formatFromExt(opts.exportGraph)
	}
	format, err := export.ParseGraphFormat(name)
	if err != nil {
		return err
	}
	st := session.State()
	res, err := export.ExportGraph(session.Store(), export.GraphExportConfig{
		Format:           format,
		Root:             opts.graphRoot,
		Depth:            opts.graphDepth,
		HideDisconnected: st.HideDisconnected,
		ColorMode:        st.ColorMode,
	})
	if err != nil {
		return fmt.Errorf("export graph: %w", err)
	}

	var data []byte
	if format == export.GraphFormatJSON {
		data, err = res.JSON()
		if err != nil {
			return err
		}
	} else {
		data = []byte(res.Graph)
	}
	return withHooks(opts, hooks.ExportContext{
		ExportPath:   opts.exportGraph,
		ExportFormat: string(format),
		RepoURL:      res.RepoURL,
		FileCount:    res.Nodes,
		Timestamp:    time.Now(),
	}, func() error {
		return os.WriteFile(opts.exportGraph, data, 0o644)
	})
}

// withHooks runs write between the pre- and post-export hooks of the
// working directory. A failing pre-export hook cancels the write; post-export
// failures are reported but do not fail the export.
func withHooks(opts options, hctx hooks.ExportContext, write func() error) error {
	executor, err := hooks.RunHooks("", hctx, opts.noHooks)
	if err != nil {
		return err
	}
	if executor == nil {
		return write()
	}
	if err := executor.RunPreExport(); err != nil {
		fmt.Fprintln(os.Stderr, executor.Summary())
		return err
	}
	if err := write(); err != nil {
		return err
	}
	if err := executor.RunPostExport(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	fmt.Fprintln(os.Stderr, executor.Summary())
	return nil
}

// formatFromExt maps an output file extension to a graph format name.
func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dot", ".gv":
		return "dot"
	case ".mmd", ".mermaid":
		return "mermaid"
	default:
		return "json"
	}
}

func buildViewOutput(session *view.Session, v view.View, lay layout.Result) viewOutput {
	st := session.State()
	s := session.Store()
	out := viewOutput{
		RepoURL:   s.RepoURL(),
		ColorMode: st.ColorMode.String(),
		Legend:    v.Legend.Title,
		Dark:      v.Dark,
		Isolated:  st.IsolatedID,
		Total:     s.Len(),
		Visible:   v.Len(),
		Crossings: lay.Crossings,
		Nodes:     make([]viewNodeOutput, 0, len(v.Nodes)),
		Edges:     make([]viewEdgeOutput, 0, len(v.Edges)),
		Warnings:  s.Warnings(),
	}
	for _, n := range v.Nodes {
		p, _ := lay.Position(n.ID)
		out.Nodes = append(out.Nodes, viewNodeOutput{
			ID:         n.ID,
			Label:      n.Label,
			Rule:       n.Rule.String(),
			Fill:       n.Style.Fill,
			Opacity:    n.Style.Opacity,
			Emphasized: n.Style.Emphasized,
			X:          p.X,
			Y:          p.Y,
		})
	}
	for _, e := range v.Edges {
		out.Edges = append(out.Edges, viewEdgeOutput{
			ID:      e.ID(),
			Source:  e.Source,
			Target:  e.Target,
			Rule:    e.Rule.String(),
			Stroke:  e.Style.Stroke,
			Width:   e.Style.Width,
			Visible: e.Style.Visible,
		})
	}
	return out
}
