package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/depcity/internal/datasource"
	"github.com/vanderheijden86/depcity/pkg/config"
	"github.com/vanderheijden86/depcity/pkg/debug"
	"github.com/vanderheijden86/depcity/pkg/loader"
	"github.com/vanderheijden86/depcity/pkg/model"
	"github.com/vanderheijden86/depcity/pkg/provider"
	"github.com/vanderheijden86/depcity/pkg/spatial"
	"github.com/vanderheijden86/depcity/pkg/ui"
	"github.com/vanderheijden86/depcity/pkg/version"
	"github.com/vanderheijden86/depcity/pkg/view"
	"github.com/vanderheijden86/depcity/pkg/watcher"
)

// rememberedRepos caps the repo history kept in the config file.
const rememberedRepos = 10

var errNoSnapshot = errors.New("no snapshot found: pass a snapshot file or -repo <url>")

type options struct {
	cpuProfile string
	help       bool
	version    bool

	configPath string
	snapshot   string
	dir        string
	db         string
	repo       string
	server     string
	analyze    bool
	noWatch    bool

	colorMode        string
	isolate          string
	hideDisconnected bool

	exportSVG   string
	exportPNG   string
	exportGraph string
	graphFormat string
	graphRoot   string
	graphDepth  int
	exportCity  string
	scatter     bool
	pins        map[string]spatial.Coordinates

	robotBlast string
	robotView  bool
	noHooks    bool
}

// batch reports whether the invocation produces output and exits instead of
// starting the explorer.
func (o options) batch() bool {
	return o.exportSVG != "" || o.exportPNG != "" || o.exportGraph != "" ||
		o.exportCity != "" || o.robotBlast != "" || o.robotView
}

// newFlagSet registers every flag on a fresh set bound to o.
func newFlagSet(o *options) *flag.FlagSet {
	fs := flag.NewFlagSet("depcity", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&o.cpuProfile, "cpu-profile", "", "Write CPU profile to file")
	fs.BoolVar(&o.help, "help", false, "Show help")
	fs.BoolVar(&o.version, "version", false, "Show version")

	fs.StringVar(&o.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/depcity/config.yaml)")
	fs.StringVar(&o.snapshot, "snapshot", "", "Snapshot JSON file to open (watched for changes)")
	fs.StringVar(&o.dir, "dir", "", "Directory searched for snapshot files (default: $DEPCITY_DIR or cwd)")
	fs.StringVar(&o.db, "db", "", "Snapshot cache database (default: from config)")
	fs.StringVar(&o.repo, "repo", "", "Repository URL (or remembered name) to open")
	fs.StringVar(&o.server, "server", "", "Analysis backend base URL (default: from config)")
	fs.BoolVar(&o.analyze, "analyze", false, "Re-analyze the repository even when a cached snapshot exists")
	fs.BoolVar(&o.noWatch, "no-watch", false, "Do not reload the snapshot file when it changes")

	fs.StringVar(&o.colorMode, "color-mode", "", "Initial color mode: none, hotspot, complexity, folder")
	fs.StringVar(&o.isolate, "isolate", "", "Restrict exports to this file and its neighbors")
	fs.BoolVar(&o.hideDisconnected, "hide-disconnected", false, "Hide files without any import")

	fs.StringVar(&o.exportSVG, "export-svg", "", "Write the 2D view as SVG and exit")
	fs.StringVar(&o.exportPNG, "export-png", "", "Write the 2D view as PNG and exit")
	fs.StringVar(&o.exportGraph, "export-graph", "", "Write the graph (json, dot or mermaid) and exit")
	fs.StringVar(&o.graphFormat, "graph-format", "", "Format for -export-graph (default: from extension, else json)")
	fs.StringVar(&o.graphRoot, "graph-root", "", "Export only the subgraph reachable from this file")
	fs.IntVar(&o.graphDepth, "graph-depth", 0, "Depth limit for -graph-root (0 = unlimited)")
	fs.StringVar(&o.exportCity, "export-city", "", "Write the 3D city layout as JSON and exit")
	fs.BoolVar(&o.scatter, "scatter", false, "Spread the city out (default: from config)")
	fs.Func("pin", "Pin a file in the city at `id=x,y,z` (repeatable)", func(v string) error {
		id, at, err := parsePin(v)
		if err != nil {
			return err
		}
		if o.pins == nil {
			o.pins = make(map[string]spatial.Coordinates)
		}
		o.pins[id] = at
		return nil
	})

	fs.StringVar(&o.robotBlast, "robot-blast", "", "Print the blast radius of a file as JSON and exit")
	fs.BoolVar(&o.robotView, "robot-view", false, "Print the derived view as JSON and exit")
	fs.BoolVar(&o.noHooks, "no-hooks", false, "Skip the export hooks in .depcity/hooks.yaml")
	return fs
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := newFlagSet(&o)
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 && o.snapshot == "" {
		o.snapshot = fs.Arg(0)
	}
	if o.graphDepth < 0 {
		return o, fmt.Errorf("-graph-depth must be >= 0, got %d", o.graphDepth)
	}
	if _, err := view.ParseColorMode(o.colorMode); err != nil {
		return o, err
	}
	return o, nil
}

// parsePin parses "id=x,y,z". The id may itself contain "=".
func parsePin(v string) (string, spatial.Coordinates, error) {
	i := strings.LastIndex(v, "=")
	if i <= 0 {
		return "", spatial.Coordinates{}, fmt.Errorf("want id=x,y,z, got %q", v)
	}
	parts := strings.Split(v[i+1:], ",")
	if len(parts) != 3 {
		return "", spatial.Coordinates{}, fmt.Errorf("want three coordinates in %q", v)
	}
	var xyz [3]float64
	for j, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", spatial.Coordinates{}, fmt.Errorf("bad coordinate %q in %q", p, v)
		}
		xyz[j] = f
	}
	return v[:i], spatial.Coordinates{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: depcity [options] [snapshot.json]")
	fmt.Fprintln(w, "\nExplore a code dependency graph as a layered diagram or a 3D city.")
	var o options
	fs := newFlagSet(&o)
	fs.SetOutput(w)
	fs.PrintDefaults()
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(os.Stdout)
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage(os.Stderr)
		os.Exit(2)
	}

	// CPU profiling support
	if opts.cpuProfile != "" {
		f, err := os.Create(opts.cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if opts.help {
		printUsage(os.Stdout)
		return
	}
	if opts.version {
		fmt.Printf("depcity %s\n", version.Version)
		return
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		// Deferred profile writes are skipped by os.Exit.
		pprof.StopCPUProfile()
		os.Exit(1)
	}
}

func loadConfig(path string) config.Config {
	var (
		cfg config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		// Non-fatal: continue with defaults
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		return config.DefaultConfig()
	}
	return cfg
}

func run(opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	saved := loadConfig(opts.configPath)
	cfg := saved
	if opts.server != "" {
		cfg.Provider.BaseURL = opts.server
	}
	if opts.db != "" {
		cfg.Database = opts.db
	}
	if opts.colorMode != "" {
		cfg.UI.DefaultColorMode = opts.colorMode
	}
	if opts.scatter {
		cfg.Spatial.Scatter = true
	}

	client := provider.NewHTTPClient(cfg.Provider.BaseURL, provider.WithTimeout(cfg.ProviderTimeout()))

	var store *datasource.SnapshotStore
	if path := cfg.DatabasePath(); path != "" {
		s, err := datasource.OpenSnapshotStore(path)
		if err != nil {
			debug.Log("main: snapshot cache unavailable: %v", err)
		} else {
			store = s
			defer store.Close()
		}
	}
	analyzer := datasource.NewCachingAnalyzer(client, store)

	repoURL := resolveRepo(cfg, opts.repo)
	snap, watchPath, err := openSnapshot(ctx, opts, cfg, analyzer, repoURL)
	if errors.Is(err, errNoSnapshot) && !opts.batch() && isTerminal() {
		repoURL, err = promptRepo(cfg)
		if err != nil {
			return err
		}
		snap, watchPath, err = openSnapshot(ctx, opts, cfg, analyzer, repoURL)
	}
	if err != nil {
		return err
	}
	if repoURL != "" {
		saved.RememberRepo(repoURL, rememberedRepos)
		var err error
		if opts.configPath != "" {
			err = config.SaveTo(saved, opts.configPath)
		} else {
			err = config.Save(saved)
		}
		if err != nil {
			debug.Log("main: saving config: %v", err)
		}
	}

	if opts.batch() {
		return runBatch(ctx, os.Stdout, snap, opts, cfg)
	}

	uiOpts := ui.Options{
		Config:    cfg,
		RepoURL:   firstNonEmpty(repoURL, snap.RepoURL),
		Analyzer:  analyzer,
		Content:   client,
		Explainer: client,
	}
	if watchPath != "" && !opts.noWatch {
		w, err := watcher.NewSnapshotWatcher(watchPath, loader.ParseOptions{WarningHandler: func(msg string) {
			debug.Log("reload: %s", msg)
		}})
		if err == nil {
			err = w.Start(ctx)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: live reload disabled: %v\n", err)
		} else {
			defer w.Stop()
			uiOpts.Watcher = w
		}
	}

	return runTUIProgram(ui.NewModel(snap, uiOpts))
}

// resolveRepo turns a remembered repo name into its URL.
func resolveRepo(cfg config.Config, nameOrURL string) string {
	if nameOrURL == "" {
		return ""
	}
	if r := cfg.FindRepo(nameOrURL); r != nil {
		return r.URL
	}
	return nameOrURL
}

// openSnapshot loads the snapshot to explore: an explicit file first, then
// a cached or discovered snapshot, then a fresh analysis. The returned path
// is the file to watch, empty when the snapshot did not come from a file.
func openSnapshot(ctx context.Context, opts options, cfg config.Config, analyzer *datasource.CachingAnalyzer, repoURL string) (model.Snapshot, string, error) {
	warn := func(msg string) { fmt.Fprintf(os.Stderr, "Warning: %s\n", msg) }

	if opts.snapshot != "" {
		snap, err := loader.LoadFile(opts.snapshot, loader.ParseOptions{WarningHandler: warn, RepoURL: repoURL})
		return snap, opts.snapshot, err
	}

	if !opts.analyze {
		dir := ""
		if repoURL == "" || opts.dir != "" {
			d, err := loader.SnapshotDir(opts.dir)
			if err != nil {
				return model.Snapshot{}, "", err
			}
			dir = d
		}
		snap, src, err := datasource.Load(ctx, datasource.DiscoveryOptions{
			Dir:     dir,
			DBPath:  cfg.DatabasePath(),
			RepoURL: repoURL,
			Logger:  func(msg string) { debug.Log("discovery: %s", msg) },
		})
		switch {
		case err == nil:
			debug.Log("main: loaded %d files from %s", len(snap.Nodes), src.Path)
			if src.Type == datasource.SourceTypeFile {
				return snap, src.Path, nil
			}
			return snap, "", nil
		case !errors.Is(err, datasource.ErrNoSource):
			return model.Snapshot{}, "", err
		}
	}

	if repoURL == "" {
		return model.Snapshot{}, "", errNoSnapshot
	}
	fmt.Fprintf(os.Stderr, "Analyzing %s via %s...\n", repoURL, cfg.Provider.BaseURL)
	snap, err := analyzer.Analyze(ctx, repoURL)
	if err != nil {
		return model.Snapshot{}, "", fmt.Errorf("analyzing %s: %w", repoURL, err)
	}
	return snap, "", nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set DEPCITY_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("DEPCITY_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
