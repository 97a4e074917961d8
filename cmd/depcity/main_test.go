package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/depcity/pkg/config"
	"github.com/vanderheijden86/depcity/pkg/hooks"
	"github.com/vanderheijden86/depcity/pkg/loader"
	"github.com/vanderheijden86/depcity/pkg/spatial"
	"github.com/vanderheijden86/depcity/pkg/testutil"
)

const fixtureJSON = `{
  "repo_url": "https://github.com/acme/api",
  "nodes": [
    {"id": "src/a.go", "label": "a.go", "data": {"loc": 120, "churn": 4}},
    {"id": "src/b.go", "label": "b.go", "data": {"loc": 40, "churn": 1}},
    {"id": "src/c.go", "label": "c.go", "data": {"loc": 10, "churn": 0}}
  ],
  "edges": [
    {"source": "src/a.go", "target": "src/b.go", "isCyclic": false}
  ]
}`

func writeFixture(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(fixtureJSON), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-color-mode", "hotspot", "-hide-disconnected", "snap.json"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if o.snapshot != "snap.json" {
		t.Errorf("snapshot = %q, want positional snap.json", o.snapshot)
	}
	if o.colorMode != "hotspot" || !o.hideDisconnected {
		t.Errorf("unexpected options: %+v", o)
	}

	o, err = parseFlags([]string{"-snapshot", "x.json", "y.json"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if o.snapshot != "x.json" {
		t.Errorf("explicit -snapshot should win over positional, got %q", o.snapshot)
	}
}

func TestParseFlagsCity(t *testing.T) {
	o, err := parseFlags([]string{"-export-city", "city.json", "-scatter", "-pin", "src/a.go=1,2.5,-3", "-pin", "x=y.go=0,0,0"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if !o.scatter {
		t.Error("-scatter not set")
	}
	if got := o.pins["src/a.go"]; got.X != 1 || got.Y != 2.5 || got.Z != -3 {
		t.Errorf("pin src/a.go = %+v", got)
	}
	if _, ok := o.pins["x=y.go"]; !ok {
		t.Errorf("ids containing '=' should survive, got %v", o.pins)
	}

	for _, bad := range []string{"src/a.go", "=1,2,3", "a.go=1,2", "a.go=1,two,3"} {
		if _, err := parseFlags([]string{"-pin", bad}); err == nil {
			t.Errorf("-pin %q should fail", bad)
		}
	}
}

func TestParseFlagsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"negative depth", []string{"-graph-depth", "-1"}},
		{"bad color mode", []string{"-color-mode", "rainbow"}},
		{"unknown flag", []string{"-frobnicate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseFlags(tt.args); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := parseFlags([]string{"-h"}); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("-h: got %v, want flag.ErrHelp", err)
	}
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf)
	out := buf.String()
	for _, want := range []string{"Usage: depcity", "-robot-blast", "-export-city", "-color-mode"} {
		if !strings.Contains(out, want) {
			t.Errorf("usage missing %q", want)
		}
	}
}

func TestBatch(t *testing.T) {
	tests := []struct {
		name string
		opts options
		want bool
	}{
		{"interactive", options{}, false},
		{"interactive with filters", options{colorMode: "folder", hideDisconnected: true}, false},
		{"svg", options{exportSVG: "out.svg"}, true},
		{"graph", options{exportGraph: "out.dot"}, true},
		{"city", options{exportCity: "city.json"}, true},
		{"robot blast", options{robotBlast: "a.go"}, true},
		{"robot view", options{robotView: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.batch(); got != tt.want {
				t.Errorf("batch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldSuppressTTYQueries(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		envRobot bool
		want     bool
	}{
		{"plain", []string{"depcity", "snap.json"}, false, false},
		{"env", []string{"depcity"}, true, true},
		{"robot flag", []string{"depcity", "-robot-view"}, false, true},
		{"double dash export", []string{"depcity", "--export-svg", "x.svg"}, false, true},
		{"version", []string{"depcity", "--version"}, false, true},
		{"help", []string{"depcity", "-help"}, false, true},
		{"positional named like a flag", []string{"depcity", "robot-view"}, false, false},
		{"other flag", []string{"depcity", "-no-watch"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldSuppressTTYQueries(tt.args, tt.envRobot); got != tt.want {
				t.Errorf("shouldSuppressTTYQueries(%v, %v) = %v, want %v", tt.args, tt.envRobot, got, tt.want)
			}
		})
	}
}

func TestResolveRepo(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RememberRepo("https://github.com/acme/api", 10)

	if got := resolveRepo(cfg, ""); got != "" {
		t.Errorf("empty input: got %q", got)
	}
	if got := resolveRepo(cfg, "acme/api"); got != "https://github.com/acme/api" {
		t.Errorf("remembered name: got %q", got)
	}
	if got := resolveRepo(cfg, "https://github.com/other/repo"); got != "https://github.com/other/repo" {
		t.Errorf("unknown url should pass through, got %q", got)
	}
}

func TestValidateRepoURL(t *testing.T) {
	for _, ok := range []string{"https://github.com/acme/api", "git@github.com:acme/api.git", "  http://x/y  "} {
		if err := validateRepoURL(ok); err != nil {
			t.Errorf("validateRepoURL(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "   ", "acme/api"} {
		if err := validateRepoURL(bad); err == nil {
			t.Errorf("validateRepoURL(%q) should fail", bad)
		}
	}
}

func TestRepoOptions(t *testing.T) {
	opts := repoOptions([]config.Repo{{Name: "api", URL: "https://github.com/acme/api"}})
	if len(opts) != 2 {
		t.Fatalf("got %d options, want 2", len(opts))
	}
	if opts[0].Value != "https://github.com/acme/api" {
		t.Errorf("first option value = %q", opts[0].Value)
	}
	if opts[1].Value != otherRepo {
		t.Errorf("last option should ask for another repo, got %q", opts[1].Value)
	}
}

func TestFormatFromExt(t *testing.T) {
	tests := map[string]string{
		"graph.dot":     "dot",
		"graph.GV":      "dot",
		"graph.mmd":     "mermaid",
		"graph.mermaid": "mermaid",
		"graph.json":    "json",
		"graph":         "json",
	}
	for path, want := range tests {
		if got := formatFromExt(path); got != want {
			t.Errorf("formatFromExt(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestOpenSnapshotExplicitFile(t *testing.T) {
	path := writeFixture(t, t.TempDir(), "custom.json")

	snap, watchPath, err := openSnapshot(context.Background(), options{snapshot: path}, config.DefaultConfig(), nil, "")
	if err != nil {
		t.Fatalf("openSnapshot: %v", err)
	}
	if watchPath != path {
		t.Errorf("watchPath = %q, want %q", watchPath, path)
	}
	if len(snap.Nodes) != 3 || len(snap.Edges) != 1 {
		t.Errorf("got %d nodes / %d edges", len(snap.Nodes), len(snap.Edges))
	}
}

func TestOpenSnapshotDiscoversDirectory(t *testing.T) {
	t.Setenv(loader.DirEnvVar, "")
	dir := t.TempDir()
	path := writeFixture(t, dir, "depcity.json")

	snap, watchPath, err := openSnapshot(context.Background(), options{dir: dir}, config.DefaultConfig(), nil, "")
	if err != nil {
		t.Fatalf("openSnapshot: %v", err)
	}
	if watchPath != path {
		t.Errorf("watchPath = %q, want %q", watchPath, path)
	}
	if snap.RepoURL != "https://github.com/acme/api" {
		t.Errorf("RepoURL = %q", snap.RepoURL)
	}
}

func TestOpenSnapshotNothingFound(t *testing.T) {
	t.Setenv(loader.DirEnvVar, "")
	_, _, err := openSnapshot(context.Background(), options{dir: t.TempDir()}, config.DefaultConfig(), nil, "")
	if !errors.Is(err, errNoSnapshot) {
		t.Fatalf("got %v, want errNoSnapshot", err)
	}
}

func TestRunBatchRobotBlast(t *testing.T) {
	snap := testutil.Snapshot([]string{"a", "b", "c", "d"}, "a->b", "b->c")

	var buf bytes.Buffer
	if err := runBatch(context.Background(), &buf, snap, options{robotBlast: "c"}, config.DefaultConfig()); err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	var got blastOutput
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	if !got.Known || got.Count != 3 {
		t.Errorf("got %+v, want known with 3 affected", got)
	}
	testutil.AssertSetEquals(t, toSet(got.Affected), "a", "b", "c")
}

func TestRunBatchRobotBlastUnknown(t *testing.T) {
	snap := testutil.Snapshot([]string{"a", "b"}, "a->b")

	var buf bytes.Buffer
	if err := runBatch(context.Background(), &buf, snap, options{robotBlast: "zzz"}, config.DefaultConfig()); err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	var got blastOutput
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Known || got.Count != 0 || got.Affected == nil {
		t.Errorf("unknown file should give an empty, non-null set: %+v", got)
	}
}

func TestRunBatchRobotView(t *testing.T) {
	snap := testutil.Snapshot([]string{"a", "b", "c", "d"}, "a->b", "b->c")
	cfg := config.DefaultConfig()

	var buf bytes.Buffer
	opts := options{robotView: true, isolate: "b"}
	if err := runBatch(context.Background(), &buf, snap, opts, cfg); err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	var got viewOutput
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 4 || got.Visible != 3 {
		t.Errorf("total/visible = %d/%d, want 4/3", got.Total, got.Visible)
	}
	if got.Isolated != "b" {
		t.Errorf("isolated = %q", got.Isolated)
	}
	ids := make([]string, 0, len(got.Nodes))
	for _, n := range got.Nodes {
		ids = append(ids, n.ID)
	}
	testutil.AssertSetEquals(t, toSet(ids), "a", "b", "c")
}

func TestRunBatchCityScatterAndPins(t *testing.T) {
	snap := testutil.Snapshot([]string{"a", "b", "c"}, "a->b", "b->c")
	path := filepath.Join(t.TempDir(), "city.json")
	opts := options{exportCity: path, scatter: true, noHooks: true}
	opts.pins = pinsOf(t, "c=40,0,-40")

	if err := runBatch(context.Background(), &bytes.Buffer{}, snap, opts, config.DefaultConfig()); err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var city struct {
		Params struct {
			Charge  float64 `json:"charge"`
			DagMode string  `json:"dag_mode"`
		} `json:"params"`
		Buildings []struct {
			ID     string  `json:"id"`
			X      float64 `json:"x"`
			Z      float64 `json:"z"`
			Pinned bool    `json:"pinned"`
		} `json:"buildings"`
	}
	if err := json.Unmarshal(data, &city); err != nil {
		t.Fatal(err)
	}
	if city.Params.Charge != -2000 || city.Params.DagMode != "" {
		t.Errorf("-scatter not applied: %+v", city.Params)
	}
	c := city.Buildings[2]
	if c.ID != "c" || !c.Pinned || c.X != 40 || c.Z != -40 {
		t.Errorf("pinned building = %+v", c)
	}

	opts.pins = pinsOf(t, "nope=0,0,0")
	err = runBatch(context.Background(), &bytes.Buffer{}, snap, opts, config.DefaultConfig())
	if err == nil || !strings.Contains(err.Error(), "-pin: unknown file") {
		t.Fatalf("got %v, want unknown pin error", err)
	}
}

func pinsOf(t *testing.T, pins ...string) map[string]spatial.Coordinates {
	t.Helper()
	out := make(map[string]spatial.Coordinates, len(pins))
	for _, p := range pins {
		id, at, err := parsePin(p)
		if err != nil {
			t.Fatalf("parsePin(%q): %v", p, err)
		}
		out[id] = at
	}
	return out
}

func TestRunBatchUnknownIsolate(t *testing.T) {
	snap := testutil.Snapshot([]string{"a"})
	err := runBatch(context.Background(), &bytes.Buffer{}, snap, options{robotView: true, isolate: "nope"}, config.DefaultConfig())
	if err == nil || !strings.Contains(err.Error(), "unknown file") {
		t.Fatalf("got %v, want unknown file error", err)
	}
}

func TestRunBatchExports(t *testing.T) {
	snap := testutil.Snapshot([]string{"a", "b", "c"}, "a->b", "b->c")
	dir := t.TempDir()
	opts := options{
		exportSVG:   filepath.Join(dir, "view.svg"),
		exportGraph: filepath.Join(dir, "graph.dot"),
		exportCity:  filepath.Join(dir, "city.json"),
	}
	if err := runBatch(context.Background(), &bytes.Buffer{}, snap, opts, config.DefaultConfig()); err != nil {
		t.Fatalf("runBatch: %v", err)
	}

	svg, err := os.ReadFile(opts.exportSVG)
	if err != nil {
		t.Fatalf("read svg: %v", err)
	}
	if !strings.Contains(string(svg), "<svg") {
		t.Error("svg output missing <svg element")
	}

	dot, err := os.ReadFile(opts.exportGraph)
	if err != nil {
		t.Fatalf("read dot: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(dot)), "digraph") {
		t.Errorf("graph.dot should hold DOT, got:\n%s", dot)
	}

	data, err := os.ReadFile(opts.exportCity)
	if err != nil {
		t.Fatalf("read city: %v", err)
	}
	var city struct {
		Buildings []struct {
			ID string `json:"id"`
		} `json:"buildings"`
	}
	if err := json.Unmarshal(data, &city); err != nil {
		t.Fatalf("decode city: %v", err)
	}
	if len(city.Buildings) != 3 {
		t.Errorf("got %d buildings, want 3", len(city.Buildings))
	}
}

func TestRunBatchGraphFormatOverride(t *testing.T) {
	snap := testutil.Snapshot([]string{"a", "b"}, "a->b")
	out := filepath.Join(t.TempDir(), "graph.txt")
	opts := options{exportGraph: out, graphFormat: "mermaid"}
	if err := runBatch(context.Background(), &bytes.Buffer{}, snap, opts, config.DefaultConfig()); err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "graph") {
		t.Errorf("mermaid output unexpected:\n%s", data)
	}
}

func writeHooks(t *testing.T, dir, content string) {
	t.Helper()
	path := hooks.ConfigPath(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunBatchRunsExportHooks(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeHooks(t, dir, "hooks:\n  post-export:\n    - command: echo \"$DEPCITY_EXPORT_FORMAT $DEPCITY_FILE_COUNT\" > hook.out\n")

	snap := testutil.Snapshot([]string{"a", "b"}, "a->b")
	opts := options{exportGraph: filepath.Join(dir, "graph.mmd")}
	if err := runBatch(context.Background(), &bytes.Buffer{}, snap, opts, config.DefaultConfig()); err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	out, err := os.ReadFile(filepath.Join(dir, "hook.out"))
	if err != nil {
		t.Fatalf("post-export hook did not run: %v", err)
	}
	if got := strings.TrimSpace(string(out)); got != "mermaid 2" {
		t.Errorf("hook saw %q, want \"mermaid 2\"", got)
	}
}

func TestRunBatchPreExportHookCancels(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeHooks(t, dir, "hooks:\n  pre-export:\n    - name: gate\n      command: exit 3\n")

	snap := testutil.Snapshot([]string{"a", "b"}, "a->b")
	out := filepath.Join(dir, "graph.json")
	err := runBatch(context.Background(), &bytes.Buffer{}, snap, options{exportGraph: out}, config.DefaultConfig())
	if err == nil || !strings.Contains(err.Error(), "gate") {
		t.Fatalf("got %v, want pre-export failure", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Errorf("export should not be written when a pre-export hook fails")
	}

	if err := runBatch(context.Background(), &bytes.Buffer{}, snap, options{exportGraph: out, noHooks: true}, config.DefaultConfig()); err != nil {
		t.Fatalf("-no-hooks should skip the gate: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("export missing with -no-hooks: %v", err)
	}
}

func toSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
