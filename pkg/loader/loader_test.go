package loader_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/depcity/pkg/loader"
	"github.com/vanderheijden86/depcity/pkg/model"
)

const wirePayload = `{
  "nodes": [
    {"id": "src/app.js", "label": "app.js", "data": {"loc": 120, "churn": 4}},
    {"id": "src/db/store.js", "label": "store.js", "data": {"loc": "250", "churn": 12.7}},
    {"id": "src/util.js", "data": {"loc": null}},
    {"id": "README.md", "label": "README.md"}
  ],
  "edges": [
    {"source": "src/app.js", "target": "src/db/store.js", "isCyclic": false},
    {"source": "src/db/store.js", "target": "src/app.js", "isCyclic": true},
    {"source": "src/app.js", "target": "src/missing.js"}
  ],
  "tree": {"name": "root", "type": "folder", "children": [{"name": "app.js", "type": "file"}]}
}`

func decode(t *testing.T, payload string) (model.Snapshot, []string) {
	t.Helper()
	var warnings []string
	snap, err := loader.Decode([]byte(payload), loader.ParseOptions{
		WarningHandler: func(msg string) { warnings = append(warnings, msg) },
	})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return snap, warnings
}

func TestDecode_WireFormat(t *testing.T) {
	snap, warnings := decode(t, wirePayload)

	if len(snap.Nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(snap.Nodes))
	}
	if got := snap.Nodes[0].Metadata; got.LinesOfCode != 120 || got.Churn != 4 {
		t.Errorf("app.js metadata = %+v", got)
	}
	if got := snap.Nodes[1].Metadata; got.LinesOfCode != 250 || got.Churn != 12 {
		t.Errorf("lenient numbers not decoded: %+v", got)
	}
	if got := snap.Nodes[2]; got.Label != "util.js" || got.Metadata.LinesOfCode != 0 {
		t.Errorf("expected label defaulted and loc zero, got %+v", got)
	}
	if got := snap.Nodes[3].Metadata; got != (model.Metadata{}) {
		t.Errorf("missing data should decode to zero, got %+v", got)
	}

	if len(snap.Edges) != 2 {
		t.Fatalf("expected unresolved edge dropped, got %d edges", len(snap.Edges))
	}
	if !snap.Edges[1].IsCyclic || snap.Edges[0].IsCyclic {
		t.Errorf("isCyclic flags not preserved: %+v", snap.Edges)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "src/missing.js") {
		t.Errorf("expected one unresolved-edge warning, got %v", warnings)
	}
	if snap.Tree == nil || snap.Tree.CountFiles() != 1 {
		t.Errorf("tree not decoded: %+v", snap.Tree)
	}
}

func TestDecode_Errors(t *testing.T) {
	for name, payload := range map[string]string{
		"empty":     "",
		"blank":     "   \n",
		"truncated": `{"nodes": [`,
		"wrongType": `{"nodes": 3}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := loader.Decode([]byte(payload), loader.ParseOptions{WarningHandler: func(string) {}}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDecode_BOMAndRepoURL(t *testing.T) {
	payload := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{"nodes":[{"id":"a"}],"edges":[]}`)...)
	snap, err := loader.Decode(payload, loader.ParseOptions{RepoURL: "https://github.com/o/r"})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if snap.RepoURL != "https://github.com/o/r" {
		t.Errorf("RepoURL = %q", snap.RepoURL)
	}

	snap, _ = decode(t, `{"repo_url":"https://x/y","nodes":[]}`)
	if snap.RepoURL != "https://x/y" || !snap.IsEmpty() {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestParse_MaxBytes(t *testing.T) {
	_, err := loader.Parse(strings.NewReader(wirePayload), loader.ParseOptions{MaxBytes: 10})
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	in, _ := decode(t, wirePayload)
	var buf bytes.Buffer
	if err := loader.Encode(&buf, in); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"isCyclic": true`) || !strings.Contains(buf.String(), `"loc": 250`) {
		t.Errorf("wire keys missing from output:\n%s", buf.String())
	}
	out, warnings := decode(t, buf.String())
	if len(warnings) != 0 {
		t.Errorf("round trip produced warnings %v", warnings)
	}
	if len(out.Nodes) != len(in.Nodes) || len(out.Edges) != len(in.Edges) || out.Nodes[1].Metadata != in.Nodes[1].Metadata {
		t.Errorf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "depcity.json")
	if err := os.WriteFile(path, []byte(wirePayload), 0644); err != nil {
		t.Fatal(err)
	}
	snap, err := loader.LoadFile(path, loader.ParseOptions{WarningHandler: func(string) {}})
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(snap.Nodes) != 4 {
		t.Errorf("expected 4 nodes, got %d", len(snap.Nodes))
	}

	_, err = loader.LoadFile(filepath.Join(dir, "nope.json"), loader.ParseOptions{})
	if err == nil || !strings.Contains(err.Error(), "no snapshot found") {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestFindSnapshotPath(t *testing.T) {
	t.Run("missing dir", func(t *testing.T) {
		_, err := loader.FindSnapshotPath("/nonexistent/depcity")
		if err == nil || !strings.Contains(err.Error(), "failed to read snapshot directory") {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("no json", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644)
		if _, err := loader.FindSnapshotPath(dir); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("preferred wins", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, "aaa.json"), []byte("{}"), 0644)
		os.WriteFile(filepath.Join(dir, "snapshot.json"), []byte("{}"), 0644)
		os.WriteFile(filepath.Join(dir, "depcity.json"), []byte("{}"), 0644)
		got, err := loader.FindSnapshotPath(dir)
		if err != nil || filepath.Base(got) != "depcity.json" {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("skips empty and backups", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, "depcity.json"), nil, 0644)
		os.WriteFile(filepath.Join(dir, "a.backup.json"), []byte("{}"), 0644)
		os.WriteFile(filepath.Join(dir, "b.json"), []byte("{}"), 0644)
		got, err := loader.FindSnapshotPath(dir)
		if err != nil || filepath.Base(got) != "b.json" {
			t.Errorf("got %q, %v", got, err)
		}
	})
}

func TestSnapshotDir(t *testing.T) {
	t.Setenv(loader.DirEnvVar, "")
	if got, _ := loader.SnapshotDir("/tmp/x"); got != "/tmp/x" {
		t.Errorf("got %q", got)
	}
	t.Setenv(loader.DirEnvVar, "/env/dir")
	if got, _ := loader.SnapshotDir("/tmp/x"); got != "/env/dir" {
		t.Errorf("env var should win, got %q", got)
	}
}

func FuzzDecode(f *testing.F) {
	f.Add([]byte(wirePayload))
	f.Add([]byte(`{"nodes":[{"id":""},{"id":"a"},{"id":"a"}],"edges":[{"source":"a","target":"a"}]}`))
	f.Add([]byte(`{"nodes":[{"id":"a","data":{"loc":-5,"churn":"x"}}]}`))
	f.Fuzz(func(t *testing.T, data []byte) {
		snap, err := loader.Decode(data, loader.ParseOptions{WarningHandler: func(string) {}})
		if err != nil {
			return
		}
		seen := make(map[string]bool)
		for _, n := range snap.Nodes {
			if n.ID == "" || seen[n.ID] || n.Metadata.LinesOfCode < 0 || n.Metadata.Churn < 0 {
				t.Fatalf("normalization invariant broken: %+v", n)
			}
			seen[n.ID] = true
		}
		for _, e := range snap.Edges {
			if !seen[e.Source] || !seen[e.Target] {
				t.Fatalf("dangling edge %+v", e)
			}
		}
	})
}
