// Package loader decodes dependency snapshots from the analysis wire format:
//
//	{"nodes":[{"id":..,"label":..,"data":{"loc":..,"churn":..}}],
//	 "edges":[{"source":..,"target":..,"isCyclic":..}],
//	 "tree":{...}}
//
// Decoding is tolerant: missing or malformed metadata becomes zero and the
// result is always normalized.
package loader

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/depcity/pkg/debug"
	"github.com/vanderheijden86/depcity/pkg/metrics"
	"github.com/vanderheijden86/depcity/pkg/model"
)

// DirEnvVar names a directory to search for a snapshot file.
const DirEnvVar = "DEPCITY_DIR"

// PreferredNames defines the lookup order for snapshot files in a directory.
var PreferredNames = []string{"depcity.json", "snapshot.json", "graph.json"}

// DefaultMaxBytes bounds a snapshot read (64MB).
const DefaultMaxBytes = 64 << 20

// ParseOptions configures Parse.
type ParseOptions struct {
	// WarningHandler receives every normalization warning. If nil,
	// warnings are printed to os.Stderr.
	WarningHandler func(string)

	// MaxBytes limits how much is read. If 0, uses DefaultMaxBytes.
	MaxBytes int64

	// RepoURL is stamped on the snapshot when the payload carries none.
	RepoURL string
}

// count is a lenient non-negative-or-not integer: numbers are truncated,
// numeric strings are parsed and anything else decodes to zero.
type count int

func (c *count) UnmarshalJSON(b []byte) error {
	*c = 0
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	*c = count(f)
	return nil
}

type wireMetadata struct {
	LOC   count `json:"loc"`
	Churn count `json:"churn"`
}

type wireNode struct {
	ID    string        `json:"id"`
	Label string        `json:"label"`
	Data  *wireMetadata `json:"data"`
}

type wireEdge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	IsCyclic bool   `json:"isCyclic"`
}

type wireSnapshot struct {
	RepoURL string            `json:"repo_url"`
	Nodes   []wireNode        `json:"nodes"`
	Edges   []wireEdge        `json:"edges"`
	Tree    *model.FolderTree `json:"tree"`
}

func (w wireSnapshot) snapshot() model.Snapshot {
	snap := model.Snapshot{
		RepoURL: w.RepoURL,
		Tree:    w.Tree,
		Nodes:   make([]model.Node, 0, len(w.Nodes)),
		Edges:   make([]model.Edge, 0, len(w.Edges)),
	}
	for _, n := range w.Nodes {
		node := model.Node{ID: n.ID, Label: n.Label}
		if n.Data != nil {
			node.Metadata = model.Metadata{LinesOfCode: int(n.Data.LOC), Churn: int(n.Data.Churn)}
		}
		snap.Nodes = append(snap.Nodes, node)
	}
	for _, e := range w.Edges {
		snap.Edges = append(snap.Edges, model.Edge(e))
	}
	return snap
}

// Parse decodes a snapshot from r and normalizes it.
func Parse(r io.Reader, opts ParseOptions) (model.Snapshot, error) {
	defer metrics.Timer(metrics.SnapshotLoad)()

	limit := opts.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("reading snapshot: %w", err)
	}
	if int64(len(data)) > limit {
		return model.Snapshot{}, fmt.Errorf("snapshot exceeds %d bytes", limit)
	}
	return Decode(data, opts)
}

// Decode decodes a snapshot held in memory and normalizes it.
func Decode(data []byte, opts ParseOptions) (model.Snapshot, error) {
	data = stripBOM(data)
	if len(bytes.TrimSpace(data)) == 0 {
		return model.Snapshot{}, fmt.Errorf("empty snapshot payload")
	}

	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return model.Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	snap := w.snapshot()
	if snap.RepoURL == "" {
		snap.RepoURL = opts.RepoURL
	}

	warn := opts.WarningHandler
	if warn == nil {
		warn = func(msg string) {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
		}
	}
	snap, warnings := snap.Normalize()
	for _, msg := range warnings {
		warn(msg)
	}
	debug.Log("loader: decoded %d nodes, %d edges (%d warnings)", len(snap.Nodes), len(snap.Edges), len(warnings))
	return snap, nil
}

// Encode writes snap in the wire format.
func Encode(w io.Writer, snap model.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(toWire(snap)); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// Marshal returns the compact wire encoding of snap.
func Marshal(snap model.Snapshot) ([]byte, error) {
	return json.Marshal(toWire(snap))
}

func toWire(snap model.Snapshot) wireSnapshot {
	w := wireSnapshot{
		RepoURL: snap.RepoURL,
		Tree:    snap.Tree,
		Nodes:   make([]wireNode, 0, len(snap.Nodes)),
		Edges:   make([]wireEdge, 0, len(snap.Edges)),
	}
	for _, n := range snap.Nodes {
		w.Nodes = append(w.Nodes, wireNode{
			ID:    n.ID,
			Label: n.Label,
			Data:  &wireMetadata{LOC: count(n.Metadata.LinesOfCode), Churn: count(n.Metadata.Churn)},
		})
	}
	for _, e := range snap.Edges {
		w.Edges = append(w.Edges, wireEdge(e))
	}
	return w
}

// LoadFile reads and normalizes the snapshot at path.
func LoadFile(path string, opts ParseOptions) (model.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Snapshot{}, fmt.Errorf("no snapshot found at %s", path)
		}
		return model.Snapshot{}, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	snap, err := Parse(f, opts)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// SnapshotDir returns the directory to search for snapshots, respecting
// DEPCITY_DIR, then dir, then the working directory.
func SnapshotDir(dir string) (string, error) {
	if env := os.Getenv(DirEnvVar); env != "" {
		return env, nil
	}
	if dir != "" {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	return wd, nil
}

// FindSnapshotPath locates a snapshot file in dir. Preferred names win, then
// the first non-empty *.json file in lexical order.
func FindSnapshotPath(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var candidates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if strings.Contains(name, ".backup") || strings.Contains(name, ".orig") {
			continue
		}
		candidates = append(candidates, name)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no snapshot file found in %s", dir)
	}

	nonEmpty := func(name string) bool {
		info, err := os.Stat(filepath.Join(dir, name))
		return err == nil && info.Size() > 0
	}
	for _, preferred := range PreferredNames {
		for _, name := range candidates {
			if name == preferred && nonEmpty(name) {
				return filepath.Join(dir, name), nil
			}
		}
	}
	for _, name := range candidates {
		if nonEmpty(name) {
			return filepath.Join(dir, name), nil
		}
	}
	return filepath.Join(dir, candidates[0]), nil
}

func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
