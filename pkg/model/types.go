// Package model defines the dependency snapshot shared by every depcity
// package: files as nodes, imports as directed edges.
package model

import (
	"fmt"
	"path"
	"strings"
)

// Metadata holds the per-file metrics produced by the analysis backend.
type Metadata struct {
	LinesOfCode int `json:"loc"`
	Churn       int `json:"churn"` // commits touching the file
}

// Point is a 2D position (top-left corner of the node box).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single file in the snapshot. ID is the repository-relative path.
type Node struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Metadata Metadata `json:"data"`
	Position *Point   `json:"position,omitempty"`
}

// Edge records that Source imports Target.
type Edge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	IsCyclic bool   `json:"isCyclic"`
}

// ID returns a stable identifier for the edge.
func (e Edge) ID() string {
	return fmt.Sprintf("e-%s-%s", e.Source, e.Target)
}

// IsSelfLoop reports whether the edge points back at its own source.
func (e Edge) IsSelfLoop() bool {
	return e.Source == e.Target
}

// Tree node types.
const (
	TreeFolder = "folder"
	TreeFile   = "file"
)

// FolderTree is the folder hierarchy shown next to the graph.
type FolderTree struct {
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Children []*FolderTree `json:"children,omitempty"`
}

// IsFolder reports whether the entry is a folder.
func (t *FolderTree) IsFolder() bool {
	return t != nil && t.Type == TreeFolder
}

// CountFiles returns the number of file leaves below t.
func (t *FolderTree) CountFiles() int {
	if t == nil {
		return 0
	}
	if !t.IsFolder() {
		return 1
	}
	n := 0
	for _, c := range t.Children {
		n += c.CountFiles()
	}
	return n
}

// Snapshot is one repository analysis: the canonical node/edge collection.
type Snapshot struct {
	RepoURL string      `json:"repo_url,omitempty"`
	Nodes   []Node      `json:"nodes"`
	Edges   []Edge      `json:"edges"`
	Tree    *FolderTree `json:"tree,omitempty"`
}

// IsEmpty reports whether the snapshot has no nodes.
func (s Snapshot) IsEmpty() bool {
	return len(s.Nodes) == 0
}

// Normalize repairs a snapshot so that every invariant holds: ids are
// unique and non-empty, metrics are non-negative, labels are set and every
// edge references existing nodes. Each repair is reported as a warning.
// The receiver is not modified.
func (s Snapshot) Normalize() (Snapshot, []string) {
	var warnings []string

	out := Snapshot{
		RepoURL: s.RepoURL,
		Tree:    s.Tree,
		Nodes:   make([]Node, 0, len(s.Nodes)),
		Edges:   make([]Edge, 0, len(s.Edges)),
	}

	seen := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		id := strings.TrimSpace(n.ID)
		if id == "" {
			warnings = append(warnings, fmt.Sprintf("node %d: empty id, dropped", i))
			continue
		}
		if seen[id] {
			warnings = append(warnings, fmt.Sprintf("node %q: duplicate id, dropped", id))
			continue
		}
		seen[id] = true

		n.ID = id
		if n.Label == "" {
			n.Label = path.Base(id)
		}
		if n.Metadata.LinesOfCode < 0 {
			warnings = append(warnings, fmt.Sprintf("node %q: negative loc clamped to 0", id))
			n.Metadata.LinesOfCode = 0
		}
		if n.Metadata.Churn < 0 {
			warnings = append(warnings, fmt.Sprintf("node %q: negative churn clamped to 0", id))
			n.Metadata.Churn = 0
		}
		if n.Position != nil {
			p := *n.Position
			n.Position = &p
		}
		out.Nodes = append(out.Nodes, n)
	}

	for _, e := range s.Edges {
		e.Source = strings.TrimSpace(e.Source)
		e.Target = strings.TrimSpace(e.Target)
		if !seen[e.Source] || !seen[e.Target] {
			warnings = append(warnings, fmt.Sprintf("edge %s -> %s: unresolved endpoint, dropped", e.Source, e.Target))
			continue
		}
		out.Edges = append(out.Edges, e)
	}

	return out, warnings
}

// NodeIndex maps node ids to their index in s.Nodes.
func (s Snapshot) NodeIndex() map[string]int {
	idx := make(map[string]int, len(s.Nodes))
	for i, n := range s.Nodes {
		idx[n.ID] = i
	}
	return idx
}
