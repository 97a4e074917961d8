package datasource

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/depcity/pkg/model"
)

// MetadataChange records a file whose metrics differ between snapshots.
type MetadataChange struct {
	ID     string         `json:"id"`
	Before model.Metadata `json:"before"`
	After  model.Metadata `json:"after"`
}

// SnapshotDiff describes how snapshot B differs from snapshot A.
type SnapshotDiff struct {
	AddedNodes   []string         `json:"added_nodes,omitempty"`
	RemovedNodes []string         `json:"removed_nodes,omitempty"`
	AddedEdges   []string         `json:"added_edges,omitempty"`
	RemovedEdges []string         `json:"removed_edges,omitempty"`
	NewCycles    []string         `json:"new_cycles,omitempty"` // edges that became cyclic
	ChangedFiles []MetadataChange `json:"changed_files,omitempty"`
	CountA       int              `json:"count_a"`
	CountB       int              `json:"count_b"`
}

// HasChanges returns true if the snapshots differ in any tracked way.
func (d SnapshotDiff) HasChanges() bool {
	return len(d.AddedNodes) > 0 || len(d.RemovedNodes) > 0 ||
		len(d.AddedEdges) > 0 || len(d.RemovedEdges) > 0 ||
		len(d.NewCycles) > 0 || len(d.ChangedFiles) > 0
}

// Summary returns a one-line human-readable summary, suitable for a toast.
func (d SnapshotDiff) Summary() string {
	if !d.HasChanges() {
		return fmt.Sprintf("No changes (%d files)", d.CountB)
	}
	var parts []string
	if n := len(d.AddedNodes); n > 0 {
		parts = append(parts, fmt.Sprintf("+%d files", n))
	}
	if n := len(d.RemovedNodes); n > 0 {
		parts = append(parts, fmt.Sprintf("-%d files", n))
	}
	if n := len(d.AddedEdges); n > 0 {
		parts = append(parts, fmt.Sprintf("+%d imports", n))
	}
	if n := len(d.RemovedEdges); n > 0 {
		parts = append(parts, fmt.Sprintf("-%d imports", n))
	}
	if n := len(d.NewCycles); n > 0 {
		parts = append(parts, fmt.Sprintf("%d new circular", n))
	}
	if n := len(d.ChangedFiles); n > 0 {
		parts = append(parts, fmt.Sprintf("%d changed", n))
	}
	return strings.Join(parts, ", ")
}

// DiffSnapshots compares two snapshots. All lists are sorted.
func DiffSnapshots(a, b model.Snapshot) SnapshotDiff {
	diff := SnapshotDiff{CountA: len(a.Nodes), CountB: len(b.Nodes)}

	nodesA := make(map[string]model.Metadata, len(a.Nodes))
	for _, n := range a.Nodes {
		nodesA[n.ID] = n.Metadata
	}
	nodesB := make(map[string]bool, len(b.Nodes))
	for _, n := range b.Nodes {
		nodesB[n.ID] = true
		before, ok := nodesA[n.ID]
		switch {
		case !ok:
			diff.AddedNodes = append(diff.AddedNodes, n.ID)
		case before != n.Metadata:
			diff.ChangedFiles = append(diff.ChangedFiles, MetadataChange{ID: n.ID, Before: before, After: n.Metadata})
		}
	}
	for _, n := range a.Nodes {
		if !nodesB[n.ID] {
			diff.RemovedNodes = append(diff.RemovedNodes, n.ID)
		}
	}

	edgesA := make(map[string]bool, len(a.Edges))
	for _, e := range a.Edges {
		edgesA[e.ID()] = e.IsCyclic
	}
	edgesB := make(map[string]bool, len(b.Edges))
	for _, e := range b.Edges {
		edgesB[e.ID()] = true
		wasCyclic, ok := edgesA[e.ID()]
		if !ok {
			diff.AddedEdges = append(diff.AddedEdges, e.ID())
		}
		if e.IsCyclic && !wasCyclic {
			diff.NewCycles = append(diff.NewCycles, e.ID())
		}
	}
	for _, e := range a.Edges {
		if !edgesB[e.ID()] {
			diff.RemovedEdges = append(diff.RemovedEdges, e.ID())
		}
	}

	for _, s := range [][]string{diff.AddedNodes, diff.RemovedNodes, diff.AddedEdges, diff.RemovedEdges, diff.NewCycles} {
		sort.Strings(s)
	}
	sort.Slice(diff.ChangedFiles, func(i, j int) bool { return diff.ChangedFiles[i].ID < diff.ChangedFiles[j].ID })
	return diff
}
