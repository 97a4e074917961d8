// Package graph holds the canonical node/edge collection of one snapshot
// together with its adjacency index, and answers the traversal queries the
// view layer needs: one-hop neighborhoods, blast radius and isolate
// clusters.
//
// A Store is built once per snapshot and is read-only afterwards, so every
// query can be served from the index without rescanning the edge list.
package graph

import (
	"sort"
	"strings"

	"github.com/vanderheijden86/depcity/pkg/debug"
	"github.com/vanderheijden86/depcity/pkg/metrics"
	"github.com/vanderheijden86/depcity/pkg/model"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// Store is the Graph Store for one snapshot.
type Store struct {
	repoURL string
	tree    *model.FolderTree
	nodes   []model.Node
	edges   []model.Edge
	index   map[string]int

	// imports has an edge u -> v when u imports v; importers is its reverse.
	// Self edges are kept out of both (gonum rejects them) and tracked in
	// selfLoops instead.
	imports   *simple.DirectedGraph
	importers *simple.DirectedGraph
	idToNode  map[string]int64
	nodeToID  map[int64]string
	selfLoops Set

	connected Set
	hasCyclic bool
	warnings  []string
}

// New normalizes snap and indexes it.
func New(snap model.Snapshot) *Store {
	defer metrics.Timer(metrics.SnapshotLoad)()

	norm, warnings := snap.Normalize()
	for _, w := range warnings {
		debug.Log("snapshot: %s", w)
	}

	s := &Store{
		repoURL:   norm.RepoURL,
		tree:      norm.Tree,
		nodes:     norm.Nodes,
		edges:     norm.Edges,
		index:     norm.NodeIndex(),
		imports:   simple.NewDirectedGraph(),
		importers: simple.NewDirectedGraph(),
		idToNode:  make(map[string]int64, len(norm.Nodes)),
		nodeToID:  make(map[int64]string, len(norm.Nodes)),
		selfLoops: make(Set),
		connected: make(Set),
		warnings:  warnings,
	}

	// Node ids follow input order so iteration helpers can sort by them.
	for i, n := range s.nodes {
		gid := int64(i)
		s.imports.AddNode(simple.Node(gid))
		s.importers.AddNode(simple.Node(gid))
		s.idToNode[n.ID] = gid
		s.nodeToID[gid] = n.ID
	}

	for _, e := range s.edges {
		s.connected.Add(e.Source)
		s.connected.Add(e.Target)
		if e.IsCyclic {
			s.hasCyclic = true
		}
		if e.IsSelfLoop() {
			s.selfLoops.Add(e.Source)
			continue
		}
		u, v := s.idToNode[e.Source], s.idToNode[e.Target]
		s.imports.SetEdge(simple.Edge{F: simple.Node(u), T: simple.Node(v)})
		s.importers.SetEdge(simple.Edge{F: simple.Node(v), T: simple.Node(u)})
	}

	debug.Log("graph store: %d nodes, %d edges, %d connected", len(s.nodes), len(s.edges), len(s.connected))
	return s
}

// Empty returns a store with no nodes.
func Empty() *Store {
	return New(model.Snapshot{})
}

// RepoURL returns the repository the snapshot was taken from.
func (s *Store) RepoURL() string { return s.repoURL }

// Tree returns the folder tree for display, possibly nil.
func (s *Store) Tree() *model.FolderTree { return s.tree }

// Warnings returns the repairs applied while normalizing the snapshot.
func (s *Store) Warnings() []string { return s.warnings }

// Len returns the number of nodes.
func (s *Store) Len() int { return len(s.nodes) }

// Nodes returns the nodes in input order. Callers must not modify the slice.
func (s *Store) Nodes() []model.Node { return s.nodes }

// Edges returns the edges in input order. Callers must not modify the slice.
func (s *Store) Edges() []model.Edge { return s.edges }

// Has reports whether id is a node of the snapshot.
func (s *Store) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Node returns the node with the given id.
func (s *Store) Node(id string) (model.Node, bool) {
	i, ok := s.index[id]
	if !ok {
		return model.Node{}, false
	}
	return s.nodes[i], true
}

// Order returns the input position of id, or -1.
func (s *Store) Order(id string) int {
	if i, ok := s.index[id]; ok {
		return i
	}
	return -1
}

// Connected returns the ids that are an endpoint of at least one edge.
func (s *Store) Connected() Set { return s.connected }

// IsConnected reports whether id is an endpoint of at least one edge.
func (s *Store) IsConnected(id string) bool { return s.connected.Has(id) }

// HasCyclicEdges reports whether any edge was flagged as part of a cycle.
func (s *Store) HasCyclicEdges() bool { return s.hasCyclic }

// NeighborsOf returns every id one edge away from id in either direction.
// A node with a self edge is its own neighbor.
func (s *Store) NeighborsOf(id string) Set {
	gid, ok := s.idToNode[id]
	if !ok {
		return Set{}
	}
	out := make(Set)
	s.collect(out, s.imports.From(gid))
	s.collect(out, s.imports.To(gid))
	if s.selfLoops.Has(id) {
		out.Add(id)
	}
	return out
}

// BlastRadius returns id together with every file that imports it directly
// or transitively: everything affected if id changes. Forward reachability
// (what id depends on) is intentionally not part of the result.
func (s *Store) BlastRadius(id string) Set {
	defer metrics.Timer(metrics.BlastRadius)()

	gid, ok := s.idToNode[id]
	if !ok {
		return Set{}
	}
	out := make(Set)
	bf := traverse.BreadthFirst{
		Visit: func(n gonum.Node) {
			out.Add(s.nodeToID[n.ID()])
		},
	}
	bf.Walk(s.importers, s.importers.Node(gid), nil)
	return out
}

// IsolateCluster returns id plus its one-hop neighborhood.
func (s *Store) IsolateCluster(id string) Set {
	if !s.Has(id) {
		return Set{}
	}
	out := s.NeighborsOf(id)
	out.Add(id)
	return out
}

// Importers returns the files that import id directly ("used by"), in input order.
func (s *Store) Importers(id string) []string {
	gid, ok := s.idToNode[id]
	if !ok {
		return nil
	}
	out := s.ordered(s.imports.To(gid))
	if s.selfLoops.Has(id) {
		out = s.insertOrdered(out, id)
	}
	return out
}

// Imports returns the files id imports directly ("uses"), in input order.
func (s *Store) Imports(id string) []string {
	gid, ok := s.idToNode[id]
	if !ok {
		return nil
	}
	out := s.ordered(s.imports.From(gid))
	if s.selfLoops.Has(id) {
		out = s.insertOrdered(out, id)
	}
	return out
}

// FindByLabel returns the first node, in input order, whose label contains
// query case-insensitively.
func (s *Store) FindByLabel(query string) (model.Node, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return model.Node{}, false
	}
	for _, n := range s.nodes {
		if strings.Contains(strings.ToLower(n.Label), q) {
			return n, true
		}
	}
	return model.Node{}, false
}

// MatchLabel returns the ids of every node whose label contains query.
func (s *Store) MatchLabel(query string) Set {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make(Set)
	if q == "" {
		return out
	}
	for _, n := range s.nodes {
		if strings.Contains(strings.ToLower(n.Label), q) {
			out.Add(n.ID)
		}
	}
	return out
}

func (s *Store) collect(dst Set, it gonum.Nodes) {
	for it.Next() {
		dst.Add(s.nodeToID[it.Node().ID()])
	}
}

func (s *Store) ordered(it gonum.Nodes) []string {
	var gids []int64
	for it.Next() {
		gids = append(gids, it.Node().ID())
	}
	sort.Slice(gids, func(i, j int) bool { return gids[i] < gids[j] })
	out := make([]string, len(gids))
	for i, gid := range gids {
		out[i] = s.nodeToID[gid]
	}
	return out
}

func (s *Store) insertOrdered(ids []string, id string) []string {
	ids = append(ids, id)
	sort.SliceStable(ids, func(i, j int) bool { return s.index[ids[i]] < s.index[ids[j]] })
	return ids
}
