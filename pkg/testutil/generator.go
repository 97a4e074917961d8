// Package testutil provides test fixture generators for various graph topologies.
// All generators produce deterministic output for reproducible tests.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/vanderheijden86/depcity/pkg/model"
)

// GraphFixture represents an abstract graph for testing graph algorithms.
// Edges are [from_idx, to_idx] pairs where from imports to.
type GraphFixture struct {
	Description string     `json:"description"`
	Nodes       []string   `json:"nodes"`
	Edges       [][2]int   `json:"edges"`
	Cyclic      []bool     `json:"cyclic,omitempty"` // parallel to Edges; nil = none
	Properties  Properties `json:"properties,omitempty"`
}

// Properties holds optional metadata about the fixture.
type Properties struct {
	HasCycles   bool `json:"has_cycles,omitempty"`
	IsConnected bool `json:"is_connected,omitempty"`
}

// GeneratorConfig controls snapshot generation.
type GeneratorConfig struct {
	Seed        int64  // Random seed for determinism
	PathPrefix  string // Directory prefix for node ids (default: "src")
	Extension   string // File extension for node ids (default: ".js")
	WithMetrics bool   // Generate random LOC and churn
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:       42,
		PathPrefix: "src",
		Extension:  ".js",
	}
}

// Generator creates test fixtures with various topologies.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "src"
	}
	if cfg.Extension == "" {
		cfg.Extension = ".js"
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// Chain creates a linear import chain: n0 -> n1 -> ... -> n{size-1}.
// n0 imports n1, so the blast radius of the last node is the whole chain.
func (g *Generator) Chain(size int) GraphFixture {
	nodes := make([]string, size)
	var edges [][2]int
	for i := 0; i < size; i++ {
		nodes[i] = fmt.Sprintf("n%d", i)
		if i > 0 {
			edges = append(edges, [2]int{i - 1, i})
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Linear chain of %d nodes", size),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: true},
	}
}

// Cycle creates a ring n0 -> n1 -> ... -> n{size-1} -> n0 with every edge
// flagged cyclic.
func (g *Generator) Cycle(size int) GraphFixture {
	nodes := make([]string, size)
	edges := make([][2]int, size)
	cyclic := make([]bool, size)
	for i := 0; i < size; i++ {
		nodes[i] = fmt.Sprintf("n%d", i)
		edges[i] = [2]int{i, (i + 1) % size}
		cyclic[i] = true
	}
	return GraphFixture{
		Description: fmt.Sprintf("Cycle of %d nodes", size),
		Nodes:       nodes,
		Edges:       edges,
		Cyclic:      cyclic,
		Properties:  Properties{HasCycles: true, IsConnected: true},
	}
}

// Star creates a hub imported by every spoke.
func (g *Generator) Star(spokes int) GraphFixture {
	nodes := make([]string, spokes+1)
	edges := make([][2]int, spokes)
	nodes[0] = "hub"
	for i := 1; i <= spokes; i++ {
		nodes[i] = fmt.Sprintf("spoke%d", i)
		edges[i-1] = [2]int{i, 0}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Star with hub imported by %d spokes", spokes),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: true},
	}
}

// Disconnected creates `components` separate chains plus `isolated` nodes
// without any edge.
func (g *Generator) Disconnected(components, componentSize, isolated int) GraphFixture {
	var nodes []string
	var edges [][2]int
	for c := 0; c < components; c++ {
		base := len(nodes)
		for i := 0; i < componentSize; i++ {
			nodes = append(nodes, fmt.Sprintf("c%d_n%d", c, i))
			if i > 0 {
				edges = append(edges, [2]int{base + i - 1, base + i})
			}
		}
	}
	for i := 0; i < isolated; i++ {
		nodes = append(nodes, fmt.Sprintf("lonely%d", i))
	}
	return GraphFixture{
		Description: fmt.Sprintf("%d chains of %d plus %d isolated nodes", components, componentSize, isolated),
		Nodes:       nodes,
		Edges:       edges,
	}
}

// Random creates a graph with `size` nodes and each ordered pair joined with
// probability density. Self edges and back edges are allowed, so the result
// may contain cycles; cyclic flags are left unset.
func (g *Generator) Random(size int, density float64) GraphFixture {
	nodes := make([]string, size)
	for i := range nodes {
		nodes[i] = fmt.Sprintf("n%d", i)
	}
	var edges [][2]int
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			if g.rng.Float64() < density {
				edges = append(edges, [2]int{i, j})
			}
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Random graph of %d nodes (density %.2f)", size, density),
		Nodes:       nodes,
		Edges:       edges,
	}
}

// ToSnapshot turns a fixture into a snapshot. Node ids become file paths
// under the configured prefix unless the name already looks like a path.
func (g *Generator) ToSnapshot(gf GraphFixture) model.Snapshot {
	snap := model.Snapshot{
		Nodes: make([]model.Node, len(gf.Nodes)),
		Edges: make([]model.Edge, len(gf.Edges)),
	}
	ids := make([]string, len(gf.Nodes))
	for i, name := range gf.Nodes {
		id := name
		if !strings.Contains(name, "/") && !strings.Contains(name, ".") {
			id = g.cfg.PathPrefix + "/" + name + g.cfg.Extension
		}
		ids[i] = id
		n := model.Node{ID: id, Label: id[strings.LastIndex(id, "/")+1:]}
		if g.cfg.WithMetrics {
			n.Metadata = model.Metadata{
				LinesOfCode: g.rng.Intn(400),
				Churn:       g.rng.Intn(30),
			}
		}
		snap.Nodes[i] = n
	}
	for i, e := range gf.Edges {
		edge := model.Edge{Source: ids[e[0]], Target: ids[e[1]]}
		if i < len(gf.Cyclic) {
			edge.IsCyclic = gf.Cyclic[i]
		}
		snap.Edges[i] = edge
	}
	return snap
}

// Snapshot builds a snapshot straight from bare ids and "a->b" edge specs.
// A trailing "!" on an edge spec marks it cyclic: "a->b!".
func Snapshot(ids []string, edgeSpecs ...string) model.Snapshot {
	snap := model.Snapshot{}
	for _, id := range ids {
		snap.Nodes = append(snap.Nodes, model.Node{ID: id, Label: id})
	}
	for _, spec := range edgeSpecs {
		cyclic := strings.HasSuffix(spec, "!")
		spec = strings.TrimSuffix(spec, "!")
		src, tgt, ok := strings.Cut(spec, "->")
		if !ok {
			panic(fmt.Sprintf("testutil: bad edge spec %q", spec))
		}
		snap.Edges = append(snap.Edges, model.Edge{
			Source:   strings.TrimSpace(src),
			Target:   strings.TrimSpace(tgt),
			IsCyclic: cyclic,
		})
	}
	return snap
}
