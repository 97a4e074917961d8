// Package layout assigns static 2D coordinates to a snapshot: a layered
// top-to-bottom placement for files that take part in at least one import,
// and a grid below it for files that do not.
package layout

import (
	"sort"

	"github.com/vanderheijden86/depcity/pkg/debug"
	"github.com/vanderheijden86/depcity/pkg/metrics"
	"github.com/vanderheijden86/depcity/pkg/model"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Options controls box sizes and spacing. Zero fields take the defaults.
type Options struct {
	NodeWidth  float64 // box width (220)
	NodeHeight float64 // box height (50)
	RankSep    float64 // vertical gap between ranks (50)
	NodeSep    float64 // horizontal gap inside a rank (50)

	Columns    int     // isolated grid columns (10)
	GridMargin float64 // gap between the lowest ranked box and the grid (150)
	GridGapX   float64 // horizontal gap between grid cells (20)
	GridGapY   float64 // vertical gap between grid rows (20)

	// Sweeps is the number of barycenter passes (each pass is one down and
	// one up sweep) used to reduce edge crossings.
	Sweeps int
}

// DefaultOptions returns the standard box and spacing sizes.
func DefaultOptions() Options {
	return Options{
		NodeWidth:  220,
		NodeHeight: 50,
		RankSep:    50,
		NodeSep:    50,
		Columns:    10,
		GridMargin: 150,
		GridGapX:   20,
		GridGapY:   20,
		Sweeps:     8,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.NodeWidth <= 0 {
		o.NodeWidth = d.NodeWidth
	}
	if o.NodeHeight <= 0 {
		o.NodeHeight = d.NodeHeight
	}
	if o.RankSep <= 0 {
		o.RankSep = d.RankSep
	}
	if o.NodeSep <= 0 {
		o.NodeSep = d.NodeSep
	}
	if o.Columns <= 0 {
		o.Columns = d.Columns
	}
	if o.GridMargin <= 0 {
		o.GridMargin = d.GridMargin
	}
	if o.GridGapX < 0 {
		o.GridGapX = d.GridGapX
	}
	if o.GridGapY < 0 {
		o.GridGapY = d.GridGapY
	}
	if o.Sweeps <= 0 {
		o.Sweeps = d.Sweeps
	}
	return o
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Result is a laid out snapshot.
type Result struct {
	// Nodes are copies of the input nodes, in input order, each with a
	// fresh Position holding the top-left corner of its box.
	Nodes []model.Node
	// Edges are the input edges, unchanged.
	Edges []model.Edge
	// Ranks maps each connected node to its layer, 0 at the top.
	Ranks map[string]int
	// Isolated lists the grid-placed ids in input order.
	Isolated []string
	// MaxY is the top of the lowest ranked box, 0 when nothing is ranked.
	MaxY float64
	// Bounds covers every box.
	Bounds Rect
	// Crossings counts crossings between adjacent ranks after ordering.
	Crossings int
}

// Position returns the laid out position of id.
func (r Result) Position(id string) (model.Point, bool) {
	for _, n := range r.Nodes {
		if n.ID == id && n.Position != nil {
			return *n.Position, true
		}
	}
	return model.Point{}, false
}

// Hierarchical lays out nodes and edges. Ids are expected to be unique (as
// produced by model.Snapshot.Normalize); edges with unknown endpoints are
// ignored for placement but still returned. Cycles are broken for ranking
// only. The result is deterministic for identical input.
func Hierarchical(nodes []model.Node, edges []model.Edge, opts Options) Result {
	defer metrics.Timer(metrics.HierarchicalLayout)()
	opts = opts.withDefaults()

	res := Result{
		Nodes: make([]model.Node, len(nodes)),
		Edges: append([]model.Edge(nil), edges...),
		Ranks: make(map[string]int),
	}

	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if _, dup := index[n.ID]; !dup {
			index[n.ID] = i
		}
	}

	// 1. Partition.
	connected := make(map[string]bool)
	for _, e := range edges {
		_, okS := index[e.Source]
		_, okT := index[e.Target]
		if okS && okT {
			connected[e.Source] = true
			connected[e.Target] = true
		}
	}

	var ranked []int // input indexes of connected nodes, input order
	for i, n := range nodes {
		if index[n.ID] != i {
			continue
		}
		if connected[n.ID] {
			ranked = append(ranked, i)
		} else {
			res.Isolated = append(res.Isolated, n.ID)
		}
	}

	positions := make(map[string]model.Point, len(nodes))

	// 2. Layered placement.
	layers := 0
	if len(ranked) > 0 {
		l := newLayering(nodes, edges, ranked, index)
		l.rank()
		l.order(opts.Sweeps)
		res.Crossings = l.crossings(l.layers)
		res.MaxY = l.place(opts, positions)
		for v, r := range l.ranks {
			res.Ranks[l.ids[v]] = r
		}
		layers = len(l.layers)
	}

	// 3. Isolated grid below the ranked layers.
	startY := res.MaxY + opts.GridMargin
	for i, id := range res.Isolated {
		col := i % opts.Columns
		row := i / opts.Columns
		positions[id] = model.Point{
			X: float64(col) * (opts.NodeWidth + opts.GridGapX),
			Y: startY + float64(row)*(opts.NodeHeight+opts.GridGapY),
		}
	}

	first := true
	for i, n := range nodes {
		p := positions[n.ID]
		n.Position = &model.Point{X: p.X, Y: p.Y}
		res.Nodes[i] = n

		if first {
			res.Bounds = Rect{MinX: p.X, MinY: p.Y, MaxX: p.X + opts.NodeWidth, MaxY: p.Y + opts.NodeHeight}
			first = false
			continue
		}
		res.Bounds.MinX = min(res.Bounds.MinX, p.X)
		res.Bounds.MinY = min(res.Bounds.MinY, p.Y)
		res.Bounds.MaxX = max(res.Bounds.MaxX, p.X+opts.NodeWidth)
		res.Bounds.MaxY = max(res.Bounds.MaxY, p.Y+opts.NodeHeight)
	}

	debug.Log("layout: %d ranked in %d layers, %d isolated, %d crossings", len(ranked), layers, len(res.Isolated), res.Crossings)
	return res
}

// layering holds the connected subgraph under local ids 0..n-1, which
// follow input order.
type layering struct {
	nodes []int    // local id -> input index
	ids   []string // local id -> node id
	out   [][]int  // local adjacency, self edges and duplicates removed
	in    [][]int
	ranks []int
	// layers[r] lists local ids in their current left-to-right order.
	layers [][]int
}

func newLayering(nodes []model.Node, edges []model.Edge, ranked []int, index map[string]int) *layering {
	local := make(map[int]int, len(ranked))
	for v, i := range ranked {
		local[i] = v
	}
	l := &layering{
		nodes: ranked,
		ids:   make([]string, len(ranked)),
		out:   make([][]int, len(ranked)),
		in:    make([][]int, len(ranked)),
	}
	for v, i := range ranked {
		l.ids[v] = nodes[i].ID
	}
	seen := make(map[[2]int]bool)
	for _, e := range edges {
		si, okS := index[e.Source]
		ti, okT := index[e.Target]
		if !okS || !okT || si == ti {
			continue
		}
		u, v := local[si], local[ti]
		if seen[[2]int{u, v}] {
			continue
		}
		seen[[2]int{u, v}] = true
		l.out[u] = append(l.out[u], v)
		l.in[v] = append(l.in[v], u)
	}
	return l
}

// backEdges finds the edges closing a cycle in a depth-first walk that
// visits roots and successors in input order.
func (l *layering) backEdges() map[[2]int]bool {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(l.nodes))
	back := make(map[[2]int]bool)

	var dfs func(u int)
	dfs = func(u int) {
		state[u] = visiting
		for _, v := range l.out[u] {
			switch state[v] {
			case visiting:
				back[[2]int{u, v}] = true
			case unvisited:
				dfs(v)
			}
		}
		state[u] = done
	}
	for u := range l.nodes {
		if state[u] == unvisited {
			dfs(u)
		}
	}
	return back
}

// rank assigns longest-path layers over the acyclic remainder.
func (l *layering) rank() {
	back := l.backEdges()

	dag := simple.NewDirectedGraph()
	for v := range l.nodes {
		dag.AddNode(simple.Node(v))
	}
	for u, vs := range l.out {
		for _, v := range vs {
			if !back[[2]int{u, v}] {
				dag.SetEdge(simple.Edge{F: simple.Node(u), T: simple.Node(v)})
			}
		}
	}

	byID := func(ns []gonum.Node) {
		sort.Slice(ns, func(i, j int) bool { return ns[i].ID() < ns[j].ID() })
	}
	sorted, err := topo.SortStabilized(dag, byID)
	if err != nil {
		// Unreachable once back edges are removed; fall back to input order.
		debug.Log("layout: topological sort failed: %v", err)
		sorted = make([]gonum.Node, len(l.nodes))
		for v := range l.nodes {
			sorted[v] = simple.Node(v)
		}
	}

	l.ranks = make([]int, len(l.nodes))
	maxRank := 0
	for _, n := range sorted {
		v := int(n.ID())
		r := 0
		parents := dag.To(n.ID())
		for parents.Next() {
			if pr := l.ranks[parents.Node().ID()] + 1; pr > r {
				r = pr
			}
		}
		l.ranks[v] = r
		maxRank = max(maxRank, r)
	}

	l.layers = make([][]int, maxRank+1)
	for v := range l.nodes {
		l.layers[l.ranks[v]] = append(l.layers[l.ranks[v]], v)
	}
}

// adjacent returns the neighbors of v, in either direction, that sit in
// rank r.
func (l *layering) adjacent(v, r int) []int {
	var out []int
	for _, w := range l.out[v] {
		if l.ranks[w] == r {
			out = append(out, w)
		}
	}
	for _, w := range l.in[v] {
		if l.ranks[w] == r {
			out = append(out, w)
		}
	}
	return out
}

// order runs barycenter sweeps and keeps the ordering with the fewest
// crossings seen, the initial input order included.
func (l *layering) order(sweeps int) {
	best := cloneLayers(l.layers)
	bestCross := l.crossings(best)

	for i := 0; i < sweeps && bestCross > 0; i++ {
		for r := 1; r < len(l.layers); r++ {
			l.reorder(r, r-1)
		}
		for r := len(l.layers) - 2; r >= 0; r-- {
			l.reorder(r, r+1)
		}
		if c := l.crossings(l.layers); c < bestCross {
			best, bestCross = cloneLayers(l.layers), c
		}
	}
	l.layers = best
}

// reorder sorts rank r by the mean position of each node's neighbors in
// rank fixed. Nodes without such neighbors keep their current slot.
func (l *layering) reorder(r, fixed int) {
	pos := make(map[int]int, len(l.layers[fixed]))
	for i, v := range l.layers[fixed] {
		pos[v] = i
	}

	layer := l.layers[r]
	keys := make(map[int]float64, len(layer))
	for i, v := range layer {
		adj := l.adjacent(v, fixed)
		if len(adj) == 0 {
			keys[v] = float64(i)
			continue
		}
		sum := 0
		for _, w := range adj {
			sum += pos[w]
		}
		keys[v] = float64(sum) / float64(len(adj))
	}
	sort.SliceStable(layer, func(i, j int) bool {
		return keys[layer[i]] < keys[layer[j]]
	})
}

// crossings counts pairwise crossings of edges that join adjacent ranks.
func (l *layering) crossings(layers [][]int) int {
	pos := make(map[int]int)
	for _, layer := range layers {
		for i, v := range layer {
			pos[v] = i
		}
	}
	total := 0
	for r := 0; r+1 < len(layers); r++ {
		type seg struct{ top, bottom int }
		var segs []seg
		for _, u := range layers[r] {
			for _, w := range l.adjacent(u, r+1) {
				segs = append(segs, seg{pos[u], pos[w]})
			}
		}
		for i := 0; i < len(segs); i++ {
			for j := i + 1; j < len(segs); j++ {
				a, b := segs[i], segs[j]
				if (a.top < b.top && a.bottom > b.bottom) || (a.top > b.top && a.bottom < b.bottom) {
					total++
				}
			}
		}
	}
	return total
}

// place centres every rank on the widest one and returns the top of the
// lowest rank.
func (l *layering) place(opts Options, positions map[string]model.Point) float64 {
	rowWidth := func(n int) float64 {
		return float64(n)*opts.NodeWidth + float64(n-1)*opts.NodeSep
	}
	widest := 0.0
	for _, layer := range l.layers {
		widest = max(widest, rowWidth(len(layer)))
	}

	maxY := 0.0
	for r, layer := range l.layers {
		y := float64(r) * (opts.NodeHeight + opts.RankSep)
		x0 := (widest - rowWidth(len(layer))) / 2
		for i, v := range layer {
			positions[l.ids[v]] = model.Point{X: x0 + float64(i)*(opts.NodeWidth+opts.NodeSep), Y: y}
		}
		maxY = max(maxY, y)
	}
	return maxY
}

func cloneLayers(layers [][]int) [][]int {
	out := make([][]int, len(layers))
	for i, layer := range layers {
		out[i] = append([]int(nil), layer...)
	}
	return out
}
