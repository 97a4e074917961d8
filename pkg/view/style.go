package view

import (
	"github.com/vanderheijden86/depcity/pkg/graph"
	"github.com/vanderheijden86/depcity/pkg/metrics"
	"github.com/vanderheijden86/depcity/pkg/model"
)

// Opacity levels for nodes and edges.
const (
	OpaqueAlpha     = 1.0
	FadedNodeAlpha  = 0.1
	FadedEdgeAlpha  = 0.2
	FocusedEdgeZ    = 10
	ArrowMarkerSize = 20
)

// Border is a node outline.
type Border struct {
	Width float64
	Color string
}

// NodeStyle is the final render attribute set of one node. Colours are
// resolved for the active theme.
type NodeStyle struct {
	Fill       string
	Opacity    float64
	Emphasized bool
	Border     Border
	// Glow is a CSS-like box shadow, empty when none.
	Glow string
}

// Marker is the arrow head drawn at the target end of an edge.
type Marker struct {
	Kind   string
	Width  int
	Height int
	Color  string
}

// EdgeRule identifies which link of the edge precedence chain fired.
type EdgeRule int

const (
	EdgeBlast EdgeRule = iota
	EdgeCyclic
	EdgeFocused
	EdgeDimmed
	EdgeDefault
)

func (r EdgeRule) String() string {
	switch r {
	case EdgeBlast:
		return "blast"
	case EdgeCyclic:
		return "cyclic"
	case EdgeFocused:
		return "focused"
	case EdgeDimmed:
		return "dimmed"
	default:
		return "default"
	}
}

// EdgeStyle is the final render attribute set of one edge.
type EdgeStyle struct {
	Stroke   string
	Width    float64
	Visible  bool
	Animated bool
	Opacity  float64
	ZIndex   int
	Marker   Marker
}

// StyledNode pairs a visible node with its style.
type StyledNode struct {
	model.Node
	Rule  ColorRule
	Style NodeStyle
}

// StyledEdge pairs a visible edge with its style.
type StyledEdge struct {
	model.Edge
	Rule  EdgeRule
	Style EdgeStyle
}

// View is everything a render backend needs for one frame.
type View struct {
	Nodes  []StyledNode
	Edges  []StyledEdge
	Legend Legend
	Dark   bool
	// FocusIDs are the ids a backend should zoom to: the blast radius when
	// active, otherwise the search match. Sorted; nil when nothing to focus.
	FocusIDs []string
}

// Len returns the number of visible nodes.
func (v View) Len() int { return len(v.Nodes) }

// NodeByID returns the styled node with the given id.
func (v View) NodeByID(id string) (StyledNode, bool) {
	for _, n := range v.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return StyledNode{}, false
}

// EdgeByID returns the styled edge with the given "e-src-tgt" id.
func (v View) EdgeByID(id string) (StyledEdge, bool) {
	for _, e := range v.Edges {
		if e.ID() == id {
			return e, true
		}
	}
	return StyledEdge{}, false
}

// themeColors are the theme-dependent strokes and borders.
type themeColors struct {
	edgeDefault string
	edgeStrong  string
	edgeDim     string
	nodeBorder  string
}

func colorsFor(dark bool) themeColors {
	if dark {
		return themeColors{edgeDefault: "#888888", edgeStrong: "#ffffff", edgeDim: "#333333", nodeBorder: "#777777"}
	}
	return themeColors{edgeDefault: "#b1b1b7", edgeStrong: "#000000", edgeDim: "#dddddd", nodeBorder: "#333333"}
}

// Derive runs the filter pipeline and styles every visible node and edge
// for the given interaction state. It never mutates s or st.
func Derive(s *graph.Store, st State) View {
	defer metrics.Timer(metrics.StyleDerive)()

	sub := Filter(s, FilterOptions{IsolatedID: st.IsolatedID, HideDisconnected: st.HideDisconnected})
	tc := colorsFor(st.Dark)

	blast := st.BlastRadius
	blastActive := !blast.IsEmpty()

	// The focus node is what edges light up around: the hovered node, or
	// the search match while searching.
	focus := st.HoveredID
	if focus == "" {
		focus = st.SearchMatchID
	}
	var focusNeighbors graph.Set
	if focus != "" {
		focusNeighbors = s.NeighborsOf(focus)
	}
	var searchMatches graph.Set
	if st.SearchQuery != "" {
		searchMatches = s.MatchLabel(st.SearchQuery)
	}

	v := View{
		Nodes:  make([]StyledNode, 0, len(sub.Nodes)),
		Edges:  make([]StyledEdge, 0, len(sub.Edges)),
		Legend: LegendFor(st.ColorMode, blastActive),
		Dark:   st.Dark,
	}

	for _, n := range sub.Nodes {
		rule := ClassifyNode(n, st.ColorMode, blast)
		style := NodeStyle{
			Fill:    Resolve(NodeColor(n, st.ColorMode, blast), st.Dark),
			Opacity: OpaqueAlpha,
			Border:  Border{Width: 1, Color: tc.nodeBorder},
		}
		switch {
		case blastActive:
			if !blast.Has(n.ID) {
				style.Opacity = FadedNodeAlpha
			}
		case focus != "" || searchMatches != nil:
			lit := n.ID == focus || focusNeighbors.Has(n.ID) || searchMatches.Has(n.ID)
			if !lit {
				style.Opacity = FadedNodeAlpha
			}
		}
		if blast.Has(n.ID) {
			style.Emphasized = true
			style.Border = Border{Width: 3, Color: "#000000"}
			style.Glow = "0 0 20px #ff0000"
		}
		v.Nodes = append(v.Nodes, StyledNode{Node: n, Rule: rule, Style: style})
	}

	for _, e := range sub.Edges {
		rule, style := styleEdge(e, blast, focus, tc)
		v.Edges = append(v.Edges, StyledEdge{Edge: e, Rule: rule, Style: style})
	}

	switch {
	case blastActive:
		v.FocusIDs = blast.Sorted()
	case st.SearchMatchID != "":
		v.FocusIDs = []string{st.SearchMatchID}
	}
	return v
}

// styleEdge applies the edge precedence chain: blast member edge, cyclic,
// touches focus, focus elsewhere, default.
func styleEdge(e model.Edge, blast graph.Set, focus string, tc themeColors) (EdgeRule, EdgeStyle) {
	blastActive := !blast.IsEmpty()
	inBlast := blast.Has(e.Source) && blast.Has(e.Target)
	focused := focus != "" && (e.Source == focus || e.Target == focus)

	style := EdgeStyle{
		Stroke:   tc.edgeDefault,
		Width:    1.5,
		Visible:  !blastActive || inBlast,
		Animated: focused || e.IsCyclic,
		Opacity:  OpaqueAlpha,
	}
	rule := EdgeDefault

	switch {
	case blastActive && inBlast:
		rule, style.Stroke, style.Width = EdgeBlast, tc.edgeStrong, 3
	case e.IsCyclic:
		rule, style.Stroke, style.Width = EdgeCyclic, "#ff0000", 3
	case focused:
		rule, style.Stroke, style.Width = EdgeFocused, tc.edgeStrong, 3
	case focus != "":
		rule, style.Stroke, style.Width = EdgeDimmed, tc.edgeDim, 1
	}

	if focus != "" && !focused {
		style.Opacity = FadedEdgeAlpha
	}
	if focused {
		style.ZIndex = FocusedEdgeZ
	}
	style.Marker = Marker{Kind: "arrowclosed", Width: ArrowMarkerSize, Height: ArrowMarkerSize, Color: style.Stroke}
	return rule, style
}
