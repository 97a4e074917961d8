package export

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"unicode"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/depcity/pkg/graph"
	"github.com/vanderheijden86/depcity/pkg/metrics"
	"github.com/vanderheijden86/depcity/pkg/model"
	"github.com/vanderheijden86/depcity/pkg/view"
)

// GraphExportFormat specifies the output format for graph export.
type GraphExportFormat string

const (
	GraphFormatJSON    GraphExportFormat = "json"
	GraphFormatDOT     GraphExportFormat = "dot"
	GraphFormatMermaid GraphExportFormat = "mermaid"
)

// ParseGraphFormat maps a format name or file extension to a format.
func ParseGraphFormat(s string) (GraphExportFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "json":
		return GraphFormatJSON, nil
	case "dot", "gv":
		return GraphFormatDOT, nil
	case "mermaid", "mmd":
		return GraphFormatMermaid, nil
	}
	return "", fmt.Errorf("unsupported graph format %q (want json, dot or mermaid)", s)
}

// GraphExportConfig configures graph export behavior.
type GraphExportConfig struct {
	Format GraphExportFormat // Output format (json, dot, mermaid)
	Root   string            // Subgraph from specific file
	Depth  int               // Max depth for subgraph (0 = unlimited)
	// Importers walks from Root towards the files that import it (the blast
	// radius direction) instead of towards the files it imports.
	Importers        bool
	HideDisconnected bool
	ColorMode        view.ColorMode
}

// GraphExportResult contains the exported graph and metadata.
type GraphExportResult struct {
	Format         string            `json:"format"`
	RepoURL        string            `json:"repo_url,omitempty"`
	Graph          string            `json:"graph,omitempty"`
	Nodes          int               `json:"nodes"`
	Edges          int               `json:"edges"`
	CyclicEdges    int               `json:"cyclic_edges"`
	FiltersApplied map[string]string `json:"filters_applied,omitempty"`
	Explanation    GraphExplanation  `json:"explanation"`
	Adjacency      *AdjacencyGraph   `json:"adjacency,omitempty"`
}

// GraphExplanation says what the payload is and how to render it.
type GraphExplanation struct {
	What        string `json:"what"`
	HowToRender string `json:"how_to_render,omitempty"`
	WhenToUse   string `json:"when_to_use"`
}

// AdjacencyGraph is the JSON adjacency list representation.
type AdjacencyGraph struct {
	Nodes []AdjacencyNode `json:"nodes"`
	Edges []AdjacencyEdge `json:"edges"`
}

// AdjacencyNode is one file in the adjacency graph.
type AdjacencyNode struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Folder string `json:"folder"`
	LOC    int    `json:"loc"`
	Churn  int    `json:"churn"`
	Color  string `json:"color"`
}

// AdjacencyEdge is one import in the adjacency graph.
type AdjacencyEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"` // "import" or "circular"
}

// ExportGraph exports the dependency graph of s in the configured format.
func ExportGraph(s *graph.Store, config GraphExportConfig) (*GraphExportResult, error) {
	defer metrics.Timer(metrics.Export)()

	if config.Root != "" && !s.Has(config.Root) {
		return nil, fmt.Errorf("root %q is not in the snapshot", config.Root)
	}

	nodes, edges := filterGraph(s, config)
	if len(nodes) == 0 {
		return &GraphExportResult{
			Format:  string(config.Format),
			RepoURL: s.RepoURL(),
			Explanation: GraphExplanation{
				What:      "Empty graph - no files match the filter criteria",
				WhenToUse: "Adjust filter parameters to include more files",
			},
		}, nil
	}

	filtersApplied := make(map[string]string)
	if config.Root != "" {
		filtersApplied["root"] = config.Root
		if config.Importers {
			filtersApplied["direction"] = "importers"
		}
	}
	if config.Depth > 0 {
		filtersApplied["depth"] = fmt.Sprintf("%d", config.Depth)
	}
	if config.HideDisconnected {
		filtersApplied["hide_disconnected"] = "true"
	}

	cyclic := 0
	for _, e := range edges {
		if e.IsCyclic {
			cyclic++
		}
	}

	result := &GraphExportResult{
		Format:         string(config.Format),
		RepoURL:        s.RepoURL(),
		Nodes:          len(nodes),
		Edges:          len(edges),
		CyclicEdges:    cyclic,
		FiltersApplied: filtersApplied,
	}

	switch config.Format {
	case GraphFormatDOT:
		result.Graph = generateDOT(nodes, edges, config.ColorMode)
		result.Explanation = GraphExplanation{
			What:        "Import graph in Graphviz DOT format",
			HowToRender: "Save to file.dot, run: dot -Tsvg file.dot -o graph.svg",
			WhenToUse:   "When you need a static picture of the imports for documentation or review",
		}

	case GraphFormatMermaid:
		result.Graph = generateMermaid(nodes, edges, config.ColorMode)
		result.Explanation = GraphExplanation{
			What:        "Import graph in Mermaid diagram format",
			HowToRender: "Paste into any Markdown renderer that supports Mermaid, or use mermaid.live",
			WhenToUse:   "When you need an embeddable diagram for a README or pull request",
		}

	case GraphFormatJSON:
		fallthrough
	default:
		result.Format = "json"
		result.Adjacency = generateAdjacency(nodes, edges, config.ColorMode)
		result.Explanation = GraphExplanation{
			What:      "Import graph as JSON adjacency list",
			WhenToUse: "When you need programmatic access to the graph structure",
		}
	}

	return result, nil
}

// filterGraph applies the disconnected and root filters and returns the
// surviving nodes sorted by id and edges sorted by endpoints.
func filterGraph(s *graph.Store, config GraphExportConfig) ([]model.Node, []model.Edge) {
	sub := view.Filter(s, view.FilterOptions{HideDisconnected: config.HideDisconnected})
	keep := sub.Visible
	if config.Root != "" {
		keep = extractSubgraph(s, config.Root, config.Depth, config.Importers)
	}

	var nodes []model.Node
	for _, n := range sub.Nodes {
		if keep.Has(n.ID) {
			nodes = append(nodes, n)
		}
	}
	var edges []model.Edge
	for _, e := range sub.Edges {
		if keep.Has(e.Source) && keep.Has(e.Target) {
			edges = append(edges, e)
		}
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return nodes, edges
}

// extractSubgraph collects the files reachable from root within maxDepth
// hops (0 = unlimited).
func extractSubgraph(s *graph.Store, root string, maxDepth int, importers bool) graph.Set {
	next := s.Imports
	if importers {
		next = s.Importers
	}

	visited := graph.NewSet()
	queue := []struct {
		id    string
		depth int
	}{{root, 0}}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		if visited.Has(curr.id) {
			continue
		}
		if maxDepth > 0 && curr.depth > maxDepth {
			continue
		}
		visited.Add(curr.id)

		for _, id := range next(curr.id) {
			if !visited.Has(id) {
				queue = append(queue, struct {
					id    string
					depth int
				}{id, curr.depth + 1})
			}
		}
	}
	return visited
}

func fillColor(n model.Node, mode view.ColorMode) string {
	return view.Resolve(view.NodeColor(n, mode, nil), false)
}

// generateDOT creates a Graphviz DOT format graph.
func generateDOT(nodes []model.Node, edges []model.Edge, mode view.ColorMode) string {
	var sb strings.Builder

	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=TB;\n")
	sb.WriteString("    node [shape=box, style=\"rounded,filled\", fontname=\"Helvetica\", fontsize=10];\n")
	sb.WriteString("    edge [arrowhead=normal];\n")
	sb.WriteString("\n")

	for _, n := range nodes {
		label := fmt.Sprintf("%s\\n%d loc, %d commits",
			escapeDOTString(truncate(n.Label, 40)), n.Metadata.LinesOfCode, n.Metadata.Churn)
		sb.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\", fillcolor=\"%s\", tooltip=\"%s\"];\n",
			escapeDOTString(n.ID), label, fillColor(n, mode), escapeDOTString(n.ID)))
	}

	sb.WriteString("\n")

	for _, e := range edges {
		attrs := "color=\"#b1b1b7\""
		if e.IsCyclic {
			attrs = "color=\"#ff0000\", style=bold, penwidth=3"
		}
		sb.WriteString(fmt.Sprintf("    \"%s\" -> \"%s\" [%s];\n",
			escapeDOTString(e.Source), escapeDOTString(e.Target), attrs))
	}

	sb.WriteString("}\n")
	return sb.String()
}

func escapeDOTString(s string) string {
	// DOT string literals need backslashes and quotes escaped; normalize newlines.
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"\"", "\\\"",
		"\n", " ",
		"\r", " ",
	)
	return replacer.Replace(s)
}

// generateMermaid creates a Mermaid diagram format graph.
func generateMermaid(nodes []model.Node, edges []model.Edge, mode view.ColorMode) string {
	var sb strings.Builder

	sb.WriteString("graph TD\n")

	// Deterministic, collision-free Mermaid ids. Paths like a/b.py and
	// a_b.py sanitize to the same base.
	safeIDMap := make(map[string]string, len(nodes))
	usedSafe := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		base := sanitizeMermaidID(n.ID)
		safe := base
		if usedSafe[safe] {
			h := fnv.New32a()
			_, _ = h.Write([]byte(n.ID))
			safe = fmt.Sprintf("%s_%x", base, h.Sum32())
		}
		usedSafe[safe] = true
		safeIDMap[n.ID] = safe
	}

	for _, n := range nodes {
		safeID := safeIDMap[n.ID]
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", safeID, sanitizeMermaidText(n.Label)))
		sb.WriteString(fmt.Sprintf("    style %s fill:%s,stroke:#333,color:#000\n", safeID, fillColor(n, mode)))
	}

	sb.WriteString("\n")

	var cyclic []int
	for i, e := range edges {
		link := "-->"
		if e.IsCyclic {
			link = "==>"
			cyclic = append(cyclic, i)
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeIDMap[e.Source], link, safeIDMap[e.Target]))
	}
	for _, i := range cyclic {
		sb.WriteString(fmt.Sprintf("    linkStyle %d stroke:#ff0000,stroke-width:3px\n", i))
	}

	return sb.String()
}

// sanitizeMermaidID keeps letters, digits, dashes and underscores; path
// separators and dots become underscores.
func sanitizeMermaidID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			sb.WriteRune(r)
		case r == '/' || r == '.':
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "node"
	}
	return sb.String()
}

// sanitizeMermaidText prepares text for use in Mermaid node labels.
func sanitizeMermaidText(text string) string {
	replacer := strings.NewReplacer(
		"\"", "'",
		"[", "(",
		"]", ")",
		"{", "(",
		"}", ")",
		"<", "&lt;",
		">", "&gt;",
		"|", "/",
		"`", "'",
		"\n", " ",
		"\r", "",
	)
	result := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, replacer.Replace(text))
	return strings.TrimSpace(result)
}

// generateAdjacency creates a JSON adjacency list representation.
func generateAdjacency(nodes []model.Node, edges []model.Edge, mode view.ColorMode) *AdjacencyGraph {
	adj := &AdjacencyGraph{
		Nodes: make([]AdjacencyNode, 0, len(nodes)),
		Edges: make([]AdjacencyEdge, 0, len(edges)),
	}
	for _, n := range nodes {
		adj.Nodes = append(adj.Nodes, AdjacencyNode{
			ID:     n.ID,
			Label:  n.Label,
			Folder: model.TopFolder(n.ID),
			LOC:    n.Metadata.LinesOfCode,
			Churn:  n.Metadata.Churn,
			Color:  fillColor(n, mode),
		})
	}
	for _, e := range edges {
		edgeType := "import"
		if e.IsCyclic {
			edgeType = "circular"
		}
		adj.Edges = append(adj.Edges, AdjacencyEdge{From: e.Source, To: e.Target, Type: edgeType})
	}
	return adj
}

// JSON returns the result as indented JSON.
func (r *GraphExportResult) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
