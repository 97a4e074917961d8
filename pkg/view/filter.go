package view

import (
	"github.com/vanderheijden86/depcity/pkg/graph"
	"github.com/vanderheijden86/depcity/pkg/metrics"
	"github.com/vanderheijden86/depcity/pkg/model"
)

// FilterOptions are the toggles that shrink the visible graph.
type FilterOptions struct {
	IsolatedID       string
	HideDisconnected bool
}

// Subset is the visible part of a snapshot, in input order.
type Subset struct {
	Nodes   []model.Node
	Edges   []model.Edge
	Visible graph.Set
}

// Filter derives the visible subset. An isolate target wins over
// hide-disconnected; an isolate target that is not in the snapshot hides
// everything. An edge is visible when both endpoints are.
func Filter(s *graph.Store, opts FilterOptions) Subset {
	defer metrics.Timer(metrics.FilterPipeline)()

	var keep func(id string) bool
	switch {
	case opts.IsolatedID != "":
		cluster := s.IsolateCluster(opts.IsolatedID)
		keep = cluster.Has
	case opts.HideDisconnected:
		keep = s.IsConnected
	default:
		keep = func(string) bool { return true }
	}

	out := Subset{Visible: make(graph.Set)}
	for _, n := range s.Nodes() {
		if keep(n.ID) {
			out.Nodes = append(out.Nodes, n)
			out.Visible.Add(n.ID)
		}
	}
	for _, e := range s.Edges() {
		if out.Visible.Has(e.Source) && out.Visible.Has(e.Target) {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}
