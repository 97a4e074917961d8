package graph

import (
	"fmt"
	"testing"

	"github.com/vanderheijden86/depcity/pkg/model"
	"github.com/vanderheijden86/depcity/pkg/testutil"

	"pgregory.net/rapid"
)

func abcStore() *Store {
	return New(testutil.Snapshot([]string{"a", "b", "c"}, "a->b", "b->c"))
}

func TestBlastRadius_Chain(t *testing.T) {
	s := abcStore()
	testutil.AssertSetEquals(t, s.BlastRadius("c"), "a", "b", "c")
	testutil.AssertSetEquals(t, s.BlastRadius("b"), "a", "b")
	testutil.AssertSetEquals(t, s.BlastRadius("a"), "a")
}

func TestNeighborsOf_Chain(t *testing.T) {
	s := abcStore()
	testutil.AssertSetEquals(t, s.NeighborsOf("b"), "a", "c")
	testutil.AssertSetEquals(t, s.NeighborsOf("a"), "b")
}

func TestBlastRadius_CycleTerminates(t *testing.T) {
	s := New(testutil.Snapshot([]string{"A", "B"}, "A->B!", "B->A!"))
	testutil.AssertSetEquals(t, s.BlastRadius("A"), "A", "B")
	testutil.AssertSetEquals(t, s.BlastRadius("B"), "A", "B")
	if !s.HasCyclicEdges() {
		t.Error("expected cyclic edges to be reported")
	}
}

func TestSelfEdge(t *testing.T) {
	s := New(testutil.Snapshot([]string{"a", "b"}, "a->a", "b->a"))

	testutil.AssertSetEquals(t, s.NeighborsOf("a"), "a", "b")
	testutil.AssertSetEquals(t, s.BlastRadius("a"), "a", "b")
	testutil.AssertSetEquals(t, s.IsolateCluster("a"), "a", "b")

	if got := s.Importers("a"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Importers(a) = %v, want [a b]", got)
	}
	if got := s.Imports("a"); len(got) != 1 || got[0] != "a" {
		t.Errorf("Imports(a) = %v, want [a]", got)
	}
}

func TestUnknownID(t *testing.T) {
	s := abcStore()
	for name, got := range map[string]Set{
		"neighbors": s.NeighborsOf("zzz"),
		"blast":     s.BlastRadius("zzz"),
		"isolate":   s.IsolateCluster("zzz"),
	} {
		if !got.IsEmpty() {
			t.Errorf("%s of unknown id = %v, want empty", name, got.Sorted())
		}
	}
	if s.Importers("zzz") != nil || s.Imports("zzz") != nil {
		t.Error("expected nil relations for unknown id")
	}
	if s.Order("zzz") != -1 {
		t.Error("expected -1 order for unknown id")
	}
}

func TestIsolateCluster_OneHop(t *testing.T) {
	s := New(testutil.Snapshot([]string{"m", "p", "q"}, "m->p", "p->m", "p->q", "q->p"))
	testutil.AssertSetEquals(t, s.IsolateCluster("m"), "m", "p")
	testutil.AssertSetEquals(t, s.IsolateCluster("p"), "m", "p", "q")
}

func TestConnectedAndRelations(t *testing.T) {
	s := New(testutil.Snapshot([]string{"x", "y", "z", "lonely"}, "x->z", "y->z"))

	testutil.AssertSetEquals(t, s.Connected(), "x", "y", "z")
	if s.IsConnected("lonely") {
		t.Error("lonely should not be connected")
	}
	if got := s.Importers("z"); len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Errorf("Importers(z) = %v, want [x y]", got)
	}
	if got := s.Imports("x"); len(got) != 1 || got[0] != "z" {
		t.Errorf("Imports(x) = %v, want [z]", got)
	}
}

func TestNewDropsUnresolvedEdges(t *testing.T) {
	s := New(model.Snapshot{
		Nodes: []model.Node{{ID: "a"}, {ID: "b"}},
		Edges: []model.Edge{{Source: "a", Target: "b"}, {Source: "a", Target: "ghost"}},
	})
	if len(s.Edges()) != 1 {
		t.Errorf("expected 1 edge, got %d", len(s.Edges()))
	}
	if len(s.Warnings()) != 1 {
		t.Errorf("expected 1 warning, got %v", s.Warnings())
	}
	if s.Has("ghost") {
		t.Error("unresolved endpoint must not become a node")
	}
}

func TestFindByLabel(t *testing.T) {
	s := New(model.Snapshot{Nodes: []model.Node{
		{ID: "src/userService.js", Label: "userService.js"},
		{ID: "src/user.js", Label: "user.js"},
	}})

	n, ok := s.FindByLabel("USER")
	if !ok || n.ID != "src/userService.js" {
		t.Errorf("expected first match in input order, got %q (%v)", n.ID, ok)
	}
	if _, ok := s.FindByLabel("   "); ok {
		t.Error("blank query should not match")
	}
	testutil.AssertSetEquals(t, s.MatchLabel("user"), "src/userService.js", "src/user.js")
}

func TestEmptyStore(t *testing.T) {
	s := Empty()
	if s.Len() != 0 || !s.Connected().IsEmpty() {
		t.Error("expected empty store")
	}
	if !s.BlastRadius("a").IsEmpty() {
		t.Error("expected empty blast radius on empty store")
	}
}

// genSnapshot draws a random graph over n0..n{k-1}, self edges and cycles included.
func genSnapshot(t *rapid.T) model.Snapshot {
	size := rapid.IntRange(1, 12).Draw(t, "size")
	ids := make([]string, size)
	for i := range ids {
		ids[i] = fmt.Sprintf("n%d", i)
	}
	pairs := rapid.SliceOfN(rapid.IntRange(0, size*size-1), 0, 30).Draw(t, "edges")
	var specs []string
	for _, p := range pairs {
		specs = append(specs, fmt.Sprintf("%s->%s", ids[p/size], ids[p%size]))
	}
	return testutil.Snapshot(ids, specs...)
}

// reaches reports whether a directed path from -> ... -> to exists, by
// naive fixpoint over the raw edge list.
func reaches(snap model.Snapshot, from, to string) bool {
	seen := map[string]bool{from: true}
	for changed := true; changed; {
		changed = false
		for _, e := range snap.Edges {
			if seen[e.Source] && !seen[e.Target] {
				seen[e.Target] = true
				changed = true
			}
		}
	}
	return seen[to]
}

func TestProperty_BlastRadiusIsReverseReachability(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		snap := genSnapshot(t)
		s := New(snap)
		for _, n := range snap.Nodes {
			br := s.BlastRadius(n.ID)
			if !br.Has(n.ID) {
				t.Fatalf("blast radius of %s misses itself", n.ID)
			}
			for _, m := range snap.Nodes {
				want := reaches(snap, m.ID, n.ID)
				if br.Has(m.ID) != want {
					t.Fatalf("blast(%s) has %s = %v, reachability says %v", n.ID, m.ID, br.Has(m.ID), want)
				}
			}
		}
	})
}

func TestProperty_NeighborsSymmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		snap := genSnapshot(t)
		s := New(snap)
		for _, n := range snap.Nodes {
			for m := range s.NeighborsOf(n.ID) {
				if !s.NeighborsOf(m).Has(n.ID) {
					t.Fatalf("%s in neighbors(%s) but not the reverse", m, n.ID)
				}
			}
		}
	})
}

func TestProperty_IsolateClusterContainsSelf(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		snap := genSnapshot(t)
		s := New(snap)
		for _, n := range snap.Nodes {
			c := s.IsolateCluster(n.ID)
			if !c.Has(n.ID) {
				t.Fatalf("isolate(%s) misses itself", n.ID)
			}
			want := s.NeighborsOf(n.ID).Clone()
			want.Add(n.ID)
			if !c.Equal(want) {
				t.Fatalf("isolate(%s) is not self plus neighbors", n.ID)
			}
		}
	})
}
