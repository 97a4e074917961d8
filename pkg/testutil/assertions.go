package testutil

import (
	"reflect"
	"sort"
	"testing"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/depcity/pkg/model"
)

// AssertSetEquals verifies that got holds exactly the ids in want.
// got is any map keyed by id, so both graph.Set and plain maps work.
func AssertSetEquals[V any](t *testing.T, got map[string]V, want ...string) {
	t.Helper()
	ids := make([]string, 0, len(got))
	for id := range got {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	exp := append([]string(nil), want...)
	sort.Strings(exp)
	if len(ids) == 0 && len(exp) == 0 {
		return
	}
	if !reflect.DeepEqual(ids, exp) {
		t.Errorf("set mismatch:\n  got:  %v\n  want: %v", ids, exp)
	}
}

// AssertNoDuplicates verifies that ids holds every value at most once.
func AssertNoDuplicates(t *testing.T, ids []string) {
	t.Helper()
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate id: %s", id)
		}
		seen[id] = true
	}
}

// AssertNodeCount verifies the expected number of nodes.
func AssertNodeCount(t *testing.T, nodes []model.Node, expected int) {
	t.Helper()
	if len(nodes) != expected {
		t.Errorf("expected %d nodes, got %d", expected, len(nodes))
	}
}

// AssertAllPositioned verifies every node carries a 2D position.
func AssertAllPositioned(t *testing.T, nodes []model.Node) {
	t.Helper()
	for _, n := range nodes {
		if n.Position == nil {
			t.Errorf("node %s has no position", n.ID)
		}
	}
}

// AssertJSONEqual compares two values by their JSON representation.
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()
	e, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("marshal expected: %v", err)
	}
	a, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("marshal actual: %v", err)
	}
	if string(e) != string(a) {
		t.Errorf("JSON mismatch:\n  expected: %s\n  actual:   %s", e, a)
	}
}
