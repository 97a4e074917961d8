package view

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/depcity/pkg/graph"
)

// State is the ephemeral interaction state of one exploration session.
// It is a value: Reduce returns a new State and never modifies its input,
// though sets are shared between states and must be treated as read-only.
type State struct {
	HoveredID     string
	SearchQuery   string // lower-cased
	SearchMatchID string
	IsolatedID    string
	// BlastRadius is empty when inactive.
	BlastRadius      graph.Set
	HideDisconnected bool
	ColorMode        ColorMode
	Dark             bool

	SelectedID    string
	InspectorOpen bool

	// Generation increases whenever derived state is invalidated wholesale
	// (reset, snapshot replacement). Async results carry the generation they
	// were started under.
	Generation uint64

	// Notice is a transient status message for the user, empty when none.
	Notice string
}

// BlastActive reports whether a blast radius is being shown.
func (s State) BlastActive() bool { return !s.BlastRadius.IsEmpty() }

// Searching reports whether a search query is active.
func (s State) Searching() bool { return s.SearchQuery != "" }

// Event is a user or system action that changes interaction state.
type Event interface {
	isEvent()
}

type (
	// Hover marks ID as the highlighted node.
	Hover struct{ ID string }
	// Unhover clears the highlight.
	Unhover struct{}
	// Search sets the search query; the first label match becomes the zoom target.
	Search struct{ Query string }
	// ContextMenu computes and shows the blast radius of ID.
	ContextMenu struct{ ID string }
	// BlastComputed applies a blast radius computed elsewhere.
	BlastComputed struct {
		NodeID string
		Set    graph.Set
	}
	// Isolate restricts the view to ID and its neighbors.
	Isolate struct{ ID string }
	// ToggleHideDisconnected flips the hide-disconnected filter.
	ToggleHideDisconnected struct{}
	// SetColorMode activates Mode, or deactivates it when already active.
	SetColorMode struct{ Mode ColorMode }
	// Select opens the inspector on ID.
	Select struct{ ID string }
	// CloseInspector closes the inspector.
	CloseInspector struct{}
	// Reset clears blast radius, highlight, isolate and search.
	Reset struct{}
	// Escape closes the inspector if open, otherwise resets the view.
	Escape struct{}
	// ToggleDark flips the theme.
	ToggleDark struct{}
	// SnapshotReplaced discards all derived state for a new snapshot.
	SnapshotReplaced struct{}
	// ClearNotice drops the transient status message.
	ClearNotice struct{}
)

func (Hover) isEvent()                  {}
func (Unhover) isEvent()                {}
func (Search) isEvent()                 {}
func (ContextMenu) isEvent()            {}
func (BlastComputed) isEvent()          {}
func (Isolate) isEvent()                {}
func (ToggleHideDisconnected) isEvent() {}
func (SetColorMode) isEvent()           {}
func (Select) isEvent()                 {}
func (CloseInspector) isEvent()         {}
func (Reset) isEvent()                  {}
func (Escape) isEvent()                 {}
func (ToggleDark) isEvent()             {}
func (SnapshotReplaced) isEvent()       {}
func (ClearNotice) isEvent()            {}

// Reduce applies ev to st. Events that reference ids not in s leave the
// state unchanged.
func Reduce(s *graph.Store, st State, ev Event) State {
	next := st
	next.Notice = ""

	switch ev := ev.(type) {
	case Hover:
		if st.Searching() || st.BlastActive() || !s.Has(ev.ID) {
			return st
		}
		next.HoveredID = ev.ID

	case Unhover:
		next.HoveredID = ""

	case Search:
		q := strings.ToLower(strings.TrimSpace(ev.Query))
		next.SearchQuery = q
		next.HoveredID = ""
		next.SearchMatchID = ""
		if q == "" {
			break
		}
		if n, ok := s.FindByLabel(q); ok {
			next.SearchMatchID = n.ID
		}

	case ContextMenu:
		if !s.Has(ev.ID) {
			return st
		}
		next = applyBlast(next, s.BlastRadius(ev.ID))

	case BlastComputed:
		if !s.Has(ev.NodeID) {
			return st
		}
		next = applyBlast(next, ev.Set)

	case Isolate:
		if !s.Has(ev.ID) {
			return st
		}
		next.IsolatedID = ev.ID
		next.InspectorOpen = false
		next.Notice = "Focusing on Node Cluster"

	case ToggleHideDisconnected:
		next.HideDisconnected = !st.HideDisconnected
		if next.HideDisconnected {
			next.Notice = "Hiding disconnected files"
		} else {
			next.Notice = "Showing all files"
		}

	case SetColorMode:
		if st.ColorMode == ev.Mode {
			next.ColorMode = ModeNone
		} else {
			next.ColorMode = ev.Mode
		}
		next.Notice = fmt.Sprintf("Color: %s", next.ColorMode.Title())

	case Select:
		if !s.Has(ev.ID) {
			return st
		}
		next.SelectedID = ev.ID
		next.InspectorOpen = true

	case CloseInspector:
		next.InspectorOpen = false

	case Reset:
		next = clearView(next)

	case Escape:
		if st.InspectorOpen {
			next.InspectorOpen = false
			break
		}
		next = clearView(next)

	case ToggleDark:
		next.Dark = !st.Dark

	case SnapshotReplaced:
		next = State{
			Dark:       st.Dark,
			Generation: st.Generation + 1,
		}

	case ClearNotice:
		// handled above
	}
	return next
}

func applyBlast(st State, set graph.Set) State {
	st.BlastRadius = set
	st.HoveredID = ""
	st.Notice = fmt.Sprintf("Blast Radius: %d files affected", set.Len())
	return st
}

// clearView drops blast radius, highlight, isolate and search. Pending async
// results are invalidated by bumping the generation.
func clearView(st State) State {
	st.BlastRadius = nil
	st.HoveredID = ""
	st.IsolatedID = ""
	st.SearchQuery = ""
	st.SearchMatchID = ""
	st.Generation++
	st.Notice = "View Reset"
	return st
}
