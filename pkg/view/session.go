package view

import (
	"github.com/vanderheijden86/depcity/pkg/debug"
	"github.com/vanderheijden86/depcity/pkg/graph"
	"github.com/vanderheijden86/depcity/pkg/model"
)

// Ticket identifies an asynchronous request started under a given
// generation of the session.
type Ticket struct {
	Generation uint64
	NodeID     string
}

// Session owns the current Graph Store and interaction state. It is not
// safe for concurrent use; async work hands results back through tickets
// on the owning goroutine.
type Session struct {
	store *graph.Store
	state State
}

// NewSession starts a session on snap.
func NewSession(snap model.Snapshot) *Session {
	return &Session{store: graph.New(snap)}
}

// Store returns the current Graph Store.
func (s *Session) Store() *graph.Store { return s.store }

// State returns the current interaction state.
func (s *Session) State() State { return s.state }

// Dispatch reduces ev into the session state and returns the new state.
func (s *Session) Dispatch(ev Event) State {
	s.state = Reduce(s.store, s.state, ev)
	return s.state
}

// View derives the current view.
func (s *Session) View() View {
	return Derive(s.store, s.state)
}

// Replace swaps in a new snapshot. All derived state is reset and every
// outstanding ticket becomes stale.
func (s *Session) Replace(snap model.Snapshot) {
	s.store = graph.New(snap)
	s.state = Reduce(s.store, s.state, SnapshotReplaced{})
	debug.Log("session: snapshot replaced, generation %d", s.state.Generation)
}

// Ticket issues a ticket for work on nodeID under the current generation.
func (s *Session) Ticket(nodeID string) Ticket {
	return Ticket{Generation: s.state.Generation, NodeID: nodeID}
}

// ValidTicket reports whether t was issued under the current generation
// and still names a node of the current snapshot.
func (s *Session) ValidTicket(t Ticket) bool {
	if t.Generation != s.state.Generation {
		return false
	}
	return t.NodeID == "" || s.store.Has(t.NodeID)
}

// BeginBlastRadius issues a ticket for a blast radius computation. The
// returned function computes the set against the store as it was when the
// ticket was issued, so it can run off the owning goroutine.
func (s *Session) BeginBlastRadius(nodeID string) (Ticket, func() graph.Set) {
	store := s.store
	return s.Ticket(nodeID), func() graph.Set { return store.BlastRadius(nodeID) }
}

// CommitBlastRadius applies a computed blast radius if its ticket is still
// valid. It reports whether the result was applied.
func (s *Session) CommitBlastRadius(t Ticket, set graph.Set) bool {
	if !s.ValidTicket(t) {
		debug.Log("session: dropping stale blast radius for %s (gen %d, now %d)", t.NodeID, t.Generation, s.state.Generation)
		return false
	}
	s.Dispatch(BlastComputed{NodeID: t.NodeID, Set: set})
	return true
}
