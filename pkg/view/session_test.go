package view

import (
	"testing"

	"github.com/vanderheijden86/depcity/pkg/testutil"
)

func TestSession_StaleBlastRadiusDropped(t *testing.T) {
	sess := NewSession(testutil.Snapshot([]string{"a", "b", "c"}, "a->b", "b->c"))

	ticket, compute := sess.BeginBlastRadius("c")
	set := compute()

	// A newer snapshot arrives before the result is applied.
	sess.Replace(testutil.Snapshot([]string{"a", "b", "c"}, "a->b"))

	if sess.CommitBlastRadius(ticket, set) {
		t.Fatal("stale blast radius must not be applied")
	}
	if sess.State().BlastActive() {
		t.Error("state should not show a blast radius")
	}
}

func TestSession_ResetInvalidatesTickets(t *testing.T) {
	sess := NewSession(testutil.Snapshot([]string{"a", "b"}, "a->b"))
	ticket := sess.Ticket("b")
	sess.Dispatch(Reset{})
	if sess.ValidTicket(ticket) {
		t.Error("reset should invalidate outstanding tickets")
	}
}

func TestSession_CommitFreshBlastRadius(t *testing.T) {
	sess := NewSession(testutil.Snapshot([]string{"a", "b", "c"}, "a->b", "b->c"))
	ticket, compute := sess.BeginBlastRadius("b")
	if !sess.CommitBlastRadius(ticket, compute()) {
		t.Fatal("fresh result should be applied")
	}
	testutil.AssertSetEquals(t, sess.State().BlastRadius, "a", "b")

	v := sess.View()
	if len(v.FocusIDs) != 2 {
		t.Errorf("expected focus on blast radius, got %v", v.FocusIDs)
	}
}

func TestSession_TicketForVanishedNode(t *testing.T) {
	sess := NewSession(testutil.Snapshot([]string{"a"}))
	ticket := sess.Ticket("ghost")
	if sess.ValidTicket(ticket) {
		t.Error("ticket for unknown node should be invalid")
	}
	if !sess.ValidTicket(sess.Ticket("")) {
		t.Error("node-less ticket should be valid in its generation")
	}
}
