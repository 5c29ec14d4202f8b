package core

import (
	"testing"

	"github.com/encodeous/trellis/state"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestFlowProgrammerOptimistic(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr, _ := newTestTracker(t, TrackerOpts{EntryPolicy: state.EntryOptimistic})
	h := &TrackerHarness{}
	fp := NewFlowProgrammer(tr, h, FlowOpts{Log: discardLogger()})
	defer fp.Stop()

	mesh(t, tr, "a", "b", "c")
	fp.Wait()
	a := h.GetActions()
	assert.Len(t, a, 2)
	a.AssertContains(t, "INSTALL", L("a", 2, "b", 1))
	a.AssertContains(t, "INSTALL", L("a", 3, "c", 1))
	a.AssertNotContains(t, "INSTALL", L("b", 3, "c", 2))

	assert.Empty(t, fp.BlockedPorts("a"))
	assert.Equal(t, []state.Port{3}, fp.BlockedPorts("b"))
	assert.Equal(t, []state.Port{2}, fp.BlockedPorts("c"))

	tr.LinkDead("a", 2, "b", 1)
	fp.Wait()
	h.GetActions().AssertContains(t, "INSTALL", L("b", 3, "c", 2))
	assert.Empty(t, fp.BlockedPorts("b"))
	assert.Empty(t, fp.BlockedPorts("c"))
}

func TestFlowProgrammerRemovesForbiddenEntries(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr, _ := newTestTracker(t, TrackerOpts{EntryPolicy: state.EntryOptimistic})
	h := &TrackerHarness{}
	fp := NewFlowProgrammer(tr, h, FlowOpts{Log: discardLogger()})
	defer fp.Stop()

	mesh(t, tr, "a", "b", "c")
	tr.EntriesAdded("b", 3, "c", 2)
	tr.SwitchUp("d")
	fp.Wait()
	h.GetActions().AssertContains(t, "REMOVE", L("b", 3, "c", 2))
	assert.Empty(t, tr.EntriesToRemove())
}

func TestFlowProgrammerExplicitConfirms(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr, _ := newTestTracker(t, TrackerOpts{EntryPolicy: state.EntryExplicit})
	h := &TrackerHarness{FailSwitch: "c"}
	fp := NewFlowProgrammer(tr, h, FlowOpts{Log: discardLogger()})
	defer fp.Stop()

	mesh(t, tr, "a", "b", "c")
	fp.Wait()
	h.GetActions().AssertContains(t, "INSTALL", L("a", 2, "b", 1))
	// c is unreachable so its entries stay pending
	requireLinks(t, []state.Link{L("a", 3, "c", 1)}, tr.EntriesToAdd())

	h.mu.Lock()
	h.FailSwitch = ""
	h.mu.Unlock()
	fp.Resync()
	fp.Wait()
	h.GetActions().AssertContains(t, "INSTALL", L("a", 3, "c", 1))
	assert.Empty(t, tr.EntriesToAdd())
	assert.Empty(t, tr.EntriesToRemove())
}

func TestFlowProgrammerStoppedLeavesTrackerWorking(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr, _ := newTestTracker(t, TrackerOpts{EntryPolicy: state.EntryOptimistic})
	h := &TrackerHarness{}
	fp := NewFlowProgrammer(tr, h, FlowOpts{Log: discardLogger()})
	tr.Subscribe(h)
	fp.Stop()

	tr.SwitchUp("a")
	tr.SwitchUp("b")
	gen := tr.Generation()
	assert.NotPanics(t, func() {
		tr.LinkAlive("a", 1, "b", 1)
	})
	assert.Equal(t, gen+1, tr.Generation())
	// the other handlers still see every change and optimistic marking still happens
	assert.Len(t, h.Changes(), 3)
	assert.Empty(t, tr.EntriesToAdd())
	h.GetActions().AssertNotContains(t, "INSTALL", L("a", 1, "b", 1))

	assert.NotPanics(t, fp.Resync)
	fp.Wait()
}

func TestTrackerUnsubscribe(t *testing.T) {
	tr, _ := newTestTracker(t, TrackerOpts{})
	h1 := &TrackerHarness{}
	h2 := &TrackerHarness{}
	unsub := tr.Subscribe(h1)
	tr.Subscribe(h2)
	tr.SwitchUp("a")
	unsub()
	unsub()
	tr.SwitchUp("b")
	assert.Len(t, h1.Changes(), 1)
	assert.Len(t, h2.Changes(), 2)
}
