package core

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/encodeous/trellis/state"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock() *FakeClock {
	return &FakeClock{now: epoch}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type HarnessEvent struct {
	Message string
	Args    []any
}

func MakeEvent(msg string, args ...any) HarnessEvent {
	return HarnessEvent{
		Message: msg,
		Args:    args,
	}
}

// TrackerHarness records topology changes and transport calls
type TrackerHarness struct {
	mu      sync.Mutex
	changes []TopologyChange
	actions []HarnessEvent
	// FailSwitch makes entry calls touching this switch fail
	FailSwitch state.SwitchId
}

func (h *TrackerHarness) TopologyChanged(change TopologyChange) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.changes = append(h.changes, change)
}

func (h *TrackerHarness) SendProbe(sw state.SwitchId, port state.Port, probe state.Probe) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.actions = append(h.actions, MakeEvent("PROBE", sw, port, probe))
	return nil
}

func (h *TrackerHarness) InstallEntries(link state.Link) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if link.A == h.FailSwitch || link.B == h.FailSwitch {
		return fmt.Errorf("switch %s is unreachable", h.FailSwitch)
	}
	h.actions = append(h.actions, MakeEvent("INSTALL", link.Canonical()))
	return nil
}

func (h *TrackerHarness) RemoveEntries(link state.Link) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if link.A == h.FailSwitch || link.B == h.FailSwitch {
		return fmt.Errorf("switch %s is unreachable", h.FailSwitch)
	}
	h.actions = append(h.actions, MakeEvent("REMOVE", link.Canonical()))
	return nil
}

func (h *TrackerHarness) Changes() []TopologyChange {
	h.mu.Lock()
	defer h.mu.Unlock()
	x := h.changes
	h.changes = nil
	return x
}

func (h *TrackerHarness) GetActions() HarnessEvents {
	h.mu.Lock()
	defer h.mu.Unlock()
	x := h.actions
	h.actions = make([]HarnessEvent, 0)
	return x
}

type HarnessEvents []HarnessEvent

func (e HarnessEvents) String() string {
	out := make([]string, 0)
	for _, action := range e {
		cur := action.Message
		for _, arg := range action.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

func (e HarnessEvents) Filter(msg string) HarnessEvents {
	x := make(HarnessEvents, 0)
	for _, event := range e {
		if event.Message == msg {
			x = append(x, event)
		}
	}
	return x
}

func (e HarnessEvents) contains(msg string, args ...any) bool {
	for _, event := range e {
		if event.Message != msg || len(event.Args) < len(args) {
			continue
		}
		match := true
		for i, arg := range args {
			if !cmp.Equal(event.Args[i], arg) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func (e HarnessEvents) AssertContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		return
	}
	t.Fatal("Expected event not found: ", msg, " with args: ", args, " in ", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		t.Fatal("Unexpected event found: ", msg, " with args: ", args, " in ", e)
	}
}

// L builds a link in canonical orientation
func L(a state.SwitchId, pa state.Port, b state.SwitchId, pb state.Port) state.Link {
	return state.Link{A: a, PortA: pa, B: b, PortB: pb}.Canonical()
}

var sortLinks = cmpopts.SortSlices(func(x, y state.Link) bool {
	if x.A != y.A {
		return x.A < y.A
	}
	return x.B < y.B
})

func requireLinks(t *testing.T, want, got []state.Link) {
	t.Helper()
	canon := make([]state.Link, 0, len(got))
	for _, l := range got {
		canon = append(canon, l.Canonical())
	}
	if diff := cmp.Diff(want, canon, sortLinks, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("link set mismatch (-want +got):\n%s", diff)
	}
}

// newTestTracker returns a tracker on a fake clock with the forest checked after every recomputation
func newTestTracker(t *testing.T, opts TrackerOpts) (*Tracker, *FakeClock) {
	t.Helper()
	old := state.DBG_check_forest
	state.DBG_check_forest = true
	t.Cleanup(func() {
		state.DBG_check_forest = old
	})
	clock := NewFakeClock()
	opts.Clock = clock.Now
	if opts.Log == nil {
		opts.Log = discardLogger()
	}
	return NewTracker(opts), clock
}

// mesh brings up every switch and links each pair, switch i uses port j+1 towards switch j
func mesh(t *testing.T, tr *Tracker, switches ...state.SwitchId) {
	t.Helper()
	for _, sw := range switches {
		require.True(t, tr.SwitchUp(sw))
	}
	for i := range switches {
		for j := i + 1; j < len(switches); j++ {
			require.True(t, tr.LinkAlive(switches[i], state.Port(j+1), switches[j], state.Port(i+1)))
		}
	}
}

func requireForest(t *testing.T, tr *Tracker) {
	t.Helper()
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	require.NoError(t, ValidateForest(tr.graph))
}
