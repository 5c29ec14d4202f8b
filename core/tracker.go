package core

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/encodeous/trellis/perf"
	"github.com/encodeous/trellis/state"
)

// TopologyChange is delivered to every handler after a forest recomputation.
// ToAdd and ToRemove are computed right before the handlers run.
type TopologyChange struct {
	Generation uint64
	Allowed    []state.Link
	Forbidden  []state.Link
	ToAdd      []state.Link
	ToRemove   []state.Link
}

// TopologyHandler is notified after each recomputation, while the tracker's write lock is held.
// Implementations must not call back into the tracker synchronously.
type TopologyHandler interface {
	TopologyChanged(change TopologyChange)
}

type TopologyHandlerFunc func(change TopologyChange)

func (f TopologyHandlerFunc) TopologyChanged(change TopologyChange) {
	f(change)
}

type TrackerOpts struct {
	EntryPolicy  state.EntryPolicy
	PortMismatch state.PortMismatchPolicy
	LinkExpiry   time.Duration
	// Clock defaults to time.Now
	Clock   func() time.Time
	Log     *slog.Logger
	Metrics *TopologyMetrics
}

// Tracker owns the topology graph. Every mutation, its recomputation and the handler
// fan-out run under one write lock, queries share a read lock.
type Tracker struct {
	mu         sync.RWMutex
	graph      *state.Graph
	handlers   []subscription
	nextSub    uint64
	generation uint64
	opts       TrackerOpts
	log        *slog.Logger
}

func NewTracker(opts TrackerOpts) *Tracker {
	if opts.EntryPolicy == "" {
		opts.EntryPolicy = state.EntryOptimistic
	}
	if opts.PortMismatch == "" {
		opts.PortMismatch = state.MismatchReject
	}
	if opts.LinkExpiry == 0 {
		opts.LinkExpiry = state.LinkExpiry
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Tracker{
		graph: state.NewGraph(),
		opts:  opts,
		log:   opts.Log.With("component", "tracker"),
	}
}

func (t *Tracker) EntryPolicy() state.EntryPolicy {
	return t.opts.EntryPolicy
}

func (t *Tracker) trace(msg string, args ...any) {
	if state.DBG_log_topology {
		t.log.Debug(msg, args...)
	}
}

type subscription struct {
	id uint64
	h  TopologyHandler
}

// Subscribe registers h to be notified after every recomputation. The returned function
// removes it again, once it returns h is never called.
func (t *Tracker) Subscribe(h TopologyHandler) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextSub++
	id := t.nextSub
	t.handlers = append(t.handlers, subscription{id: id, h: h})
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.handlers = slices.DeleteFunc(t.handlers, func(sub subscription) bool {
			return sub.id == id
		})
	}
}

// recompute must be called with the write lock held
func (t *Tracker) recompute() {
	start := time.Now()
	allowed := ComputeForest(t.graph)
	t.generation++
	elapsed := time.Since(start)
	perf.RecomputeLatency.Add(float64(elapsed.Microseconds()))
	t.opts.Metrics.observeRecompute(elapsed.Seconds())

	if state.DBG_check_forest {
		if err := ValidateForest(t.graph); err != nil {
			panic(fmt.Errorf("invalid forest after recomputation %d: %w", t.generation, err))
		}
	}

	toAdd := EntriesToAdd(t.graph)
	toRemove := EntriesToRemove(t.graph)
	t.trace("recomputed forest", "gen", t.generation, "allowed", allowed, "edges", t.graph.NumEdges(), "elapsed", elapsed)

	change := TopologyChange{
		Generation: t.generation,
		Allowed:    t.allowedLinks(true),
		Forbidden:  t.allowedLinks(false),
		ToAdd:      toAdd,
		ToRemove:   toRemove,
	}
	for _, sub := range t.handlers {
		sub.h.TopologyChanged(change)
	}

	if t.opts.EntryPolicy == state.EntryOptimistic {
		for _, l := range toAdd {
			SetEntry(t.graph, l.A, l.PortA, l.B, l.PortB, true)
		}
		for _, l := range toRemove {
			SetEntry(t.graph, l.A, l.PortA, l.B, l.PortB, false)
		}
	}
	t.observe(allowed)
}

// observe publishes the graph's counts, must be called with the lock held
func (t *Tracker) observe(allowed int) {
	if t.opts.Metrics == nil {
		return
	}
	t.opts.Metrics.observeCounts(t.graph.NumNodes(), t.graph.NumEdges(), allowed,
		len(EntriesToAdd(t.graph)), len(EntriesToRemove(t.graph)))
}

// SwitchUp adds sw, returning false if it was already known
func (t *Tracker) SwitchUp(sw state.SwitchId) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.graph.AddNode(sw) {
		return false
	}
	t.trace("switch up", "switch", sw)
	t.recompute()
	return true
}

// SwitchDown removes sw and returns every link that was attached to it
func (t *Tracker) SwitchDown(sw state.SwitchId) []state.Link {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.graph.HasNode(sw) {
		return []state.Link{}
	}
	removed := t.graph.RemoveNode(sw)
	links := make([]state.Link, 0, len(removed))
	for _, e := range removed {
		links = append(links, e.Link())
	}
	t.trace("switch down", "switch", sw, "links", len(links))
	t.recompute()
	return links
}

// LinkAlive records a liveness signal for the link, returning true if a new edge was created
func (t *Tracker) LinkAlive(s1 state.SwitchId, p1 state.Port, s2 state.SwitchId, p2 state.Port) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.opts.Clock()
	if e := t.graph.GetEdge(s1, s2); e != nil {
		if !e.PortsMatch(p1, p2) {
			if t.opts.PortMismatch != state.MismatchRefresh {
				t.trace("link port mismatch, ignored", "link", e.Link(), "s1", s1, "p1", p1, "s2", s2, "p2", p2)
				return false
			}
			t.trace("link port mismatch, refreshed", "link", e.Link(), "s1", s1, "p1", p1, "s2", s2, "p2", p2)
		}
		Stamp(e, now)
		return false
	}
	e, created, err := t.graph.AddEdge(s1, p1, s2, p2, now)
	if err != nil {
		t.trace("link alive dropped", "error", err)
		return false
	}
	if !created {
		Stamp(e, now)
		return false
	}
	t.trace("link up", "link", e.Link())
	t.recompute()
	return true
}

// LinkDead removes the link if it exists with matching ports
func (t *Tracker) LinkDead(s1 state.SwitchId, p1 state.Port, s2 state.SwitchId, p2 state.Port) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.linkDead(s1, p1, s2, p2)
}

func (t *Tracker) linkDead(s1 state.SwitchId, p1 state.Port, s2 state.SwitchId, p2 state.Port) bool {
	e := t.graph.GetEdge(s1, s2)
	if e == nil || !e.PortsMatch(p1, p2) {
		return false
	}
	t.graph.RemoveEdge(s1, s2)
	t.trace("link down", "link", e.Link())
	t.recompute()
	return true
}

// EntriesAdded confirms that forwarding entries for the link are installed
func (t *Tracker) EntriesAdded(s1 state.SwitchId, p1 state.Port, s2 state.SwitchId, p2 state.Port) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !SetEntry(t.graph, s1, p1, s2, p2, true) {
		return false
	}
	t.observe(len(t.allowedLinks(true)))
	return true
}

// EntriesRemoved confirms that forwarding entries for the link are removed
func (t *Tracker) EntriesRemoved(s1 state.SwitchId, p1 state.Port, s2 state.SwitchId, p2 state.Port) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !SetEntry(t.graph, s1, p1, s2, p2, false) {
		return false
	}
	t.observe(len(t.allowedLinks(true)))
	return true
}

// LinksForSwitchAndPort returns the links attached to port on sw
func (t *Tracker) LinksForSwitchAndPort(sw state.SwitchId, port state.Port) []state.Link {
	t.mu.RLock()
	defer t.mu.RUnlock()
	res := make([]state.Link, 0)
	for _, e := range t.graph.Edges() {
		if l := e.Link(); l.Touches(sw, port) {
			res = append(res, l)
		}
	}
	return res
}

// ExpiredLinks returns the links that have not been seen within the expiry threshold
func (t *Tracker) ExpiredLinks() []state.Link {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.expiredLinks()
}

func (t *Tracker) expiredLinks() []state.Link {
	expired := ExpiredEdges(t.graph, t.opts.Clock(), t.opts.LinkExpiry)
	res := make([]state.Link, 0, len(expired))
	for _, e := range expired {
		res = append(res, e.Link())
	}
	return res
}

// SweepExpired removes every expired link through the link-dead path and returns them
func (t *Tracker) SweepExpired() []state.Link {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := make([]state.Link, 0)
	for _, l := range t.expiredLinks() {
		if t.linkDead(l.A, l.PortA, l.B, l.PortB) {
			removed = append(removed, l)
		}
	}
	if len(removed) > 0 {
		t.opts.Metrics.observeExpired(len(removed))
		perf.ExpiredLinksPerMinute.Add(float64(len(removed)))
	}
	return removed
}

func (t *Tracker) allowedLinks(allowed bool) []state.Link {
	res := make([]state.Link, 0)
	for _, e := range t.graph.Edges() {
		if e.Allowed == allowed {
			res = append(res, e.Link())
		}
	}
	return res
}

func (t *Tracker) AllowedLinks() []state.Link {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowedLinks(true)
}

func (t *Tracker) ForbiddenLinks() []state.Link {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowedLinks(false)
}

func (t *Tracker) EntriesToAdd() []state.Link {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return EntriesToAdd(t.graph)
}

func (t *Tracker) EntriesToRemove() []state.Link {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return EntriesToRemove(t.graph)
}

// FilterAllowed keeps only the links that are currently allowed
func (t *Tracker) FilterAllowed(links []state.Link) []state.Link {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.DeleteFunc(slices.Clone(links), func(l state.Link) bool {
		return !t.isLinkAllowed(l.A, l.PortA, l.B, l.PortB)
	})
}

// IsLinkAllowed reports whether the link exists with matching ports and is in the forest
func (t *Tracker) IsLinkAllowed(s1 state.SwitchId, p1 state.Port, s2 state.SwitchId, p2 state.Port) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.isLinkAllowed(s1, p1, s2, p2)
}

func (t *Tracker) isLinkAllowed(s1 state.SwitchId, p1 state.Port, s2 state.SwitchId, p2 state.Port) bool {
	e := t.graph.GetEdge(s1, s2)
	return e != nil && e.Allowed && e.Link().Matches(s1, p1, s2, p2)
}

// Generation returns the number of forest recomputations so far
func (t *Tracker) Generation() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.generation
}

type EdgeSnapshot struct {
	Link     state.Link
	LastSeen time.Time
	Allowed  bool
	HasEntry bool
}

type TopologySnapshot struct {
	Generation uint64
	Taken      time.Time
	Switches   []state.SwitchId
	Edges      []EdgeSnapshot
}

// Snapshot returns a consistent copy of the topology
func (t *Tracker) Snapshot() TopologySnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := TopologySnapshot{
		Generation: t.generation,
		Taken:      t.opts.Clock(),
		Switches:   slices.Clone(t.graph.Nodes()),
		Edges:      make([]EdgeSnapshot, 0, t.graph.NumEdges()),
	}
	for _, e := range t.graph.Edges() {
		snap.Edges = append(snap.Edges, EdgeSnapshot{
			Link:     e.Link(),
			LastSeen: e.LastSeen,
			Allowed:  e.Allowed,
			HasEntry: e.HasEntry,
		})
	}
	return snap
}
