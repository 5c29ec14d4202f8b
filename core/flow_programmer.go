package core

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/encodeous/trellis/perf"
	"github.com/encodeous/trellis/state"
	"github.com/gammazero/workerpool"
)

type FlowOpts struct {
	Workers int
	Log     *slog.Logger
	Metrics *TopologyMetrics
}

// FlowProgrammer is the default topology handler. It keeps a per-switch view of the ports
// the forest blocks and programs forwarding entries through the transport.
// Transport calls run on a worker pool, never under the tracker lock.
type FlowProgrammer struct {
	tracker   *Tracker
	transport Transport
	log       *slog.Logger
	metrics   *TopologyMetrics
	pool      *workerpool.WorkerPool
	pending   sync.WaitGroup
	unsub     func()

	mu       sync.Mutex
	stopped  bool
	blocked  map[state.SwitchId]map[state.Port]struct{}
	inflight map[state.Link]EntryAction
}

// NewFlowProgrammer creates the programmer and subscribes it to tracker
func NewFlowProgrammer(tracker *Tracker, transport Transport, opts FlowOpts) *FlowProgrammer {
	if opts.Workers == 0 {
		opts.Workers = state.FlowWorkers
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	fp := &FlowProgrammer{
		tracker:   tracker,
		transport: transport,
		log:       opts.Log.With("component", "flows"),
		metrics:   opts.Metrics,
		pool:      workerpool.New(opts.Workers),
		blocked:   make(map[state.SwitchId]map[state.Port]struct{}),
		inflight:  make(map[state.Link]EntryAction),
	}
	fp.unsub = tracker.Subscribe(fp)
	return fp
}

func blockedPorts(forbidden []state.Link) map[state.SwitchId]map[state.Port]struct{} {
	res := make(map[state.SwitchId]map[state.Port]struct{})
	add := func(sw state.SwitchId, port state.Port) {
		if res[sw] == nil {
			res[sw] = make(map[state.Port]struct{})
		}
		res[sw][port] = struct{}{}
	}
	for _, l := range forbidden {
		add(l.A, l.PortA)
		add(l.B, l.PortB)
	}
	return res
}

func (fp *FlowProgrammer) TopologyChanged(change TopologyChange) {
	next := blockedPorts(change.Forbidden)

	fp.mu.Lock()
	prev := fp.blocked
	fp.blocked = next
	fp.mu.Unlock()

	for sw, ports := range next {
		for port := range ports {
			if _, ok := prev[sw][port]; !ok {
				fp.log.Info("disabling port", "switch", sw, "port", port)
			}
		}
	}
	for sw, ports := range prev {
		for port := range ports {
			if _, ok := next[sw][port]; !ok {
				fp.log.Info("enabling port", "switch", sw, "port", port)
			}
		}
	}

	fp.program(change.ToAdd, change.ToRemove)
}

// BlockedPorts returns the ports on sw that the forest currently forbids
func (fp *FlowProgrammer) BlockedPorts(sw state.SwitchId) []state.Port {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return slices.Sorted(maps.Keys(fp.blocked[sw]))
}

func (fp *FlowProgrammer) program(toAdd, toRemove []state.Link) {
	for _, l := range toAdd {
		fp.submit(l, EntryAdd)
	}
	for _, l := range toRemove {
		fp.submit(l, EntryRemove)
	}
}

func (fp *FlowProgrammer) submit(link state.Link, action EntryAction) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	if fp.stopped || fp.inflight[link] == action {
		return
	}
	fp.inflight[link] = action

	fp.pending.Add(1)
	fp.pool.Submit(func() {
		defer fp.pending.Done()
		defer func() {
			fp.mu.Lock()
			if fp.inflight[link] == action {
				delete(fp.inflight, link)
			}
			fp.mu.Unlock()
		}()

		var err error
		if action == EntryAdd {
			err = fp.transport.InstallEntries(link)
		} else {
			err = fp.transport.RemoveEntries(link)
		}
		fp.metrics.observeEntryOp(action.String(), err)
		perf.EntryOpsPerSecond.Add(1)
		if err != nil {
			fp.log.Warn("failed to program entries", "op", action, "link", link, "error", err)
			return
		}
		fp.log.Debug("programmed entries", "op", action, "link", link)
		if fp.tracker.EntryPolicy() != state.EntryExplicit {
			return
		}
		if action == EntryAdd {
			fp.tracker.EntriesAdded(link.A, link.PortA, link.B, link.PortB)
		} else {
			fp.tracker.EntriesRemoved(link.A, link.PortA, link.B, link.PortB)
		}
	})
}

// Resync reprograms every pending entry change. With explicit confirmation this retries
// transport calls that failed earlier.
func (fp *FlowProgrammer) Resync() {
	fp.program(fp.tracker.EntriesToAdd(), fp.tracker.EntriesToRemove())
}

// Wait blocks until every submitted transport call has finished
func (fp *FlowProgrammer) Wait() {
	fp.pending.Wait()
}

// Stop unsubscribes from the tracker and waits for running transport calls. Entry changes
// after Stop are left pending.
func (fp *FlowProgrammer) Stop() {
	fp.unsub()
	fp.mu.Lock()
	fp.stopped = true
	fp.mu.Unlock()
	fp.pool.StopWait()
}
