package core

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/encodeous/trellis/perf"
	"github.com/encodeous/trellis/state"
	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// Transport is the control plane connection to the switches
type Transport interface {
	// SendProbe emits a discovery packet carrying probe out of port on sw
	SendProbe(sw state.SwitchId, port state.Port, probe state.Probe) error
	// InstallEntries installs forwarding entries for the link on both of its switches
	InstallEntries(link state.Link) error
	// RemoveEntries removes forwarding entries for the link from both of its switches
	RemoveEntries(link state.Link) error
}

type DiscoveryOpts struct {
	ProbeTTL time.Duration
	Workers  int
	Log      *slog.Logger
	Metrics  *TopologyMetrics
}

// Discovery turns switch connection events and discovery probes into tracker operations
type Discovery struct {
	tracker     *Tracker
	transport   Transport
	log         *slog.Logger
	metrics     *TopologyMetrics
	pool        *workerpool.WorkerPool
	outstanding *ttlcache.Cache[uuid.UUID, state.Probe]

	mu      sync.Mutex
	stopped bool
	// ports holds every connected switch's ports, true if the port is up
	ports map[state.SwitchId]map[state.Port]bool
}

func NewDiscovery(tracker *Tracker, transport Transport, opts DiscoveryOpts) *Discovery {
	if opts.ProbeTTL == 0 {
		opts.ProbeTTL = state.ProbeTTL
	}
	if opts.Workers == 0 {
		opts.Workers = state.ProbeWorkers
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Discovery{
		tracker:   tracker,
		transport: transport,
		log:       opts.Log.With("component", "discovery"),
		metrics:   opts.Metrics,
		pool:      workerpool.New(opts.Workers),
		outstanding: ttlcache.New[uuid.UUID, state.Probe](
			ttlcache.WithTTL[uuid.UUID, state.Probe](opts.ProbeTTL),
			ttlcache.WithDisableTouchOnHit[uuid.UUID, state.Probe](),
		),
		ports: make(map[state.SwitchId]map[state.Port]bool),
	}
}

// ConnectionUp registers a newly connected switch and its ports
func (d *Discovery) ConnectionUp(sw state.SwitchId, ports []state.Port) bool {
	d.mu.Lock()
	pm := make(map[state.Port]bool, len(ports))
	for _, p := range ports {
		pm[p] = true
	}
	d.ports[sw] = pm
	d.mu.Unlock()

	d.log.Info("switch connected", "switch", sw, "ports", len(ports))
	return d.tracker.SwitchUp(sw)
}

// ConnectionDown forgets sw and returns the links that went down with it
func (d *Discovery) ConnectionDown(sw state.SwitchId) []state.Link {
	d.mu.Lock()
	delete(d.ports, sw)
	d.mu.Unlock()

	links := d.tracker.SwitchDown(sw)
	d.log.Info("switch disconnected", "switch", sw, "links", len(links))
	return links
}

// PortStatus records a port state change. A port going down kills every link attached to it,
// the killed links are returned.
func (d *Discovery) PortStatus(sw state.SwitchId, port state.Port, down bool) []state.Link {
	d.mu.Lock()
	if pm, ok := d.ports[sw]; ok {
		pm[port] = !down
	}
	d.mu.Unlock()

	if !down {
		return []state.Link{}
	}
	dead := make([]state.Link, 0)
	for _, l := range d.tracker.LinksForSwitchAndPort(sw, port) {
		if d.tracker.LinkDead(l.A, l.PortA, l.B, l.PortB) {
			dead = append(dead, l)
		}
	}
	if len(dead) > 0 {
		d.log.Info("port down", "switch", sw, "port", port, "links", len(dead))
	}
	return dead
}

// Switches returns the connected switches in order
func (d *Discovery) Switches() []state.SwitchId {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Sorted(maps.Keys(d.ports))
}

type probeTarget struct {
	sw   state.SwitchId
	port state.Port
}

func (d *Discovery) probeTargets() []probeTarget {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := make([]probeTarget, 0)
	for _, sw := range slices.Sorted(maps.Keys(d.ports)) {
		pm := d.ports[sw]
		for _, port := range slices.Sorted(maps.Keys(pm)) {
			if !pm[port] || port >= state.MaxPort {
				continue
			}
			res = append(res, probeTarget{sw, port})
		}
	}
	return res
}

// SendProbes sends one probe out of every up port of every connected switch and waits for
// the transport to accept them. Returns the number of probes sent successfully.
func (d *Discovery) SendProbes() int {
	targets := d.probeTargets()
	var wg sync.WaitGroup
	var mu sync.Mutex
	sent := 0
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return 0
	}
	for _, target := range targets {
		probe := state.NewProbe(target.sw, target.port)
		d.outstanding.Set(probe.Token, probe, ttlcache.DefaultTTL)
		wg.Add(1)
		d.pool.Submit(func() {
			defer wg.Done()
			err := d.transport.SendProbe(target.sw, target.port, probe)
			if err != nil {
				d.outstanding.Delete(probe.Token)
				d.metrics.observeProbe("send_error")
				if state.DBG_log_probe {
					d.log.Debug("failed to send probe", "switch", target.sw, "port", target.port, "error", err)
				}
				return
			}
			d.metrics.observeProbe("sent")
			perf.ProbesSentPerSecond.Add(1)
			if state.DBG_log_probe {
				d.log.Debug("sent probe", "probe", probe)
			}
			mu.Lock()
			sent++
			mu.Unlock()
		})
	}
	d.mu.Unlock()
	wg.Wait()
	return sent
}

// ProbeIn handles a probe received on inPort of sw. Probes we did not send, that have
// expired, or whose origin does not match what we sent are dropped. Returns true if the
// probe was accepted as a liveness signal.
func (d *Discovery) ProbeIn(sw state.SwitchId, inPort state.Port, probe state.Probe) bool {
	item := d.outstanding.Get(probe.Token)
	if item == nil {
		d.dropProbe(sw, inPort, probe, "unknown or expired token")
		return false
	}
	sent := item.Value()
	if sent.Chassis != probe.Chassis || sent.Port != probe.Port {
		d.dropProbe(sw, inPort, probe, "origin mismatch")
		return false
	}
	d.outstanding.Delete(probe.Token)
	d.metrics.observeProbe("received")
	perf.ProbesRecvPerSecond.Add(1)
	if state.DBG_log_probe {
		d.log.Debug("received probe", "switch", sw, "port", inPort, "probe", probe)
	}
	if d.tracker.LinkAlive(probe.Chassis, probe.Port, sw, inPort) {
		d.log.Info("discovered link", "link", state.Link{A: probe.Chassis, PortA: probe.Port, B: sw, PortB: inPort})
	}
	return true
}

func (d *Discovery) dropProbe(sw state.SwitchId, inPort state.Port, probe state.Probe, reason string) {
	d.metrics.observeProbe("dropped")
	perf.ProbesDropPerSecond.Add(1)
	if state.DBG_log_probe {
		d.log.Debug("dropped probe", "switch", sw, "port", inPort, "probe", probe, "reason", reason)
	}
}

// Outstanding returns the number of probes waiting to be received
func (d *Discovery) Outstanding() int {
	return d.outstanding.Len()
}

// Gc purges expired probe tokens
func (d *Discovery) Gc() {
	d.outstanding.DeleteExpired()
}

// Stop waits for probes being sent. SendProbes does nothing afterwards.
func (d *Discovery) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.pool.StopWait()
	d.outstanding.DeleteAll()
}
