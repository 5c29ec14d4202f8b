package core

import (
	"fmt"

	"github.com/encodeous/trellis/sim"
	"github.com/encodeous/trellis/state"
)

// TopologyModule owns the tracker and the sweeper removing its expired links
type TopologyModule struct {
	*Tracker
	Metrics *TopologyMetrics
	Sweeper *Sweeper
}

func (t *TopologyModule) Init(s *state.State) error {
	s.Log.Debug("init topology")
	t.Metrics = NewTopologyMetrics()
	t.Tracker = NewTracker(TrackerOpts{
		EntryPolicy:  s.EntryPolicy,
		PortMismatch: s.PortMismatch,
		LinkExpiry:   s.LinkExpiry,
		Log:          s.Log,
		Metrics:      t.Metrics,
	})

	s.Log.Debug("start sweeper", "interval", s.SweepInterval)
	t.Sweeper = NewSweeper(t.Tracker, s.SweepInterval, s.Log)
	t.Sweeper.Start(s.Context)
	return nil
}

func (t *TopologyModule) Cleanup(s *state.State) error {
	if t.Sweeper != nil {
		t.Sweeper.Stop()
	}
	t.Tracker = nil
	return nil
}

// FabricModule hosts the simulated switch fabric the controller drives
type FabricModule struct {
	*sim.Fabric
}

func (f *FabricModule) Init(s *state.State) error {
	if s.Fabric == nil {
		return fmt.Errorf("no fabric configured, there is nothing to control")
	}
	fab, err := sim.FromConfig(s.Fabric)
	if err != nil {
		return err
	}
	f.Fabric = fab
	s.Log.Info("fabric ready", "switches", len(fab.Switches()), "cables", len(fab.Cables()))
	return nil
}

func (f *FabricModule) Cleanup(s *state.State) error {
	f.Fabric = nil
	return nil
}

// DiscoveryModule probes the fabric and feeds discovered links to the tracker
type DiscoveryModule struct {
	*Discovery
}

func (d *DiscoveryModule) Init(s *state.State) error {
	s.Log.Debug("init discovery")
	t := Get[*TopologyModule](s)
	fab := Get[*FabricModule](s)
	d.Discovery = NewDiscovery(t.Tracker, fab.Fabric, DiscoveryOpts{
		ProbeTTL: s.LinkExpiry,
		Log:      s.Log,
		Metrics:  t.Metrics,
	})
	fab.SetListener(d.Discovery)
	fab.Start()

	s.Env.RepeatTask(func(s *state.State) error {
		d.SendProbes()
		return nil
	}, s.DiscoveryInterval)
	s.Env.RepeatTask(trellisGc, state.GcDelay)
	// probe once right away so links show up before the first interval
	s.Env.ScheduleTask(func(s *state.State) error {
		d.SendProbes()
		return nil
	}, 0)
	return nil
}

func (d *DiscoveryModule) Cleanup(s *state.State) error {
	if d.Discovery != nil {
		d.Discovery.Stop()
	}
	return nil
}

// FlowModule programs forwarding entries into the fabric as the forest changes
type FlowModule struct {
	*FlowProgrammer
}

func (f *FlowModule) Init(s *state.State) error {
	s.Log.Debug("init flows", "policy", s.EntryPolicy)
	t := Get[*TopologyModule](s)
	fab := Get[*FabricModule](s)
	f.FlowProgrammer = NewFlowProgrammer(t.Tracker, fab.Fabric, FlowOpts{
		Log:     s.Log,
		Metrics: t.Metrics,
	})
	return nil
}

func (f *FlowModule) Cleanup(s *state.State) error {
	if f.FlowProgrammer != nil {
		f.FlowProgrammer.Stop()
	}
	return nil
}
