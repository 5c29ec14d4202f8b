package core

import (
	"github.com/encodeous/trellis/state"
)

func trellisGc(s *state.State) error {
	d := Get[*DiscoveryModule](s)
	d.Gc()
	if state.DBG_log_probe {
		s.Log.Debug("discovery gc", "switches", d.Switches(), "outstanding", d.Outstanding())
	}

	// explicit confirmation leaves failed entry programming pending, retry it here
	if s.EntryPolicy == state.EntryExplicit {
		Get[*FlowModule](s).Resync()
	}
	return nil
}
