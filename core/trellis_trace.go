package core

import (
	"github.com/dustin/go-broadcast"
	"github.com/encodeous/trellis/state"
)

// TopologyTrace republishes every topology change to any number of watchers
type TopologyTrace struct {
	broadcast.Broadcaster
}

func (n *TopologyTrace) Init(s *state.State) error {
	n.Broadcaster = broadcast.NewBroadcaster(1024)
	Get[*TopologyModule](s).Subscribe(n)
	return nil
}

// TopologyChanged runs under the tracker lock, a change is dropped rather than blocking on a full buffer
func (n *TopologyTrace) TopologyChanged(change TopologyChange) {
	n.TrySubmit(change)
}

func (n *TopologyTrace) Cleanup(s *state.State) error {
	if n.Broadcaster == nil {
		return nil
	}
	return n.Broadcaster.Close()
}
