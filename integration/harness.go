//go:build integration

package integration

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/pprof"
	"sync/atomic"
	"time"

	"github.com/encodeous/trellis/core"
	"github.com/encodeous/trellis/sim"
	"github.com/encodeous/trellis/state"
)

type Signal chan bool

func NewSignal() Signal {
	return make(chan bool)
}
func (s Signal) Trigger() {
	select {
	case <-s:
	default:
		close(s)
	}
}
func (s Signal) Triggered() bool {
	select {
	case <-s:
		return true
	default:
		return false
	}
}
func (s Signal) Wait() {
	<-s
}

// ControllerHarness runs a whole controller in process against its simulated fabric
type ControllerHarness struct {
	Cfg     state.LocalCfg
	State   *state.State
	Tracker *core.Tracker
	Fabric  *sim.Fabric
	Debug   string
	done    Signal
	started atomic.Bool
}

func NewControllerHarness(policy state.EntryPolicy, switches []state.SwitchId, graph ...string) *ControllerHarness {
	cfg := state.LocalCfg{
		Id:                "harness",
		DebugAddr:         "127.0.0.1:0",
		EntryPolicy:       policy,
		LinkExpiry:        300 * time.Millisecond,
		SweepInterval:     50 * time.Millisecond,
		DiscoveryInterval: 50 * time.Millisecond,
		Fabric: &state.FabricCfg{
			Switches: switches,
			Graph:    graph,
		},
	}
	state.ExpandConfig(&cfg)
	return &ControllerHarness{Cfg: cfg, done: NewSignal()}
}

func (v *ControllerHarness) Start() chan error {
	errChan := make(chan error, 1)
	var initState atomic.Pointer[state.State]
	go func() {
		defer v.done.Trigger()
		labels := pprof.Labels("trellis controller", string(v.Cfg.Id))
		pprof.Do(context.Background(), labels, func(_ context.Context) {
			err := core.Start(v.Cfg, slog.LevelDebug, "", initState.Store)
			if err != nil {
				errChan <- err
			}
		})
	}()
	// wait for the controller to start
	for {
		if s := initState.Load(); s != nil && s.Started.Load() {
			v.State = s
			break
		}
		select {
		case <-v.done:
			return errChan
		case <-time.After(time.Millisecond * 10):
		}
	}
	v.Tracker = core.Get[*core.TopologyModule](v.State).Tracker
	v.Fabric = core.Get[*core.FabricModule](v.State).Fabric
	v.Debug = core.Get[*core.DebugModule](v.State).Addr.String()
	v.started.Store(true)
	return errChan
}

func (v *ControllerHarness) Inspect() (string, error) {
	if !v.started.Load() {
		return "", fmt.Errorf("controller not started")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return core.IPCGet(ctx, v.Debug)
}

func (v *ControllerHarness) Stop() {
	if v.State != nil {
		v.State.Cancel(fmt.Errorf("stopping harness"))
	}
	v.done.Wait()
}
