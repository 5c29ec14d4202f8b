package core

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/encodeous/trellis/state"
)

// Sweeper periodically removes expired links from a tracker.
// Its lifecycle is independent of the tracker's state.
type Sweeper struct {
	tracker  *Tracker
	interval time.Duration
	log      *slog.Logger

	startOnce    sync.Once
	stopOnce     sync.Once
	started      atomic.Bool
	stop         chan struct{}
	trigger      chan struct{}
	loopFinished chan struct{}
}

func NewSweeper(tracker *Tracker, interval time.Duration, log *slog.Logger) *Sweeper {
	if interval == 0 {
		interval = state.SweepInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		tracker:      tracker,
		interval:     interval,
		log:          log.With("component", "sweeper"),
		stop:         make(chan struct{}),
		trigger:      make(chan struct{}),
		loopFinished: make(chan struct{}),
	}
}

// Sweep runs one expiry pass and returns the links it removed
func (s *Sweeper) Sweep() []state.Link {
	expired := s.tracker.SweepExpired()
	for _, l := range expired {
		s.log.Info("link expired", "link", l)
	}
	return expired
}

// Start runs the sweep loop until ctx is done or Stop is called. Calling Start again has no effect.
func (s *Sweeper) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.runLoop(ctx)
	})
}

func (s *Sweeper) runLoop(ctx context.Context) {
	defer close(s.loopFinished)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep()
		case <-s.trigger:
			s.Sweep()
		}
	}
}

// TriggerRun sweeps now without changing the ticker's period. It blocks until the loop picks
// up the request or the sweeper stops, and returns right away if the loop was never started.
func (s *Sweeper) TriggerRun() {
	if !s.started.Load() {
		return
	}
	select {
	case <-s.stop:
	case <-s.loopFinished:
	case s.trigger <- struct{}{}:
	}
}

// Stop stops the loop and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.startOnce.Do(func() {})
	if s.started.Load() {
		<-s.loopFinished
	}
}
