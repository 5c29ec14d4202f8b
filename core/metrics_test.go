package core

import (
	"errors"
	"testing"
	"time"

	"github.com/encodeous/trellis/state"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerMetrics(t *testing.T) {
	m := NewTopologyMetrics()
	tr, clock := newTestTracker(t, TrackerOpts{EntryPolicy: state.EntryExplicit, Metrics: m})
	mesh(t, tr, "a", "b", "c")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Switches))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Links))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AllowedLinks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ForbiddenLinks))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PendingAdds))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.Recomputations))

	tr.EntriesAdded("a", 2, "b", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PendingAdds))

	clock.Advance(state.LinkExpiry + time.Second)
	assert.Len(t, tr.SweepExpired(), 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ExpiredLinks))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Links))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PendingAdds))
}

func TestOptimisticMetricsHaveNoPendingWork(t *testing.T) {
	m := NewTopologyMetrics()
	tr, _ := newTestTracker(t, TrackerOpts{Metrics: m})
	mesh(t, tr, "a", "b", "c")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PendingAdds))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PendingRemoves))
}

func TestNilMetrics(t *testing.T) {
	var m *TopologyMetrics
	m.observeCounts(1, 1, 1, 1, 1)
	m.observeRecompute(1)
	m.observeExpired(1)
	m.observeProbe("sent")
	m.observeEntryOp("add", nil)
}

func TestEntryOpMetrics(t *testing.T) {
	m := NewTopologyMetrics()
	m.observeEntryOp("add", nil)
	m.observeEntryOp("add", errors.New("switch is gone"))
	m.observeEntryOp("add", errors.New("switch is gone"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntryOps.WithLabelValues("add", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EntryOps.WithLabelValues("add", "error")))
}
