package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TopologyMetrics are the prometheus collectors updated by the tracker and discovery.
// A nil *TopologyMetrics is valid and records nothing.
type TopologyMetrics struct {
	Registry *prometheus.Registry

	Switches         prometheus.Gauge
	Links            prometheus.Gauge
	AllowedLinks     prometheus.Gauge
	ForbiddenLinks   prometheus.Gauge
	PendingAdds      prometheus.Gauge
	PendingRemoves   prometheus.Gauge
	Recomputations   prometheus.Counter
	ExpiredLinks     prometheus.Counter
	RecomputeSeconds prometheus.Histogram
	Probes           *prometheus.CounterVec
	EntryOps         *prometheus.CounterVec
}

func NewTopologyMetrics() *TopologyMetrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &TopologyMetrics{
		Registry: reg,
		Switches: f.NewGauge(prometheus.GaugeOpts{
			Name: "trellis_switches",
			Help: "Number of switches in the topology.",
		}),
		Links: f.NewGauge(prometheus.GaugeOpts{
			Name: "trellis_links",
			Help: "Number of links in the topology.",
		}),
		AllowedLinks: f.NewGauge(prometheus.GaugeOpts{
			Name: "trellis_links_allowed",
			Help: "Number of links in the spanning forest.",
		}),
		ForbiddenLinks: f.NewGauge(prometheus.GaugeOpts{
			Name: "trellis_links_forbidden",
			Help: "Number of links removed to break cycles.",
		}),
		PendingAdds: f.NewGauge(prometheus.GaugeOpts{
			Name: "trellis_entries_pending_add",
			Help: "Allowed links without installed entries.",
		}),
		PendingRemoves: f.NewGauge(prometheus.GaugeOpts{
			Name: "trellis_entries_pending_remove",
			Help: "Forbidden links with installed entries.",
		}),
		Recomputations: f.NewCounter(prometheus.CounterOpts{
			Name: "trellis_forest_recomputations_total",
			Help: "Number of spanning forest recomputations.",
		}),
		ExpiredLinks: f.NewCounter(prometheus.CounterOpts{
			Name: "trellis_links_expired_total",
			Help: "Number of links removed by the expiry sweep.",
		}),
		RecomputeSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trellis_forest_recompute_seconds",
			Help:    "Duration of spanning forest recomputations.",
			Buckets: prometheus.ExponentialBuckets(.00001, 4, 10),
		}),
		Probes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trellis_probes_total",
			Help: "Number of discovery probes by outcome.",
		}, []string{"op"}),
		EntryOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trellis_entry_ops_total",
			Help: "Number of entry programming calls by operation and result.",
		}, []string{"op", "result"}),
	}
}

func (m *TopologyMetrics) observeCounts(switches, links, allowed, toAdd, toRemove int) {
	if m == nil {
		return
	}
	m.Switches.Set(float64(switches))
	m.Links.Set(float64(links))
	m.AllowedLinks.Set(float64(allowed))
	m.ForbiddenLinks.Set(float64(links - allowed))
	m.PendingAdds.Set(float64(toAdd))
	m.PendingRemoves.Set(float64(toRemove))
}

func (m *TopologyMetrics) observeRecompute(seconds float64) {
	if m == nil {
		return
	}
	m.Recomputations.Inc()
	m.RecomputeSeconds.Observe(seconds)
}

func (m *TopologyMetrics) observeExpired(n int) {
	if m == nil {
		return
	}
	m.ExpiredLinks.Add(float64(n))
}

func (m *TopologyMetrics) observeProbe(op string) {
	if m == nil {
		return
	}
	m.Probes.With(prometheus.Labels{"op": op}).Inc()
}

func (m *TopologyMetrics) observeEntryOp(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EntryOps.With(prometheus.Labels{"op": op, "result": result}).Inc()
}
