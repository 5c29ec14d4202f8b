package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency       = metric.NewHistogram("1m1s")
	RecomputeLatency      = metric.NewHistogram("1m1s")
	ProbesSentPerSecond   = metric.NewCounter("10s1s")
	ProbesRecvPerSecond   = metric.NewCounter("10s1s")
	ProbesDropPerSecond   = metric.NewCounter("10s1s")
	EntryOpsPerSecond     = metric.NewCounter("10s1s")
	ExpiredLinksPerMinute = metric.NewCounter("1m10s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("trellis:DispatchLatency (µs)", DispatchLatency)
	expvar.Publish("trellis:RecomputeLatency (µs)", RecomputeLatency)
	expvar.Publish("trellis:ProbesSent/s", ProbesSentPerSecond)
	expvar.Publish("trellis:ProbesRecv/s", ProbesRecvPerSecond)
	expvar.Publish("trellis:ProbesDropped/s", ProbesDropPerSecond)
	expvar.Publish("trellis:EntryOps/s", EntryOpsPerSecond)
	expvar.Publish("trellis:ExpiredLinks/m", ExpiredLinksPerMinute)
}
