package core

import (
	"errors"
	"net"
	"net/http"

	"github.com/encodeous/trellis/state"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DebugModule serves inspection and metrics endpoints on the debug address
type DebugModule struct {
	Addr    net.Addr
	server  *http.Server
	ln      net.Listener
	streams Streams
}

func (d *DebugModule) Init(s *state.State) error {
	t := Get[*TopologyModule](s)
	trace := Get[*TopologyTrace](s)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(t.Metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/debug/topology", HandleTopology(t.Tracker))
	mux.Handle("/debug/events", HandleEvents(trace, &d.streams))
	// expvar and /debug/metrics live on the default mux
	mux.Handle("/debug/", http.DefaultServeMux)

	ln, err := net.Listen("tcp", s.DebugAddr)
	if err != nil {
		return err
	}
	d.ln = ln
	d.Addr = ln.Addr()
	d.server = &http.Server{Handler: mux}
	s.Log.Info("debug server listening", "addr", d.Addr.String())
	return nil
}

// Serve blocks until the server is closed
func (d *DebugModule) Serve() error {
	err := d.server.Serve(d.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (d *DebugModule) Cleanup(s *state.State) error {
	if d.server == nil {
		return nil
	}
	err := d.server.Close()
	d.streams.CloseAndWait()
	return err
}
