package state

import "time"

const (
	// MaxPort is the first reserved port number (OFPP_MAX). Ports at or above it are
	// logical ports (flood, controller, local...) and never carry a link.
	MaxPort Port = 0xffffff00
)

var (
	LinkExpiry        = time.Second * 6
	SweepInterval     = time.Second * 3
	DiscoveryInterval = time.Second * 1
	GcDelay           = time.Millisecond * 1000

	// ProbeTTL is how long an outstanding discovery probe is accepted back
	ProbeTTL = LinkExpiry

	// FlowWorkers is the number of concurrent transport calls made when programming entries
	FlowWorkers = 4
	// ProbeWorkers is the number of concurrent transport calls made when sending probes
	ProbeWorkers = 8

	// default debug/inspection listener
	DefaultDebugAddr = "127.0.0.1:6060"

	DefaultConfigPath = "trellis.yaml"
)

// debug switches

var (
	DBG_log_topology = false // log every topology event at debug level
	DBG_log_probe    = false // log every probe sent and received
	DBG_check_forest = false // validate the forest after every recomputation, panic on violation
)
