package sim

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/encodeous/trellis/state"
)

// Listener receives the events a real switch fabric would deliver to the controller
type Listener interface {
	ConnectionUp(sw state.SwitchId, ports []state.Port) bool
	ConnectionDown(sw state.SwitchId) []state.Link
	PortStatus(sw state.SwitchId, port state.Port, down bool) []state.Link
	ProbeIn(sw state.SwitchId, inPort state.Port, probe state.Probe) bool
}

type Switch struct {
	Id    state.SwitchId
	Up    bool
	Ports []state.Port
	// Entries maps a local port to the link its forwarding entries were installed for
	Entries map[state.Port]state.Link
}

type Cable struct {
	Link       state.Link
	Up         bool
	PacketLoss float64
}

type endpoint struct {
	sw   state.SwitchId
	port state.Port
}

// Fabric is an in-memory switch fabric. Probes sent out of a port arrive on the far end of
// its cable, entry programming is recorded per switch.
type Fabric struct {
	mu       sync.Mutex
	switches map[state.SwitchId]*Switch
	order    []state.SwitchId
	cables   []*Cable
	byPort   map[endpoint]*Cable
	listener Listener
}

func NewFabric() *Fabric {
	return &Fabric{
		switches: make(map[state.SwitchId]*Switch),
		byPort:   make(map[endpoint]*Cable),
	}
}

// FromConfig builds a fabric with every configured switch, cabled as the graph describes
func FromConfig(cfg *state.FabricCfg) (*Fabric, error) {
	f := NewFabric()
	for _, sw := range cfg.Switches {
		f.AddSwitch(sw)
	}
	pairs, err := cfg.Cables()
	if err != nil {
		return nil, fmt.Errorf("failed to parse fabric graph: %w", err)
	}
	for _, p := range pairs {
		if _, err := f.Connect(p.V1, p.V2); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// SetListener must be called before Start
func (f *Fabric) SetListener(l Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listener = l
}

func (f *Fabric) AddSwitch(sw state.SwitchId) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.switches[sw]; ok {
		return
	}
	f.switches[sw] = &Switch{
		Id:      sw,
		Up:      true,
		Entries: make(map[state.Port]state.Link),
	}
	f.order = append(f.order, sw)
}

func (s *Switch) nextPort() state.Port {
	p := state.Port(len(s.Ports) + 1)
	s.Ports = append(s.Ports, p)
	return p
}

// Connect cables a to b using the next free port on each switch
func (f *Fabric) Connect(a, b state.SwitchId) (state.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sa, ok := f.switches[a]
	if !ok {
		return state.Link{}, fmt.Errorf("switch %s does not exist", a)
	}
	sb, ok := f.switches[b]
	if !ok {
		return state.Link{}, fmt.Errorf("switch %s does not exist", b)
	}
	link := state.Link{A: a, PortA: sa.nextPort(), B: b, PortB: sb.nextPort()}
	c := &Cable{Link: link, Up: true}
	f.cables = append(f.cables, c)
	f.byPort[endpoint{link.A, link.PortA}] = c
	f.byPort[endpoint{link.B, link.PortB}] = c
	return link, nil
}

// Start announces every up switch to the listener
func (f *Fabric) Start() {
	f.mu.Lock()
	l := f.listener
	up := make([]*Switch, 0)
	for _, sw := range f.order {
		if s := f.switches[sw]; s.Up {
			up = append(up, s)
		}
	}
	f.mu.Unlock()
	if l == nil {
		return
	}
	for _, s := range up {
		l.ConnectionUp(s.Id, slices.Clone(s.Ports))
	}
}

func (f *Fabric) far(sw state.SwitchId, port state.Port) (*Cable, endpoint, bool) {
	c, ok := f.byPort[endpoint{sw, port}]
	if !ok {
		return nil, endpoint{}, false
	}
	if c.Link.A == sw && c.Link.PortA == port {
		return c, endpoint{c.Link.B, c.Link.PortB}, true
	}
	return c, endpoint{c.Link.A, c.Link.PortA}, true
}

// SendProbe delivers probe to the far end of the cable on (sw, port). A probe on a cut
// cable, towards a failed switch or lost to packet loss vanishes without an error.
func (f *Fabric) SendProbe(sw state.SwitchId, port state.Port, probe state.Probe) error {
	f.mu.Lock()
	s, ok := f.switches[sw]
	if !ok || !s.Up {
		f.mu.Unlock()
		return fmt.Errorf("switch %s is not connected", sw)
	}
	c, to, ok := f.far(sw, port)
	if !ok || !c.Up || !f.switches[to.sw].Up || (c.PacketLoss > 0 && rand.Float64() < c.PacketLoss) {
		f.mu.Unlock()
		return nil
	}
	l := f.listener
	f.mu.Unlock()
	if l != nil {
		l.ProbeIn(to.sw, to.port, probe)
	}
	return nil
}

func (f *Fabric) entryTargets(link state.Link) ([]*Switch, error) {
	res := make([]*Switch, 0, 2)
	for _, sw := range []state.SwitchId{link.A, link.B} {
		s, ok := f.switches[sw]
		if !ok || !s.Up {
			return nil, fmt.Errorf("switch %s is not connected", sw)
		}
		res = append(res, s)
	}
	return res, nil
}

func (f *Fabric) InstallEntries(link state.Link) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	targets, err := f.entryTargets(link)
	if err != nil {
		return err
	}
	targets[0].Entries[link.PortA] = link
	targets[1].Entries[link.PortB] = link
	return nil
}

func (f *Fabric) RemoveEntries(link state.Link) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	targets, err := f.entryTargets(link)
	if err != nil {
		return err
	}
	delete(targets[0].Entries, link.PortA)
	delete(targets[1].Entries, link.PortB)
	return nil
}

// EntryPorts returns the ports of sw that currently have forwarding entries
func (f *Fabric) EntryPorts(sw state.SwitchId) []state.Port {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.switches[sw]
	if !ok {
		return nil
	}
	res := make([]state.Port, 0, len(s.Entries))
	for p := range s.Entries {
		res = append(res, p)
	}
	slices.Sort(res)
	return res
}

func (f *Fabric) cable(a, b state.SwitchId) (*Cable, error) {
	key := state.MakeEdgeKey(a, b)
	for _, c := range f.cables {
		if c.Link.Key() == key {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no cable between %s and %s", a, b)
}

func (f *Fabric) setCable(a, b state.SwitchId, up bool) error {
	f.mu.Lock()
	c, err := f.cable(a, b)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	c.Up = up
	l := f.listener
	link := c.Link
	f.mu.Unlock()
	if l != nil {
		l.PortStatus(link.A, link.PortA, !up)
		l.PortStatus(link.B, link.PortB, !up)
	}
	return nil
}

// CutCable takes the cable between a and b down, both ends see a port down event
func (f *Fabric) CutCable(a, b state.SwitchId) error {
	return f.setCable(a, b, false)
}

func (f *Fabric) RestoreCable(a, b state.SwitchId) error {
	return f.setCable(a, b, true)
}

// SetPacketLoss makes probes on the cable between a and b vanish with the given probability
func (f *Fabric) SetPacketLoss(a, b state.SwitchId, loss float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, err := f.cable(a, b)
	if err != nil {
		return err
	}
	c.PacketLoss = loss
	return nil
}

func (f *Fabric) setSwitch(sw state.SwitchId, up bool) error {
	f.mu.Lock()
	s, ok := f.switches[sw]
	if !ok {
		f.mu.Unlock()
		return fmt.Errorf("switch %s does not exist", sw)
	}
	s.Up = up
	// a switch loses its tables when it goes down
	clear(s.Entries)
	peers := make([]endpoint, 0)
	for _, p := range s.Ports {
		if c, to, ok := f.far(sw, p); ok && c.Up && f.switches[to.sw].Up {
			peers = append(peers, to)
		}
	}
	ports := slices.Clone(s.Ports)
	l := f.listener
	f.mu.Unlock()
	if l == nil {
		return nil
	}
	if up {
		l.ConnectionUp(sw, ports)
	} else {
		l.ConnectionDown(sw)
	}
	for _, peer := range peers {
		l.PortStatus(peer.sw, peer.port, !up)
	}
	return nil
}

// FailSwitch disconnects sw from the controller, its peers see their ports go down
func (f *Fabric) FailSwitch(sw state.SwitchId) error {
	return f.setSwitch(sw, false)
}

func (f *Fabric) RecoverSwitch(sw state.SwitchId) error {
	return f.setSwitch(sw, true)
}

func (f *Fabric) Switches() []state.SwitchId {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.order)
}

// Cables returns every cable's link, whether it is up or not
func (f *Fabric) Cables() []state.Link {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := make([]state.Link, 0, len(f.cables))
	for _, c := range f.cables {
		res = append(res, c.Link)
	}
	return res
}
