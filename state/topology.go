package state

import (
	"fmt"
	"slices"
	"time"
)

type SwitchId string

type Port uint32

// EdgeKey identifies an edge by its unordered switch pair, stored smaller id first
type EdgeKey = Pair[SwitchId, SwitchId]

func MakeEdgeKey(a, b SwitchId) EdgeKey {
	return MakeSortedPair(a, b)
}

// Link is the (switch, port, switch, port) tuple exchanged with the transport
type Link struct {
	A     SwitchId
	PortA Port
	B     SwitchId
	PortB Port
}

func (l Link) String() string {
	return fmt.Sprintf("%s:%d <-> %s:%d", l.A, l.PortA, l.B, l.PortB)
}

func (l Link) Key() EdgeKey {
	return MakeEdgeKey(l.A, l.B)
}

// Matches reports whether l describes the same physical link as (s1, p1, s2, p2), in either orientation
func (l Link) Matches(s1 SwitchId, p1 Port, s2 SwitchId, p2 Port) bool {
	if l.Key() != MakeEdgeKey(s1, s2) {
		return false
	}
	return portsMatch(l.PortA, l.PortB, p1, p2)
}

// Touches reports whether the link is attached to port on switch sw
func (l Link) Touches(sw SwitchId, port Port) bool {
	return (l.A == sw && l.PortA == port) || (l.B == sw && l.PortB == port)
}

// Canonical returns the link oriented the way the graph stores it (A <= B)
func (l Link) Canonical() Link {
	if l.B < l.A {
		return Link{A: l.B, PortA: l.PortB, B: l.A, PortB: l.PortA}
	}
	return l
}

func portsMatch(a, b, p1, p2 Port) bool {
	return (a == p1 && b == p2) || (a == p2 && b == p1)
}

type Edge struct {
	A, B     SwitchId
	PortA    Port // port on A, fixed at creation
	PortB    Port // port on B, fixed at creation
	LastSeen time.Time
	// Allowed is owned by the forest computation
	Allowed bool
	// HasEntry tracks forwarding entries confirmed on both endpoints
	HasEntry bool
}

func (e *Edge) Key() EdgeKey {
	return EdgeKey{e.A, e.B}
}

func (e *Edge) Link() Link {
	return Link{A: e.A, PortA: e.PortA, B: e.B, PortB: e.PortB}
}

// PortsMatch reports whether p1, p2 are this edge's ports, in either orientation.
// The switch pair is assumed to match already.
func (e *Edge) PortsMatch(p1, p2 Port) bool {
	return portsMatch(e.PortA, e.PortB, p1, p2)
}

func (e *Edge) String() string {
	return fmt.Sprintf("%s allowed=%t entry=%t", e.Link(), e.Allowed, e.HasEntry)
}

// Graph is the mutable switch/link graph. Nodes and edges keep insertion order,
// which fixes the order the forest is computed in.
//
// Graph is not safe for concurrent use.
type Graph struct {
	nodes   []SwitchId
	nodeSet map[SwitchId]struct{}
	edges   []*Edge
	index   map[EdgeKey]*Edge
}

func NewGraph() *Graph {
	return &Graph{
		nodeSet: make(map[SwitchId]struct{}),
		index:   make(map[EdgeKey]*Edge),
	}
}

// AddNode adds sw, returning false if it was already present
func (g *Graph) AddNode(sw SwitchId) bool {
	if _, ok := g.nodeSet[sw]; ok {
		return false
	}
	g.nodeSet[sw] = struct{}{}
	g.nodes = append(g.nodes, sw)
	return true
}

func (g *Graph) HasNode(sw SwitchId) bool {
	_, ok := g.nodeSet[sw]
	return ok
}

// RemoveNode removes sw and every incident edge. The removed edges are returned in graph order.
func (g *Graph) RemoveNode(sw SwitchId) []*Edge {
	if !g.HasNode(sw) {
		return nil
	}
	delete(g.nodeSet, sw)
	g.nodes = slices.DeleteFunc(g.nodes, func(n SwitchId) bool {
		return n == sw
	})
	removed := make([]*Edge, 0)
	g.edges = slices.DeleteFunc(g.edges, func(e *Edge) bool {
		if e.A == sw || e.B == sw {
			removed = append(removed, e)
			delete(g.index, e.Key())
			return true
		}
		return false
	})
	return removed
}

// AddEdge creates the edge between a and b. If an edge for the pair already exists it is
// returned unchanged with created = false. Both endpoints must exist.
func (g *Graph) AddEdge(a SwitchId, portA Port, b SwitchId, portB Port, now time.Time) (edge *Edge, created bool, err error) {
	if !g.HasNode(a) {
		return nil, false, fmt.Errorf("switch %s does not exist", a)
	}
	if !g.HasNode(b) {
		return nil, false, fmt.Errorf("switch %s does not exist", b)
	}
	key := MakeEdgeKey(a, b)
	if e, ok := g.index[key]; ok {
		return e, false, nil
	}
	if b < a {
		a, b = b, a
		portA, portB = portB, portA
	}
	e := &Edge{
		A:        a,
		B:        b,
		PortA:    portA,
		PortB:    portB,
		LastSeen: now,
	}
	g.edges = append(g.edges, e)
	g.index[key] = e
	return e, true, nil
}

func (g *Graph) GetEdge(a, b SwitchId) *Edge {
	return g.index[MakeEdgeKey(a, b)]
}

// RemoveEdge deletes the edge for the pair, returning it, or nil if there was none
func (g *Graph) RemoveEdge(a, b SwitchId) *Edge {
	key := MakeEdgeKey(a, b)
	e, ok := g.index[key]
	if !ok {
		return nil
	}
	delete(g.index, key)
	g.edges = slices.DeleteFunc(g.edges, func(x *Edge) bool {
		return x == e
	})
	return e
}

// Nodes returns the switches in insertion order. The slice must not be modified.
func (g *Graph) Nodes() []SwitchId {
	return g.nodes
}

// Edges returns the edges in insertion order. The slice must not be modified.
func (g *Graph) Edges() []*Edge {
	return g.edges
}

func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

func (g *Graph) NumEdges() int {
	return len(g.edges)
}
