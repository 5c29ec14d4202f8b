package core

import (
	"fmt"

	"github.com/encodeous/trellis/state"
)

// ComputeForest recomputes which edges belong to the spanning forest.
//
// Every edge starts forbidden, then edges are visited in graph order and an edge is allowed
// iff its endpoints are not yet connected by allowed edges. The result is one spanning tree
// per connected component. Different edge orders give different, equally valid forests.
// Returns the number of allowed edges.
func ComputeForest(g *state.Graph) int {
	uf := NewUnionFind[state.SwitchId](g.NumNodes())
	for _, sw := range g.Nodes() {
		uf.MakeSet(sw)
	}
	for _, e := range g.Edges() {
		e.Allowed = false
	}
	allowed := 0
	for _, e := range g.Edges() {
		if uf.Union(e.A, e.B) {
			e.Allowed = true
			allowed++
		}
	}
	return allowed
}

// ValidateForest checks that the allowed edges form a spanning forest of the graph:
// every allowed edge joins two existing switches, no allowed edge closes a cycle, and the
// number of allowed edges is nodes - components.
func ValidateForest(g *state.Graph) error {
	allowed := NewUnionFind[state.SwitchId](g.NumNodes())
	full := NewUnionFind[state.SwitchId](g.NumNodes())
	for _, sw := range g.Nodes() {
		allowed.MakeSet(sw)
		full.MakeSet(sw)
	}
	nAllowed := 0
	for _, e := range g.Edges() {
		if !g.HasNode(e.A) || !g.HasNode(e.B) {
			return fmt.Errorf("edge %s references a switch that is not in the graph", e.Link())
		}
		full.Union(e.A, e.B)
		if !e.Allowed {
			continue
		}
		nAllowed++
		if !allowed.Union(e.A, e.B) {
			return fmt.Errorf("allowed edge %s closes a cycle", e.Link())
		}
	}
	components := full.Sets()
	if want := g.NumNodes() - components; nAllowed != want {
		return fmt.Errorf("forest has %d allowed edges, expected %d (%d switches, %d components)",
			nAllowed, want, g.NumNodes(), components)
	}
	return nil
}
