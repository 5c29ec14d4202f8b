package core

import (
	"github.com/encodeous/trellis/state"
)

type EntryAction int

const (
	EntryInSync EntryAction = iota
	EntryAdd
	EntryRemove
)

func (a EntryAction) String() string {
	switch a {
	case EntryAdd:
		return "add"
	case EntryRemove:
		return "remove"
	default:
		return "in-sync"
	}
}

// ClassifyEntry decides the entry work for an edge from (Allowed, HasEntry) alone
func ClassifyEntry(e *state.Edge) EntryAction {
	switch {
	case e.Allowed && !e.HasEntry:
		return EntryAdd
	case !e.Allowed && e.HasEntry:
		return EntryRemove
	default:
		return EntryInSync
	}
}

func linksWith(g *state.Graph, action EntryAction) []state.Link {
	res := make([]state.Link, 0)
	for _, e := range g.Edges() {
		if ClassifyEntry(e) == action {
			res = append(res, e.Link())
		}
	}
	return res
}

// EntriesToAdd returns the allowed links whose entries are not installed
func EntriesToAdd(g *state.Graph) []state.Link {
	return linksWith(g, EntryAdd)
}

// EntriesToRemove returns the forbidden links whose entries are still installed
func EntriesToRemove(g *state.Graph) []state.Link {
	return linksWith(g, EntryRemove)
}

// SetEntry records whether entries for the link are installed. Nothing changes unless an edge
// exists for the pair and its ports match. Returns true if the edge matched.
func SetEntry(g *state.Graph, s1 state.SwitchId, p1 state.Port, s2 state.SwitchId, p2 state.Port, present bool) bool {
	e := g.GetEdge(s1, s2)
	if e == nil || !e.PortsMatch(p1, p2) {
		return false
	}
	e.HasEntry = present
	return true
}
