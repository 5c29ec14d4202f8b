package core

import (
	"time"

	"github.com/encodeous/trellis/state"
)

// Stamp records a liveness signal for the edge
func Stamp(e *state.Edge, now time.Time) {
	e.LastSeen = now
}

// IsExpired reports whether the edge has not been seen for strictly longer than threshold
func IsExpired(e *state.Edge, now time.Time, threshold time.Duration) bool {
	return now.Sub(e.LastSeen) > threshold
}

// ExpiredEdges returns every edge that has not been seen within threshold, in graph order.
// It does not modify the graph, expired edges must be removed through the usual link-dead path.
func ExpiredEdges(g *state.Graph, now time.Time, threshold time.Duration) []*state.Edge {
	res := make([]*state.Edge, 0)
	for _, e := range g.Edges() {
		if IsExpired(e, now, threshold) {
			res = append(res, e)
		}
	}
	return res
}
