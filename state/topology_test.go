package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_AddNodeIdempotent(t *testing.T) {
	g := NewGraph()
	assert.True(t, g.AddNode("s1"))
	assert.False(t, g.AddNode("s1"))
	assert.Equal(t, 1, g.NumNodes())
	assert.Equal(t, []SwitchId{"s1"}, g.Nodes())
}

func TestGraph_AddEdgeCanonical(t *testing.T) {
	g := NewGraph()
	g.AddNode("s1")
	g.AddNode("s2")
	now := time.Unix(100, 0)

	e, created, err := g.AddEdge("s2", 7, "s1", 3, now)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, Link{A: "s1", PortA: 3, B: "s2", PortB: 7}, e.Link())
	assert.Equal(t, now, e.LastSeen)

	// same pair, either orientation, merges into the existing edge
	e2, created, err := g.AddEdge("s1", 99, "s2", 98, now.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, e, e2)
	assert.Equal(t, Port(3), e2.PortA, "ports are immutable")
	assert.Equal(t, 1, g.NumEdges())

	assert.Same(t, e, g.GetEdge("s1", "s2"))
	assert.Same(t, e, g.GetEdge("s2", "s1"))
}

func TestGraph_AddEdgeUnknownSwitch(t *testing.T) {
	g := NewGraph()
	g.AddNode("s1")
	_, _, err := g.AddEdge("s1", 1, "s2", 1, time.Now())
	assert.ErrorContains(t, err, "switch s2 does not exist")
	assert.Equal(t, 0, g.NumEdges())
}

func TestGraph_RemoveNodeCascades(t *testing.T) {
	g := NewGraph()
	for _, s := range []SwitchId{"s1", "s2", "s3"} {
		g.AddNode(s)
	}
	now := time.Now()
	_, _, _ = g.AddEdge("s1", 1, "s2", 1, now)
	_, _, _ = g.AddEdge("s2", 2, "s3", 2, now)
	_, _, _ = g.AddEdge("s1", 3, "s3", 3, now)

	removed := g.RemoveNode("s2")
	require.Len(t, removed, 2)
	assert.Equal(t, Link{"s1", 1, "s2", 1}, removed[0].Link())
	assert.Equal(t, Link{"s2", 2, "s3", 2}, removed[1].Link())
	assert.Nil(t, g.GetEdge("s1", "s2"))
	assert.Equal(t, 1, g.NumEdges())
	assert.False(t, g.HasNode("s2"))

	assert.Nil(t, g.RemoveNode("s2"))
}

func TestGraph_RemoveEdgeKeepsOrder(t *testing.T) {
	g := NewGraph()
	for _, s := range []SwitchId{"a", "b", "c", "d"} {
		g.AddNode(s)
	}
	now := time.Now()
	_, _, _ = g.AddEdge("a", 1, "b", 1, now)
	_, _, _ = g.AddEdge("b", 2, "c", 1, now)
	_, _, _ = g.AddEdge("c", 2, "d", 1, now)

	assert.NotNil(t, g.RemoveEdge("c", "b"))
	assert.Nil(t, g.RemoveEdge("c", "b"))
	require.Len(t, g.Edges(), 2)
	assert.Equal(t, EdgeKey{"a", "b"}, g.Edges()[0].Key())
	assert.Equal(t, EdgeKey{"c", "d"}, g.Edges()[1].Key())
}

func TestLink_Matches(t *testing.T) {
	l := Link{A: "s1", PortA: 1, B: "s2", PortB: 2}
	assert.True(t, l.Matches("s1", 1, "s2", 2))
	assert.True(t, l.Matches("s2", 2, "s1", 1))
	assert.True(t, l.Matches("s1", 2, "s2", 1), "ports are compared as an unordered pair")
	assert.False(t, l.Matches("s1", 1, "s2", 3))
	assert.False(t, l.Matches("s1", 1, "s3", 2))
}

func TestLink_Canonical(t *testing.T) {
	l := Link{A: "s9", PortA: 4, B: "s1", PortB: 5}
	assert.Equal(t, Link{A: "s1", PortA: 5, B: "s9", PortB: 4}, l.Canonical())
	assert.Equal(t, l.Canonical(), l.Canonical().Canonical())
	assert.True(t, l.Touches("s9", 4))
	assert.False(t, l.Touches("s9", 5))
}
