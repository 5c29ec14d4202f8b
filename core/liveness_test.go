package core

import (
	"testing"
	"time"

	"github.com/encodeous/trellis/state"
	"github.com/stretchr/testify/assert"
)

func TestIsExpired(t *testing.T) {
	e := &state.Edge{A: "a", B: "b"}
	Stamp(e, epoch)
	assert.False(t, IsExpired(e, epoch, state.LinkExpiry))
	assert.False(t, IsExpired(e, epoch.Add(state.LinkExpiry), state.LinkExpiry))
	assert.True(t, IsExpired(e, epoch.Add(state.LinkExpiry+time.Millisecond), state.LinkExpiry))

	Stamp(e, epoch.Add(time.Minute))
	assert.False(t, IsExpired(e, epoch.Add(time.Minute+time.Second), state.LinkExpiry))
}

func TestExpiredEdges(t *testing.T) {
	g := buildGraph(t, []state.SwitchId{"a", "b", "c"},
		[2]state.SwitchId{"a", "b"},
		[2]state.SwitchId{"b", "c"},
	)
	Stamp(g.GetEdge("b", "c"), epoch.Add(5*time.Second))

	now := epoch.Add(7 * time.Second)
	expired := ExpiredEdges(g, now, 6*time.Second)
	assert.Len(t, expired, 1)
	assert.Equal(t, state.MakeEdgeKey("a", "b"), expired[0].Key())
	assert.Equal(t, 2, g.NumEdges())

	assert.Empty(t, ExpiredEdges(g, epoch, 6*time.Second))
	assert.Len(t, ExpiredEdges(g, now.Add(time.Hour), 6*time.Second), 2)
}
