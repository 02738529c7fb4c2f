package manager

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nornicorpus/nornicorpus/internal/corpusgraph"
	"github.com/nornicorpus/nornicorpus/internal/graph"
)

func TestScriptFinalizeStampsMonotonicChangeIDs(t *testing.T) {
	s := NewScript([]Event{
		{Kind: EventAddNode, Name: "tok1"},
		{Kind: EventAddNode, Name: "tok2"},
	})
	s.Finalize(10)

	require.Equal(t, uint64(11), s.Events[0].ChangeID)
	require.Equal(t, uint64(12), s.Events[1].ChangeID)
	require.Equal(t, uint64(12), s.LastConsistentChangeID)
}

func TestScriptFinalizeIsNoOpWhenAlreadyConsistent(t *testing.T) {
	s := NewScript([]Event{{Kind: EventAddNode, Name: "tok1", ChangeID: 5}})
	s.LastConsistentChangeID = 5
	s.consistent = true

	s.Finalize(100)
	require.Equal(t, uint64(5), s.Events[0].ChangeID)
}

func TestScriptApplyAddNodeAndEdge(t *testing.T) {
	c := corpusgraph.New("tiger")
	comp := graph.Component{Type: graph.Ordering, Layer: "annis"}

	s := NewScript([]Event{
		{Kind: EventAddNode, Name: "tok1"},
		{Kind: EventAddNode, Name: "tok2"},
		{Kind: EventAddEdge, SrcName: "tok1", TgtName: "tok2", Layer: "annis", ComponentType: graph.Ordering},
		{Kind: EventAddEdgeLabel, SrcName: "tok1", TgtName: "tok2", Layer: "annis", ComponentType: graph.Ordering, NS: "annis", Label: "dist", Value: "1"},
	})
	s.Finalize(0)
	require.NoError(t, s.Apply(c))

	al, err := c.MutableStorage(comp)
	require.NoError(t, err)
	id1, ok := c.NodeIDByName("tok1")
	require.True(t, ok)
	id2, ok := c.NodeIDByName("tok2")
	require.True(t, ok)
	require.Equal(t, []graph.NodeID{id2}, al.OutEdges(id1))
}

func TestScriptApplyDeleteNodeRemovesIncidentEdges(t *testing.T) {
	c := corpusgraph.New("tiger")
	comp := graph.Component{Type: graph.Ordering, Layer: "annis"}

	s := NewScript([]Event{
		{Kind: EventAddNode, Name: "tok1"},
		{Kind: EventAddNode, Name: "tok2"},
		{Kind: EventAddEdge, SrcName: "tok1", TgtName: "tok2", Layer: "annis", ComponentType: graph.Ordering},
	})
	s.Finalize(0)
	require.NoError(t, s.Apply(c))

	del := NewScript([]Event{{Kind: EventDeleteNode, Name: "tok1"}})
	del.Finalize(s.LastConsistentChangeID)
	require.NoError(t, del.Apply(c))

	_, ok := c.NodeIDByName("tok1")
	require.False(t, ok)

	al, err := c.MutableStorage(comp)
	require.NoError(t, err)
	require.Empty(t, al.NodeSet())
}

func TestScriptReplayAboveSkipsAlreadyConsistentEvents(t *testing.T) {
	c := corpusgraph.New("tiger")
	s := NewScript([]Event{
		{Kind: EventAddNode, Name: "tok1"},
		{Kind: EventAddNode, Name: "tok2"},
		{Kind: EventAddNode, Name: "tok3"},
	})
	s.Finalize(0)

	require.NoError(t, s.ReplayAbove(c, 1))

	_, ok := c.NodeIDByName("tok1")
	require.False(t, ok, "event at or below the watermark must not be replayed")
	_, ok = c.NodeIDByName("tok2")
	require.True(t, ok)
	_, ok = c.NodeIDByName("tok3")
	require.True(t, ok)
}

func TestNodeLabelEvents(t *testing.T) {
	c := corpusgraph.New("tiger")
	s := NewScript([]Event{
		{Kind: EventAddNode, Name: "tok1"},
		{Kind: EventAddNodeLabel, Name: "tok1", NS: "tiger", Label: "pos", Value: "NN"},
	})
	s.Finalize(0)
	require.NoError(t, s.Apply(c))

	id, ok := c.NodeIDByName("tok1")
	require.True(t, ok)
	annos := c.NodeAnnotations().GetAll(id)
	require.NotEmpty(t, annos)

	del := NewScript([]Event{{Kind: EventDeleteNodeLabel, Name: "tok1", NS: "tiger", Label: "pos"}})
	del.Finalize(s.LastConsistentChangeID)
	require.NoError(t, del.Apply(c))
}
