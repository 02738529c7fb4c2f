package diskstore

import (
	"testing"

	"github.com/nornicorpus/nornicorpus/internal/corpusgraph"
	"github.com/nornicorpus/nornicorpus/internal/graph"
	"github.com/stretchr/testify/require"
)

func buildCorpus(t *testing.T) *corpusgraph.Corpus {
	t.Helper()
	c := corpusgraph.New("tiger")
	c.AddNode("tok1", graph.NodeTypeNode)
	c.AddNode("tok2", graph.NodeTypeNode)
	comp := graph.Component{Type: graph.Ordering, Layer: "annis", Name: ""}
	require.NoError(t, c.AddEdge("tok1", "tok2", comp))
	require.NoError(t, c.AddEdgeLabel("tok1", "tok2", comp, "annis", "dist", "1"))
	return c
}

func TestSaveAndLoadCorpusRoundTrip(t *testing.T) {
	snap, err := OpenInMemory()
	require.NoError(t, err)
	defer snap.Close()

	c := buildCorpus(t)
	require.NoError(t, snap.SaveCorpus(c))

	d, nodeAnnos, nextID, ok, err := snap.LoadDictionaryAndNodeAnnotations()
	require.NoError(t, err)
	require.True(t, ok)

	restored := corpusgraph.NewFromSnapshot("tiger", d, nodeAnnos, graph.NodeID(nextID))
	id1, ok := restored.NodeIDByName("tok1")
	require.True(t, ok)
	id2, ok := restored.NodeIDByName("tok2")
	require.True(t, ok)
	require.Equal(t, id1+1, id2)
}

func TestLoadComponentRoundTrip(t *testing.T) {
	snap, err := OpenInMemory()
	require.NoError(t, err)
	defer snap.Close()

	c := buildCorpus(t)
	require.NoError(t, snap.SaveCorpus(c))

	comp := graph.Component{Type: graph.Ordering, Layer: "annis", Name: ""}
	al, err := snap.LoadComponent("tiger", comp)
	require.NoError(t, err)
	require.Equal(t, []graph.NodeID{1}, al.OutEdges(0))

	annos := al.EdgeAnnos(graph.Edge{Source: 0, Target: 1})
	require.Len(t, annos, 1)
}

func TestComponentListReportsPersistedComponents(t *testing.T) {
	snap, err := OpenInMemory()
	require.NoError(t, err)
	defer snap.Close()

	c := buildCorpus(t)
	require.NoError(t, snap.SaveCorpus(c))

	comps, err := snap.ComponentList()
	require.NoError(t, err)
	require.Len(t, comps, 1)
	require.Equal(t, graph.Ordering, comps[0].Type)
	require.Equal(t, "annis", comps[0].Layer)
}

func TestUpdateLogRoundTrip(t *testing.T) {
	snap, err := OpenInMemory()
	require.NoError(t, err)
	defer snap.Close()

	_, ok, err := snap.LoadUpdateLog()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, snap.SaveUpdateLog([]byte(`{"events":[]}`)))
	data, ok, err := snap.LoadUpdateLog()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"events":[]}`, string(data))

	require.NoError(t, snap.DeleteUpdateLog())
	_, ok, err = snap.LoadUpdateLog()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadComponentMissingReturnsEmpty(t *testing.T) {
	snap, err := OpenInMemory()
	require.NoError(t, err)
	defer snap.Close()

	al, err := snap.LoadComponent("tiger", graph.Component{Type: graph.Dominance, Layer: "x", Name: "y"})
	require.NoError(t, err)
	require.Empty(t, al.NodeSet())
}
