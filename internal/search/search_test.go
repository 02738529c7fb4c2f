package search

import (
	"testing"

	"github.com/nornicorpus/nornicorpus/internal/anno"
	"github.com/nornicorpus/nornicorpus/internal/dict"
	"github.com/nornicorpus/nornicorpus/internal/graph"
	"github.com/nornicorpus/nornicorpus/internal/gs"
	"github.com/stretchr/testify/require"
)

func buildNodeAnnos(t *testing.T) (*anno.Store[graph.NodeID], *dict.Dictionary, graph.AnnoKey) {
	t.Helper()
	d := dict.New()
	ns := d.Add("tiger")
	name := d.Add("cat")
	key := graph.AnnoKey{Namespace: graph.StringID(ns), Name: graph.StringID(name)}

	store := anno.NewStore[graph.NodeID]()
	vS := graph.StringID(d.Add("S"))
	vNP := graph.StringID(d.Add("NP"))
	store.Add(graph.NodeID(1), graph.Annotation{Key: key, Value: vS})
	store.Add(graph.NodeID(2), graph.Annotation{Key: key, Value: vNP})
	store.Add(graph.NodeID(3), graph.Annotation{Key: key, Value: vS})
	return store, d, key
}

func TestExactKeySearchCount(t *testing.T) {
	store, _, key := buildNodeAnnos(t)
	s := NewExactKeySearch(store, key)
	require.EqualValues(t, 3, s.GuessMaxCount())

	var m graph.Match
	count := 0
	for s.Next(&m) {
		count++
	}
	require.Equal(t, 3, count)
}

func TestExactValueSearch(t *testing.T) {
	store, d, key := buildNodeAnnos(t)
	vS, _ := d.IDOf("S")
	s := NewExactValueSearch(store, d, key, graph.StringID(vS), false)

	var m graph.Match
	var nodes []graph.NodeID
	for s.Next(&m) {
		nodes = append(nodes, m.Node)
	}
	require.ElementsMatch(t, []graph.NodeID{1, 3}, nodes)
}

func TestExactValueSearchNodeNameEstimateIsOne(t *testing.T) {
	store, d, key := buildNodeAnnos(t)
	vS, _ := d.IDOf("S")
	s := NewExactValueSearch(store, d, key, graph.StringID(vS), true)
	require.EqualValues(t, 1, s.GuessMaxCount())
}

func TestRegexValueSearch(t *testing.T) {
	store, d, key := buildNodeAnnos(t)
	s, err := NewRegexValueSearch(store, d, key, "^S$")
	require.NoError(t, err)

	var m graph.Match
	var nodes []graph.NodeID
	for s.Next(&m) {
		nodes = append(nodes, m.Node)
	}
	require.ElementsMatch(t, []graph.NodeID{1, 3}, nodes)
}

func TestRegexValueSearchUnboundedDetection(t *testing.T) {
	store, d, key := buildNodeAnnos(t)
	s, err := NewRegexValueSearch(store, d, key, ".*")
	require.NoError(t, err)
	require.True(t, s.IsUnbounded())
}

func TestConstantOutputDedup(t *testing.T) {
	store, _, key := buildNodeAnnos(t)
	s := NewExactKeySearch(store, key)
	s.SetConstantOutput(graph.Annotation{})

	var m graph.Match
	count := 0
	for s.Next(&m) {
		count++
		require.Equal(t, graph.Annotation{}, m.Anno)
	}
	require.Equal(t, 3, count, "every node still emitted exactly once under constant output")
}

func TestNodeByEdgeAnnoSearchDedup(t *testing.T) {
	a := gs.NewAdjacencyList()
	a.AddEdge(graph.Edge{Source: 1, Target: 2})
	a.AddEdge(graph.Edge{Source: 1, Target: 3})
	a.AddEdgeAnno(graph.Edge{Source: 1, Target: 2}, graph.Annotation{})
	a.AddEdgeAnno(graph.Edge{Source: 1, Target: 3}, graph.Annotation{})

	s := NewNodeByEdgeAnnoSearch(
		[]gs.ReadableGS{a},
		func(graph.Annotation) bool { return true },
		func(n graph.NodeID) (graph.Annotation, bool) { return graph.Annotation{}, true },
		2,
	)

	var m graph.Match
	count := 0
	for s.Next(&m) {
		count++
		require.Equal(t, graph.NodeID(1), m.Node, "node 1 is the only source, emitted at most once")
	}
	require.Equal(t, 1, count)
}
